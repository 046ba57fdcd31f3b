package cluster

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/mediocregopher/radix.v2/pool"
	"github.com/mediocregopher/radix.v2/redis"
)

const (
	defaultConnectionTimeout = 2 * time.Second

	// connectionPoolSize is the number of idle connections kept per node
	connectionPoolSize = 3

	// ErrNotFound cannot find a node to connect to
	ErrNotFound = "Unable to find a node to connect"
)

// ConnectionsOptions specifies how the connection pools dial and identify
// themselves to the cluster nodes
type ConnectionsOptions struct {
	ConnectionTimeout  time.Duration
	ClientName         string
	RenameCommandsFile string
}

// Connections is a thread safe map of connection pools to the cluster nodes,
// implementing ExecutionChannel. One pool is kept per address so concurrent
// requests to the same node each get their own connection. Pools are created
// lazily and broken connections are discarded and redialed transparently.
type Connections struct {
	sync.Mutex
	pools             map[string]*pool.Pool
	connectionTimeout time.Duration
	commandsMapping   map[string]string
	clientName        string
}

// NewConnections dials the given seed addresses and returns the connection
// map. Unreachable seeds are skipped silently, they are retried on first use.
func NewConnections(addrs []string, options *ConnectionsOptions) *Connections {
	cnx := &Connections{
		pools:             make(map[string]*pool.Pool),
		connectionTimeout: defaultConnectionTimeout,
		commandsMapping:   make(map[string]string),
	}
	if options != nil {
		if options.ConnectionTimeout != 0 {
			cnx.connectionTimeout = options.ConnectionTimeout
		}
		if _, err := os.Stat(options.RenameCommandsFile); err == nil {
			cnx.commandsMapping = buildCommandReplaceMapping(options.RenameCommandsFile)
		}
		cnx.clientName = options.ClientName
	}
	for _, addr := range addrs {
		if err := cnx.Add(addr); err != nil {
			glog.V(3).Infof("Cannot connect to %s: %v", addr, err)
		}
	}
	return cnx
}

// Do implements ExecutionChannel. The command name is remapped through the
// rename-command table before being sent. radix connections cannot be
// interrupted mid-command, the context is only checked before sending.
func (cnx *Connections) Do(ctx context.Context, addr, command string, args ...interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := cnx.get(addr)
	if err != nil {
		return nil, err
	}
	// the pool hands each request its own connection and drops it on
	// network errors instead of putting it back
	resp := p.Cmd(cnx.mappedCommand(command), args...)
	if resp.Err != nil {
		return nil, fmt.Errorf("node %s: %v", addr, resp.Err)
	}
	return respToNative(resp)
}

// Addrs implements ExecutionChannel
func (cnx *Connections) Addrs() []string {
	cnx.Lock()
	defer cnx.Unlock()
	addrs := make([]string, 0, len(cnx.pools))
	for addr := range cnx.pools {
		addrs = append(addrs, addr)
	}
	return addrs
}

// RandomAddr implements ExecutionChannel
func (cnx *Connections) RandomAddr() (string, error) {
	cnx.Lock()
	defer cnx.Unlock()
	if len(cnx.pools) == 0 {
		return "", errors.New(ErrNotFound)
	}
	n := rand.Intn(len(cnx.pools))
	for addr := range cnx.pools {
		if n == 0 {
			return addr, nil
		}
		n--
	}
	return "", errors.New(ErrNotFound)
}

// Add connects to the given address and registers the connection pool in
// the map
func (cnx *Connections) Add(addr string) error {
	cnx.Lock()
	defer cnx.Unlock()
	_, err := cnx.update(addr)
	return err
}

// Remove disconnects and removes the connection pool from the map
func (cnx *Connections) Remove(addr string) {
	cnx.Lock()
	defer cnx.Unlock()
	if p, ok := cnx.pools[addr]; ok {
		p.Empty()
		delete(cnx.pools, addr)
	}
}

// Reconnect drops every pooled connection to the given address and dials a
// fresh pool. If the address is not part of the map, acts like Add.
func (cnx *Connections) Reconnect(addr string) error {
	glog.Infof("Reconnecting to %s", addr)
	cnx.Remove(addr)
	return cnx.Add(addr)
}

// ReplaceAll clears the map and re-populates it with new connection pools,
// failing silently on unreachable addresses
func (cnx *Connections) ReplaceAll(addrs []string) {
	cnx.Close()
	for _, addr := range addrs {
		if err := cnx.Add(addr); err != nil {
			glog.V(3).Infof("Cannot connect to %s: %v", addr, err)
		}
	}
}

// Close implements ExecutionChannel, closing all connections and clearing
// the map
func (cnx *Connections) Close() {
	cnx.Lock()
	defer cnx.Unlock()
	for _, p := range cnx.pools {
		p.Empty()
	}
	cnx.pools = map[string]*pool.Pool{}
}

// get returns the connection pool for the given address, dialing if the
// pool is not in the map yet
func (cnx *Connections) get(addr string) (*pool.Pool, error) {
	cnx.Lock()
	defer cnx.Unlock()
	if p, ok := cnx.pools[addr]; ok {
		return p, nil
	}
	p, err := cnx.connect(addr)
	if err == nil && p != nil {
		cnx.pools[addr] = p
	}
	return p, err
}

// update closes any current pool for addr and dials a new one. Callers
// hold the lock.
func (cnx *Connections) update(addr string) (*pool.Pool, error) {
	if p, ok := cnx.pools[addr]; ok {
		p.Empty()
	}
	p, err := cnx.connect(addr)
	if err == nil && p != nil {
		cnx.pools[addr] = p
	} else {
		glog.V(3).Infof("Cannot connect to %s ", addr)
	}
	return p, err
}

func (cnx *Connections) connect(addr string) (*pool.Pool, error) {
	return pool.NewCustom("tcp", addr, connectionPoolSize, cnx.dial)
}

// dial is the pool DialFunc, also used to redial after a connection is
// dropped on a network error
func (cnx *Connections) dial(network, addr string) (*redis.Client, error) {
	c, err := redis.DialTimeout(network, addr, cnx.connectionTimeout)
	if err != nil {
		return nil, err
	}
	if cnx.clientName != "" {
		resp := c.Cmd("CLIENT", "SETNAME", cnx.clientName)
		if resp.Err != nil {
			glog.Errorf("Unable to run command CLIENT SETNAME on %s: %v", addr, resp.Err)
			c.Close()
			return nil, resp.Err
		}
	}
	return c, nil
}

func (cnx *Connections) mappedCommand(command string) string {
	if renamed, ok := cnx.commandsMapping[strings.ToUpper(command)]; ok {
		return renamed
	}
	return command
}

// respToNative converts a radix reply into the plain Go reply types the
// router works with: nil, int64, []byte or []interface{}
func respToNative(resp *redis.Resp) (interface{}, error) {
	switch {
	case resp.IsType(redis.Nil):
		return nil, nil
	case resp.IsType(redis.Int):
		return resp.Int64()
	case resp.IsType(redis.Str):
		return resp.Bytes()
	case resp.IsType(redis.Array):
		elems, err := resp.Array()
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(elems))
		for i, elem := range elems {
			value, err := respToNative(elem)
			if err != nil {
				return nil, err
			}
			values[i] = value
		}
		return values, nil
	}
	return nil, fmt.Errorf("unexpected reply type")
}

// buildCommandReplaceMapping reads the config file with the command-replace
// lines and builds a mapping, bad lines are ignored silently
func buildCommandReplaceMapping(filePath string) map[string]string {
	mapping := make(map[string]string)
	file, err := os.Open(filePath)
	if err != nil {
		glog.Errorf("Cannot open %s: %v", filePath, err)
		return mapping
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		elems := strings.Fields(scanner.Text())
		if len(elems) == 3 && strings.ToLower(elems[0]) == "rename-command" {
			mapping[strings.ToUpper(elems[1])] = elems[2]
		}
	}

	if err := scanner.Err(); err != nil {
		glog.Errorf("Cannot parse %s: %v", filePath, err)
		return mapping
	}
	return mapping
}
