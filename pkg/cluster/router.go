package cluster

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
)

// RouterOptions optional settings for the command router
type RouterOptions struct {
	// TopologyCacheTTL validity window of a topology snapshot,
	// DefaultTopologyCacheTTL when zero
	TopologyCacheTTL time.Duration
	// Metrics instrumentation for this router instance, nil disables it
	Metrics *Metrics
}

// Router routes commands to the cluster node(s) serving their keys. It keeps
// a time-bounded topology cache, decomposes cross-slot operations, and
// invalidates the cache after topology-mutating commands.
//
// The router is written against the ExecutionChannel interface only and is
// safe for concurrent use by any number of caller goroutines.
type Router struct {
	channel ExecutionChannel
	cache   *TopologyCache
	metrics *Metrics
}

// NewRouter builds and returns a new Router instance on top of the given channel
func NewRouter(channel ExecutionChannel, options *RouterOptions) *Router {
	r := &Router{channel: channel}
	ttl := time.Duration(0)
	if options != nil {
		ttl = options.TopologyCacheTTL
		r.metrics = options.Metrics
	}
	r.cache = NewTopologyCache(NewFetcher(channel), ttl, r.metrics)
	return r
}

// topologyMutatingSubcommands CLUSTER subcommands that change the slot or
// node ground truth, each of them forces a topology cache refresh
var topologyMutatingSubcommands = map[string]bool{
	"ADDSLOTS":  true,
	"DELSLOTS":  true,
	"SETSLOT":   true,
	"FORGET":    true,
	"MEET":      true,
	"REPLICATE": true,
}

// unsupportedCommands operations that are structurally invalid in cluster
// mode, rejected without being attempted
var unsupportedCommands = map[string]string{
	"MULTI":   "MULTI is not supported in cluster mode",
	"EXEC":    "EXEC is not supported in cluster mode",
	"DISCARD": "DISCARD is not supported in cluster mode",
	"WATCH":   "WATCH is not supported in cluster mode",
	"UNWATCH": "UNWATCH is not supported in cluster mode",
	"MOVE":    "cluster mode does not allow moving keys between databases",
}

// writeBroadcastCommands broadcast commands whose per-node failures are
// promoted to a whole-operation failure, unlike read aggregations which
// tolerate a failed subset
var writeBroadcastCommands = map[string]bool{
	"FLUSHALL": true,
	"FLUSHDB":  true,
	"SCRIPT":   true,
	"CLUSTER":  true,
	"SHUTDOWN": true,
}

// Topology returns the current topology snapshot, refreshing it when the
// cached one is older than the TTL
func (r *Router) Topology(ctx context.Context) (*Topology, error) {
	return r.cache.Get(ctx)
}

// InvalidateTopology marks the topology cache stale, forcing a refetch on
// the next routing decision
func (r *Router) InvalidateTopology() {
	r.cache.Invalidate()
}

// NodeForKey returns the master node serving the given key
func (r *Router) NodeForKey(ctx context.Context, key []byte) (*Node, error) {
	topology, err := r.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	return topology.NodeForKey(key)
}

// NodesForSlot returns the master serving the given slot and its replicas
func (r *Router) NodesForSlot(ctx context.Context, slot Slot) (Nodes, error) {
	topology, err := r.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	return topology.NodesForSlot(slot)
}

// BuildNodeKeyMap groups the given keys by the master node serving them,
// failing fast when any key cannot be resolved
func (r *Router) BuildNodeKeyMap(ctx context.Context, keys ...[]byte) (NodeKeyMap, error) {
	topology, err := r.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	return topology.BuildNodeKeyMap(keys...)
}

// Execute routes and executes one command.
//
// An explicit route is used verbatim. Otherwise, when keys are given, they
// are resolved through the slot table: a single serving master is targeted
// directly, keys spanning several masters are handed to the cross-slot
// decomposition. Without keys or route, the channel default node is used.
// Topology-mutating commands invalidate the cache unconditionally, even on
// failure.
func (r *Router) Execute(ctx context.Context, command string, keys [][]byte, route Route, args ...interface{}) (interface{}, error) {
	if reason, ok := unsupportedCommands[strings.ToUpper(command)]; ok {
		return nil, newUnsupportedError("%s", reason)
	}
	if strings.EqualFold(command, "SELECT") && len(args) == 1 {
		index, okInt := replyInt(args[0])
		text, okText := replyText(args[0])
		if (okInt && index != 0) || (okText && text != "0") {
			return nil, newUnsupportedError("cannot SELECT non zero index in cluster mode")
		}
	}
	if r.isTopologyMutating(command, args) {
		defer r.cache.Invalidate()
	}

	switch route.Policy {
	case RoutePolicyByAddress:
		return r.channel.Do(ctx, route.Addr, command, args...)
	case RoutePolicyAllPrimaries, RoutePolicyAllNodes:
		return r.broadcast(ctx, route.Policy, command, args...)
	}

	if len(keys) > 0 {
		topology, err := r.cache.Get(ctx)
		if err != nil {
			return nil, err
		}
		if IsSameSlotForAllKeys(keys...) {
			node, err := topology.NodeForKey(keys[0])
			if err != nil {
				return nil, err
			}
			return r.channel.Do(ctx, node.IPPort(), command, args...)
		}
		return r.executeCrossSlot(ctx, topology, command, keys, args)
	}

	addr, err := r.channel.RandomAddr()
	if err != nil {
		return nil, err
	}
	return r.channel.Do(ctx, addr, command, args...)
}

func (r *Router) isTopologyMutating(command string, args []interface{}) bool {
	if !strings.EqualFold(command, "CLUSTER") || len(args) == 0 {
		return false
	}
	sub, ok := replyText(args[0])
	return ok && topologyMutatingSubcommands[strings.ToUpper(sub)]
}

// broadcast fans the command out to all masters or all nodes of the current
// topology and aggregates the per-node replies by address. For read
// aggregations a failed subset is reported through a PartialError alongside
// the successful replies; write broadcasts fail as a whole on any node error.
func (r *Router) broadcast(ctx context.Context, policy RoutePolicy, command string, args ...interface{}) (interface{}, error) {
	topology, err := r.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	targets := topology.Masters()
	if policy == RoutePolicyAllNodes {
		targets = topology.Nodes()
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no node to broadcast %s to", command)
	}

	type nodeReply struct {
		addr  string
		value interface{}
		err   error
	}
	replies := make(chan nodeReply, len(targets))
	for _, node := range targets {
		go func(addr string) {
			value, err := r.channel.Do(ctx, addr, command, args...)
			replies <- nodeReply{addr: addr, value: value, err: err}
		}(node.IPPort())
	}

	results := map[string]interface{}{}
	failures := map[string]error{}
	for range targets {
		reply := <-replies
		if reply.err != nil {
			failures[reply.addr] = reply.err
		} else {
			results[reply.addr] = reply.value
		}
	}
	if len(failures) == 0 {
		return results, nil
	}

	r.metrics.incPartialFailure()
	partial := &PartialError{Results: results, Failures: failures}
	if writeBroadcastCommands[strings.ToUpper(command)] || len(results) == 0 {
		glog.Errorf("Broadcast of %s failed: %v", command, partial)
		return nil, partial
	}
	glog.V(2).Infof("Broadcast of %s partially failed: %v", command, partial)
	return results, partial
}

// PingNode checks the node at the given address, bypassing key-based
// resolution, used for administrative introspection
func (r *Router) PingNode(ctx context.Context, addr string) error {
	reply, err := r.channel.Do(ctx, addr, "PING")
	if err != nil {
		return err
	}
	if pong, ok := replyText(reply); !ok || !strings.EqualFold(pong, "PONG") {
		return fmt.Errorf("unexpected PING reply from %s: %v", addr, reply)
	}
	return nil
}

// KeysAtNode returns the keys matching pattern on the node at the given
// address, slot ownership is irrelevant here
func (r *Router) KeysAtNode(ctx context.Context, addr string, pattern []byte) ([][]byte, error) {
	reply, err := r.channel.Do(ctx, addr, "KEYS", pattern)
	if err != nil {
		return nil, err
	}
	return replyBytesSlice(reply)
}

// RandomKeyAtNode returns a random key of the node at the given address,
// nil when the node is empty
func (r *Router) RandomKeyAtNode(ctx context.Context, addr string) ([]byte, error) {
	reply, err := r.channel.Do(ctx, addr, "RANDOMKEY")
	if err != nil || reply == nil {
		return nil, err
	}
	if key, ok := reply.([]byte); ok {
		return key, nil
	}
	return nil, fmt.Errorf("unexpected RANDOMKEY reply from %s: %v", addr, reply)
}

// replyBytesSlice coerces an array reply into a slice of byte slices
func replyBytesSlice(reply interface{}) ([][]byte, error) {
	if reply == nil {
		return nil, nil
	}
	items, ok := reply.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected array reply, got %T", reply)
	}
	values := make([][]byte, 0, len(items))
	for _, item := range items {
		if item == nil {
			values = append(values, nil)
			continue
		}
		text, ok := replyText(item)
		if !ok {
			return nil, fmt.Errorf("expected bulk string in array reply, got %T", item)
		}
		values = append(values, []byte(text))
	}
	return values, nil
}

// doParallel issues one command per entry of the node-key map and waits for
// all of them, returning the per-address replies and failures
func (r *Router) doParallel(ctx context.Context, calls map[string][]interface{}, command string) (map[string]interface{}, map[string]error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	results := map[string]interface{}{}
	failures := map[string]error{}
	for addr, args := range calls {
		wg.Add(1)
		go func(addr string, args []interface{}) {
			defer wg.Done()
			value, err := r.channel.Do(ctx, addr, command, args...)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[addr] = err
			} else {
				results[addr] = value
			}
		}(addr, args)
	}
	wg.Wait()
	return results, failures
}
