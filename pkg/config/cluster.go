package config

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

const (
	// DefaultDialTimeout default node dial timeout (ms)
	DefaultDialTimeout = 2000
	// DefaultTopologyCacheTTL default validity window of a cached topology (ms)
	DefaultTopologyCacheTTL = 100
	// DefaultClientName default name announced with CLIENT SETNAME, disabled if empty
	DefaultClientName = ""
	// RenameCommandsDefaultPath default path to the volume storing rename commands
	RenameCommandsDefaultPath = "/etc/secret-volume"
	// RenameCommandsDefaultFile default file name containing rename commands
	RenameCommandsDefaultFile = ""
	// DefaultListenAddr default address of the health and metrics endpoint
	DefaultListenAddr = ":8086"
)

// Cluster used to store the cluster connection configuration
type Cluster struct {
	Addrs              []string
	DialTimeout        int
	TopologyCacheTTL   int
	ClientName         string
	ListenAddr         string
	renameCommandsPath string
	renameCommandsFile string
}

// AddFlags use to add the cluster connection flags to the command line
func (c *Cluster) AddFlags(fs *pflag.FlagSet) {
	fs.StringSliceVar(&c.Addrs, "addrs", nil, "seed addresses of the cluster nodes (host:port)")
	fs.IntVar(&c.DialTimeout, "dial-timeout", DefaultDialTimeout, "node dial timeout (ms)")
	fs.IntVar(&c.TopologyCacheTTL, "topology-cache-ttl", DefaultTopologyCacheTTL, "validity window of a cached topology (ms)")
	fs.StringVar(&c.ClientName, "client-name", DefaultClientName, "name announced to the nodes with CLIENT SETNAME, disabled if empty")
	fs.StringVar(&c.ListenAddr, "listen-addr", DefaultListenAddr, "listen address of the health and metrics endpoint")
	fs.StringVar(&c.renameCommandsPath, "rename-command-path", RenameCommandsDefaultPath, "Path to the folder where rename-commands options are available")
	fs.StringVar(&c.renameCommandsFile, "rename-command-file", RenameCommandsDefaultFile, "Name of the file where rename-commands options are available, disabled if empty")
}

// GetRenameCommandsFile return the path to the rename command file, or empty string if not defined
func (c *Cluster) GetRenameCommandsFile() string {
	if c.renameCommandsFile == "" {
		return ""
	}
	return path.Join(c.renameCommandsPath, c.renameCommandsFile)
}

// GetDialTimeout return the dial timeout as a duration
func (c *Cluster) GetDialTimeout() time.Duration {
	return time.Duration(c.DialTimeout) * time.Millisecond
}

// GetTopologyCacheTTL return the topology cache validity window as a duration
func (c *Cluster) GetTopologyCacheTTL() time.Duration {
	return time.Duration(c.TopologyCacheTTL) * time.Millisecond
}

// String stringer interface
func (c Cluster) String() string {
	var output string
	output += fmt.Sprintln("[ Cluster Configuration ]")
	output += fmt.Sprintln("- Addrs:", strings.Join(c.Addrs, ","))
	output += fmt.Sprintln("- DialTimeout:", c.DialTimeout)
	output += fmt.Sprintln("- TopologyCacheTTL:", c.TopologyCacheTTL)
	output += fmt.Sprintln("- Rename commands:", c.GetRenameCommandsFile())
	return output
}
