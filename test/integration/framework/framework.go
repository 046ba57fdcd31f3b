// Package framework holds the shared context of the integration suite: the
// seed addresses of a live cluster to exercise and helpers to build routers
// against it.
package framework

import (
	"strings"
	"time"

	"github.com/valkeykit/valkey-router/pkg/cluster"
)

// Context shared by all integration specs
type Context struct {
	// Addrs comma separated seed addresses of a live cluster, the suite is
	// skipped when empty
	Addrs string
	// DialTimeoutMs node dial timeout in milliseconds
	DialTimeoutMs int
}

// FrameworkContext filled by TestMain flags before the suite runs
var FrameworkContext Context

// ClusterConfigured returns true when seed addresses were given
func ClusterConfigured() bool {
	return FrameworkContext.Addrs != ""
}

// SeedAddrs returns the configured seed addresses
func SeedAddrs() []string {
	return strings.Split(FrameworkContext.Addrs, ",")
}

// NewRouter dials the configured cluster and returns a router on top of it.
// The returned channel must be closed by the caller.
func NewRouter() (*cluster.Router, *cluster.Connections) {
	channel := cluster.NewConnections(SeedAddrs(), &cluster.ConnectionsOptions{
		ConnectionTimeout: time.Duration(FrameworkContext.DialTimeoutMs) * time.Millisecond,
		ClientName:        "valkey-router-integration",
	})
	router := cluster.NewRouter(channel, nil)
	return router, channel
}
