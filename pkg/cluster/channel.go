package cluster

import "context"

// RoutePolicy enumerates the ways a command selects its target node(s)
type RoutePolicy int

const (
	// RoutePolicyDefault let the execution channel pick a node
	RoutePolicyDefault RoutePolicy = iota
	// RoutePolicyByAddress target the single node at Route.Addr
	RoutePolicyByAddress
	// RoutePolicyAllPrimaries fan out to every master of the topology
	RoutePolicyAllPrimaries
	// RoutePolicyAllNodes fan out to every node of the topology
	RoutePolicyAllNodes
)

// Route describes explicit routing for a command, for operations that must
// target nodes with no relationship to any key (CLUSTER MEET, CONFIG SET, ...)
type Route struct {
	Policy RoutePolicy
	Addr   string
}

// DefaultRoute routes through the execution channel default node
var DefaultRoute = Route{Policy: RoutePolicyDefault}

// ByAddressRoute returns a route targeting the node at the given "host:port" address
func ByAddressRoute(addr string) Route {
	return Route{Policy: RoutePolicyByAddress, Addr: addr}
}

// AllPrimariesRoute returns a route broadcasting to all masters
func AllPrimariesRoute() Route {
	return Route{Policy: RoutePolicyAllPrimaries}
}

// AllNodesRoute returns a route broadcasting to all known nodes
func AllNodesRoute() Route {
	return Route{Policy: RoutePolicyAllNodes}
}

// ExecutionChannel is the node-addressed command execution capability the
// router is built against. Implementations must be safe for concurrent use.
// Do returns the driver-native decoded reply: nil, int64, []byte or a nested
// []interface{} of those.
type ExecutionChannel interface {
	// Do executes the command on the node listening at addr and waits for its reply
	Do(ctx context.Context, addr string, command string, args ...interface{}) (interface{}, error)
	// Addrs returns the addresses of the currently registered endpoints
	Addrs() []string
	// RandomAddr returns the address used for commands without keys or explicit route
	RandomAddr() (string, error)
	// Close releases all resources held by the channel
	Close()
}
