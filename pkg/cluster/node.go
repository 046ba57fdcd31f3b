package cluster

import (
	"errors"
	"fmt"
	"net"
	"sort"
)

const (
	// RoleMaster node serving one or more slot ranges
	RoleMaster = "master"
	// RoleReplica node replicating a master, excluded from key routing
	RoleReplica = "replica"

	// LinkStateConnected link state of a reachable node
	LinkStateConnected = "connected"
	// LinkStateDisconnected link state of an unreachable node
	LinkStateDisconnected = "disconnected"
)

// ErrNodeNotFound returned when a node cannot be found in a Nodes slice
var ErrNodeNotFound = errors.New("node not found")

// Node represents a cluster node as seen in one topology snapshot.
// Nodes are build once per topology fetch and never mutated afterwards.
type Node struct {
	ID             string
	IP             string
	Port           string
	Role           string
	LinkState      string
	MasterReferent string
	Slots          []Slot
}

// NewDefaultNode builds and returns new defaulted Node instance
func NewDefaultNode() *Node {
	return &Node{
		Slots:     []Slot{},
		LinkState: LinkStateDisconnected,
	}
}

// String string representation of a node
func (n *Node) String() string {
	if n.Role == RoleReplica {
		return fmt.Sprintf("{Node: %s, Addr: %s, Role: %s, ReplicaOf: %s, Link: %s}",
			n.ID, n.IPPort(), n.Role, n.MasterReferent, n.LinkState)
	}
	return fmt.Sprintf("{Node: %s, Addr: %s, Role: %s, Slots: %s, Link: %s}",
		n.ID, n.IPPort(), n.Role, SlotSlice(n.Slots), n.LinkState)
}

// IPPort returns join of IP and Port
func (n *Node) IPPort() string {
	return net.JoinHostPort(n.IP, n.Port)
}

// TotalSlots return the number of slots the node is serving
func (n *Node) TotalSlots() int {
	return len(n.Slots)
}

// Nodes slice of Node
type Nodes []*Node

// String string representation of a node slice
func (ns Nodes) String() string {
	output := "("
	for _, n := range ns {
		output += n.String() + ","
	}
	return output + ")"
}

// GetNodeByID returns the node with the given ID
func (ns Nodes) GetNodeByID(id string) (*Node, error) {
	for _, n := range ns {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, ErrNodeNotFound
}

// GetNodeByIPPort returns the node listening at the given "host:port" address
func (ns Nodes) GetNodeByIPPort(addr string) (*Node, error) {
	for _, n := range ns {
		if n.IPPort() == addr {
			return n, nil
		}
	}
	return nil, ErrNodeNotFound
}

// GetNodesByFunc returns the nodes matching the given filter,
// ErrNodeNotFound as error if no node matches
func (ns Nodes) GetNodesByFunc(f func(*Node) bool) (Nodes, error) {
	nodes := ns.FilterByFunc(f)
	if len(nodes) == 0 {
		return nodes, ErrNodeNotFound
	}
	return nodes, nil
}

// FilterByFunc returns the nodes of the slice matching the given filter
func (ns Nodes) FilterByFunc(f func(*Node) bool) Nodes {
	nodes := Nodes{}
	for _, n := range ns {
		if f(n) {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// SortByFunc returns a new ordered Nodes slice, determined by a func defining the sorting order
func (ns Nodes) SortByFunc(less func(*Node, *Node) bool) Nodes {
	sorted := append(Nodes{}, ns...)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
	return sorted
}

// Addrs returns the "host:port" addresses of all nodes of the slice
func (ns Nodes) Addrs() []string {
	addrs := make([]string, 0, len(ns))
	for _, n := range ns {
		addrs = append(addrs, n.IPPort())
	}
	return addrs
}

// LessByID compare 2 nodes with there ID
func LessByID(n1, n2 *Node) bool {
	return n1.ID < n2.ID
}

// IsMaster anonymous function for checking if a node is a master
func IsMaster(n *Node) bool {
	return n.Role == RoleMaster
}

// IsReplica anonymous function for checking if a node is a replica
func IsReplica(n *Node) bool {
	return n.Role == RoleReplica
}

// IsMasterWithSlot anonymous function for checking if a node is a master owning slots
func IsMasterWithSlot(n *Node) bool {
	return n.Role == RoleMaster && n.TotalSlots() > 0
}
