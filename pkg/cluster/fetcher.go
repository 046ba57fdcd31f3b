package cluster

import (
	"context"
	"net"
	"strconv"

	"github.com/golang/glog"
)

// Fetcher retrieves the raw slot map from one node of the cluster and decodes
// it into a Topology snapshot
type Fetcher struct {
	channel ExecutionChannel
}

// NewFetcher returns a new Fetcher issuing its topology query through the given channel
func NewFetcher(channel ExecutionChannel) *Fetcher {
	return &Fetcher{channel: channel}
}

// Fetch issues a CLUSTER SLOTS query against the channel default node and
// parses the reply. The fetch is an idempotent read, it is safe to repeat.
func (f *Fetcher) Fetch(ctx context.Context) (*Topology, error) {
	addr, err := f.channel.RandomAddr()
	if err != nil {
		return nil, err
	}
	reply, err := f.channel.Do(ctx, addr, "CLUSTER", "SLOTS")
	if err != nil {
		return nil, err
	}
	topology, err := ParseSlotsReply(reply)
	if err != nil {
		glog.Errorf("Unable to decode CLUSTER SLOTS reply from %s: %v", addr, err)
		return nil, err
	}
	glog.V(7).Infof("Topology fetched from %s: %s", addr, topology.Nodes())
	return topology, nil
}

// ParseSlotsReply decodes a CLUSTER SLOTS reply, a nested array of
// [start, end, [masterHost, masterPort, masterID, ...], [replicaHost, replicaPort, replicaID, ...]*]
// entries, into a Topology.
//
// Any malformed entry fails the whole parse: a partially decoded topology
// would silently misroute keys, which is worse than keeping the previous
// snapshot until the caller retries.
func ParseSlotsReply(reply interface{}) (*Topology, error) {
	entries, ok := reply.([]interface{})
	if !ok {
		return nil, newParseError("expected array reply, got %T", reply)
	}

	// nodes may serve several slot ranges and then appear in several entries
	nodesByID := map[string]*Node{}
	nodes := Nodes{}
	for i, rawEntry := range entries {
		entry, ok := rawEntry.([]interface{})
		if !ok {
			return nil, newParseError("entry %d: expected array, got %T", i, rawEntry)
		}
		if len(entry) < 3 {
			return nil, newParseError("entry %d: expected at least [start, end, master], got %d elements", i, len(entry))
		}
		min, ok := replyInt(entry[0])
		if !ok {
			return nil, newParseError("entry %d: invalid range start %v", i, entry[0])
		}
		max, ok := replyInt(entry[1])
		if !ok {
			return nil, newParseError("entry %d: invalid range end %v", i, entry[1])
		}
		if min < 0 || max > HashMaxSlot || max < min {
			return nil, newParseError("entry %d: invalid slot range %d-%d", i, min, max)
		}

		master, err := parseNodeInfo(entry[2], RoleMaster)
		if err != nil {
			return nil, newParseError("entry %d: %v", i, err)
		}
		master = internNode(nodesByID, &nodes, master)
		master.Slots = AddSlots(master.Slots, BuildSlotSlice(Slot(min), Slot(max)))

		for _, rawReplica := range entry[3:] {
			replica, err := parseNodeInfo(rawReplica, RoleReplica)
			if err != nil {
				return nil, newParseError("entry %d: %v", i, err)
			}
			replica.MasterReferent = master.ID
			internNode(nodesByID, &nodes, replica)
		}
	}

	return NewTopology(nodes)
}

// internNode registers the node in the fetch-local indexes, returning the
// already known instance when the same node was seen in a previous entry
func internNode(byID map[string]*Node, nodes *Nodes, node *Node) *Node {
	if known, ok := byID[node.ID]; ok {
		return known
	}
	byID[node.ID] = node
	*nodes = append(*nodes, node)
	return node
}

// parseNodeInfo decodes one [host, port, id, ...extra] node sub-array.
// The id may be absent, a deterministic "host:port" placeholder is then
// synthesized. The placeholder is stable across fetches but distinct from the
// real node id, a degraded-compatibility fallback for old servers.
func parseNodeInfo(raw interface{}, role string) (*Node, error) {
	info, ok := raw.([]interface{})
	if !ok {
		return nil, newParseError("expected node array, got %T", raw)
	}
	if len(info) < 2 {
		return nil, newParseError("expected at least [host, port] in node info, got %d elements", len(info))
	}

	host, ok := replyText(info[0])
	if !ok || host == "" {
		return nil, newParseError("node host is empty or not a string (%v)", info[0])
	}
	port, ok := replyInt(info[1])
	if !ok || port <= 0 {
		return nil, newParseError("invalid node port %v", info[1])
	}

	node := NewDefaultNode()
	node.IP = host
	node.Port = strconv.Itoa(port)
	node.Role = role
	node.LinkState = LinkStateConnected
	if len(info) >= 3 {
		if id, ok := replyText(info[2]); ok && id != "" {
			node.ID = id
		}
	}
	if node.ID == "" {
		node.ID = net.JoinHostPort(host, node.Port)
	}
	return node, nil
}

// replyInt coerces a driver-native reply element into an int
func replyInt(v interface{}) (int, bool) {
	switch value := v.(type) {
	case int64:
		return int(value), true
	case int:
		return value, true
	}
	return 0, false
}

// replyText coerces a driver-native reply element into a string
func replyText(v interface{}) (string, bool) {
	switch value := v.(type) {
	case string:
		return value, true
	case []byte:
		return string(value), true
	}
	return "", false
}
