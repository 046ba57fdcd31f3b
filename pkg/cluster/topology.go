package cluster

// Topology is an immutable snapshot of the cluster state: the set of known
// nodes and the slot-to-master table, taken at a single point in time.
// Snapshots are owned by the TopologyCache and replaced, never mutated,
// on refresh.
type Topology struct {
	nodes Nodes
	// master serving each slot, nil when the slot is not covered
	slots [HashSlots]*Node
}

// NewTopology builds a Topology from one fetch worth of nodes. It fails with
// a ParseError when two masters claim the same slot, overlapping ownership is
// an inconsistency that must never be silently accepted.
func NewTopology(nodes Nodes) (*Topology, error) {
	t := &Topology{nodes: nodes}
	for _, n := range nodes {
		if !IsMaster(n) {
			continue
		}
		for _, slot := range n.Slots {
			if owner := t.slots[slot]; owner != nil && owner.ID != n.ID {
				return nil, newParseError("slot %s claimed by both %s and %s", slot, owner.ID, n.ID)
			}
			t.slots[slot] = n
		}
	}
	return t, nil
}

// Nodes returns all nodes of the snapshot, masters and replicas
func (t *Topology) Nodes() Nodes {
	return t.nodes
}

// Masters returns the master nodes of the snapshot
func (t *Topology) Masters() Nodes {
	return t.nodes.FilterByFunc(IsMaster)
}

// ReplicasOf returns the replicas attached to the master with the given ID
func (t *Topology) ReplicasOf(masterID string) Nodes {
	return t.nodes.FilterByFunc(func(n *Node) bool {
		return IsReplica(n) && n.MasterReferent == masterID
	})
}

// LookupByAddr returns the node listening at the given "host:port" address,
// used to resolve an ID when a caller only has an address
func (t *Topology) LookupByAddr(addr string) (*Node, error) {
	return t.nodes.GetNodeByIPPort(addr)
}

// NodeForSlot returns the master serving the given slot
func (t *Topology) NodeForSlot(slot Slot) (*Node, error) {
	if node := t.slots[slot]; node != nil {
		return node, nil
	}
	return nil, &KeyResolutionError{Key: "slot " + slot.String()}
}

// NodesForSlot returns the master serving the given slot and its replicas
func (t *Topology) NodesForSlot(slot Slot) (Nodes, error) {
	master, err := t.NodeForSlot(slot)
	if err != nil {
		return nil, err
	}
	return append(Nodes{master}, t.ReplicasOf(master.ID)...), nil
}

// NodeForKey returns the master serving the slot the given key hashes to
func (t *Topology) NodeForKey(key []byte) (*Node, error) {
	node := t.slots[KeySlot(key)]
	if node == nil {
		return nil, &KeyResolutionError{Key: string(key)}
	}
	return node, nil
}

// Covered returns true once every slot of the slot space has a serving master
func (t *Topology) Covered() bool {
	for _, n := range t.slots {
		if n == nil {
			return false
		}
	}
	return true
}

// NodeKeyMap is a transient, per-call grouping of keys by the master node
// serving their slot
type NodeKeyMap map[*Node][][]byte

// BuildNodeKeyMap groups the given keys by owning master. The grouping is
// total: it fails with a KeyResolutionError as soon as one key cannot be
// resolved to a master.
func (t *Topology) BuildNodeKeyMap(keys ...[]byte) (NodeKeyMap, error) {
	nodeKeyMap := NodeKeyMap{}
	for _, key := range keys {
		node, err := t.NodeForKey(key)
		if err != nil {
			return nil, err
		}
		nodeKeyMap[node] = append(nodeKeyMap[node], key)
	}
	return nodeKeyMap, nil
}
