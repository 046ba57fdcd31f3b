package fake

// ClusterSlotsNode representation of a node as returned by the CLUSTER SLOTS
// command. An empty ID is omitted from the reply, the way old server
// versions answered.
type ClusterSlotsNode struct {
	IP   string
	Port int
	ID   string
}

// ClusterSlotsSlot representation of a slot range as returned by the CLUSTER
// SLOTS command. The first node is the serving master.
type ClusterSlotsSlot struct {
	Min   int
	Max   int
	Nodes []ClusterSlotsNode
}

// SlotsReply builds the native reply a CLUSTER SLOTS call would produce for
// the given ranges
func SlotsReply(slots ...ClusterSlotsSlot) []interface{} {
	reply := make([]interface{}, 0, len(slots))
	for _, slot := range slots {
		entry := []interface{}{int64(slot.Min), int64(slot.Max)}
		for _, node := range slot.Nodes {
			info := []interface{}{[]byte(node.IP), int64(node.Port)}
			if node.ID != "" {
				info = append(info, []byte(node.ID))
			}
			entry = append(entry, info)
		}
		reply = append(reply, entry)
	}
	return reply
}
