package cluster

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang/glog"
)

// Slot migration states used with SetSlot
const (
	SlotActionImporting = "IMPORTING"
	SlotActionMigrating = "MIGRATING"
	SlotActionStable    = "STABLE"
	SlotActionNode      = "NODE"
)

// AddSlots assigns the given slots to the node at addr. The topology cache
// is invalidated regardless of the command outcome.
func (r *Router) AddSlots(ctx context.Context, addr string, slots SlotSlice) error {
	if len(slots) == 0 {
		return nil
	}
	glog.Infof("AddSlots: %s on %s", slots, addr)
	args := append([]interface{}{"ADDSLOTS"}, slotsToArgs(slots)...)
	_, err := r.Execute(ctx, "CLUSTER", nil, ByAddressRoute(addr), args...)
	return err
}

// DelSlots removes the given slots from the node at addr
func (r *Router) DelSlots(ctx context.Context, addr string, slots SlotSlice) error {
	if len(slots) == 0 {
		return nil
	}
	glog.Infof("DelSlots: %s on %s", slots, addr)
	args := append([]interface{}{"DELSLOTS"}, slotsToArgs(slots)...)
	_, err := r.Execute(ctx, "CLUSTER", nil, ByAddressRoute(addr), args...)
	return err
}

// SetSlot changes the migration state of a slot on the node at addr.
// IMPORTING, MIGRATING and NODE require the id of the peer node, STABLE
// clears any migration state and takes no id.
func (r *Router) SetSlot(ctx context.Context, addr string, slot Slot, action, nodeID string) error {
	action = strings.ToUpper(action)
	switch action {
	case SlotActionImporting, SlotActionMigrating, SlotActionNode:
		if nodeID == "" {
			return fmt.Errorf("SETSLOT %s requires a node id", action)
		}
		_, err := r.Execute(ctx, "CLUSTER", nil, ByAddressRoute(addr), "SETSLOT", slot.String(), action, nodeID)
		return err
	case SlotActionStable:
		_, err := r.Execute(ctx, "CLUSTER", nil, ByAddressRoute(addr), "SETSLOT", slot.String(), action)
		return err
	}
	return fmt.Errorf("unknown SETSLOT action %q", action)
}

// ForgetNode removes the node with the given id from the cluster by telling
// every other master to forget it. Errors are collected per node so one
// refusing master does not stop the rest from forgetting.
func (r *Router) ForgetNode(ctx context.Context, id string) error {
	topology, err := r.Topology(ctx)
	if err != nil {
		return err
	}
	defer r.cache.Invalidate()

	var errs []string
	for _, node := range topology.Masters() {
		if node.ID == id {
			continue
		}
		glog.V(2).Infof("CLUSTER FORGET %s sent to %s", id, node.IPPort())
		if _, err := r.channel.Do(ctx, node.IPPort(), "CLUSTER", "FORGET", id); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", node.IPPort(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("unable to forget node %s on all masters: %s", id, strings.Join(errs, "; "))
	}
	glog.Infof("Forget node %s done", id)
	return nil
}

// MeetNode introduces the node at host:port to every current master
func (r *Router) MeetNode(ctx context.Context, host, port string) error {
	glog.Infof("Meet node %s:%s", host, port)
	_, err := r.Execute(ctx, "CLUSTER", nil, AllPrimariesRoute(), "MEET", host, port)
	return err
}

// AttachReplica makes the node at replicaAddr replicate the master owning
// masterID
func (r *Router) AttachReplica(ctx context.Context, replicaAddr, masterID string) error {
	topology, err := r.Topology(ctx)
	if err != nil {
		return err
	}
	if _, err := topology.nodes.GetNodeByID(masterID); err != nil {
		return fmt.Errorf("cannot attach replica %s: %v", replicaAddr, err)
	}
	glog.Infof("Attach replica %s to master %s", replicaAddr, masterID)
	_, err = r.Execute(ctx, "CLUSTER", nil, ByAddressRoute(replicaAddr), "REPLICATE", masterID)
	return err
}

// CountKeysInSlot returns the number of keys the serving master holds in the
// given slot
func (r *Router) CountKeysInSlot(ctx context.Context, slot Slot) (int64, error) {
	topology, err := r.Topology(ctx)
	if err != nil {
		return 0, err
	}
	node, err := topology.NodeForSlot(slot)
	if err != nil {
		return 0, err
	}
	reply, err := r.channel.Do(ctx, node.IPPort(), "CLUSTER", "COUNTKEYSINSLOT", slot.String())
	if err != nil {
		return 0, err
	}
	count, _ := replyInt(reply)
	return int64(count), nil
}

// GetKeysInSlot returns up to count keys of the given slot from its serving
// master
func (r *Router) GetKeysInSlot(ctx context.Context, slot Slot, count int) ([][]byte, error) {
	topology, err := r.Topology(ctx)
	if err != nil {
		return nil, err
	}
	node, err := topology.NodeForSlot(slot)
	if err != nil {
		return nil, err
	}
	reply, err := r.channel.Do(ctx, node.IPPort(), "CLUSTER", "GETKEYSINSLOT", slot.String(), fmt.Sprintf("%d", count))
	if err != nil {
		return nil, err
	}
	return replyBytesSlice(reply)
}

func slotsToArgs(slots SlotSlice) []interface{} {
	args := make([]interface{}, 0, len(slots))
	for _, slot := range slots {
		args = append(args, slot.String())
	}
	return args
}
