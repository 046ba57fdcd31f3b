package cluster

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang/glog"
)

// Cross-slot decomposition: strategies for commands whose keys do not all
// hash to one slot. Two families exist, chosen per command semantics:
//
//   - split-and-locally-reassemble (RENAME, RENAMENX, SORT ... STORE,
//     RPOPLPUSH, BRPOPLPUSH): run the read part against the source node,
//     then the write part against the destination node as independent
//     commands. Atomicity is lost, matching common cluster client behavior:
//     a crash between the two halves can leave both keys present.
//
//   - parallel fan-out (BLPOP, BRPOP, MSET, MSETNX, MGET, DEL, UNLINK,
//     EXISTS, TOUCH): group keys by owning master and issue one request per
//     node. Blocking variants race the nodes and keep the first completed
//     reply, cancelling the rest best-effort; multi-set variants require
//     every sub-operation to succeed even though earlier nodes already
//     mutated state.

const (
	strategySplit      = "split"
	strategyFirstWins  = "first_wins"
	strategyAllSuccess = "all_success"
	strategyAggregate  = "aggregate"
)

func (r *Router) executeCrossSlot(ctx context.Context, topology *Topology, command string, keys [][]byte, args []interface{}) (interface{}, error) {
	switch strings.ToUpper(command) {
	case "RENAME":
		if len(keys) != 2 {
			return nil, fmt.Errorf("RENAME expects exactly two keys, got %d", len(keys))
		}
		if err := r.renameAcrossSlots(ctx, keys[0], keys[1]); err != nil {
			return nil, err
		}
		// the same reply a single node gives, so callers see one shape
		return []byte("OK"), nil
	case "RENAMENX":
		if len(keys) != 2 {
			return nil, fmt.Errorf("RENAMENX expects exactly two keys, got %d", len(keys))
		}
		renamed, err := r.renameNXAcrossSlots(ctx, keys[0], keys[1])
		if err != nil {
			return nil, err
		}
		if renamed {
			return int64(1), nil
		}
		return int64(0), nil
	case "SORT":
		return r.sortStoreAcrossSlots(ctx, keys, args)
	case "RPOPLPUSH":
		if len(keys) != 2 {
			return nil, fmt.Errorf("RPOPLPUSH expects exactly two keys, got %d", len(keys))
		}
		return r.rPopLPushAcrossSlots(ctx, keys[0], keys[1])
	case "BRPOPLPUSH":
		if len(keys) != 2 || len(args) != 3 {
			return nil, fmt.Errorf("malformed BRPOPLPUSH call")
		}
		return r.bRPopLPushAcrossSlots(ctx, keys[0], keys[1], args[2])
	case "BLPOP", "BRPOP":
		return r.blockingPopAcrossSlots(ctx, topology, command, keys, args)
	case "MSET", "MSETNX":
		return r.multiSetAcrossSlots(ctx, topology, command, args)
	case "MGET":
		return r.mGetAcrossSlots(ctx, topology, keys)
	case "DEL", "UNLINK", "EXISTS", "TOUCH":
		return r.sumAcrossSlots(ctx, topology, command, keys)
	}
	return nil, newUnsupportedError("%s requires all keys to hash to a single slot, use hash tags to co-locate them", strings.ToUpper(command))
}

// doForKey routes a single-key command to the master serving that key
func (r *Router) doForKey(ctx context.Context, command string, key []byte, args ...interface{}) (interface{}, error) {
	node, err := r.NodeForKey(ctx, key)
	if err != nil {
		return nil, err
	}
	return r.channel.Do(ctx, node.IPPort(), command, args...)
}

// renameAcrossSlots implements RENAME between slots as DUMP + RESTORE + DEL,
// three independent calls. If RESTORE succeeds but DEL fails the old key
// incorrectly persists, a known and accepted edge case.
func (r *Router) renameAcrossSlots(ctx context.Context, oldKey, newKey []byte) error {
	r.metrics.incCrossSlot(strategySplit)
	glog.V(2).Infof("Cross-slot RENAME %q -> %q", oldKey, newKey)

	payload, err := r.doForKey(ctx, "DUMP", oldKey, oldKey)
	if err != nil {
		return err
	}
	dumped, _ := payload.([]byte)
	if len(dumped) == 0 {
		return nil
	}
	if _, err := r.doForKey(ctx, "RESTORE", newKey, newKey, "0", dumped, "REPLACE"); err != nil {
		return err
	}
	_, err = r.doForKey(ctx, "DEL", oldKey, oldKey)
	return err
}

// renameNXAcrossSlots implements RENAMENX between slots, non-atomically:
// the existence check of the target and the restore are separate calls
func (r *Router) renameNXAcrossSlots(ctx context.Context, sourceKey, targetKey []byte) (bool, error) {
	r.metrics.incCrossSlot(strategySplit)

	payload, err := r.doForKey(ctx, "DUMP", sourceKey, sourceKey)
	if err != nil {
		return false, err
	}
	dumped, _ := payload.([]byte)
	if len(dumped) == 0 {
		return false, nil
	}
	exists, err := r.doForKey(ctx, "EXISTS", targetKey, targetKey)
	if err != nil {
		return false, err
	}
	if count, _ := replyInt(exists); count != 0 {
		return false, nil
	}
	if _, err := r.doForKey(ctx, "RESTORE", targetKey, targetKey, "0", dumped); err != nil {
		return false, err
	}
	if _, err := r.doForKey(ctx, "DEL", sourceKey, sourceKey); err != nil {
		return false, err
	}
	return true, nil
}

// sortStoreAcrossSlots implements SORT ... STORE dst where source and
// destination hash to different slots: sort without STORE on the source
// node, then rebuild the destination list on its own node
func (r *Router) sortStoreAcrossSlots(ctx context.Context, keys [][]byte, args []interface{}) (interface{}, error) {
	if len(keys) != 2 {
		return nil, fmt.Errorf("cross-slot SORT expects a source and a STORE key, got %d keys", len(keys))
	}
	sourceKey, storeKey := keys[0], keys[1]
	r.metrics.incCrossSlot(strategySplit)
	glog.V(2).Infof("Cross-slot SORT %q STORE %q", sourceKey, storeKey)

	sorted, err := r.doForKey(ctx, "SORT", sourceKey, stripStoreClause(args)...)
	if err != nil {
		return nil, err
	}
	values, err := replyBytesSlice(sorted)
	if err != nil {
		return nil, err
	}
	if _, err := r.doForKey(ctx, "UNLINK", storeKey, storeKey); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return int64(0), nil
	}
	pushArgs := make([]interface{}, 0, len(values)+1)
	pushArgs = append(pushArgs, storeKey)
	for _, value := range values {
		pushArgs = append(pushArgs, value)
	}
	if _, err := r.doForKey(ctx, "RPUSH", storeKey, pushArgs...); err != nil {
		return nil, err
	}
	return int64(len(values)), nil
}

// stripStoreClause removes the STORE token and its destination from a SORT
// argument list
func stripStoreClause(args []interface{}) []interface{} {
	stripped := make([]interface{}, 0, len(args))
	for i := 0; i < len(args); i++ {
		if text, ok := replyText(args[i]); ok && strings.EqualFold(text, "STORE") && i+1 < len(args) {
			i++
			continue
		}
		stripped = append(stripped, args[i])
	}
	return stripped
}

// rPopLPushAcrossSlots pops from the source and pushes to the destination as
// two independent calls, the industry-standard non-atomic emulation
func (r *Router) rPopLPushAcrossSlots(ctx context.Context, sourceKey, destKey []byte) (interface{}, error) {
	r.metrics.incCrossSlot(strategySplit)
	value, err := r.doForKey(ctx, "RPOP", sourceKey, sourceKey)
	if err != nil || value == nil {
		return nil, err
	}
	if _, err := r.doForKey(ctx, "LPUSH", destKey, destKey, value); err != nil {
		return nil, err
	}
	return value, nil
}

// bRPopLPushAcrossSlots emulates BRPOPLPUSH with a blocking pop on the
// source followed by a push on the destination
func (r *Router) bRPopLPushAcrossSlots(ctx context.Context, sourceKey, destKey []byte, timeout interface{}) (interface{}, error) {
	r.metrics.incCrossSlot(strategySplit)
	reply, err := r.doForKey(ctx, "BRPOP", sourceKey, sourceKey, timeout)
	if err != nil || reply == nil {
		return nil, err
	}
	popped, err := replyBytesSlice(reply)
	if err != nil {
		return nil, err
	}
	if len(popped) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of %d elements", len(popped))
	}
	value := popped[1]
	if _, err := r.doForKey(ctx, "LPUSH", destKey, destKey, value); err != nil {
		return nil, err
	}
	return value, nil
}

// blockingPopAcrossSlots races one blocking pop per owning master and keeps
// the first completed reply. The timeout is enforced server side, the value
// is passed through unchanged. The losing requests are cancelled client side
// best-effort: requests already sent may still complete on the server, their
// results are discarded here.
//
// First-wins is a best-effort approximation, a distributed blocking pop
// cannot provide global ordering across nodes.
func (r *Router) blockingPopAcrossSlots(ctx context.Context, topology *Topology, command string, keys [][]byte, args []interface{}) (interface{}, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("malformed %s call: missing timeout", command)
	}
	timeout := args[len(args)-1]
	nodeKeyMap, err := topology.BuildNodeKeyMap(keys...)
	if err != nil {
		return nil, err
	}
	r.metrics.incCrossSlot(strategyFirstWins)
	glog.V(2).Infof("Cross-slot %s over %d nodes", command, len(nodeKeyMap))

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type popReply struct {
		value interface{}
		err   error
	}
	replies := make(chan popReply, len(nodeKeyMap))
	for node, nodeKeys := range nodeKeyMap {
		nodeArgs := make([]interface{}, 0, len(nodeKeys)+1)
		for _, key := range nodeKeys {
			nodeArgs = append(nodeArgs, key)
		}
		nodeArgs = append(nodeArgs, timeout)
		go func(addr string, nodeArgs []interface{}) {
			value, err := r.channel.Do(raceCtx, addr, command, nodeArgs...)
			replies <- popReply{value: value, err: err}
		}(node.IPPort(), nodeArgs)
	}

	// first completion wins, the cancellation of the losers is bookkeeping
	// internal to this call and never surfaces to the caller
	reply := <-replies
	cancel()
	return reply.value, reply.err
}

// multiSetAcrossSlots fans MSET/MSETNX out per owning master and requires
// every sub-operation to succeed. A single node failing fails the whole
// logical operation even though other nodes already mutated state.
func (r *Router) multiSetAcrossSlots(ctx context.Context, topology *Topology, command string, args []interface{}) (interface{}, error) {
	if len(args) == 0 || len(args)%2 != 0 {
		return nil, fmt.Errorf("malformed %s call: expected key/value pairs", command)
	}
	valueByKey := map[string]interface{}{}
	keys := make([][]byte, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := replyText(args[i])
		if !ok {
			return nil, fmt.Errorf("malformed %s call: key %d is not a string", command, i/2)
		}
		keys = append(keys, []byte(key))
		valueByKey[key] = args[i+1]
	}
	nodeKeyMap, err := topology.BuildNodeKeyMap(keys...)
	if err != nil {
		return nil, err
	}
	r.metrics.incCrossSlot(strategyAllSuccess)

	calls := map[string][]interface{}{}
	for node, nodeKeys := range nodeKeyMap {
		nodeArgs := make([]interface{}, 0, 2*len(nodeKeys))
		for _, key := range nodeKeys {
			nodeArgs = append(nodeArgs, key, valueByKey[string(key)])
		}
		calls[node.IPPort()] = nodeArgs
	}
	results, failures := r.doParallel(ctx, calls, command)
	if len(failures) > 0 {
		r.metrics.incPartialFailure()
		return nil, &PartialError{Results: results, Failures: failures}
	}

	if strings.EqualFold(command, "MSETNX") {
		// all sub-operations must have set their keys for the aggregate to
		// report success
		for _, value := range results {
			if set, _ := replyInt(value); set == 0 {
				return int64(0), nil
			}
		}
		return int64(1), nil
	}
	return []byte("OK"), nil
}

// mGetAcrossSlots fans MGET out per owning master and reassembles the values
// in input key order. Keys of failed nodes are reported nil alongside a
// PartialError carrying the failed subset, never silently dropped.
func (r *Router) mGetAcrossSlots(ctx context.Context, topology *Topology, keys [][]byte) (interface{}, error) {
	nodeKeyMap, err := topology.BuildNodeKeyMap(keys...)
	if err != nil {
		return nil, err
	}
	r.metrics.incCrossSlot(strategyAggregate)

	calls := map[string][]interface{}{}
	keysByAddr := map[string][][]byte{}
	for node, nodeKeys := range nodeKeyMap {
		nodeArgs := make([]interface{}, 0, len(nodeKeys))
		for _, key := range nodeKeys {
			nodeArgs = append(nodeArgs, key)
		}
		calls[node.IPPort()] = nodeArgs
		keysByAddr[node.IPPort()] = nodeKeys
	}
	results, failures := r.doParallel(ctx, calls, "MGET")

	valueByKey := map[string]interface{}{}
	for addr, reply := range results {
		values, ok := reply.([]interface{})
		if !ok || len(values) != len(keysByAddr[addr]) {
			return nil, fmt.Errorf("unexpected MGET reply from %s", addr)
		}
		for i, key := range keysByAddr[addr] {
			valueByKey[string(key)] = values[i]
		}
	}
	merged := make([]interface{}, len(keys))
	for i, key := range keys {
		merged[i] = valueByKey[string(key)]
	}
	if len(failures) > 0 {
		r.metrics.incPartialFailure()
		return merged, &PartialError{Results: results, Failures: failures}
	}
	return merged, nil
}

// sumAcrossSlots fans a counting command (DEL, UNLINK, EXISTS, TOUCH) out
// per owning master and sums the per-node counts. For the mutating variants
// any node failure fails the whole operation, counts already applied on
// other nodes included.
func (r *Router) sumAcrossSlots(ctx context.Context, topology *Topology, command string, keys [][]byte) (interface{}, error) {
	nodeKeyMap, err := topology.BuildNodeKeyMap(keys...)
	if err != nil {
		return nil, err
	}
	r.metrics.incCrossSlot(strategyAggregate)

	calls := map[string][]interface{}{}
	for node, nodeKeys := range nodeKeyMap {
		nodeArgs := make([]interface{}, 0, len(nodeKeys))
		for _, key := range nodeKeys {
			nodeArgs = append(nodeArgs, key)
		}
		calls[node.IPPort()] = nodeArgs
	}
	results, failures := r.doParallel(ctx, calls, command)
	if len(failures) > 0 {
		r.metrics.incPartialFailure()
		return nil, &PartialError{Results: results, Failures: failures}
	}
	total := int64(0)
	for _, value := range results {
		count, _ := replyInt(value)
		total += int64(count)
	}
	return total, nil
}
