package cluster

import (
	"context"
	"fmt"
	"strconv"
)

// Typed wrappers over Execute for the multi-key commands the router can
// decompose. Single-slot calls go straight to the owning master, the rest is
// handled by the cross-slot strategies.

// Rename renames oldKey to newKey, emulating the command across slots when
// the two keys hash to different masters
func (r *Router) Rename(ctx context.Context, oldKey, newKey []byte) error {
	_, err := r.Execute(ctx, "RENAME", [][]byte{oldKey, newKey}, DefaultRoute, oldKey, newKey)
	return err
}

// RenameNX renames sourceKey to targetKey unless the target already exists
func (r *Router) RenameNX(ctx context.Context, sourceKey, targetKey []byte) (bool, error) {
	reply, err := r.Execute(ctx, "RENAMENX", [][]byte{sourceKey, targetKey}, DefaultRoute, sourceKey, targetKey)
	if err != nil {
		return false, err
	}
	renamed, _ := replyInt(reply)
	return renamed == 1, nil
}

// SortStore sorts key with the given SORT options and stores the result at
// storeKey, returning the stored element count
func (r *Router) SortStore(ctx context.Context, key, storeKey []byte, options ...interface{}) (int64, error) {
	args := make([]interface{}, 0, len(options)+3)
	args = append(args, key)
	args = append(args, options...)
	args = append(args, "STORE", storeKey)
	reply, err := r.Execute(ctx, "SORT", [][]byte{key, storeKey}, DefaultRoute, args...)
	if err != nil {
		return 0, err
	}
	count, _ := replyInt(reply)
	return int64(count), nil
}

// BLPop pops the head element of the first non-empty list among keys,
// blocking up to timeout seconds. Keys spanning several masters are raced,
// the first node to deliver wins.
func (r *Router) BLPop(ctx context.Context, timeoutSeconds float64, keys ...[]byte) ([][]byte, error) {
	return r.blockingPop(ctx, "BLPOP", timeoutSeconds, keys)
}

// BRPop is BLPop for the tail element
func (r *Router) BRPop(ctx context.Context, timeoutSeconds float64, keys ...[]byte) ([][]byte, error) {
	return r.blockingPop(ctx, "BRPOP", timeoutSeconds, keys)
}

func (r *Router) blockingPop(ctx context.Context, command string, timeoutSeconds float64, keys [][]byte) ([][]byte, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s requires at least one key", command)
	}
	args := make([]interface{}, 0, len(keys)+1)
	for _, key := range keys {
		args = append(args, key)
	}
	args = append(args, strconv.FormatFloat(timeoutSeconds, 'f', -1, 64))
	reply, err := r.Execute(ctx, command, keys, DefaultRoute, args...)
	if err != nil || reply == nil {
		return nil, err
	}
	return replyBytesSlice(reply)
}

// RPopLPush pops the tail of sourceKey and pushes it at the head of destKey,
// returning the moved element or nil when the source is empty
func (r *Router) RPopLPush(ctx context.Context, sourceKey, destKey []byte) ([]byte, error) {
	reply, err := r.Execute(ctx, "RPOPLPUSH", [][]byte{sourceKey, destKey}, DefaultRoute, sourceKey, destKey)
	if err != nil || reply == nil {
		return nil, err
	}
	value, ok := reply.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected RPOPLPUSH reply type %T", reply)
	}
	return value, nil
}

// BRPopLPush is RPopLPush blocking up to timeout seconds on an empty source
func (r *Router) BRPopLPush(ctx context.Context, sourceKey, destKey []byte, timeoutSeconds float64) ([]byte, error) {
	timeout := strconv.FormatFloat(timeoutSeconds, 'f', -1, 64)
	reply, err := r.Execute(ctx, "BRPOPLPUSH", [][]byte{sourceKey, destKey}, DefaultRoute, sourceKey, destKey, timeout)
	if err != nil || reply == nil {
		return nil, err
	}
	value, ok := reply.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected BRPOPLPUSH reply type %T", reply)
	}
	return value, nil
}

// MSet sets every key of the map to its value. Keys spanning several masters
// are set per node, all nodes must succeed.
func (r *Router) MSet(ctx context.Context, pairs map[string][]byte) error {
	keys, args := flattenPairs(pairs)
	_, err := r.Execute(ctx, "MSET", keys, DefaultRoute, args...)
	return err
}

// MSetNX sets every key of the map to its value if none of the keys exist.
// Across masters the per-node checks are independent, a losing node does not
// roll the winning nodes back.
func (r *Router) MSetNX(ctx context.Context, pairs map[string][]byte) (bool, error) {
	keys, args := flattenPairs(pairs)
	reply, err := r.Execute(ctx, "MSETNX", keys, DefaultRoute, args...)
	if err != nil {
		return false, err
	}
	set, _ := replyInt(reply)
	return set == 1, nil
}

func flattenPairs(pairs map[string][]byte) ([][]byte, []interface{}) {
	keys := make([][]byte, 0, len(pairs))
	args := make([]interface{}, 0, 2*len(pairs))
	for key, value := range pairs {
		keys = append(keys, []byte(key))
		args = append(args, key, value)
	}
	return keys, args
}

// MGet returns the value per key in input order, nil for missing keys. When
// a subset of the owning nodes fails the known values are returned together
// with a PartialError naming the failed nodes.
func (r *Router) MGet(ctx context.Context, keys ...[]byte) ([][]byte, error) {
	args := make([]interface{}, 0, len(keys))
	for _, key := range keys {
		args = append(args, key)
	}
	reply, err := r.Execute(ctx, "MGET", keys, DefaultRoute, args...)
	if reply == nil {
		return nil, err
	}
	values, ok := reply.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected MGET reply type %T", reply)
	}
	merged := make([][]byte, len(values))
	for i, value := range values {
		if value == nil {
			continue
		}
		data, ok := value.([]byte)
		if !ok {
			return nil, fmt.Errorf("unexpected MGET element type %T", value)
		}
		merged[i] = data
	}
	return merged, err
}

// Del deletes the given keys and returns the number of keys removed
func (r *Router) Del(ctx context.Context, keys ...[]byte) (int64, error) {
	return r.countingCommand(ctx, "DEL", keys)
}

// Unlink is Del with asynchronous reclamation on the server
func (r *Router) Unlink(ctx context.Context, keys ...[]byte) (int64, error) {
	return r.countingCommand(ctx, "UNLINK", keys)
}

// Exists returns how many of the given keys exist, counting duplicates
func (r *Router) Exists(ctx context.Context, keys ...[]byte) (int64, error) {
	return r.countingCommand(ctx, "EXISTS", keys)
}

// Touch updates the last access time of the given keys and returns how many
// were touched
func (r *Router) Touch(ctx context.Context, keys ...[]byte) (int64, error) {
	return r.countingCommand(ctx, "TOUCH", keys)
}

func (r *Router) countingCommand(ctx context.Context, command string, keys [][]byte) (int64, error) {
	args := make([]interface{}, 0, len(keys))
	for _, key := range keys {
		args = append(args, key)
	}
	reply, err := r.Execute(ctx, command, keys, DefaultRoute, args...)
	if err != nil {
		return 0, err
	}
	count, _ := replyInt(reply)
	return int64(count), nil
}
