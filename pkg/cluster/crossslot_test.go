package cluster

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/valkeykit/valkey-router/pkg/cluster/fake"
)

// "bar" hashes to slot 5061 (master1), "foo" to 12182 (master2)

func TestRenameAcrossSlots(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "DUMP", []byte("serialized"))
	channel.PushValue(master2Addr, "RESTORE", []byte("OK"))
	channel.PushValue(master1Addr, "DEL", int64(1))

	if err := router.Rename(context.Background(), []byte("bar"), []byte("foo")); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	restores := channel.CallsTo(master2Addr, "RESTORE")
	if len(restores) != 1 {
		t.Fatalf("expected one RESTORE on the destination master, got %d", len(restores))
	}
	args := restores[0].Args
	if len(args) != 4 {
		t.Fatalf("unexpected RESTORE args: %v", args)
	}
	if payload, _ := replyText(args[2]); payload != "serialized" {
		t.Errorf("RESTORE should carry the dumped payload, got %v", args[2])
	}
	if flag, _ := replyText(args[3]); flag != "REPLACE" {
		t.Errorf("RESTORE should use REPLACE, got %v", args[3])
	}
	if len(channel.CallsTo(master1Addr, "DEL")) != 1 {
		t.Error("the source key should be deleted")
	}
}

func TestRenameAcrossSlotsReply(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "DUMP", []byte("serialized"))
	channel.PushValue(master2Addr, "RESTORE", []byte("OK"))
	channel.PushValue(master1Addr, "DEL", int64(1))

	// the decomposed rename answers OK like a single node would
	reply, err := router.Execute(context.Background(), "RENAME",
		[][]byte{[]byte("bar"), []byte("foo")}, DefaultRoute, []byte("bar"), []byte("foo"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if text, _ := replyText(reply); text != "OK" {
		t.Errorf("expected an OK reply, got %v", reply)
	}
}

func TestRenameAcrossSlotsMissingSource(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "DUMP", nil)

	// a missing source is a no-op, nothing is restored or deleted
	if err := router.Rename(context.Background(), []byte("bar"), []byte("foo")); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if channel.CountCalls("RESTORE") != 0 || channel.CountCalls("DEL") != 0 {
		t.Error("no RESTORE or DEL expected when the source does not exist")
	}
}

func TestRenameSameSlotPassthrough(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master2Addr, "RENAME", []byte("OK"))

	// keys sharing a hash tag stay a single native RENAME
	if err := router.Rename(context.Background(), []byte("{foo}a"), []byte("{foo}b")); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if channel.CountCalls("DUMP") != 0 {
		t.Error("same-slot rename must not be decomposed")
	}
}

func TestRenameNXAcrossSlots(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "DUMP", []byte("serialized"))
	channel.PushValue(master2Addr, "EXISTS", int64(0))
	channel.PushValue(master2Addr, "RESTORE", []byte("OK"))
	channel.PushValue(master1Addr, "DEL", int64(1))

	renamed, err := router.RenameNX(context.Background(), []byte("bar"), []byte("foo"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !renamed {
		t.Error("expected the rename to happen")
	}
}

func TestRenameNXAcrossSlotsTargetExists(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "DUMP", []byte("serialized"))
	channel.PushValue(master2Addr, "EXISTS", int64(1))

	renamed, err := router.RenameNX(context.Background(), []byte("bar"), []byte("foo"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if renamed {
		t.Error("expected no rename when the target exists")
	}
	if channel.CountCalls("RESTORE") != 0 {
		t.Error("nothing should be restored when the target exists")
	}
}

func TestBlockingPopFirstWins(t *testing.T) {
	router, channel := newTestRouter(t)
	// master1 would answer late, master2 delivers immediately: the first
	// completed reply wins and the slow request is abandoned
	channel.Push(master1Addr, "BLPOP", fake.Reply{Value: nil, Delay: time.Second})
	channel.PushValue(master2Addr, "BLPOP", []interface{}{[]byte("foo"), []byte("popped")})

	start := time.Now()
	reply, err := router.BLPop(context.Background(), 0, []byte("bar"), []byte("foo"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("the winning reply should not wait for the slow node")
	}
	want := [][]byte{[]byte("foo"), []byte("popped")}
	if !reflect.DeepEqual(reply, want) {
		t.Errorf("expected %q, got %q", want, reply)
	}
	// the losing request is issued from its own goroutine, wait for it to
	// be recorded before counting
	if !channel.WaitCalls("BLPOP", 2, time.Second) {
		t.Errorf("expected one BLPOP per owning master, got %d", channel.CountCalls("BLPOP"))
	}
}

func TestBlockingPopArgsPerNode(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "BRPOP", []interface{}{[]byte("bar"), []byte("v")})
	channel.Push(master2Addr, "BRPOP", fake.Reply{Value: nil, Delay: time.Second})

	if _, err := router.BRPop(context.Background(), 2, []byte("bar"), []byte("foo")); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	calls := channel.CallsTo(master1Addr, "BRPOP")
	if len(calls) != 1 {
		t.Fatalf("expected one BRPOP on master1, got %d", len(calls))
	}
	// per-node request carries only that node's keys plus the timeout
	args := calls[0].Args
	if len(args) != 2 {
		t.Fatalf("unexpected BRPOP args: %v", args)
	}
	if key, _ := replyText(args[0]); key != "bar" {
		t.Errorf("expected key 'bar', got %v", args[0])
	}
	if timeout, _ := replyText(args[1]); timeout != "2" {
		t.Errorf("expected timeout '2', got %v", args[1])
	}
}

func TestMSetAcrossSlots(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "MSET", []byte("OK"))
	channel.PushValue(master2Addr, "MSET", []byte("OK"))

	pairs := map[string][]byte{"bar": []byte("1"), "foo": []byte("2")}
	if err := router.MSet(context.Background(), pairs); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if channel.CountCalls("MSET") != 2 {
		t.Errorf("expected one MSET per owning master, got %d", channel.CountCalls("MSET"))
	}
}

func TestMSetAcrossSlotsNodeFailure(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "MSET", []byte("OK"))
	channel.PushError(master2Addr, "MSET", errors.New("boom"))

	pairs := map[string][]byte{"bar": []byte("1"), "foo": []byte("2")}
	err := router.MSet(context.Background(), pairs)
	partial, ok := err.(*PartialError)
	if !ok {
		t.Fatalf("expected a *PartialError, got %T: %v", err, err)
	}
	if partial.Failures[master2Addr] == nil {
		t.Errorf("expected the failure of %s, got %v", master2Addr, partial.Failures)
	}
}

func TestMSetNXAcrossSlots(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "MSETNX", int64(1))
	channel.PushValue(master2Addr, "MSETNX", int64(1))

	pairs := map[string][]byte{"bar": []byte("1"), "foo": []byte("2")}
	set, err := router.MSetNX(context.Background(), pairs)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if !set {
		t.Error("expected all keys to be reported set")
	}
}

func TestMSetNXAcrossSlotsOneNodeRefuses(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "MSETNX", int64(1))
	channel.PushValue(master2Addr, "MSETNX", int64(0))

	// per-node checks are independent: one refusing node makes the whole
	// operation report false even though the other node already set its keys
	pairs := map[string][]byte{"bar": []byte("1"), "foo": []byte("2")}
	set, err := router.MSetNX(context.Background(), pairs)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if set {
		t.Error("expected the aggregate to report false")
	}
}

func TestMGetAcrossSlots(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master2Addr, "MGET", []interface{}{[]byte("vfoo"), []byte("vfoobar")})
	channel.PushValue(master1Addr, "MGET", []interface{}{[]byte("vbar"), nil})

	values, err := router.MGet(context.Background(),
		[]byte("foo"), []byte("bar"), []byte("foobar"), []byte("hello"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	// values come back in input key order, nil for missing keys
	want := [][]byte{[]byte("vfoo"), []byte("vbar"), []byte("vfoobar"), nil}
	if !reflect.DeepEqual(values, want) {
		t.Errorf("expected %q, got %q", want, values)
	}
}

func TestMGetAcrossSlotsPartialFailure(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master2Addr, "MGET", []interface{}{[]byte("vfoo")})
	channel.PushError(master1Addr, "MGET", errors.New("boom"))

	values, err := router.MGet(context.Background(), []byte("foo"), []byte("bar"))
	partial, ok := err.(*PartialError)
	if !ok {
		t.Fatalf("expected a *PartialError, got %T: %v", err, err)
	}
	if partial.Failures[master1Addr] == nil {
		t.Errorf("expected the failure of %s, got %v", master1Addr, partial.Failures)
	}
	// the keys of the failed node are nil, never silently dropped
	want := [][]byte{[]byte("vfoo"), nil}
	if !reflect.DeepEqual(values, want) {
		t.Errorf("expected %q, got %q", want, values)
	}
}

func TestDelAcrossSlots(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "DEL", int64(2))
	channel.PushValue(master2Addr, "DEL", int64(1))

	count, err := router.Del(context.Background(),
		[]byte("bar"), []byte("hello"), []byte("foo"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 deleted keys, got %d", count)
	}
}

func TestExistsAcrossSlotsNodeFailure(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "EXISTS", int64(1))
	channel.PushError(master2Addr, "EXISTS", errors.New("boom"))

	if _, err := router.Exists(context.Background(), []byte("bar"), []byte("foo")); err == nil {
		t.Fatal("expected the node failure to fail the whole count")
	}
}

func TestSortStoreAcrossSlots(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "SORT", []interface{}{[]byte("a"), []byte("b")})
	channel.PushValue(master2Addr, "UNLINK", int64(0))
	channel.PushValue(master2Addr, "RPUSH", int64(2))

	count, err := router.SortStore(context.Background(), []byte("bar"), []byte("foo"), "ALPHA")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 stored elements, got %d", count)
	}

	sorts := channel.CallsTo(master1Addr, "SORT")
	if len(sorts) != 1 {
		t.Fatalf("expected one SORT on the source master, got %d", len(sorts))
	}
	for _, arg := range sorts[0].Args {
		if text, _ := replyText(arg); text == "STORE" {
			t.Error("the STORE clause must be stripped from the source-side SORT")
		}
	}
}

func TestSortStoreAcrossSlotsEmptyResult(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "SORT", []interface{}{})
	channel.PushValue(master2Addr, "UNLINK", int64(1))

	count, err := router.SortStore(context.Background(), []byte("bar"), []byte("foo"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 stored elements, got %d", count)
	}
	// the stale destination is still cleared, nothing is pushed
	if channel.CountCalls("RPUSH") != 0 {
		t.Error("no RPUSH expected on an empty sort result")
	}
}

func TestRPopLPushAcrossSlots(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "RPOP", []byte("moved"))
	channel.PushValue(master2Addr, "LPUSH", int64(1))

	value, err := router.RPopLPush(context.Background(), []byte("bar"), []byte("foo"))
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if string(value) != "moved" {
		t.Errorf("expected 'moved', got %q", value)
	}
}

func TestRPopLPushAcrossSlotsEmptySource(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "RPOP", nil)

	value, err := router.RPopLPush(context.Background(), []byte("bar"), []byte("foo"))
	if err != nil || value != nil {
		t.Errorf("expected nil value on empty source, got %q, %v", value, err)
	}
	if channel.CountCalls("LPUSH") != 0 {
		t.Error("no LPUSH expected when the source is empty")
	}
}

func TestBRPopLPushAcrossSlots(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "BRPOP", []interface{}{[]byte("bar"), []byte("moved")})
	channel.PushValue(master2Addr, "LPUSH", int64(1))

	value, err := router.BRPopLPush(context.Background(), []byte("bar"), []byte("foo"), 1)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if string(value) != "moved" {
		t.Errorf("expected 'moved', got %q", value)
	}
}

func TestCrossSlotUnsupportedCommand(t *testing.T) {
	router, _ := newTestRouter(t)

	keys := [][]byte{[]byte("foo"), []byte("bar")}
	_, err := router.Execute(context.Background(), "SDIFF", keys, DefaultRoute, keys[0], keys[1])
	if _, ok := err.(*UnsupportedError); !ok {
		t.Fatalf("expected a *UnsupportedError, got %T: %v", err, err)
	}
}
