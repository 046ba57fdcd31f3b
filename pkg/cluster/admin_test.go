package cluster

import (
	"context"
	"errors"
	"testing"
)

func TestAddSlots(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "CLUSTER", []byte("OK"))

	if err := router.AddSlots(context.Background(), master1Addr, SlotSlice{1, 2, 3}); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	calls := channel.CallsTo(master1Addr, "CLUSTER")
	if len(calls) != 1 {
		t.Fatalf("expected one CLUSTER call, got %d", len(calls))
	}
	args := calls[0].Args
	if sub, _ := replyText(args[0]); sub != "ADDSLOTS" {
		t.Errorf("expected ADDSLOTS, got %v", args[0])
	}
	if len(args) != 4 {
		t.Errorf("expected the three slots as arguments, got %v", args)
	}
}

func TestAddSlotsEmpty(t *testing.T) {
	router, channel := newTestRouter(t)
	if err := router.AddSlots(context.Background(), master1Addr, nil); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(channel.Calls) != 0 {
		t.Error("no command expected for an empty slot list")
	}
}

func TestSetSlot(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "CLUSTER", []byte("OK"))

	if err := router.SetSlot(context.Background(), master1Addr, 42, SlotActionMigrating, "master2"); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	args := channel.CallsTo(master1Addr, "CLUSTER")[0].Args
	want := []string{"SETSLOT", "42", "MIGRATING", "master2"}
	for i, w := range want {
		if text, _ := replyText(args[i]); text != w {
			t.Errorf("arg %d: expected %q, got %v", i, w, args[i])
		}
	}

	// STABLE takes no node id
	channel.PushValue(master1Addr, "CLUSTER", []byte("OK"))
	if err := router.SetSlot(context.Background(), master1Addr, 42, SlotActionStable, ""); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	// migration states without a peer id are refused before hitting the node
	if err := router.SetSlot(context.Background(), master1Addr, 42, SlotActionImporting, ""); err == nil {
		t.Error("expected an error on IMPORTING without node id")
	}
	if err := router.SetSlot(context.Background(), master1Addr, 42, "BOGUS", "x"); err == nil {
		t.Error("expected an error on unknown action")
	}
}

func TestForgetNode(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master2Addr, "CLUSTER", []byte("OK"))

	// the forgotten master must not receive its own FORGET
	if err := router.ForgetNode(context.Background(), "master1"); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	forgets := 0
	for _, call := range channel.CallsTo(master2Addr, "CLUSTER") {
		if sub, _ := replyText(call.Args[0]); sub == "FORGET" {
			forgets++
			if id, _ := replyText(call.Args[1]); id != "master1" {
				t.Errorf("expected FORGET master1, got %v", call.Args[1])
			}
		}
	}
	if forgets != 1 {
		t.Errorf("expected one FORGET on the other master, got %d", forgets)
	}
	for _, call := range channel.CallsTo(master1Addr, "CLUSTER") {
		if sub, _ := replyText(call.Args[0]); sub == "FORGET" {
			t.Error("the forgotten node must not receive the FORGET")
		}
	}
}

func TestForgetNodeCollectsErrors(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushError(master1Addr, "CLUSTER", errors.New("unknown node"))
	channel.PushValue(master2Addr, "CLUSTER", []byte("OK"))

	// both masters are still asked, the error is reported at the end
	if err := router.ForgetNode(context.Background(), "replica1"); err == nil {
		t.Fatal("expected the per-node failure to surface")
	}
	total := len(channel.CallsTo(master1Addr, "CLUSTER")) + len(channel.CallsTo(master2Addr, "CLUSTER"))
	// one topology fetch plus one FORGET per master
	if total != 3 {
		t.Errorf("expected 3 CLUSTER calls, got %d", total)
	}
}

func TestMeetNode(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "CLUSTER", []byte("OK"))
	channel.PushValue(master2Addr, "CLUSTER", []byte("OK"))

	if err := router.MeetNode(context.Background(), "1.2.3.9", "6379"); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	for _, addr := range []string{master1Addr, master2Addr} {
		meets := 0
		for _, call := range channel.CallsTo(addr, "CLUSTER") {
			if sub, _ := replyText(call.Args[0]); sub == "MEET" {
				meets++
			}
		}
		if meets != 1 {
			t.Errorf("expected one MEET on %s, got %d", addr, meets)
		}
	}
}

func TestAttachReplica(t *testing.T) {
	router, channel := newTestRouter(t)
	replicaAddr := "1.2.3.3:6379"
	channel.PushValue(replicaAddr, "CLUSTER", []byte("OK"))

	if err := router.AttachReplica(context.Background(), replicaAddr, "master1"); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	args := channel.CallsTo(replicaAddr, "CLUSTER")[0].Args
	if sub, _ := replyText(args[0]); sub != "REPLICATE" {
		t.Errorf("expected REPLICATE, got %v", args[0])
	}

	// an unknown master id is refused before any command is sent
	if err := router.AttachReplica(context.Background(), replicaAddr, "ghost"); err == nil {
		t.Error("expected an error on unknown master id")
	}
}

func TestCountKeysInSlot(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master2Addr, "CLUSTER", int64(17))

	// slot 9000 is served by master2
	count, err := router.CountKeysInSlot(context.Background(), 9000)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if count != 17 {
		t.Errorf("expected 17 keys, got %d", count)
	}
}

func TestGetKeysInSlot(t *testing.T) {
	router, channel := newTestRouter(t)
	channel.PushValue(master1Addr, "CLUSTER", []interface{}{[]byte("a"), []byte("b")})

	// slot 100 is served by master1
	keys, err := router.GetKeysInSlot(context.Background(), 100, 10)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("expected 2 keys, got %q", keys)
	}
}
