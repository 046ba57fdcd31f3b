package cluster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/valkeykit/valkey-router/pkg/cluster/fake"
)

func TestTopologyCacheHit(t *testing.T) {
	channel := fake.NewChannel("1.2.3.1:6379")
	channel.PushValue("1.2.3.1:6379", "CLUSTER", testSlotsReply())

	cache := NewTopologyCache(NewFetcher(channel), time.Minute, nil)

	first, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	// a second Get within the TTL returns the same snapshot without any fetch
	second, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if first != second {
		t.Error("expected the cached snapshot instance")
	}
	if channel.CountCalls("CLUSTER") != 1 {
		t.Errorf("expected a single CLUSTER SLOTS call, got %d", channel.CountCalls("CLUSTER"))
	}
}

func TestTopologyCacheExpiry(t *testing.T) {
	channel := fake.NewChannel("1.2.3.1:6379")
	channel.PushValue("1.2.3.1:6379", "CLUSTER", testSlotsReply())
	channel.PushValue("1.2.3.1:6379", "CLUSTER", testSlotsReply())

	cache := NewTopologyCache(NewFetcher(channel), 10*time.Millisecond, nil)

	first, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	second, err := cache.Get(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if first == second {
		t.Error("expected a fresh snapshot after the TTL elapsed")
	}
	if channel.CountCalls("CLUSTER") != 2 {
		t.Errorf("expected two CLUSTER SLOTS calls, got %d", channel.CountCalls("CLUSTER"))
	}
}

func TestTopologyCacheInvalidate(t *testing.T) {
	channel := fake.NewChannel("1.2.3.1:6379")
	channel.PushValue("1.2.3.1:6379", "CLUSTER", testSlotsReply())
	channel.PushValue("1.2.3.1:6379", "CLUSTER", testSlotsReply())

	cache := NewTopologyCache(NewFetcher(channel), time.Minute, nil)

	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	cache.Invalidate()

	// the invalidation forces exactly one refetch, later Gets hit the cache again
	for i := 0; i < 3; i++ {
		if _, err := cache.Get(context.Background()); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
	}
	if channel.CountCalls("CLUSTER") != 2 {
		t.Errorf("expected two CLUSTER SLOTS calls, got %d", channel.CountCalls("CLUSTER"))
	}
}

func TestTopologyCacheFetchError(t *testing.T) {
	channel := fake.NewChannel("1.2.3.1:6379")
	channel.PushError("1.2.3.1:6379", "CLUSTER", errors.New("boom"))
	channel.PushValue("1.2.3.1:6379", "CLUSTER", testSlotsReply())

	cache := NewTopologyCache(NewFetcher(channel), time.Minute, nil)

	// a failed fetch is propagated, nothing is cached
	if _, err := cache.Get(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
	// the next Get retries and succeeds
	if _, err := cache.Get(context.Background()); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if channel.CountCalls("CLUSTER") != 2 {
		t.Errorf("expected two CLUSTER SLOTS calls, got %d", channel.CountCalls("CLUSTER"))
	}
}

func TestTopologyCacheZeroTTLDefault(t *testing.T) {
	cache := NewTopologyCache(nil, 0, nil)
	if cache.ttl != DefaultTopologyCacheTTL {
		t.Errorf("expected default TTL %s, got %s", DefaultTopologyCacheTTL, cache.ttl)
	}
}
