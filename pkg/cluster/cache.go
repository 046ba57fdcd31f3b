package cluster

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// DefaultTopologyCacheTTL default validity window of a topology snapshot.
// Generous enough to absorb command bursts, short enough to bound how long
// routing can stay wrong after an unnoticed topology change.
const DefaultTopologyCacheTTL = 100 * time.Millisecond

// TopologyCache is a time-bounded cache of the cluster topology. Reads are
// lock-free: the snapshot and its fetch timestamp are replaced together with
// a single atomic swap, concurrent readers either see the previous pair or
// the new one, never a partial update.
//
// Concurrent Get calls during a miss may each trigger a refetch. Fetches are
// idempotent reads, so the only cost is redundant work under contention;
// single-flight deduplication could be added without changing the contract.
type TopologyCache struct {
	fetcher *Fetcher
	ttl     time.Duration
	metrics *Metrics

	current atomic.Value // cacheEntry
}

type cacheEntry struct {
	topology  *Topology
	fetchedAt time.Time
}

// NewTopologyCache returns a TopologyCache refreshing through the given
// fetcher. A zero ttl falls back to DefaultTopologyCacheTTL.
func NewTopologyCache(fetcher *Fetcher, ttl time.Duration, metrics *Metrics) *TopologyCache {
	if ttl <= 0 {
		ttl = DefaultTopologyCacheTTL
	}
	return &TopologyCache{
		fetcher: fetcher,
		ttl:     ttl,
		metrics: metrics,
	}
}

// Get returns the cached snapshot when it was fetched within the TTL,
// otherwise refetches synchronously before returning. A failed refetch is
// returned as is, there is no fallback to data older than the TTL allows.
func (c *TopologyCache) Get(ctx context.Context) (*Topology, error) {
	if entry, ok := c.current.Load().(cacheEntry); ok {
		if entry.topology != nil && time.Since(entry.fetchedAt) <= c.ttl {
			c.metrics.incCacheHit()
			return entry.topology, nil
		}
	}
	c.metrics.incCacheMiss()

	topology, err := c.fetcher.Fetch(ctx)
	c.metrics.incFetch(err)
	if err != nil {
		return nil, err
	}
	c.current.Store(cacheEntry{topology: topology, fetchedAt: time.Now()})
	return topology, nil
}

// Invalidate marks the cached snapshot as never fetched, forcing the next Get
// to refetch regardless of elapsed time. Called after every topology-mutating
// command: even a partially applied slot or node change invalidates prior
// routing assumptions.
func (c *TopologyCache) Invalidate() {
	c.current.Store(cacheEntry{})
	glog.V(2).Info("Topology cache invalidated")
}
