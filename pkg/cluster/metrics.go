package cluster

import "github.com/prometheus/client_golang/prometheus"

// Metrics instruments one router instance. It is created and registered
// explicitly by whoever constructs the router, there is no package-level
// registration. A nil *Metrics disables instrumentation.
type Metrics struct {
	TopologyFetches     prometheus.Counter
	TopologyFetchErrors prometheus.Counter
	TopologyCacheHits   prometheus.Counter
	TopologyCacheMisses prometheus.Counter
	CrossSlotOperations *prometheus.CounterVec
	PartialFailures     prometheus.Counter
}

// NewMetrics builds the router metrics and registers them on the given registerer
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TopologyFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_topology_fetch_total",
			Help: "Number of topology fetches issued against the cluster",
		}),
		TopologyFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_topology_fetch_errors_total",
			Help: "Number of topology fetches that failed",
		}),
		TopologyCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_topology_cache_hits_total",
			Help: "Number of topology reads served from the cache",
		}),
		TopologyCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_topology_cache_misses_total",
			Help: "Number of topology reads that triggered a refetch",
		}),
		CrossSlotOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "router_cross_slot_operations_total",
			Help: "Number of cross-slot operations per decomposition strategy",
		}, []string{"strategy"}),
		PartialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "router_partial_failures_total",
			Help: "Number of fan-outs where a subset of nodes failed",
		}),
	}
	reg.MustRegister(m.TopologyFetches, m.TopologyFetchErrors,
		m.TopologyCacheHits, m.TopologyCacheMisses,
		m.CrossSlotOperations, m.PartialFailures)
	return m
}

func (m *Metrics) incFetch(err error) {
	if m == nil {
		return
	}
	m.TopologyFetches.Inc()
	if err != nil {
		m.TopologyFetchErrors.Inc()
	}
}

func (m *Metrics) incCacheHit() {
	if m != nil {
		m.TopologyCacheHits.Inc()
	}
}

func (m *Metrics) incCacheMiss() {
	if m != nil {
		m.TopologyCacheMisses.Inc()
	}
}

func (m *Metrics) incCrossSlot(strategy string) {
	if m != nil {
		m.CrossSlotOperations.WithLabelValues(strategy).Inc()
	}
}

func (m *Metrics) incPartialFailure() {
	if m != nil {
		m.PartialFailures.Inc()
	}
}
