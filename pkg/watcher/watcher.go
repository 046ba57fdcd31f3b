// Package watcher polls the cluster topology and exposes its health and
// metrics over http.
package watcher

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/valkeykit/valkey-router/pkg/cluster"
	"github.com/valkeykit/valkey-router/pkg/utils"
)

// Watcher contains all info to run the topology watcher
type Watcher struct {
	cfg     *Config
	router  *cluster.Router
	channel cluster.ExecutionChannel

	registry *prometheus.Registry

	// Kubernetes style probes handler
	health healthcheck.Handler

	httpServer *http.Server

	sync.Mutex
	lastTopology *cluster.Topology
	lastErr      error
}

// NewWatcher builds and returns a new Watcher instance
func NewWatcher(cfg *Config) *Watcher {
	registry := prometheus.NewRegistry()
	channel := cluster.NewConnections(cfg.Cluster.Addrs, &cluster.ConnectionsOptions{
		ConnectionTimeout:  cfg.Cluster.GetDialTimeout(),
		ClientName:         cfg.Cluster.ClientName,
		RenameCommandsFile: cfg.Cluster.GetRenameCommandsFile(),
	})
	router := cluster.NewRouter(channel, &cluster.RouterOptions{
		TopologyCacheTTL: cfg.Cluster.GetTopologyCacheTTL(),
		Metrics:          cluster.NewMetrics(registry),
	})

	w := &Watcher{
		cfg:      cfg,
		router:   router,
		channel:  channel,
		registry: registry,
	}
	w.configureHealth()

	mux := http.NewServeMux()
	mux.Handle("/", w.health)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	w.httpServer = &http.Server{
		Addr:     cfg.Cluster.ListenAddr,
		Handler:  mux,
		ErrorLog: log.New(utils.NewLogWriter(glog.Error), "", 0),
	}

	return w
}

// Run executes the watcher until stop is closed
func (w *Watcher) Run(stop <-chan struct{}) error {
	go w.runHTTPServer(stop)

	ticker := time.NewTicker(w.cfg.GetPollPeriod())
	defer ticker.Stop()

	w.poll()
	for {
		select {
		case <-stop:
			w.channel.Close()
			return nil
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Cluster.GetDialTimeout())
	defer cancel()

	topology, err := w.router.Topology(ctx)

	w.Lock()
	previous := w.lastTopology
	w.lastTopology, w.lastErr = topology, err
	w.Unlock()

	if err != nil {
		glog.Errorf("Topology poll failed: %v", err)
		return
	}
	logTopologyChange(previous, topology)
}

// logTopologyChange logs master set or coverage transitions between two
// consecutive polls
func logTopologyChange(previous, current *cluster.Topology) {
	if current == nil {
		return
	}
	if previous == nil {
		glog.Infof("Topology discovered: %d nodes, %d masters, covered=%v",
			len(current.Nodes()), len(current.Masters()), current.Covered())
		return
	}
	previousMasters := previous.Masters().Addrs()
	currentMasters := current.Masters().Addrs()
	if fmt.Sprint(previousMasters) != fmt.Sprint(currentMasters) {
		glog.Infof("Master set changed: %v -> %v", previousMasters, currentMasters)
	}
	if previous.Covered() != current.Covered() {
		glog.Infof("Slot coverage changed: covered=%v", current.Covered())
	}
}

func (w *Watcher) configureHealth() {
	w.health = healthcheck.NewHandler()
	w.health.AddReadinessCheck("topology_fetch", func() error {
		w.Lock()
		defer w.Unlock()
		if w.lastErr != nil {
			return fmt.Errorf("last topology fetch failed: %v", w.lastErr)
		}
		if w.lastTopology == nil {
			return fmt.Errorf("no topology fetched yet")
		}
		return nil
	})
	w.health.AddReadinessCheck("slot_coverage", func() error {
		w.Lock()
		defer w.Unlock()
		if w.lastTopology != nil && !w.lastTopology.Covered() {
			return fmt.Errorf("slot table has uncovered slots")
		}
		return nil
	})
}

func (w *Watcher) runHTTPServer(stop <-chan struct{}) error {
	go func() {
		glog.Infof("Listening on http://%s", w.httpServer.Addr)

		if err := w.httpServer.ListenAndServe(); err != nil {
			glog.Error("Http server error: ", err)
		}
	}()

	<-stop
	glog.Info("Shutting down the http server...")
	return w.httpServer.Shutdown(context.Background())
}
