// Package metrics exposes ledger and HTTP instrumentation to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockledger/internal/domain/registers/stock"
)

const namespace = "stockledger"

var _ stock.Metrics = (*Registry)(nil)

// Registry owns the collectors. Each Registry has its own prometheus
// registry, so several may coexist in tests.
type Registry struct {
	reg *prometheus.Registry

	movesCommitted  *prometheus.CounterVec
	movesRejected   *prometheus.CounterVec
	lockWait        prometheus.Histogram
	rebuildPairs    prometheus.Counter
	rebuildFixed    prometheus.Counter
	lowStockAlerts  prometheus.Counter
	outboxProcessed prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New creates a registry with Go runtime and process collectors included.
func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Registry{
		reg: reg,
		movesCommitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "moves_committed_total",
			Help:      "Stock moves committed, by move type.",
		}, []string{"type"}),
		movesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "moves_rejected_total",
			Help:      "Stock moves rejected, by error code.",
		}, []string{"code"}),
		lockWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "balance_lock_wait_seconds",
			Help:      "Time spent waiting for the balance row lock.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		rebuildPairs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rebuild_pairs_total",
			Help:      "Balance pairs recomputed by rebuilds.",
		}),
		rebuildFixed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "rebuild_corrected_total",
			Help:      "Balance rows that drifted and were corrected by rebuilds.",
		}),
		lowStockAlerts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "low_stock_alerts_total",
			Help:      "Low stock notifications raised by the worker.",
		}),
		outboxProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "processed_total",
			Help:      "Outbox messages delivered.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests, by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry, mostly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Register adds an extra collector, e.g. pool stats.
func (r *Registry) Register(c prometheus.Collector) error {
	return r.reg.Register(c)
}

func (r *Registry) MoveCommitted(t string) {
	r.movesCommitted.WithLabelValues(t).Inc()
}

func (r *Registry) MoveRejected(code string) {
	r.movesRejected.WithLabelValues(code).Inc()
}

func (r *Registry) LockWait(d time.Duration) {
	r.lockWait.Observe(d.Seconds())
}

func (r *Registry) BalancesRebuilt(pairs, corrected int) {
	r.rebuildPairs.Add(float64(pairs))
	r.rebuildFixed.Add(float64(corrected))
}

func (r *Registry) LowStockAlert() {
	r.lowStockAlerts.Inc()
}

// OutboxProcessed counts delivered outbox messages.
func (r *Registry) OutboxProcessed(n int) {
	r.outboxProcessed.Add(float64(n))
}

// ObserveHTTP records one finished request.
func (r *Registry) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
