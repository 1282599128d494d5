package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus instruments for the ledger engine.
type Collector struct {
	registry          *prometheus.Registry
	transfersExecuted *prometheus.CounterVec
	transfersFailed   *prometheus.CounterVec
	transferDuration  prometheus.Histogram
	idempotentReplays prometheus.Counter
}

// NewCollector creates a Collector with its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		transfersExecuted: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transfers_executed_total",
			Help: "Total number of committed ledger operations",
		}, []string{"type"}),
		transfersFailed: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transfers_failed_total",
			Help: "Total number of rejected or failed ledger operations",
		}, []string{"type"}),
		transferDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_transfer_duration_seconds",
			Help:    "Time spent inside the transfer executor",
			Buckets: prometheus.DefBuckets,
		}),
		idempotentReplays: promauto.With(registry).NewCounter(prometheus.CounterOpts{
			Name: "ledger_idempotent_replays_total",
			Help: "Total number of requests answered from a prior idempotent result",
		}),
	}
}

// RecordTransfer records the outcome and duration of one executor invocation.
// txType is the journal entry type (credit, debit, transfer).
func (c *Collector) RecordTransfer(txType string, duration time.Duration, success bool) {
	if success {
		c.transfersExecuted.WithLabelValues(txType).Inc()
	} else {
		c.transfersFailed.WithLabelValues(txType).Inc()
	}
	c.transferDuration.Observe(duration.Seconds())
}

// RecordIdempotentReplay records a request served from the idempotency store.
func (c *Collector) RecordIdempotentReplay() {
	c.idempotentReplays.Inc()
}

// Handler returns the HTTP handler serving this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
