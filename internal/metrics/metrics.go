// Package metrics exposes Prometheus collectors for the lighting core.
//
// Collectors are registered on a private registry so tests and multiple
// instances never collide on the default one. Serve them with Handler.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graylogic"

// Collector holds every lighting core metric.
//
// It satisfies command.Metrics, the conflict service's metrics hook and
// the schedule runner's metrics hook.
type Collector struct {
	registry *prometheus.Registry

	pendingBatches prometheus.Gauge
	outcomes       *prometheus.CounterVec
	confirmLatency prometheus.Histogram
	staleAcks      prometheus.Counter

	conflictChecks *prometheus.CounterVec
	conflictsFound *prometheus.CounterVec
	scheduleFires  *prometheus.CounterVec
}

// New creates a collector with Go runtime and process metrics included.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		pendingBatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "batches_pending",
			Help:      "Command batches awaiting acknowledgement",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "outcomes_total",
			Help:      "Command batches by terminal state",
		}, []string{"state"}),
		confirmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "confirm_latency_seconds",
			Help:      "Time from dispatch to the last device ack",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		staleAcks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "command",
			Name:      "stale_acks_total",
			Help:      "Acks for unknown or finished batches",
		}),
		conflictChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schedule",
			Name:      "conflict_checks_total",
			Help:      "Schedule conflict checks by outcome",
		}, []string{"result"}),
		conflictsFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schedule",
			Name:      "conflicts_total",
			Help:      "Conflicts reported by severity",
		}, []string{"severity"}),
		scheduleFires: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schedule",
			Name:      "fires_total",
			Help:      "Schedule occurrences executed by the runner",
		}, []string{"result"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.pendingBatches,
		c.outcomes,
		c.confirmLatency,
		c.staleAcks,
		c.conflictChecks,
		c.conflictsFound,
		c.scheduleFires,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// SetPendingBatches records the number of active command batches.
func (c *Collector) SetPendingBatches(n int) {
	c.pendingBatches.Set(float64(n))
}

// ObserveOutcome counts a terminal batch. Latency is only observed for
// confirmed batches.
func (c *Collector) ObserveOutcome(state string, latency time.Duration) {
	c.outcomes.WithLabelValues(state).Inc()
	if state == "CONFIRMED" {
		c.confirmLatency.Observe(latency.Seconds())
	}
}

// IncStaleAcks counts an ignored ack.
func (c *Collector) IncStaleAcks() {
	c.staleAcks.Inc()
}

// ObserveConflictCheck counts one check and the conflicts it found.
func (c *Collector) ObserveConflictCheck(blocking, warning, info int) {
	result := "clear"
	switch {
	case blocking > 0:
		result = "blocking"
	case warning+info > 0:
		result = "advisory"
	}
	c.conflictChecks.WithLabelValues(result).Inc()
	c.conflictsFound.WithLabelValues("BLOCKING").Add(float64(blocking))
	c.conflictsFound.WithLabelValues("WARNING").Add(float64(warning))
	c.conflictsFound.WithLabelValues("INFO").Add(float64(info))
}

// IncScheduleFire counts a schedule execution; ok is false when dispatch failed.
func (c *Collector) IncScheduleFire(ok bool) {
	result := "dispatched"
	if !ok {
		result = "failed"
	}
	c.scheduleFires.WithLabelValues(result).Inc()
}
