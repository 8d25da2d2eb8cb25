// Package metrics provides Prometheus metrics for the import pipeline.
//
// A nil *Manager is valid and records nothing, so packages take one as an
// optional dependency without guarding every call.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the registry and every collector.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         *prometheus.Registry

	rowsProcessed       *prometheus.CounterVec
	importDuration      *prometheus.HistogramVec
	importsRejected     *prometheus.CounterVec
	reviewPending       prometheus.Gauge
	reviewDecisions     *prometheus.CounterVec
	teamsCreated        prometheus.Counter
	teamConflicts       prometheus.Counter
	contactReclassified prometheus.Counter
}

// NewManager creates a manager with its own registry unless WithRegistry is given.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "athletemetrics",
		subsystem:        "import",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		enabled:          true,
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.rowsProcessed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rows_processed_total",
		Help:      "Import rows processed, by import kind and row status",
	}, []string{"kind", "status"})

	m.importDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "duration_seconds",
		Help:      "Wall time of one import invocation",
		Buckets:   m.histogramBuckets,
	}, []string{"kind"})

	m.importsRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rejected_total",
		Help:      "Imports rejected before any row was processed, by reason",
	}, []string{"reason"})

	m.reviewPending = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "review",
		Name:      "pending_items",
		Help:      "Review queue items waiting for a decision",
	})

	m.reviewDecisions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "review",
		Name:      "decisions_total",
		Help:      "Review decisions, by action",
	}, []string{"action"})

	m.teamsCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "teams",
		Name:      "created_total",
		Help:      "Teams created by the provisioner",
	})

	m.teamConflicts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "teams",
		Name:      "create_conflicts_total",
		Help:      "Team creations that lost a uniqueness race and were re-resolved",
	})

	m.contactReclassified = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "contact_reclassified_total",
		Help:      "Contact values moved between the email and phone lists",
	})
}

func (m *Manager) on() bool {
	return m != nil && m.enabled
}

// RecordRow counts one processed row.
func (m *Manager) RecordRow(kind, status string) {
	if !m.on() {
		return
	}
	m.rowsProcessed.WithLabelValues(kind, status).Inc()
}

// ObserveImport records the duration of one import.
func (m *Manager) ObserveImport(kind string, d time.Duration) {
	if !m.on() {
		return
	}
	m.importDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// RecordRejected counts an import rejected before processing.
func (m *Manager) RecordRejected(reason string) {
	if !m.on() {
		return
	}
	m.importsRejected.WithLabelValues(reason).Inc()
}

// ReviewEnqueued increments the pending review gauge.
func (m *Manager) ReviewEnqueued() {
	if !m.on() {
		return
	}
	m.reviewPending.Inc()
}

// ReviewDecided decrements the pending gauge and counts the decision.
func (m *Manager) ReviewDecided(action string) {
	if !m.on() {
		return
	}
	m.reviewPending.Dec()
	m.reviewDecisions.WithLabelValues(action).Inc()
}

// SetReviewPending resets the pending gauge, e.g. after loading a persistent queue.
func (m *Manager) SetReviewPending(n int) {
	if !m.on() {
		return
	}
	m.reviewPending.Set(float64(n))
}

// TeamCreated counts a newly created team.
func (m *Manager) TeamCreated() {
	if !m.on() {
		return
	}
	m.teamsCreated.Inc()
}

// TeamConflictRecovered counts a lost creation race.
func (m *Manager) TeamConflictRecovered() {
	if !m.on() {
		return
	}
	m.teamConflicts.Inc()
}

// ContactReclassified counts moved contact values.
func (m *Manager) ContactReclassified(n int) {
	if !m.on() || n <= 0 {
		return
	}
	m.contactReclassified.Add(float64(n))
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
