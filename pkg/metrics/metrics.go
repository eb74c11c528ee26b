// Package metrics provides Prometheus metrics for the verif scoring service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns the Prometheus instruments of the evaluation service.
type Manager struct {
	namespace string
	subsystem string
	buckets   []float64
	enabled   bool
	registry  prometheus.Registerer

	// Evaluation metrics: what the service spends its time on.
	evaluations *prometheus.CounterVec   // by rule and estimator
	latency     *prometheus.HistogramVec // by rule
	batchSize   prometheus.Histogram

	// Quality metrics: rejected requests by failure kind.
	failures *prometheus.CounterVec // by rule and kind
}

// New creates a Manager and registers its instruments.
func New(opts ...Option) *Manager {
	m := &Manager{
		namespace: "verif",
		subsystem: "scoring",
		buckets:   prometheus.DefBuckets,
		enabled:   true,
		registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	if !m.enabled {
		return m
	}

	factory := promauto.With(m.registry)
	m.evaluations = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluations_total",
		Help:      "Completed score evaluations by rule and estimator.",
	}, []string{"rule", "estimator"})
	m.latency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_duration_seconds",
		Help:      "Wall time of score evaluations by rule.",
		Buckets:   m.buckets,
	}, []string{"rule"})
	m.batchSize = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_batch_size",
		Help:      "Number of batch elements per evaluation.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})
	m.failures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_failures_total",
		Help:      "Rejected evaluations by rule and failure kind.",
	}, []string{"rule", "kind"})
	return m
}

// RecordEvaluation counts one completed evaluation and its duration.
func (m *Manager) RecordEvaluation(rule, estimator string, batch int, elapsed time.Duration) {
	if !m.enabled {
		return
	}
	m.evaluations.WithLabelValues(rule, estimator).Inc()
	m.latency.WithLabelValues(rule).Observe(elapsed.Seconds())
	m.batchSize.Observe(float64(batch))
}

// RecordFailure counts one rejected evaluation.
func (m *Manager) RecordFailure(rule, kind string) {
	if !m.enabled {
		return
	}
	m.failures.WithLabelValues(rule, kind).Inc()
}

var defaultRegistry = prometheus.NewRegistry()

// GetRegistry returns the registry backing the default Manager, for exposing
// through promhttp.
func GetRegistry() *prometheus.Registry {
	return defaultRegistry
}
