// Package metrics provides Prometheus metrics for the replay analyzer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes of one analysis.
const (
	OutcomeSuccess  = "success"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

// Manager owns the analyzer metrics and their registry.
// A nil *Manager is valid and records nothing.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	replays          *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	droppedRecords   *prometheus.CounterVec
	duplicateUnitIDs prometheus.Counter
	unknownUnitRefs  prometheus.Counter
	unclassified     prometheus.Counter
	cacheLookups     *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets the buckets of the duration histogram.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRegistry registers the metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(m *Manager) {
		if reg != nil {
			m.registry = reg
		}
	}
}

// NewManager creates a manager with its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "sc2ra",
		histogramBuckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.replays = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "replays_analyzed_total",
		Help:      "Replays analyzed, by outcome",
	}, []string{"outcome"})

	m.analysisDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "analysis_duration_seconds",
		Help:      "Wall time spent analyzing one replay",
		Buckets:   m.histogramBuckets,
	})

	m.droppedRecords = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "dropped_records_total",
		Help:      "Decoded records that did not become events, by kind",
	}, []string{"kind"})

	m.duplicateUnitIDs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "duplicate_unit_ids_total",
		Help:      "Unit births that reused a live unit id",
	})

	m.unknownUnitRefs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "unknown_unit_refs_total",
		Help:      "Events that referenced a unit that was never born",
	})

	m.unclassified = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "unclassified_actions_total",
		Help:      "Commands whose ability could not be resolved",
	})

	m.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cache_lookups_total",
		Help:      "Result cache lookups, by result",
	}, []string{"result"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests, by route and status code",
	}, []string{"route", "code"})
}

// Registry returns the registry holding the metrics.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordAnalysis counts one finished analysis.
func (m *Manager) RecordAnalysis(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.replays.WithLabelValues(outcome).Inc()
	m.analysisDuration.Observe(took.Seconds())
}

// AddDropped adds per-kind dropped record counts.
func (m *Manager) AddDropped(byKind map[string]int) {
	if m == nil {
		return
	}
	for kind, n := range byKind {
		m.droppedRecords.WithLabelValues(kind).Add(float64(n))
	}
}

// AddAnomalies adds state tracker and extractor anomaly counts.
func (m *Manager) AddAnomalies(duplicates, unknownRefs, unclassified int) {
	if m == nil {
		return
	}
	m.duplicateUnitIDs.Add(float64(duplicates))
	m.unknownUnitRefs.Add(float64(unknownRefs))
	m.unclassified.Add(float64(unclassified))
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Manager) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// RecordHTTPRequest counts one served request.
func (m *Manager) RecordHTTPRequest(route, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, code).Inc()
}

// WriteTextfile dumps the metrics in the Prometheus text format.
func (m *Manager) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
