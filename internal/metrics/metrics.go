// Package metrics exports retrieval metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Retrieval outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeNoMatch = "no_match"
	OutcomeError   = "error"
)

// Cache results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Metrics holds the collectors of one process.
// All Record methods are safe on a nil receiver, which records nothing.
type Metrics struct {
	registry *prometheus.Registry

	retrievals *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	candidates prometheus.Histogram
	cache      *prometheus.CounterVec
}

// Config configures the collectors.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}
}

// New creates and registers the collectors.
func New(cfg Config) *Metrics {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{registry: registry}

	m.retrievals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sercha_rec",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total number of retrieval requests",
		},
		[]string{"operation", "outcome"},
	)

	m.latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sercha_rec",
			Subsystem: "retrieval",
			Name:      "latency_seconds",
			Help:      "Retrieval latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"operation"},
	)

	m.candidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sercha_rec",
			Subsystem: "retrieval",
			Name:      "candidates",
			Help:      "Candidate items left after filtering",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	m.cache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sercha_rec",
			Subsystem: "embedding",
			Name:      "cache_requests_total",
			Help:      "Embedding cache lookups by result",
		},
		[]string{"result"},
	)

	registry.MustRegister(m.retrievals, m.latency, m.candidates, m.cache)

	return m
}

// RecordRetrieval records one retrieval call.
func (m *Metrics) RecordRetrieval(operation, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.retrievals.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(latency.Seconds())
}

// RecordCandidates records the candidate set size after filtering.
func (m *Metrics) RecordCandidates(n int) {
	if m == nil {
		return
	}
	m.candidates.Observe(float64(n))
}

// RecordCache records one embedding cache lookup.
func (m *Metrics) RecordCache(result string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(result).Inc()
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
