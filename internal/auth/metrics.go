package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for authentication.
type Metrics struct {
	attemptsTotal   *prometheus.CounterVec
	attemptDuration *prometheus.HistogramVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	registry        *prometheus.Registry
}

// NewMetrics creates authentication metrics registered on a private
// registry. An empty namespace defaults to "avamcp".
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "avamcp"
	}

	m := &Metrics{
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "attempts_total",
				Help:      "Total number of authentication attempts by method and result",
			},
			[]string{"method", "result"},
		),
		attemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "attempt_duration_seconds",
				Help:      "Authentication attempt duration in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
			},
			[]string{"method"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "cache_hits_total",
				Help:      "Total number of verification cache hits",
			},
			[]string{"cache"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "cache_misses_total",
				Help:      "Total number of verification cache misses",
			},
			[]string{"cache"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.attemptsTotal, m.attemptDuration, m.cacheHits, m.cacheMisses)
	return m
}

// RecordAttempt records one provider attempt. result is "success" or the
// failure kind code.
func (m *Metrics) RecordAttempt(method Method, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(string(method), result).Inc()
	m.attemptDuration.WithLabelValues(string(method)).Observe(duration.Seconds())
}

// RecordCacheHit records a cache hit for the named cache.
func (m *Metrics) RecordCacheHit(cache string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(cache).Inc()
}

// RecordCacheMiss records a cache miss for the named cache.
func (m *Metrics) RecordCacheMiss(cache string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// Registry returns the registry holding these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
