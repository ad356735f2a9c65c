package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains rate limiter metrics.
type Metrics struct {
	decisions *prometheus.CounterVec
	buckets   prometheus.Gauge
	swept     prometheus.Counter
	registry  *prometheus.Registry
}

// NewMetrics creates rate limiter metrics on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "avamcp"
	}

	m := &Metrics{
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "decisions_total",
				Help:      "Total number of rate limit decisions",
			},
			[]string{"result"},
		),
		buckets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "buckets",
				Help:      "Number of live identity buckets",
			},
		),
		swept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ratelimit",
				Name:      "buckets_swept_total",
				Help:      "Total number of idle buckets removed",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.decisions, m.buckets, m.swept)
	return m
}

func (m *Metrics) recordDecision(allowed bool) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "limited"
	}
	m.decisions.WithLabelValues(result).Inc()
}

func (m *Metrics) setBuckets(n int) {
	if m == nil {
		return
	}
	m.buckets.Set(float64(n))
}

func (m *Metrics) recordSwept(n int) {
	if m == nil || n == 0 {
		return
	}
	m.swept.Add(float64(n))
}

// Registry returns the registry holding these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
