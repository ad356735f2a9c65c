package router

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains route selection metrics.
type Metrics struct {
	matches  *prometheus.CounterVec
	misses   prometheus.Counter
	registry *prometheus.Registry
}

// NewMetrics creates router metrics on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "avamcp"
	}

	m := &Metrics{
		matches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "matches_total",
				Help:      "Total number of requests matched to a route",
			},
			[]string{"route"},
		),
		misses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "misses_total",
				Help:      "Total number of requests with no matching route",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.matches, m.misses)
	return m
}

func (m *Metrics) recordMatch(route string) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(route).Inc()
}

func (m *Metrics) recordMiss() {
	if m == nil {
		return
	}
	m.misses.Inc()
}

// Registry returns the registry holding these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
