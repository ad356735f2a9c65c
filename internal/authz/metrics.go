package authz

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains authorization metrics.
type Metrics struct {
	decisionTotal *prometheus.CounterVec
	filteredTotal prometheus.Counter
	registry      *prometheus.Registry
}

// NewMetrics creates authorization metrics on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "avamcp"
	}

	m := &Metrics{
		decisionTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "authz",
				Name:      "decision_total",
				Help:      "Total number of authorization decisions",
			},
			[]string{"decision"},
		),
		filteredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "authz",
				Name:      "catalog_filtered_total",
				Help:      "Total number of capabilities removed from listings",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.decisionTotal, m.filteredTotal)
	return m
}

func (m *Metrics) recordDecision(decision string) {
	if m == nil {
		return
	}
	m.decisionTotal.WithLabelValues(decision).Inc()
}

func (m *Metrics) recordFiltered(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.filteredTotal.Add(float64(n))
}

// Registry returns the registry holding these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
