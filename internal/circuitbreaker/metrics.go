package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for circuit breakers.
type Metrics struct {
	stateChanges *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	registry     *prometheus.Registry
}

// NewMetrics creates circuit breaker metrics on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "avamcp"
	}

	m := &Metrics{
		stateChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "state_changes_total",
				Help:      "Total number of circuit breaker state changes",
			},
			[]string{"name", "from", "to"},
		),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "rejected_total",
				Help:      "Total number of calls rejected by an open circuit",
			},
			[]string{"name"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.stateChanges, m.rejected)
	return m
}

func (m *Metrics) recordStateChange(name, from, to string) {
	if m == nil {
		return
	}
	m.stateChanges.WithLabelValues(name, from, to).Inc()
}

func (m *Metrics) recordRejected(name string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(name).Inc()
}

// Registry returns the registry holding these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
