package audit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains audit pipeline metrics.
type Metrics struct {
	enqueued      prometheus.Counter
	dropped       prometheus.Counter
	shippedBatch  prometheus.Counter
	shippedEntry  prometheus.Counter
	failedBatches prometheus.Counter
	eventsTotal   *prometheus.CounterVec
	registry      *prometheus.Registry
}

// NewMetrics creates audit metrics on a private registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "avamcp"
	}

	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      name,
			Help:      help,
		})
	}

	m := &Metrics{
		enqueued:      counter("entries_enqueued_total", "Total number of audit entries accepted"),
		dropped:       counter("entries_dropped_total", "Total number of audit entries dropped because the queue was full"),
		shippedBatch:  counter("batches_shipped_total", "Total number of audit batches delivered"),
		shippedEntry:  counter("entries_shipped_total", "Total number of audit entries delivered"),
		failedBatches: counter("batches_failed_total", "Total number of audit batches dropped after retries"),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "audit",
				Name:      "events_total",
				Help:      "Total number of audit events by type",
			},
			[]string{"type"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.enqueued, m.dropped, m.shippedBatch, m.shippedEntry, m.failedBatches, m.eventsTotal)
	return m
}

func (m *Metrics) recordEnqueued(eventType EventType) {
	if m == nil {
		return
	}
	m.enqueued.Inc()
	m.eventsTotal.WithLabelValues(string(eventType)).Inc()
}

func (m *Metrics) recordDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *Metrics) recordShipped(entries int) {
	if m == nil {
		return
	}
	m.shippedBatch.Inc()
	m.shippedEntry.Add(float64(entries))
}

func (m *Metrics) recordFailed() {
	if m == nil {
		return
	}
	m.failedBatches.Inc()
}

// Registry returns the registry holding these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
