package circuitbreaker

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/avamcp/internal/observability"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

// Breaker guards calls to one remote dependency.
type Breaker struct {
	name    string
	cb      *gobreaker.CircuitBreaker
	logger  observability.Logger
	metrics *Metrics
}

// Option is a functional option for the breaker.
type Option func(*Breaker)

// WithLogger sets the logger for the breaker.
func WithLogger(logger observability.Logger) Option {
	return func(b *Breaker) {
		b.logger = logger
	}
}

// WithMetrics sets the metrics for the breaker.
func WithMetrics(metrics *Metrics) Option {
	return func(b *Breaker) {
		b.metrics = metrics
	}
}

// New creates a breaker named name.
func New(name string, cfg Config, opts ...Option) *Breaker {
	b := &Breaker{
		name:   name,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}

	cfg = cfg.withDefaults()
	maxFailures := safeIntToUint32(cfg.MaxFailures)

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: safeIntToUint32(cfg.HalfOpenMax),
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			b.logger.Info("circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			b.metrics.recordStateChange(name, from.String(), to.String())
		},
		IsSuccessful: cfg.IsSuccessful,
	}

	b.cb = gobreaker.NewCircuitBreaker(settings)
	return b
}

// Execute runs fn under the breaker. When the circuit rejects the call the
// returned error matches util.ErrCircuitOpen.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.metrics.recordRejected(b.name)
		return util.ErrCircuitOpen
	}
	return err
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state: "closed", "half-open" or "open".
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// safeIntToUint32 safely converts int to uint32.
func safeIntToUint32(n int) uint32 {
	if n < 0 {
		return 0
	}
	if n > int(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(n) //nolint:gosec // bounds checked above
}
