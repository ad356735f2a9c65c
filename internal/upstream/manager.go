package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vyrodovalexey/avamcp/internal/circuitbreaker"
	"github.com/vyrodovalexey/avamcp/internal/observability"
	"github.com/vyrodovalexey/avamcp/internal/router"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

// Call outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeTimeout     = "timeout"
)

type upstream struct {
	transport Transport
	breaker   *circuitbreaker.Breaker
	timeout   time.Duration
}

// Manager owns one transport and breaker per route.
type Manager struct {
	upstreams map[string]*upstream
	logger    observability.Logger
	metrics   *Metrics
}

// ManagerOption is a functional option for the manager.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	logger         observability.Logger
	metrics        *Metrics
	breakerConfig  circuitbreaker.Config
	breakerMetrics *circuitbreaker.Metrics
	httpClient     *http.Client
}

// WithLogger sets the logger for the manager and its transports.
func WithLogger(logger observability.Logger) ManagerOption {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics for the manager.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(o *managerOptions) {
		o.metrics = metrics
	}
}

// WithBreakerConfig sets the circuit breaker configuration for every route.
func WithBreakerConfig(cfg circuitbreaker.Config, metrics *circuitbreaker.Metrics) ManagerOption {
	return func(o *managerOptions) {
		o.breakerConfig = cfg
		o.breakerMetrics = metrics
	}
}

// WithSharedHTTPClient sets the client used by HTTP and SSE transports.
func WithSharedHTTPClient(client *http.Client) ManagerOption {
	return func(o *managerOptions) {
		o.httpClient = client
	}
}

// NewManager creates transports for routes.
func NewManager(routes []router.Route, opts ...ManagerOption) (*Manager, error) {
	o := managerOptions{
		logger:        observability.NopLogger(),
		breakerConfig: circuitbreaker.DefaultConfig(),
		httpClient:    &http.Client{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.breakerConfig.IsSuccessful == nil {
		o.breakerConfig.IsSuccessful = callerCanceled
	}

	m := &Manager{
		upstreams: make(map[string]*upstream, len(routes)),
		logger:    o.logger,
		metrics:   o.metrics,
	}
	for _, route := range routes {
		transport, err := newTransport(route, o)
		if err != nil {
			_ = m.Close()
			return nil, fmt.Errorf("route %s: %w", route.Name, err)
		}
		timeout := route.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		m.upstreams[route.Name] = &upstream{
			transport: transport,
			breaker: circuitbreaker.New("upstream:"+route.Name, o.breakerConfig,
				circuitbreaker.WithLogger(o.logger),
				circuitbreaker.WithMetrics(o.breakerMetrics),
			),
			timeout: timeout,
		}
	}
	return m, nil
}

func newTransport(route router.Route, o managerOptions) (Transport, error) {
	switch route.Transport {
	case router.TransportHTTP:
		return NewHTTPTransport(route.URL, WithHTTPClient(o.httpClient))
	case router.TransportSSE:
		return NewSSETransport(route.URL, WithHTTPClient(o.httpClient))
	case router.TransportStdio:
		return NewStdioTransport(route.Command, route.Args, WithStdioLogger(o.logger)), nil
	}
	return nil, fmt.Errorf("unsupported transport %q", route.Transport)
}

// callerCanceled keeps client disconnects from tripping the breaker.
func callerCanceled(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// Call forwards body to the route's upstream. Failures are returned as
// util.KindUpstreamUnavailable.
func (m *Manager) Call(ctx context.Context, route *router.Route, path string, body []byte) ([]byte, error) {
	u, ok := m.upstreams[route.Name]
	if !ok {
		return nil, util.NewRouteNotFoundError(route.PathPrefix)
	}

	start := time.Now()
	var reply []byte
	err := u.breaker.Execute(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, u.timeout)
		defer cancel()

		var err error
		reply, err = u.transport.Call(callCtx, path, body)
		return err
	})
	elapsed := time.Since(start)

	if err == nil {
		m.metrics.record(route.Name, OutcomeSuccess, elapsed)
		return reply, nil
	}

	outcome := OutcomeError
	switch {
	case errors.Is(err, util.ErrCircuitOpen):
		outcome = OutcomeCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		outcome = OutcomeTimeout
	}
	m.metrics.record(route.Name, outcome, elapsed)
	m.logger.WithContext(ctx).Warn("upstream call failed",
		observability.String("route", route.Name),
		observability.String("outcome", outcome),
		observability.Error(err),
	)
	return nil, util.WrapError(util.KindUpstreamUnavailable, "upstream call failed", err)
}

// BreakerState returns the breaker state for a route.
func (m *Manager) BreakerState(route string) string {
	if u, ok := m.upstreams[route]; ok {
		return u.breaker.State()
	}
	return ""
}

// Close releases every transport.
func (m *Manager) Close() error {
	var errs []error
	for name, u := range m.upstreams {
		if err := u.transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
