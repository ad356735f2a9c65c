package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/vyrodovalexey/avamcp/internal/audit"
	"github.com/vyrodovalexey/avamcp/internal/auth"
	"github.com/vyrodovalexey/avamcp/internal/auth/jwt"
	"github.com/vyrodovalexey/avamcp/internal/auth/oauth"
	"github.com/vyrodovalexey/avamcp/internal/auth/resolver"
	"github.com/vyrodovalexey/avamcp/internal/authz"
	"github.com/vyrodovalexey/avamcp/internal/circuitbreaker"
	"github.com/vyrodovalexey/avamcp/internal/config"
	"github.com/vyrodovalexey/avamcp/internal/observability"
	"github.com/vyrodovalexey/avamcp/internal/ratelimit"
	"github.com/vyrodovalexey/avamcp/internal/retry"
	"github.com/vyrodovalexey/avamcp/internal/router"
	"github.com/vyrodovalexey/avamcp/internal/upstream"
)

// MetricsNamespace prefixes every metric the gateway exposes.
const MetricsNamespace = "avamcp"

// State represents the gateway state.
type State int32

const (
	// StateStopped indicates the gateway is stopped.
	StateStopped State = iota
	// StateStarting indicates the gateway is starting.
	StateStarting
	// StateRunning indicates the gateway is running.
	StateRunning
	// StateStopping indicates the gateway is stopping.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

type metrics struct {
	http      *observability.Metrics
	auth      *auth.Metrics
	authz     *authz.Metrics
	ratelimit *ratelimit.Metrics
	router    *router.Metrics
	breaker   *circuitbreaker.Metrics
	upstream  *upstream.Metrics
	audit     *audit.Metrics
}

func newMetrics(namespace string) *metrics {
	return &metrics{
		http:      observability.NewMetrics(namespace),
		auth:      auth.NewMetrics(namespace),
		authz:     authz.NewMetrics(namespace),
		ratelimit: ratelimit.NewMetrics(namespace),
		router:    router.NewMetrics(namespace),
		breaker:   circuitbreaker.NewMetrics(namespace),
		upstream:  upstream.NewMetrics(namespace),
		audit:     audit.NewMetrics(namespace),
	}
}

func (m *metrics) gatherers() []prometheus.Gatherer {
	return []prometheus.Gatherer{
		m.auth.Registry(),
		m.authz.Registry(),
		m.ratelimit.Registry(),
		m.router.Registry(),
		m.breaker.Registry(),
		m.upstream.Registry(),
		m.audit.Registry(),
	}
}

// Gateway is one running instance built from an immutable configuration
// snapshot. It owns every cache and background task of that instance.
type Gateway struct {
	cfg     *config.Config
	logger  observability.Logger
	tracer  *observability.Tracer
	version string
	metrics *metrics

	resolver  *resolver.Resolver
	authz     *authz.Engine
	limiter   *ratelimit.Limiter
	router    *router.Router
	upstreams *upstream.Manager
	audit     *audit.Pipeline

	oauth       *oauth.Provider
	keySet      *jwt.KeySet
	stateStore  *oauth.MemoryStateStore
	redisClient redis.Cmdable
	closers     []func() error
	releaseOnce sync.Once
	releaseErr  error

	gatherers []prometheus.Gatherer
	engine    *gin.Engine
	listener  *Listener
	state     atomic.Int32
	startTime time.Time
	mu        sync.Mutex
	cancel    context.CancelFunc
	tasks     *errgroup.Group
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithLogger sets the logger for the gateway and every component it builds.
func WithLogger(logger observability.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(tracer *observability.Tracer) Option {
	return func(g *Gateway) {
		g.tracer = tracer
	}
}

// WithVersion sets the version reported by /health and build_info.
func WithVersion(version string) Option {
	return func(g *Gateway) {
		g.version = version
	}
}

// WithRedisClient sets the client for a redis flow-state store instead of
// dialing the configured address. The gateway does not close it.
func WithRedisClient(client redis.Cmdable) Option {
	return func(g *Gateway) {
		g.redisClient = client
	}
}

// WithGatherer adds metrics owned outside the gateway to its /metrics
// endpoint.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(g *Gateway) {
		g.gatherers = append(g.gatherers, gatherer)
	}
}

// New builds a gateway from cfg. cfg must already be validated; it is
// never modified afterwards.
func New(cfg *config.Config, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}

	g := &Gateway{
		cfg:     cfg,
		logger:  observability.NopLogger(),
		version: "dev",
		metrics: newMetrics(MetricsNamespace),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.state.Store(int32(StateStopped))
	g.metrics.http.SetBuildInfo(g.version)

	if err := g.build(); err != nil {
		_ = g.release()
		return nil, err
	}
	g.engine = g.newEngine()
	return g, nil
}

func (g *Gateway) build() error {
	providers, err := g.buildProviders()
	if err != nil {
		return err
	}
	g.resolver = resolver.New(providers,
		resolver.WithLogger(g.logger),
		resolver.WithMetrics(g.metrics.auth),
	)

	g.authz = authz.NewEngine(authz.WithLogger(g.logger), authz.WithMetrics(g.metrics.authz))

	rl := g.cfg.RateLimit
	g.limiter = ratelimit.New(ratelimit.Config{
		Rate:          rl.RequestsPerSecond,
		Burst:         rl.Burst,
		IdleTTL:       rl.IdleTTL.Duration(),
		SweepInterval: rl.SweepInterval.Duration(),
	}, ratelimit.WithLogger(g.logger), ratelimit.WithMetrics(g.metrics.ratelimit))

	routes := buildRoutes(g.cfg.Routes)
	routerOpts := []router.Option{router.WithMetrics(g.metrics.router)}
	if g.cfg.DefaultRoute != "" {
		routerOpts = append(routerOpts, router.WithDefault(g.cfg.DefaultRoute))
	}
	if g.router, err = router.New(routes, routerOpts...); err != nil {
		return fmt.Errorf("routes: %w", err)
	}

	cb := g.cfg.CircuitBreaker
	g.upstreams, err = upstream.NewManager(routes,
		upstream.WithLogger(g.logger),
		upstream.WithMetrics(g.metrics.upstream),
		upstream.WithBreakerConfig(circuitbreaker.Config{
			MaxFailures: cb.MaxFailures,
			Timeout:     cb.Timeout.Duration(),
			HalfOpenMax: cb.HalfOpenMax,
		}, g.metrics.breaker),
	)
	if err != nil {
		return fmt.Errorf("upstreams: %w", err)
	}

	a := g.cfg.Audit
	auditCfg := audit.Config{
		CollectorURL:    a.CollectorURL,
		Headers:         a.Headers,
		QueueSize:       a.QueueSize,
		BatchSize:       a.BatchSize,
		FlushInterval:   a.FlushInterval.Duration(),
		Timeout:         a.Timeout.Duration(),
		ShutdownTimeout: a.ShutdownTimeout.Duration(),
		LogToLogger:     a.LogToLogger,
		Retry:           retry.Config{MaxAttempts: a.MaxAttempts},
	}
	var shipper audit.Shipper
	if auditCfg.ExportEnabled() {
		shipper = audit.NewHTTPShipper(auditCfg, nil)
	}
	g.audit = audit.NewPipeline(auditCfg, shipper,
		audit.WithLogger(g.logger),
		audit.WithMetrics(g.metrics.audit),
	)
	return nil
}

// Start launches the background tasks and the HTTP listener.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrGatewayNotStopped
	}

	g.logger.Info("starting gateway",
		observability.String("listen", g.cfg.Server.Listen),
		observability.Int("routes", g.router.Len()),
	)

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	tasks, taskCtx := errgroup.WithContext(taskCtx)
	tasks.Go(func() error { return g.audit.Run(taskCtx) })
	tasks.Go(func() error { return g.limiter.Run(taskCtx) })
	if g.keySet != nil {
		tasks.Go(func() error { return g.keySet.Run(taskCtx) })
	}
	if g.stateStore != nil {
		tasks.Go(func() error { return g.stateStore.Run(taskCtx, oauth.DefaultSweepInterval) })
	}

	listener := NewListener(g.cfg.Server, g.engine, WithListenerLogger(g.logger))
	if err := listener.Start(ctx); err != nil {
		cancel()
		_ = tasks.Wait()
		g.state.Store(int32(StateStopped))
		return fmt.Errorf("failed to start listener: %w", err)
	}

	g.mu.Lock()
	g.listener = listener
	g.cancel = cancel
	g.tasks = tasks
	g.startTime = time.Now()
	g.mu.Unlock()
	g.state.Store(int32(StateRunning))

	g.logger.Info("gateway started",
		observability.String("address", listener.Addr()),
		observability.Strings("auth_methods", methodNames(g.resolver.Methods())),
	)
	return nil
}

// Stop drains in-flight requests, cancels the background tasks, waits for
// the final audit flush and releases upstream connections. Without a
// deadline on ctx the configured shutdown timeout applies.
func (g *Gateway) Stop(ctx context.Context) error {
	if !g.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return ErrGatewayNotRunning
	}

	g.logger.Info("stopping gateway")

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
	}

	g.mu.Lock()
	listener, cancel, tasks := g.listener, g.cancel, g.tasks
	g.mu.Unlock()

	var errs []error
	if err := listener.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	cancel()
	if err := tasks.Wait(); err != nil {
		errs = append(errs, fmt.Errorf("background task: %w", err))
	}
	if err := g.release(); err != nil {
		errs = append(errs, err)
	}

	g.state.Store(int32(StateStopped))
	g.logger.Info("gateway stopped")
	return errors.Join(errs...)
}

// release closes upstream transports and owned clients. Only the first
// call does any work.
func (g *Gateway) release() error {
	g.releaseOnce.Do(func() {
		var errs []error
		if g.upstreams != nil {
			if err := g.upstreams.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close upstreams: %w", err))
			}
		}
		for _, closeFn := range g.closers {
			if err := closeFn(); err != nil {
				errs = append(errs, err)
			}
		}
		g.closers = nil
		g.releaseErr = errors.Join(errs...)
	})
	return g.releaseErr
}

// Discard releases the resources of a gateway that is not running, such as
// one built for a reload that was then abandoned.
func (g *Gateway) Discard() error {
	if g.State() != StateStopped {
		return ErrGatewayNotStopped
	}
	return g.release()
}

// State returns the current gateway state.
func (g *Gateway) State() State {
	return State(g.state.Load())
}

// IsRunning returns true if the gateway is running.
func (g *Gateway) IsRunning() bool {
	return g.State() == StateRunning
}

// Uptime returns the time since Start.
func (g *Gateway) Uptime() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.startTime.IsZero() {
		return 0
	}
	return time.Since(g.startTime)
}

// Config returns the snapshot the gateway was built from.
func (g *Gateway) Config() *config.Config {
	return g.cfg
}

// Handler returns the HTTP handler serving every gateway endpoint.
func (g *Gateway) Handler() http.Handler {
	return g.engine
}

// Addr returns the bound listener address, or "" when not running.
func (g *Gateway) Addr() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listener == nil {
		return ""
	}
	return g.listener.Addr()
}

func methodNames(methods []auth.Method) []string {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}
	return names
}
