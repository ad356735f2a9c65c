package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/avamcp/internal/auth"
	"github.com/vyrodovalexey/avamcp/internal/observability"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

// Result represents the result of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is allowed.
	Allowed bool

	// Limit is the bucket capacity.
	Limit int

	// Remaining is the number of whole tokens left after this request.
	Remaining int

	// RetryAfter is the time until one token is available (when not allowed).
	RetryAfter time.Duration
}

// bucket is one identity's token bucket. rate.Limiter serializes its own
// read-modify-write, so concurrent requests cannot overspend.
type bucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

// Limiter is a per-identity token bucket limiter.
type Limiter struct {
	cfg     Config
	logger  observability.Logger
	metrics *Metrics
	now     func() time.Time

	buckets sync.Map
	count   atomic.Int64
}

// Option is a functional option for the limiter.
type Option func(*Limiter)

// WithLogger sets the logger for the limiter.
func WithLogger(logger observability.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// WithMetrics sets the metrics for the limiter.
func WithMetrics(metrics *Metrics) Option {
	return func(l *Limiter) {
		l.metrics = metrics
	}
}

// New creates a limiter. cfg must be valid.
func New(cfg Config, opts ...Option) *Limiter {
	l := &Limiter{
		cfg:    cfg.withDefaults(),
		logger: observability.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow charges one token to identity's bucket.
func (l *Limiter) Allow(identity *auth.Identity) *Result {
	now := l.now()
	b := l.bucketFor(identity, now)
	b.lastSeen.Store(now.UnixNano())

	burst := b.limiter.Burst()
	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		l.metrics.recordDecision(false)
		return &Result{Limit: burst}
	}

	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		l.metrics.recordDecision(false)
		return &Result{Limit: burst, RetryAfter: delay}
	}

	l.metrics.recordDecision(true)
	remaining := int(b.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return &Result{Allowed: true, Limit: burst, Remaining: remaining}
}

// Check charges one token and returns a rate-limit error when the bucket
// is empty.
func (l *Limiter) Check(ctx context.Context, identity *auth.Identity) error {
	res := l.Allow(identity)
	if res.Allowed {
		return nil
	}
	l.logger.WithContext(ctx).Info("rate limit exceeded",
		observability.String("identity", identity.ID()),
		observability.Duration("retry_after", res.RetryAfter),
	)
	return util.NewRateLimitError(identity.ID(), res.RetryAfter)
}

func (l *Limiter) bucketFor(identity *auth.Identity, now time.Time) *bucket {
	key := identity.ID()
	if v, ok := l.buckets.Load(key); ok {
		return v.(*bucket)
	}

	limit, burst := rate.Limit(l.cfg.Rate), l.cfg.Burst
	if q := identity.Quota(); q != nil {
		limit, burst = rate.Limit(q.RatePerSecond), q.Burst
	}
	fresh := &bucket{limiter: rate.NewLimiter(limit, burst)}
	fresh.lastSeen.Store(now.UnixNano())

	v, loaded := l.buckets.LoadOrStore(key, fresh)
	if !loaded {
		l.metrics.setBuckets(int(l.count.Add(1)))
	}
	return v.(*bucket)
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	return int(l.count.Load())
}

// Sweep removes buckets untouched for longer than the idle TTL and returns
// how many were removed.
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-l.cfg.IdleTTL).UnixNano()
	removed := 0
	l.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		if b.lastSeen.Load() < cutoff && l.buckets.CompareAndDelete(key, b) {
			removed++
		}
		return true
	})
	if removed > 0 {
		l.metrics.setBuckets(int(l.count.Add(-int64(removed))))
		l.metrics.recordSwept(removed)
	}
	return removed
}

// Run sweeps idle buckets every sweep interval until ctx is cancelled.
func (l *Limiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				l.logger.Debug("swept idle rate buckets",
					observability.Int("removed", n),
					observability.Int("remaining", l.Len()),
				)
			}
		}
	}
}
