package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Default retry configuration constants.
const (
	// DefaultMaxAttempts is the default number of attempts, including the first.
	DefaultMaxAttempts = 3

	// DefaultInitialBackoff is the default initial backoff duration.
	DefaultInitialBackoff = 500 * time.Millisecond

	// DefaultMaxBackoff is the default maximum backoff duration.
	DefaultMaxBackoff = 10 * time.Second

	// DefaultJitterFactor is the default jitter factor (25%).
	DefaultJitterFactor = 0.25

	// MaxJitterFactor is the maximum allowed jitter factor.
	MaxJitterFactor = 1.0
)

// Config contains retry configuration parameters. Zero values take the
// defaults.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps every wait.
	MaxBackoff time.Duration

	// JitterFactor adds up to this fraction of random extra wait.
	JitterFactor float64
}

func (c Config) maxAttempts() int {
	if c.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return c.MaxAttempts
}

func (c Config) initialBackoff() time.Duration {
	if c.InitialBackoff <= 0 {
		return DefaultInitialBackoff
	}
	return c.InitialBackoff
}

func (c Config) maxBackoff() time.Duration {
	if c.MaxBackoff <= 0 {
		return DefaultMaxBackoff
	}
	return c.MaxBackoff
}

func (c Config) jitterFactor() float64 {
	switch {
	case c.JitterFactor < 0:
		return 0
	case c.JitterFactor == 0:
		return DefaultJitterFactor
	case c.JitterFactor > MaxJitterFactor:
		return MaxJitterFactor
	}
	return c.JitterFactor
}

// Func is an operation that can be retried.
type Func func(ctx context.Context) error

// OnRetryFunc is called before each wait.
type OnRetryFunc func(attempt int, err error, backoff time.Duration)

// Options contains optional retry behavior.
type Options struct {
	// OnRetry is called before each wait.
	OnRetry OnRetryFunc
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do runs fn until it succeeds, returns a permanent error, the attempts
// are exhausted, or ctx is done. It returns the last error from fn, or
// the context error if ctx ended first.
func Do(ctx context.Context, cfg Config, fn Func, opts *Options) error {
	attempts := cfg.maxAttempts()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if IsPermanent(lastErr) {
			return lastErr
		}

		if attempt == attempts-1 {
			break
		}

		backoff := CalculateBackoff(attempt, cfg.initialBackoff(), cfg.maxBackoff(), cfg.jitterFactor())
		if opts != nil && opts.OnRetry != nil {
			opts.OnRetry(attempt+1, lastErr, backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// CalculateBackoff returns initial*2^attempt plus jitter, capped at max.
func CalculateBackoff(attempt int, initial, max time.Duration, jitterFactor float64) time.Duration {
	backoff := float64(initial) * math.Pow(2, float64(attempt))

	//nolint:gosec // jitter for retry timing is not security-sensitive
	backoff += backoff * jitterFactor * rand.Float64()

	if backoff > float64(max) {
		backoff = float64(max)
	}
	return time.Duration(backoff)
}
