// Package circuitbreaker wraps github.com/sony/gobreaker for calls to
// identity providers and upstream servers.
package circuitbreaker

import (
	"time"
)

// Config holds configuration for a circuit breaker.
type Config struct {
	// MaxFailures is the number of consecutive failures before opening the circuit.
	MaxFailures int

	// Timeout is the duration the circuit stays open before transitioning to half-open.
	Timeout time.Duration

	// HalfOpenMax is the maximum number of requests allowed in half-open state.
	HalfOpenMax int

	// Interval is the cyclic period of the closed state after which counts
	// are cleared. Zero never clears them.
	Interval time.Duration

	// IsSuccessful reports whether err should count as a success. A nil
	// func counts every non-nil error as a failure.
	IsSuccessful func(err error) bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		HalfOpenMax: 1,
		Interval:    time.Minute,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxFailures < 1 {
		c.MaxFailures = def.MaxFailures
	}
	if c.Timeout < time.Millisecond {
		c.Timeout = def.Timeout
	}
	if c.HalfOpenMax < 1 {
		c.HalfOpenMax = def.HalfOpenMax
	}
	if c.Interval < 0 {
		c.Interval = 0
	}
	return c
}
