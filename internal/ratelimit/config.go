package ratelimit

import (
	"errors"
	"time"
)

// Defaults for the limiter.
const (
	DefaultRate          = 100.0
	DefaultBurst         = 50
	DefaultIdleTTL       = time.Hour
	DefaultSweepInterval = 5 * time.Minute
)

// Config holds the default bucket shape and sweep settings.
type Config struct {
	// Rate is the refill rate in tokens per second.
	Rate float64

	// Burst is the bucket capacity.
	Burst int

	// IdleTTL is how long an untouched bucket survives.
	IdleTTL time.Duration

	// SweepInterval is how often idle buckets are removed.
	SweepInterval time.Duration
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Rate:          DefaultRate,
		Burst:         DefaultBurst,
		IdleTTL:       DefaultIdleTTL,
		SweepInterval: DefaultSweepInterval,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Rate <= 0 {
		return errors.New("rate must be positive")
	}
	if c.Burst < 1 {
		return errors.New("burst must be at least 1")
	}
	if c.IdleTTL < 0 || c.SweepInterval < 0 {
		return errors.New("idle ttl and sweep interval must not be negative")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.IdleTTL == 0 {
		c.IdleTTL = DefaultIdleTTL
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	return c
}
