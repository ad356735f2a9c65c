package audit

import (
	"errors"
	"fmt"
	"time"

	"github.com/vyrodovalexey/avamcp/internal/retry"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

// Defaults for the pipeline.
const (
	DefaultQueueSize       = 10000
	DefaultBatchSize       = 100
	DefaultFlushInterval   = 30 * time.Second
	DefaultTimeout         = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultMaxAttempts     = 3
)

// Config configures the audit pipeline.
type Config struct {
	// CollectorURL is where batches are shipped. Empty disables export.
	CollectorURL string

	// Headers are added to every shipment, typically for collector auth.
	Headers map[string]string

	// QueueSize bounds the submission queue.
	QueueSize int

	// BatchSize is the number of entries that triggers a shipment.
	BatchSize int

	// FlushInterval ships a partial batch after this long.
	FlushInterval time.Duration

	// Timeout bounds a single shipment attempt.
	Timeout time.Duration

	// ShutdownTimeout bounds the final flush.
	ShutdownTimeout time.Duration

	// LogToLogger also writes each entry to the process logger.
	LogToLogger bool

	// Retry controls shipment retries.
	Retry retry.Config
}

// DefaultConfig returns a Config with default values and export disabled.
func DefaultConfig() Config {
	return Config{
		QueueSize:       DefaultQueueSize,
		BatchSize:       DefaultBatchSize,
		FlushInterval:   DefaultFlushInterval,
		Timeout:         DefaultTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		Retry:           retry.Config{MaxAttempts: DefaultMaxAttempts},
	}
}

// ExportEnabled reports whether batches are shipped to a collector.
func (c Config) ExportEnabled() bool {
	return c.CollectorURL != ""
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ExportEnabled() {
		if err := util.ValidateURL(c.CollectorURL); err != nil {
			return fmt.Errorf("collector url: %w", err)
		}
		if c.BatchSize < 1 {
			return errors.New("batch size must be at least 1")
		}
	}
	for name := range c.Headers {
		if err := util.ValidateHeaderName(name); err != nil {
			return err
		}
	}
	if c.QueueSize < 0 || c.FlushInterval < 0 || c.Timeout < 0 || c.ShutdownTimeout < 0 {
		return errors.New("queue size and durations must not be negative")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.QueueSize == 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.BatchSize < 1 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	return c
}
