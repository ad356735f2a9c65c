package audit

import (
	"context"
	"time"

	"github.com/vyrodovalexey/avamcp/internal/observability"
	"github.com/vyrodovalexey/avamcp/internal/retry"
)

// Pipeline queues entries and ships them in batches.
type Pipeline struct {
	cfg     Config
	shipper Shipper
	queue   chan *Entry
	logger  observability.Logger
	metrics *Metrics
}

// Option is a functional option for the pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for the pipeline.
func WithLogger(logger observability.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics for the pipeline.
func WithMetrics(metrics *Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = metrics
	}
}

// NewPipeline creates a pipeline. A nil shipper keeps entries local:
// they are only logged when LogToLogger is set.
func NewPipeline(cfg Config, shipper Shipper, opts ...Option) *Pipeline {
	cfg = cfg.withDefaults()
	p := &Pipeline{
		cfg:     cfg,
		shipper: shipper,
		queue:   make(chan *Entry, cfg.QueueSize),
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Submit queues entry without blocking. It returns false if the queue was
// full and the entry was dropped.
func (p *Pipeline) Submit(entry *Entry) bool {
	if entry == nil {
		return false
	}
	select {
	case p.queue <- entry:
		p.metrics.recordEnqueued(entry.EventType)
		return true
	default:
		p.metrics.recordDropped()
		return false
	}
}

// Pending returns the number of queued entries.
func (p *Pipeline) Pending() int {
	return len(p.queue)
}

// Run consumes the queue until ctx is cancelled, then flushes what is
// buffered within the shutdown timeout.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]*Entry, 0, p.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			p.drain(batch)
			return nil
		case entry := <-p.queue:
			p.logEntry(entry)
			batch = append(batch, entry)
			if len(batch) >= p.cfg.BatchSize {
				if !p.ship(ctx, batch) {
					p.drain(batch)
					return nil
				}
				batch = make([]*Entry, 0, p.cfg.BatchSize)
				ticker.Reset(p.cfg.FlushInterval)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				if !p.ship(ctx, batch) {
					p.drain(batch)
					return nil
				}
				batch = make([]*Entry, 0, p.cfg.BatchSize)
			}
		}
	}
}

// drain ships the current batch and whatever is still queued, best effort.
func (p *Pipeline) drain(batch []*Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.ShutdownTimeout)
	defer cancel()

	for {
		select {
		case entry := <-p.queue:
			p.logEntry(entry)
			batch = append(batch, entry)
			if len(batch) >= p.cfg.BatchSize {
				p.shipFinal(ctx, batch)
				batch = make([]*Entry, 0, p.cfg.BatchSize)
			}
		default:
			if len(batch) > 0 {
				p.shipFinal(ctx, batch)
			}
			return
		}
	}
}

// ship delivers batch, dropping it after the retries are exhausted. It
// returns false, leaving batch undelivered, only when ctx ended first.
func (p *Pipeline) ship(ctx context.Context, batch []*Entry) bool {
	if p.shipper == nil {
		return true
	}

	err := retry.Do(ctx, p.cfg.Retry, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
		return p.shipper.Ship(attemptCtx, batch)
	}, &retry.Options{
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			p.logger.Debug("audit shipment failed, retrying",
				observability.Int("attempt", attempt),
				observability.Duration("backoff", backoff),
				observability.Error(err),
			)
		},
	})
	if err != nil && ctx.Err() != nil && !retry.IsPermanent(err) {
		return false
	}
	if err != nil {
		p.metrics.recordFailed()
		p.logger.Error("audit batch dropped",
			observability.Int("entries", len(batch)),
			observability.Error(err),
		)
		return true
	}
	p.metrics.recordShipped(len(batch))
	return true
}

func (p *Pipeline) shipFinal(ctx context.Context, batch []*Entry) {
	if !p.ship(ctx, batch) {
		p.metrics.recordFailed()
		p.logger.Warn("audit batch dropped at shutdown",
			observability.Int("entries", len(batch)),
			observability.Error(ctx.Err()),
		)
	}
}

func (p *Pipeline) logEntry(e *Entry) {
	if !p.cfg.LogToLogger {
		return
	}
	p.logger.Info("audit",
		observability.String("id", e.ID),
		observability.String("event_type", string(e.EventType)),
		observability.String("identity", e.IdentityID),
		observability.String("method", e.Method),
		observability.String("tool", e.Capability),
		observability.Bool("success", e.Success),
		observability.String("message", e.Message),
		observability.Int64("duration_ms", e.DurationMS),
		observability.String("correlation_id", e.CorrelationID),
	)
}
