package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/avamcp/internal/observability"
)

// Flow state defaults.
const (
	DefaultStateTTL      = 10 * time.Minute
	DefaultSweepInterval = time.Minute
	DefaultRedisPrefix   = "avamcp:oauth:state:"
)

// FlowState is the server-side half of one pending authorization flow.
type FlowState struct {
	Verifier  string    `json:"verifier"`
	CreatedAt time.Time `json:"created_at"`
	ClientIP  string    `json:"client_ip"`
	ReturnTo  string    `json:"return_to,omitempty"`
}

// StateStore holds pending flow states. Take removes the state it returns,
// so each state can be completed at most once.
type StateStore interface {
	Put(ctx context.Context, state string, fs FlowState) error
	Take(ctx context.Context, state string) (FlowState, bool, error)
}

// Ensure the stores implement StateStore.
var (
	_ StateStore = (*MemoryStateStore)(nil)
	_ StateStore = (*RedisStateStore)(nil)
)

// MemoryStateStore is an in-process StateStore.
type MemoryStateStore struct {
	states sync.Map
	ttl    time.Duration
	now    func() time.Time
	logger observability.Logger
}

// MemoryStoreOption is a functional option for MemoryStateStore.
type MemoryStoreOption func(*MemoryStateStore)

// WithMemoryStoreLogger sets the logger for the store.
func WithMemoryStoreLogger(logger observability.Logger) MemoryStoreOption {
	return func(s *MemoryStateStore) {
		s.logger = logger
	}
}

// NewMemoryStateStore creates an in-process store whose entries expire
// after ttl.
func NewMemoryStateStore(ttl time.Duration, opts ...MemoryStoreOption) *MemoryStateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	s := &MemoryStateStore{
		ttl:    ttl,
		now:    time.Now,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put stores fs under state.
func (s *MemoryStateStore) Put(_ context.Context, state string, fs FlowState) error {
	s.states.Store(state, fs)
	return nil
}

// Take removes and returns the state. Expired states are reported absent.
func (s *MemoryStateStore) Take(_ context.Context, state string) (FlowState, bool, error) {
	v, ok := s.states.LoadAndDelete(state)
	if !ok {
		return FlowState{}, false, nil
	}
	fs := v.(FlowState)
	if s.expired(fs) {
		return FlowState{}, false, nil
	}
	return fs, true, nil
}

// Len returns the number of stored states, expired or not.
func (s *MemoryStateStore) Len() int {
	n := 0
	s.states.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Sweep removes expired states and returns how many were removed.
func (s *MemoryStateStore) Sweep() int {
	removed := 0
	s.states.Range(func(key, value any) bool {
		if s.expired(value.(FlowState)) {
			if s.states.CompareAndDelete(key, value) {
				removed++
			}
		}
		return true
	})
	return removed
}

// Run sweeps expired states every interval until ctx is cancelled.
func (s *MemoryStateStore) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				s.logger.Debug("expired flow states removed", observability.Int("removed", removed))
			}
		}
	}
}

func (s *MemoryStateStore) expired(fs FlowState) bool {
	return s.now().Sub(fs.CreatedAt) > s.ttl
}

// RedisStateStore shares flow states between gateway replicas.
type RedisStateStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStateStore creates a Redis-backed store. An empty prefix uses
// DefaultRedisPrefix.
func NewRedisStateStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStateStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &RedisStateStore{client: client, prefix: prefix, ttl: ttl}
}

// Put stores fs with the store TTL.
func (s *RedisStateStore) Put(ctx context.Context, state string, fs FlowState) error {
	data, err := json.Marshal(fs)
	if err != nil {
		return fmt.Errorf("marshal flow state: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+state, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store flow state: %w", err)
	}
	return nil
}

// Take atomically reads and deletes the state with GETDEL.
func (s *RedisStateStore) Take(ctx context.Context, state string) (FlowState, bool, error) {
	data, err := s.client.GetDel(ctx, s.prefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return FlowState{}, false, nil
	}
	if err != nil {
		return FlowState{}, false, fmt.Errorf("take flow state: %w", err)
	}

	var fs FlowState
	if err := json.Unmarshal(data, &fs); err != nil {
		return FlowState{}, false, fmt.Errorf("unmarshal flow state: %w", err)
	}
	if time.Since(fs.CreatedAt) > s.ttl {
		return FlowState{}, false, nil
	}
	return fs, true, nil
}
