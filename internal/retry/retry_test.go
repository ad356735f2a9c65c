package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		JitterFactor:   -1,
	}
}

func TestDo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		attempts  int
		failures  int
		permanent bool
		wantErr   bool
		wantCalls int
	}{
		{name: "first try", attempts: 3, failures: 0, wantCalls: 1},
		{name: "succeeds on last attempt", attempts: 3, failures: 2, wantCalls: 3},
		{name: "exhausted", attempts: 3, failures: 5, wantErr: true, wantCalls: 3},
		{name: "permanent stops", attempts: 3, failures: 5, permanent: true, wantErr: true, wantCalls: 1},
		{name: "default attempts", attempts: 0, failures: 5, wantErr: true, wantCalls: DefaultMaxAttempts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := Do(context.Background(), fastConfig(tt.attempts), func(context.Context) error {
				calls++
				if calls <= tt.failures {
					if tt.permanent {
						return Permanent(errBoom)
					}
					return errBoom
				}
				return nil
			}, nil)

			if tt.wantErr {
				assert.ErrorIs(t, err, errBoom)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestDo_OnRetry(t *testing.T) {
	t.Parallel()

	var attempts []int
	err := Do(context.Background(), fastConfig(3), func(context.Context) error {
		return errBoom
	}, &Options{OnRetry: func(attempt int, err error, backoff time.Duration) {
		attempts = append(attempts, attempt)
		assert.ErrorIs(t, err, errBoom)
		assert.Greater(t, backoff, time.Duration(0))
	}})

	require.Error(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cfg := Config{MaxAttempts: 3, InitialBackoff: time.Hour, MaxBackoff: time.Hour}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- Do(ctx, cfg, func(context.Context) error {
			calls++
			return errBoom
		}, nil)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancel")
	}
}

func TestDo_ContextAlreadyDone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := Do(ctx, fastConfig(3), func(context.Context) error {
		called = true
		return nil
	}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestCalculateBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{name: "first", attempt: 0, want: 100 * time.Millisecond},
		{name: "second", attempt: 1, want: 200 * time.Millisecond},
		{name: "third", attempt: 2, want: 400 * time.Millisecond},
		{name: "capped", attempt: 10, want: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CalculateBackoff(tt.attempt, 100*time.Millisecond, time.Second, 0))
		})
	}

	jittered := CalculateBackoff(0, 100*time.Millisecond, time.Second, 0.5)
	assert.GreaterOrEqual(t, jittered, 100*time.Millisecond)
	assert.LessOrEqual(t, jittered, 150*time.Millisecond)
}

func TestPermanent(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Permanent(nil))

	err := Permanent(errBoom)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "boom", err.Error())
	assert.False(t, IsPermanent(errBoom))
}
