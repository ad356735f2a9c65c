package audit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avamcp/internal/retry"
)

// collector is a fake SIEM endpoint.
type collector struct {
	*httptest.Server
	status   atomic.Int32
	requests atomic.Int32

	mu      sync.Mutex
	batches [][]Entry
	headers []http.Header
}

func newCollector(t *testing.T) *collector {
	t.Helper()

	c := &collector{}
	c.status.Store(http.StatusOK)
	c.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.requests.Add(1)
		body, _ := io.ReadAll(r.Body)
		var batch []Entry
		_ = json.Unmarshal(body, &batch)

		status := int(c.status.Load())
		if status == http.StatusOK {
			c.mu.Lock()
			c.batches = append(c.batches, batch)
			c.headers = append(c.headers, r.Header.Clone())
			c.mu.Unlock()
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(c.Close)
	return c
}

func (c *collector) delivered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.batches {
		n += len(b)
	}
	return n
}

func (c *collector) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func testConfig(url string) Config {
	cfg := DefaultConfig()
	cfg.CollectorURL = url
	cfg.Headers = map[string]string{"Authorization": "Bearer siem-token"}
	cfg.BatchSize = 3
	cfg.FlushInterval = time.Hour
	cfg.Timeout = time.Second
	cfg.Retry = retry.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	return cfg
}

func startPipeline(t *testing.T, p *Pipeline) (cancel func()) {
	t.Helper()

	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()
	return func() {
		stop()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("pipeline did not stop")
		}
	}
}

func TestPipeline_ShipsFullBatches(t *testing.T) {
	t.Parallel()

	c := newCollector(t)
	cfg := testConfig(c.URL)
	metrics := NewMetrics("test")
	p := NewPipeline(cfg, NewHTTPShipper(cfg, nil), WithMetrics(metrics))
	stop := startPipeline(t, p)
	defer stop()

	for i := 0; i < 6; i++ {
		require.True(t, p.Submit(NewEntry(EventToolCall).WithIdentity("dev1").WithCapability("read_file")))
	}

	assert.Eventually(t, func() bool { return c.batchCount() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 6, c.delivered())

	c.mu.Lock()
	assert.Equal(t, "Bearer siem-token", c.headers[0].Get("Authorization"))
	assert.Equal(t, "application/json", c.headers[0].Get("Content-Type"))
	assert.Equal(t, "dev1", c.batches[0][0].IdentityID)
	c.mu.Unlock()

	assert.Eventually(t, func() bool { return testutil.ToFloat64(metrics.shippedBatch) == 2 },
		time.Second, 5*time.Millisecond)
	assert.Equal(t, 6.0, testutil.ToFloat64(metrics.enqueued))
	assert.Equal(t, 6.0, testutil.ToFloat64(metrics.eventsTotal.WithLabelValues("tool_call")))
}

func TestPipeline_FlushInterval(t *testing.T) {
	t.Parallel()

	c := newCollector(t)
	cfg := testConfig(c.URL)
	cfg.BatchSize = 100
	cfg.FlushInterval = 20 * time.Millisecond
	p := NewPipeline(cfg, NewHTTPShipper(cfg, nil))
	stop := startPipeline(t, p)
	defer stop()

	p.Submit(NewEntry(EventAuthSuccess))

	assert.Eventually(t, func() bool { return c.delivered() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestPipeline_FailedBatchIsDroppedAfterRetries(t *testing.T) {
	t.Parallel()

	c := newCollector(t)
	c.status.Store(http.StatusInternalServerError)
	cfg := testConfig(c.URL)
	metrics := NewMetrics("test")
	p := NewPipeline(cfg, NewHTTPShipper(cfg, nil), WithMetrics(metrics))
	stop := startPipeline(t, p)
	defer stop()

	for i := 0; i < 3; i++ {
		assert.True(t, p.Submit(NewEntry(EventToolCall)))
	}

	assert.Eventually(t, func() bool { return testutil.ToFloat64(metrics.failedBatches) == 1 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(3), c.requests.Load())
	assert.Zero(t, testutil.ToFloat64(metrics.shippedBatch))

	// The pipeline keeps working after a dropped batch.
	c.status.Store(http.StatusOK)
	for i := 0; i < 3; i++ {
		p.Submit(NewEntry(EventToolCall))
	}
	assert.Eventually(t, func() bool { return c.delivered() == 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestPipeline_ClientErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	c := newCollector(t)
	c.status.Store(http.StatusUnauthorized)
	cfg := testConfig(c.URL)
	metrics := NewMetrics("test")
	p := NewPipeline(cfg, NewHTTPShipper(cfg, nil), WithMetrics(metrics))
	stop := startPipeline(t, p)
	defer stop()

	for i := 0; i < 3; i++ {
		p.Submit(NewEntry(EventToolCall))
	}

	assert.Eventually(t, func() bool { return testutil.ToFloat64(metrics.failedBatches) == 1 },
		2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), c.requests.Load())
}

func TestPipeline_SubmitNeverBlocks(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://127.0.0.1:1")
	cfg.QueueSize = 2
	metrics := NewMetrics("test")
	p := NewPipeline(cfg, NewHTTPShipper(cfg, nil), WithMetrics(metrics))

	// Nothing consumes the queue.
	assert.True(t, p.Submit(NewEntry(EventToolCall)))
	assert.True(t, p.Submit(NewEntry(EventToolCall)))

	start := time.Now()
	assert.False(t, p.Submit(NewEntry(EventToolCall)))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	assert.Equal(t, 2, p.Pending())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.dropped))
	assert.False(t, p.Submit(nil))
}

func TestPipeline_FlushesOnShutdown(t *testing.T) {
	t.Parallel()

	c := newCollector(t)
	cfg := testConfig(c.URL)
	cfg.BatchSize = 100
	p := NewPipeline(cfg, NewHTTPShipper(cfg, nil))
	stop := startPipeline(t, p)

	for i := 0; i < 5; i++ {
		p.Submit(NewEntry(EventToolCall))
	}
	assert.Eventually(t, func() bool { return p.Pending() == 0 }, time.Second, 5*time.Millisecond)

	stop()
	assert.Equal(t, 5, c.delivered())
	assert.Equal(t, 1, c.batchCount())
}

func TestPipeline_ShutdownFlushIsBounded(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(block)

	cfg := testConfig(slow.URL)
	cfg.BatchSize = 100
	cfg.ShutdownTimeout = 50 * time.Millisecond
	metrics := NewMetrics("test")
	p := NewPipeline(cfg, NewHTTPShipper(cfg, nil), WithMetrics(metrics))

	ctx, cancel := context.WithCancel(context.Background())
	p.Submit(NewEntry(EventToolCall))
	cancel()

	start := time.Now()
	require.NoError(t, p.Run(ctx))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.failedBatches))
}

type recordingShipper struct {
	mu      sync.Mutex
	batches int
}

func (s *recordingShipper) Ship(context.Context, []*Entry) error {
	s.mu.Lock()
	s.batches++
	s.mu.Unlock()
	return nil
}

func TestPipeline_CustomShipperAndNilShipper(t *testing.T) {
	t.Parallel()

	shipper := &recordingShipper{}
	cfg := DefaultConfig()
	cfg.BatchSize = 1
	p := NewPipeline(cfg, shipper)
	stop := startPipeline(t, p)
	p.Submit(NewEntry(EventError))
	assert.Eventually(t, func() bool {
		shipper.mu.Lock()
		defer shipper.mu.Unlock()
		return shipper.batches == 1
	}, time.Second, 5*time.Millisecond)
	stop()

	local := NewPipeline(Config{LogToLogger: true, BatchSize: 1}, nil)
	stopLocal := startPipeline(t, local)
	local.Submit(NewEntry(EventAuthFailure))
	assert.Eventually(t, func() bool { return local.Pending() == 0 }, time.Second, 5*time.Millisecond)
	stopLocal()
}
