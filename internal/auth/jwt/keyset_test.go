package jwt

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avamcp/internal/util"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestKeySet_FiltersUnusableKeys(t *testing.T) {
	t.Parallel()

	good := newSigningKey(t, "good")
	noAlg := newSigningKey(t, "no-alg")
	badAlg := newSigningKey(t, "bad-alg")
	server := newJWKSServer(t,
		good.publicJWK(t, "RS256"),
		noAlg.publicJWK(t, ""),
		badAlg.publicJWK(t, "RS384"),
	)

	ks := NewKeySet(server.URL)
	require.NoError(t, ks.Refresh(context.Background()))
	assert.Equal(t, 1, ks.Len())

	key, err := ks.Key(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "good", key.KeyID())
}

func TestKeySet_AllowedAlgorithms(t *testing.T) {
	t.Parallel()

	ks := NewKeySet("http://127.0.0.1", WithAllowedAlgorithms("PS256"))
	assert.True(t, ks.AllowsAlgorithm("PS256"))
	assert.False(t, ks.AllowsAlgorithm("RS256"))

	defaults := NewKeySet("http://127.0.0.1")
	assert.True(t, defaults.AllowsAlgorithm("RS256"))
	assert.True(t, defaults.AllowsAlgorithm("ES256"))
	assert.False(t, defaults.AllowsAlgorithm("HS256"))
	assert.False(t, defaults.AllowsAlgorithm("none"))
}

func TestKeySet_ForcedRefreshIsRateLimited(t *testing.T) {
	t.Parallel()

	k1 := newSigningKey(t, "k1")
	server := newJWKSServer(t, k1.publicJWK(t, "RS256"))
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	ks := NewKeySet(server.URL)
	ks.now = clock.Now
	ctx := context.Background()

	_, err := ks.Key(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, int32(1), server.fetches.Load())

	// First miss forces one refresh.
	_, err = ks.Key(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, int32(2), server.fetches.Load())

	// Second miss inside the interval does not fetch.
	clock.Advance(5 * time.Second)
	_, err = ks.Key(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, int32(2), server.fetches.Load())

	clock.Advance(6 * time.Second)
	_, err = ks.Key(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.Equal(t, int32(3), server.fetches.Load())
}

func TestKeySet_StaleKeysRefreshed(t *testing.T) {
	t.Parallel()

	k1 := newSigningKey(t, "k1")
	server := newJWKSServer(t, k1.publicJWK(t, "RS256"))
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	ks := NewKeySet(server.URL, WithCacheTTL(time.Minute))
	ks.now = clock.Now
	ctx := context.Background()

	_, err := ks.Key(ctx, "k1")
	require.NoError(t, err)

	_, err = ks.Key(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), server.fetches.Load(), "fresh keys served from cache")

	clock.Advance(2 * time.Minute)
	_, err = ks.Key(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), server.fetches.Load())
}

func TestKeySet_StaleKeysServedWhenUpstreamFails(t *testing.T) {
	t.Parallel()

	k1 := newSigningKey(t, "k1")
	server := newJWKSServer(t, k1.publicJWK(t, "RS256"))
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	ks := NewKeySet(server.URL, WithCacheTTL(time.Minute))
	ks.now = clock.Now
	ctx := context.Background()

	_, err := ks.Key(ctx, "k1")
	require.NoError(t, err)

	server.status.Store(http.StatusInternalServerError)
	clock.Advance(2 * time.Minute)

	key, err := ks.Key(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "k1", key.KeyID())
	assert.Equal(t, int32(3), server.fetches.Load(), "initial fetch plus one retry")
}

func TestKeySet_FetchFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   []byte
	}{
		{name: "server error", status: http.StatusBadGateway, body: []byte(`{}`)},
		{name: "malformed body", status: http.StatusOK, body: []byte(`{not json`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newJWKSServer(t)
			server.status.Store(int32(tt.status))
			server.body.Store(tt.body)

			ks := NewKeySet(server.URL)
			_, err := ks.Key(context.Background(), "k1")
			require.Error(t, err)
			assert.ErrorIs(t, err, util.ErrProviderUnavailable)
		})
	}
}

func TestKeySet_UnreachableEndpoint(t *testing.T) {
	t.Parallel()

	ks := NewKeySet("http://127.0.0.1:1/jwks.json")
	err := ks.Refresh(context.Background())
	assert.ErrorIs(t, err, util.ErrProviderUnavailable)
}

func TestKeySet_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	k1 := newSigningKey(t, "k1")
	server := newJWKSServer(t, k1.publicJWK(t, "RS256"))
	ks := NewKeySet(server.URL, WithCacheTTL(40*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ks.Run(ctx) }()

	assert.Eventually(t, func() bool {
		return server.fetches.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 1, ks.Len())
}
