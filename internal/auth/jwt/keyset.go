package jwt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/sync/singleflight"

	"github.com/vyrodovalexey/avamcp/internal/observability"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

// Key set defaults.
const (
	DefaultCacheTTL           = time.Hour
	DefaultFetchTimeout       = 10 * time.Second
	DefaultMinRefreshInterval = 10 * time.Second
	maxJWKSBodySize           = 1 << 20
)

// ErrKeyNotFound is returned when no usable key carries the requested kid.
var ErrKeyNotFound = errors.New("signing key not found")

// KeySet caches the verification keys published at a JWKS URL. Keys
// lacking a kid or alg, or whose alg is not allowed, are ignored.
type KeySet struct {
	url                string
	client             *http.Client
	ttl                time.Duration
	minRefreshInterval time.Duration
	allowedAlgs        []string
	logger             observability.Logger
	now                func() time.Time

	group singleflight.Group

	mu          sync.RWMutex
	keys        map[string]jwk.Key
	fetchedAt   time.Time
	lastForced  time.Time
	everFetched bool
}

// KeySetOption is a functional option for the key set.
type KeySetOption func(*KeySet)

// WithHTTPClient sets the HTTP client used to fetch keys.
func WithHTTPClient(client *http.Client) KeySetOption {
	return func(k *KeySet) {
		k.client = client
	}
}

// WithCacheTTL sets how long fetched keys are considered fresh.
func WithCacheTTL(ttl time.Duration) KeySetOption {
	return func(k *KeySet) {
		if ttl > 0 {
			k.ttl = ttl
		}
	}
}

// WithMinRefreshInterval bounds how often an unknown kid may force a fetch.
func WithMinRefreshInterval(d time.Duration) KeySetOption {
	return func(k *KeySet) {
		k.minRefreshInterval = d
	}
}

// WithAllowedAlgorithms restricts accepted key algorithms.
func WithAllowedAlgorithms(algs ...string) KeySetOption {
	return func(k *KeySet) {
		if len(algs) > 0 {
			k.allowedAlgs = slices.Clone(algs)
		}
	}
}

// WithKeySetLogger sets the logger for the key set.
func WithKeySetLogger(logger observability.Logger) KeySetOption {
	return func(k *KeySet) {
		k.logger = logger
	}
}

// NewKeySet creates a key set for url. No fetch happens until the first
// lookup or Refresh.
func NewKeySet(url string, opts ...KeySetOption) *KeySet {
	k := &KeySet{
		url:                url,
		client:             &http.Client{Timeout: DefaultFetchTimeout},
		ttl:                DefaultCacheTTL,
		minRefreshInterval: DefaultMinRefreshInterval,
		allowedAlgs:        []string{"RS256", "ES256"},
		logger:             observability.NopLogger(),
		now:                time.Now,
		keys:               make(map[string]jwk.Key),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// AllowsAlgorithm reports whether alg is accepted by this key set.
func (k *KeySet) AllowsAlgorithm(alg string) bool {
	return slices.Contains(k.allowedAlgs, alg)
}

// Key returns the key for kid. Stale keys are refreshed first; if kid is
// still unknown the set is refreshed once more, subject to the minimum
// refresh interval.
func (k *KeySet) Key(ctx context.Context, kid string) (jwk.Key, error) {
	refreshed := false
	if k.stale() {
		if err := k.refreshStale(ctx); err != nil {
			return nil, err
		}
		refreshed = true
	}

	if key, ok := k.lookup(kid); ok {
		return key, nil
	}

	if refreshed || !k.allowForcedRefresh() {
		return nil, ErrKeyNotFound
	}

	k.logger.WithContext(ctx).Debug("unknown key id, refreshing key set", observability.String("kid", kid))
	if err := k.Refresh(ctx); err != nil {
		return nil, err
	}

	if key, ok := k.lookup(kid); ok {
		return key, nil
	}
	return nil, ErrKeyNotFound
}

// refreshStale refreshes expired keys. A failed fetch is retried once; if
// it still fails, previously fetched keys keep serving.
func (k *KeySet) refreshStale(ctx context.Context) error {
	err := k.Refresh(ctx)
	if err == nil {
		return nil
	}
	if err = k.Refresh(ctx); err == nil {
		return nil
	}

	k.mu.RLock()
	haveKeys := k.everFetched
	k.mu.RUnlock()

	if haveKeys {
		k.logger.WithContext(ctx).Warn("key set refresh failed, serving cached keys",
			observability.Error(err))
		return nil
	}
	return err
}

// Refresh fetches the key set now. Concurrent calls share one fetch.
func (k *KeySet) Refresh(ctx context.Context) error {
	_, err, _ := k.group.Do("refresh", func() (any, error) {
		return nil, k.fetch(ctx)
	})
	return err
}

// Run refreshes keys in the background at 75% of the cache TTL until ctx
// is cancelled.
func (k *KeySet) Run(ctx context.Context) error {
	interval := k.ttl * 3 / 4
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := k.Refresh(ctx); err != nil && ctx.Err() == nil {
				k.logger.Warn("background key set refresh failed",
					observability.String("url", k.url),
					observability.Error(err),
				)
			}
		}
	}
}

// Len returns the number of cached keys.
func (k *KeySet) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}

func (k *KeySet) stale() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return !k.everFetched || k.now().Sub(k.fetchedAt) > k.ttl
}

func (k *KeySet) lookup(kid string) (jwk.Key, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[kid]
	return key, ok
}

func (k *KeySet) allowForcedRefresh() bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	if !k.lastForced.IsZero() && now.Sub(k.lastForced) < k.minRefreshInterval {
		return false
	}
	k.lastForced = now
	return true
}

func (k *KeySet) fetch(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, http.NoBody)
	if err != nil {
		return util.WrapError(util.KindUpstreamIdentityProviderUnavailable, "build key set request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := k.client.Do(req)
	if err != nil {
		return util.WrapError(util.KindUpstreamIdentityProviderUnavailable, "fetch key set", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return util.NewError(util.KindUpstreamIdentityProviderUnavailable,
			fmt.Sprintf("key set endpoint returned status %d", resp.StatusCode))
	}

	body, err := util.ReadLimited(resp.Body, maxJWKSBodySize)
	if err != nil {
		return util.WrapError(util.KindUpstreamIdentityProviderUnavailable, "read key set", err)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return util.WrapError(util.KindUpstreamIdentityProviderUnavailable, "parse key set", err)
	}

	keys := make(map[string]jwk.Key, set.Len())
	for i := 0; i < set.Len(); i++ {
		key, ok := set.Key(i)
		if !ok {
			continue
		}
		kid := key.KeyID()
		alg := keyAlgorithm(key)
		if kid == "" || alg == "" || !k.AllowsAlgorithm(alg) {
			continue
		}
		keys[kid] = key
	}

	k.mu.Lock()
	k.keys = keys
	k.fetchedAt = k.now()
	k.everFetched = true
	k.mu.Unlock()

	k.logger.Debug("key set refreshed",
		observability.String("url", k.url),
		observability.Int("keys", len(keys)),
	)
	return nil
}

func keyAlgorithm(key jwk.Key) string {
	if alg := key.Algorithm(); alg != nil {
		return alg.String()
	}
	return ""
}
