package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"slices"
	"sync"
	"time"
)

// Token cache defaults.
const (
	DefaultTokenCacheSize = 500
	DefaultTokenCacheTTL  = 5 * time.Minute
)

// TokenInfo is the validated view of an access token.
type TokenInfo struct {
	Active    bool
	UserID    string
	Name      string
	Scopes    []string
	ExpiresAt int64
	Claims    map[string]any
}

type cachedToken struct {
	info       TokenInfo
	insertedAt time.Time
}

// TokenCache maps token digests to validation results. Entries expire after
// the TTL; once the bound is exceeded the earliest inserted are evicted.
type TokenCache struct {
	mu         sync.Mutex
	entries    map[string]cachedToken
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

// NewTokenCache creates a cache holding at most maxEntries results for ttl.
func NewTokenCache(maxEntries int, ttl time.Duration) *TokenCache {
	if maxEntries <= 0 {
		maxEntries = DefaultTokenCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultTokenCacheTTL
	}
	return &TokenCache{
		entries:    make(map[string]cachedToken),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// HashToken returns the cache key of token: its SHA-256, base64url
// without padding. Raw tokens are never stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Get returns the cached result for token.
func (c *TokenCache) Get(token string) (TokenInfo, bool) {
	key := HashToken(token)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return TokenInfo{}, false
	}
	if c.now().Sub(entry.insertedAt) >= c.ttl {
		delete(c.entries, key)
		return TokenInfo{}, false
	}
	return entry.info, true
}

// Put stores the result for token.
func (c *TokenCache) Put(token string, info TokenInfo) {
	key := HashToken(token)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cachedToken{info: info, insertedAt: c.now()}
	if len(c.entries) <= c.maxEntries {
		return
	}

	c.removeExpiredLocked()
	if len(c.entries) > c.maxEntries {
		c.evictOldestLocked(len(c.entries) - c.maxEntries)
	}
}

// Len returns the number of cached entries.
func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TokenCache) removeExpiredLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.Sub(entry.insertedAt) >= c.ttl {
			delete(c.entries, key)
		}
	}
}

func (c *TokenCache) evictOldestLocked(n int) {
	type aged struct {
		key        string
		insertedAt time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for key, entry := range c.entries {
		all = append(all, aged{key: key, insertedAt: entry.insertedAt})
	}
	slices.SortFunc(all, func(a, b aged) int {
		return a.insertedAt.Compare(b.insertedAt)
	})
	for _, a := range all[:n] {
		delete(c.entries, a.key)
	}
}
