package auth

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordAttempt(t *testing.T) {
	t.Parallel()

	m := NewMetrics("")
	m.RecordAttempt(MethodAPIKey, "success", time.Millisecond)
	m.RecordAttempt(MethodAPIKey, "invalid_credential", time.Millisecond)
	m.RecordAttempt(MethodAPIKey, "success", time.Millisecond)
	m.RecordCacheHit("oauth_token")
	m.RecordCacheMiss("oauth_token")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("api_key", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("api_key", "invalid_credential")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheHits.WithLabelValues("oauth_token")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheMisses.WithLabelValues("oauth_token")))
	assert.NotNil(t, m.Registry())
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.RecordAttempt(MethodToken, "success", 0)
	m.RecordCacheHit("x")
	m.RecordCacheMiss("x")
}
