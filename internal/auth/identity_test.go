package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentity_CopiesInputs(t *testing.T) {
	t.Parallel()

	allowed := []string{"read_*"}
	quota := &Quota{RatePerSecond: 1, Burst: 5}
	claims := map[string]any{"team": "infra"}

	id := NewIdentity("dev1", MethodAPIKey, IdentityOptions{
		Allowed: allowed,
		Quota:   quota,
		Claims:  claims,
	})

	allowed[0] = "*"
	quota.Burst = 500
	claims["team"] = "other"

	assert.Equal(t, []string{"read_*"}, id.AllowedPatterns())
	assert.Equal(t, 5, id.Quota().Burst)
	team, ok := id.Claim("team")
	require.True(t, ok)
	assert.Equal(t, "infra", team)

	returned := id.AllowedPatterns()
	returned[0] = "write_*"
	assert.Equal(t, []string{"read_*"}, id.AllowedPatterns())
}

func TestNewIdentity_Defaults(t *testing.T) {
	t.Parallel()

	id := NewIdentity("svc", MethodToken, IdentityOptions{})

	assert.Equal(t, "svc", id.ID())
	assert.Equal(t, "svc", id.Name())
	assert.Equal(t, MethodToken, id.Method())
	assert.NotNil(t, id.AllowedPatterns())
	assert.Empty(t, id.AllowedPatterns())
	assert.Nil(t, id.Quota())
	_, ok := id.Claim("missing")
	assert.False(t, ok)
}

func TestAllowedOrUnrestricted(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"*"}, AllowedOrUnrestricted(nil))
	assert.Equal(t, []string{"*"}, AllowedOrUnrestricted([]string{}))
	assert.Equal(t, []string{"a"}, AllowedOrUnrestricted([]string{"a"}))
}

func TestIdentityContext(t *testing.T) {
	t.Parallel()

	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	id := NewIdentity("dev1", MethodDelegated, IdentityOptions{Name: "Dev One"})
	got, ok := IdentityFromContext(ContextWithIdentity(context.Background(), id))
	require.True(t, ok)
	assert.Equal(t, "Dev One", got.Name())
}
