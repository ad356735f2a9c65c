package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avamcp/internal/circuitbreaker"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

func newTestClient(idp *fakeIdP, introspection bool) *Client {
	return NewClient(ClientConfig{
		ClientID:     "client-1",
		ClientSecret: "s3cret",
		RedirectURI:  "http://localhost:3000/oauth/callback",
		Scopes:       []string{"openid", "profile"},
		Endpoints:    idp.endpoints(introspection),
	}, nil, nil)
}

func TestClient_AuthorizationURL(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	c := newTestClient(idp, false)

	raw := c.AuthorizationURL("st4te", "ch4llenge")
	u, err := url.Parse(raw)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "/authorize", u.Path)
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "http://localhost:3000/oauth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "openid profile", q.Get("scope"))
	assert.Equal(t, "st4te", q.Get("state"))
	assert.Equal(t, "ch4llenge", q.Get("code_challenge"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
}

func TestClient_Exchange(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	c := newTestClient(idp, false)

	tok, err := c.Exchange(context.Background(), "code-1", "verifier-1")
	require.NoError(t, err)
	assert.Equal(t, "access-123", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.Equal(t, int64(3600), tok.ExpiresIn)
	assert.Equal(t, "refresh-456", tok.RefreshToken)

	form := idp.form()
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "code-1", form.Get("code"))
	assert.Equal(t, "verifier-1", form.Get("code_verifier"))
	assert.Equal(t, "client-1", form.Get("client_id"))
	assert.Equal(t, "s3cret", form.Get("client_secret"))
}

func TestClient_ExchangeFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    map[string]any
		wantErr error
	}{
		{name: "invalid grant", status: http.StatusBadRequest, body: map[string]any{"error": "invalid_grant"},
			wantErr: util.ErrInvalidCredential},
		{name: "server error", status: http.StatusBadGateway, body: map[string]any{},
			wantErr: util.ErrProviderUnavailable},
		{name: "no access token", status: http.StatusOK, body: map[string]any{"token_type": "Bearer"},
			wantErr: util.ErrInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			idp := newFakeIdP(t)
			idp.set(func(idp *fakeIdP) {
				idp.tokenStatus = tt.status
				idp.tokenBody = tt.body
			})

			_, err := newTestClient(idp, false).Exchange(context.Background(), "c", "v")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_Introspect(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	idp.set(func(idp *fakeIdP) {
		idp.introspection = map[string]any{
			"active":   true,
			"sub":      "alice",
			"username": "Alice",
			"scope":    "a b",
			"exp":      1_900_000_000,
		}
	})

	info, err := newTestClient(idp, true).Introspect(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, info.Active)
	assert.Equal(t, "alice", info.UserID)
	assert.Equal(t, "Alice", info.Name)
	assert.Equal(t, []string{"a", "b"}, info.Scopes)
	assert.Equal(t, int64(1_900_000_000), info.ExpiresAt)

	idp.set(func(idp *fakeIdP) {
		idp.introspection = map[string]any{"active": false, "sub": "alice"}
	})
	info, err = newTestClient(idp, true).Introspect(context.Background(), "tok")
	require.NoError(t, err)
	assert.False(t, info.Active)
	assert.Empty(t, info.UserID)
}

func TestClient_UserInfo(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	c := newTestClient(idp, false)

	info, err := c.UserInfo(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, info.Active)
	assert.Equal(t, "4242", info.UserID, "numeric id")
	assert.Equal(t, "octocat", info.Name)

	idp.set(func(idp *fakeIdP) { idp.userStatus = http.StatusUnauthorized })
	_, err = c.UserInfo(context.Background(), "tok")
	assert.ErrorIs(t, err, util.ErrExpiredCredential)
}

func TestClient_ConfiguredUserIDClaim(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	idp.set(func(idp *fakeIdP) {
		idp.userinfo = map[string]any{"sub": "s-1", "email": "a@example.com"}
	})
	c := NewClient(ClientConfig{Endpoints: idp.endpoints(false), UserIDClaim: "email"}, nil, nil)

	info, err := c.UserInfo(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", info.UserID)
}

func TestClient_ResponseTooLarge(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"sub":"` + strings.Repeat("x", MaxResponseBodySize) + `"}`))
	}))
	t.Cleanup(server.Close)

	c := NewClient(ClientConfig{Endpoints: Endpoints{UserInfoURL: server.URL}}, nil, nil)
	_, err := c.UserInfo(context.Background(), "tok")
	assert.ErrorIs(t, err, util.ErrProviderUnavailable)
}

func TestClient_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	c := NewClient(ClientConfig{Endpoints: Endpoints{UserInfoURL: server.URL}},
		&http.Client{Timeout: 50 * time.Millisecond}, nil)
	_, err := c.UserInfo(context.Background(), "tok")
	assert.ErrorIs(t, err, util.ErrProviderUnavailable)
}

func TestClient_BreakerOpens(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	idp.set(func(idp *fakeIdP) { idp.userStatus = http.StatusServiceUnavailable })

	breaker := circuitbreaker.New("idp", circuitbreaker.Config{
		MaxFailures:  2,
		Timeout:      time.Hour,
		IsSuccessful: ProviderAnswered,
	})
	c := NewClient(ClientConfig{Endpoints: idp.endpoints(false)}, nil, breaker)

	for i := 0; i < 2; i++ {
		_, err := c.UserInfo(context.Background(), "tok")
		assert.ErrorIs(t, err, util.ErrProviderUnavailable)
	}
	assert.Equal(t, int32(2), idp.userinfoCalls.Load())

	_, err := c.UserInfo(context.Background(), "tok")
	assert.ErrorIs(t, err, util.ErrProviderUnavailable)
	assert.ErrorIs(t, err, util.ErrCircuitOpen)
	assert.Equal(t, int32(2), idp.userinfoCalls.Load())
}

func TestClient_RejectionsDoNotTripBreaker(t *testing.T) {
	t.Parallel()

	idp := newFakeIdP(t)
	idp.set(func(idp *fakeIdP) { idp.userStatus = http.StatusUnauthorized })

	breaker := circuitbreaker.New("idp", circuitbreaker.Config{
		MaxFailures:  1,
		Timeout:      time.Hour,
		IsSuccessful: ProviderAnswered,
	})
	c := NewClient(ClientConfig{Endpoints: idp.endpoints(false)}, nil, breaker)

	for i := 0; i < 3; i++ {
		_, err := c.UserInfo(context.Background(), "tok")
		assert.ErrorIs(t, err, util.ErrExpiredCredential)
	}
	assert.Equal(t, "closed", breaker.State())
}
