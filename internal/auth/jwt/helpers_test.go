package jwt

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	jwxjwt "github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

// signingKey is an RSA key pair published under a kid.
type signingKey struct {
	kid     string
	private *rsa.PrivateKey
}

func newSigningKey(t *testing.T, kid string) signingKey {
	t.Helper()

	private, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return signingKey{kid: kid, private: private}
}

func (k signingKey) publicJWK(t *testing.T, alg string) jwk.Key {
	t.Helper()

	key, err := jwk.FromRaw(&k.private.PublicKey)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, k.kid))
	if alg != "" {
		require.NoError(t, key.Set(jwk.AlgorithmKey, alg))
	}
	return key
}

func (k signingKey) sign(t *testing.T, alg jwa.SignatureAlgorithm, claims map[string]any) string {
	t.Helper()

	headers := jws.NewHeaders()
	require.NoError(t, headers.Set(jws.KeyIDKey, k.kid))
	return signToken(t, alg, k.private, headers, claims)
}

func signToken(t *testing.T, alg jwa.SignatureAlgorithm, key any, headers jws.Headers, claims map[string]any) string {
	t.Helper()

	tok := jwxjwt.New()
	for name, value := range claims {
		require.NoError(t, tok.Set(name, value))
	}

	var opts []jwxjwt.Option
	if headers != nil {
		opts = append(opts, jws.WithProtectedHeaders(headers))
	}
	signed, err := jwxjwt.Sign(tok, jwxjwt.WithKey(alg, key, opts...))
	require.NoError(t, err)
	return string(signed)
}

func standardClaims(sub string, exp time.Time) map[string]any {
	return map[string]any{
		jwxjwt.SubjectKey:    sub,
		jwxjwt.IssuerKey:     "https://idp.example.com",
		jwxjwt.AudienceKey:   "mcp-gateway",
		jwxjwt.ExpirationKey: exp,
	}
}

// jwksServer serves a mutable key set and counts fetches.
type jwksServer struct {
	*httptest.Server
	body    atomic.Value
	status  atomic.Int32
	fetches atomic.Int32
}

func newJWKSServer(t *testing.T, keys ...jwk.Key) *jwksServer {
	t.Helper()

	s := &jwksServer{}
	s.status.Store(http.StatusOK)
	s.publish(t, keys...)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(s.status.Load()))
		_, _ = w.Write(s.body.Load().([]byte))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) publish(t *testing.T, keys ...jwk.Key) {
	t.Helper()

	set := jwk.NewSet()
	for _, key := range keys {
		require.NoError(t, set.AddKey(key))
	}
	body, err := json.Marshal(set)
	require.NoError(t, err)
	s.body.Store(body)
}
