package mtls

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avamcp/internal/auth"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

func newTestProvider(t *testing.T, source IdentitySource) *Provider {
	t.Helper()

	proxies, err := ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)

	p, err := NewProvider(Config{
		TrustedProxies: proxies,
		IdentitySource: source,
		Allowed:        []string{"read_*"},
		Quota:          &auth.Quota{RatePerSecond: 2, Burst: 4},
	})
	require.NoError(t, err)
	return p
}

func certHeaders(cn, verified, dns, email string) http.Header {
	h := http.Header{}
	if cn != "" {
		h.Set(auth.HeaderClientCertCN, cn)
	}
	if verified != "" {
		h.Set(auth.HeaderClientCertVerified, verified)
	}
	if dns != "" {
		h.Set(auth.HeaderClientCertSANDNS, dns)
	}
	if email != "" {
		h.Set(auth.HeaderClientCertSANEmail, email)
	}
	return h
}

func TestNewProvider_InvalidSource(t *testing.T) {
	t.Parallel()

	_, err := NewProvider(Config{IdentitySource: "serial"})
	assert.Error(t, err)

	p, err := NewProvider(Config{})
	require.NoError(t, err)
	assert.Equal(t, SourceCN, p.cfg.IdentitySource)
}

func TestProvider_Authenticate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		source   IdentitySource
		remoteIP string
		header   http.Header
		wantID   string
		wantErr  error
	}{
		{
			name:     "cn identity",
			source:   SourceCN,
			remoteIP: "10.0.0.5",
			header:   certHeaders("svc-a", "SUCCESS", "a.internal", ""),
			wantID:   "svc-a",
		},
		{
			name:     "verified true lowercase",
			source:   SourceCN,
			remoteIP: "10.0.0.5",
			header:   certHeaders("svc-a", "true", "", ""),
			wantID:   "svc-a",
		},
		{
			name:     "san dns identity",
			source:   SourceSANDNS,
			remoteIP: "10.0.0.5",
			header:   certHeaders("svc-a", "success", " a.internal , b.internal", ""),
			wantID:   "a.internal",
		},
		{
			name:     "san email identity",
			source:   SourceSANEmail,
			remoteIP: "10.0.0.5",
			header:   certHeaders("svc-a", "SUCCESS", "", "ops@example.com"),
			wantID:   "ops@example.com",
		},
		{
			name:     "missing selected attribute",
			source:   SourceSANEmail,
			remoteIP: "10.0.0.5",
			header:   certHeaders("svc-a", "SUCCESS", "a.internal", ""),
			wantErr:  util.ErrInvalidCredential,
		},
		{
			name:     "not verified",
			source:   SourceCN,
			remoteIP: "10.0.0.5",
			header:   certHeaders("svc-a", "FAILED:self signed", "", ""),
			wantErr:  util.ErrInvalidCredential,
		},
		{
			name:     "untrusted peer",
			source:   SourceCN,
			remoteIP: "203.0.113.9",
			header:   certHeaders("svc-a", "SUCCESS", "", ""),
			wantErr:  util.ErrNotApplicable,
		},
		{
			name:     "no cn header",
			source:   SourceCN,
			remoteIP: "10.0.0.5",
			header:   certHeaders("", "SUCCESS", "a.internal", ""),
			wantErr:  util.ErrNotApplicable,
		},
		{
			name:     "no headers",
			source:   SourceCN,
			remoteIP: "10.0.0.5",
			header:   nil,
			wantErr:  util.ErrNotApplicable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := newTestProvider(t, tt.source)
			identity, err := p.Authenticate(context.Background(), &auth.Credentials{
				Header:   tt.header,
				RemoteIP: tt.remoteIP,
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, identity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, identity.ID())
			assert.Equal(t, auth.MethodCertificateHeader, identity.Method())
			assert.Equal(t, []string{"read_*"}, identity.AllowedPatterns())
			assert.Equal(t, &auth.Quota{RatePerSecond: 2, Burst: 4}, identity.Quota())
		})
	}
}

func TestProvider_EmptyAllowedIsUnrestricted(t *testing.T) {
	t.Parallel()

	proxies, err := ParseTrustedProxies([]string{"127.0.0.1"})
	require.NoError(t, err)
	p, err := NewProvider(Config{TrustedProxies: proxies})
	require.NoError(t, err)

	identity, err := p.Authenticate(context.Background(), &auth.Credentials{
		Header:   certHeaders("svc-b", "SUCCESS", "", ""),
		RemoteIP: "127.0.0.1",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"*"}, identity.AllowedPatterns())
	assert.Nil(t, identity.Quota())

	cn, ok := identity.Claim("cn")
	assert.True(t, ok)
	assert.Equal(t, "svc-b", cn)
}
