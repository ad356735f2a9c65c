package mtls

import (
	"context"
	"fmt"
	"strings"

	"github.com/vyrodovalexey/avamcp/internal/auth"
	"github.com/vyrodovalexey/avamcp/internal/observability"
	"github.com/vyrodovalexey/avamcp/internal/util"
)

// IdentitySource selects the certificate attribute used as identity id.
type IdentitySource string

// Identity sources.
const (
	SourceCN       IdentitySource = "cn"
	SourceSANDNS   IdentitySource = "san_dns"
	SourceSANEmail IdentitySource = "san_email"
)

// Valid reports whether s is a known identity source.
func (s IdentitySource) Valid() bool {
	switch s {
	case SourceCN, SourceSANDNS, SourceSANEmail:
		return true
	default:
		return false
	}
}

// Config configures the certificate-header provider.
type Config struct {
	TrustedProxies TrustedProxies
	IdentitySource IdentitySource
	Allowed        []string
	Quota          *auth.Quota
}

// Provider builds identities from proxy-asserted certificate headers.
type Provider struct {
	cfg    Config
	logger observability.Logger
}

// Option is a functional option for the provider.
type Option func(*Provider)

// WithLogger sets the logger for the provider.
func WithLogger(logger observability.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider creates a certificate-header provider. An empty identity
// source defaults to SourceCN.
func NewProvider(cfg Config, opts ...Option) (*Provider, error) {
	if cfg.IdentitySource == "" {
		cfg.IdentitySource = SourceCN
	}
	if !cfg.IdentitySource.Valid() {
		return nil, fmt.Errorf("invalid identity source %q", cfg.IdentitySource)
	}

	p := &Provider{
		cfg:    cfg,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Authenticate reads the certificate headers. It is applicable only when the
// peer is a trusted proxy and the CN header is present.
func (p *Provider) Authenticate(ctx context.Context, creds *auth.Credentials) (*auth.Identity, error) {
	if creds.Header == nil || !p.cfg.TrustedProxies.Contains(creds.RemoteIP) {
		return nil, util.ErrNotApplicable
	}

	cn := strings.TrimSpace(creds.Header.Get(auth.HeaderClientCertCN))
	if cn == "" {
		return nil, util.ErrNotApplicable
	}

	if !verified(creds.Header.Get(auth.HeaderClientCertVerified)) {
		p.logger.WithContext(ctx).Debug("client certificate not verified by proxy",
			observability.String("cn", cn))
		return nil, util.NewError(util.KindInvalidCredential, "client certificate not verified")
	}

	dnsNames := splitList(creds.Header.Get(auth.HeaderClientCertSANDNS))
	emails := splitList(creds.Header.Get(auth.HeaderClientCertSANEmail))

	var id string
	switch p.cfg.IdentitySource {
	case SourceSANDNS:
		id = first(dnsNames)
	case SourceSANEmail:
		id = first(emails)
	default:
		id = cn
	}
	if id == "" {
		return nil, util.NewError(util.KindInvalidCredential,
			fmt.Sprintf("client certificate has no %s attribute", p.cfg.IdentitySource))
	}

	return auth.NewIdentity(id, auth.MethodCertificateHeader, auth.IdentityOptions{
		Name:    cn,
		Allowed: auth.AllowedOrUnrestricted(p.cfg.Allowed),
		Quota:   p.cfg.Quota,
		Claims: map[string]any{
			"cn":        cn,
			"san_dns":   dnsNames,
			"san_email": emails,
		},
	}), nil
}

func verified(v string) bool {
	v = strings.TrimSpace(v)
	return strings.EqualFold(v, "SUCCESS") || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
