package oauth

import (
	"strings"
)

// Well-known identity providers.
const (
	ProviderGitHub = "github"
	ProviderGoogle = "google"
	ProviderCustom = "custom"
)

// Endpoints are the identity provider URLs used by the flow.
type Endpoints struct {
	AuthorizationURL string
	TokenURL         string
	UserInfoURL      string
	IntrospectionURL string
}

var wellKnownEndpoints = map[string]Endpoints{
	ProviderGitHub: {
		AuthorizationURL: "https://github.com/login/oauth/authorize",
		TokenURL:         "https://github.com/login/oauth/access_token",
		UserInfoURL:      "https://api.github.com/user",
	},
	ProviderGoogle: {
		AuthorizationURL: "https://accounts.google.com/o/oauth2/v2/auth",
		TokenURL:         "https://oauth2.googleapis.com/token",
		UserInfoURL:      "https://openidconnect.googleapis.com/v1/userinfo",
		IntrospectionURL: "https://oauth2.googleapis.com/tokeninfo",
	},
}

// WellKnownEndpoints returns the built-in endpoints of provider.
func WellKnownEndpoints(provider string) (Endpoints, bool) {
	e, ok := wellKnownEndpoints[strings.ToLower(provider)]
	return e, ok
}

// ResolveEndpoints fills empty fields of overrides from the provider's
// well-known endpoints.
func ResolveEndpoints(provider string, overrides Endpoints) Endpoints {
	known, _ := WellKnownEndpoints(provider)
	resolved := overrides
	if resolved.AuthorizationURL == "" {
		resolved.AuthorizationURL = known.AuthorizationURL
	}
	if resolved.TokenURL == "" {
		resolved.TokenURL = known.TokenURL
	}
	if resolved.UserInfoURL == "" {
		resolved.UserInfoURL = known.UserInfoURL
	}
	if resolved.IntrospectionURL == "" {
		resolved.IntrospectionURL = known.IntrospectionURL
	}
	return resolved
}
