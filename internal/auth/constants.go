package auth

// HTTP header constants for authentication.
const (
	// HeaderAuthorization is the Authorization header name.
	HeaderAuthorization = "Authorization"

	// HeaderWWWAuthenticate is the WWW-Authenticate header name.
	HeaderWWWAuthenticate = "WWW-Authenticate"

	// HeaderXAPIKey is the X-Api-Key header name.
	HeaderXAPIKey = "X-Api-Key"
)

// Certificate attribute headers set by a TLS-terminating proxy.
const (
	HeaderClientCertCN       = "X-Client-Cert-CN"
	HeaderClientCertSANDNS   = "X-Client-Cert-SAN-DNS"
	HeaderClientCertSANEmail = "X-Client-Cert-SAN-Email"
	HeaderClientCertVerified = "X-Client-Cert-Verified"
)

// AuthSchemeBearer is the Bearer authentication scheme prefix.
const AuthSchemeBearer = "Bearer "

// WildcardCapability grants every capability.
const WildcardCapability = "*"
