// Package mtls authenticates callers from client certificate attributes
// asserted in request headers by a TLS-terminating proxy.
//
// The provider performs no certificate cryptography. It trusts the
// X-Client-Cert-* headers only when the directly connected peer is one of
// the configured trusted proxies, which must verify the client certificate
// and overwrite these headers on every request.
//
//	proxies, err := mtls.ParseTrustedProxies([]string{"10.0.0.0/8"})
//	if err != nil {
//	    return err
//	}
//	provider := mtls.NewProvider(mtls.Config{
//	    TrustedProxies: proxies,
//	    IdentitySource: mtls.SourceCN,
//	})
package mtls
