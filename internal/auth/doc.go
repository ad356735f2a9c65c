// Package auth holds the types shared by every identity provider: the
// authenticated Identity, the credential material extracted from a request,
// the scope to capability mapping and authentication metrics.
//
// # Architecture
//
// Each credential kind has its own subpackage:
//   - apikey: hashed static keys compared in constant time
//   - jwt: locally verified tokens, by shared secret or remote JWKS
//   - oauth: delegated tokens checked by introspection, plus the
//     authorization code flow with PKCE
//   - mtls: client certificate attributes forwarded by a trusted proxy
//   - resolver: tries the configured providers in a fixed order
//
// A provider answers util.ErrNotApplicable when the request carries no
// credential of its kind, so the resolver moves on to the next one. Any
// other error ends resolution.
//
// # Usage
//
//	r := resolver.New(resolver.Providers{
//	    APIKey: apikey.NewProvider(store),
//	    Token:  jwtProvider,
//	})
//	identity, err := r.Resolve(ctx, req)
package auth
