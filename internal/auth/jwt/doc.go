// Package jwt authenticates bearer JSON Web Tokens.
//
// Two verification modes are supported:
//
//   - Local: an HMAC shared secret with the algorithm pinned to HS256. The
//     token's declared algorithm must equal the pinned one.
//   - Remote: keys fetched from a JWKS endpoint and cached in a KeySet. The
//     token must carry a kid, and its declared algorithm must equal the
//     algorithm published on the matching key. An unknown kid triggers one
//     forced refresh before the token is rejected.
//
// Both modes validate issuer, audience and expiry, then map the token's
// scopes to capabilities with an auth.ScopeMapper.
package jwt
