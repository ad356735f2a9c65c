// Package oauth implements the delegated authorization-code flow with PKCE
// (S256) and the provider that validates the resulting access tokens.
//
// # Flow
//
// Initiate stores a random verifier under a random state token bound to the
// caller's address and returns the identity provider's authorization URL.
// Complete consumes the state exactly once, rejects a different caller
// address, exchanges the code and verifier for a token, validates it and
// pre-seeds the token cache with the resulting identity.
//
// # Token validation
//
// Access tokens are validated through the introspection endpoint when one
// is configured, otherwise through the userinfo endpoint. Results are kept
// in a bounded TokenCache keyed by the SHA-256 of the token.
//
// # State stores
//
// MemoryStateStore keeps states in process and sweeps expired entries in
// the background. RedisStateStore shares states between replicas and relies
// on Redis expiry and GETDEL for single use.
package oauth
