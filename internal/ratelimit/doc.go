// Package ratelimit enforces a per-identity token bucket.
//
// Each identity gets its own bucket, created lazily on first use with the
// identity's quota override or the configured default. Buckets idle for
// longer than the idle TTL are removed by a background sweep started with
// Run; the request path never sweeps.
package ratelimit
