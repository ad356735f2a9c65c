// Package apikey authenticates callers presenting a static API key.
//
// Keys are never stored: the Store holds SHA-256 digests and Lookup scans
// every entry with a constant-time comparison, so the time taken does not
// depend on which entry matched or how many leading digest bytes agree.
//
//	store, err := apikey.NewStore([]apikey.Entry{{
//	    ID:      "dev1",
//	    Digest:  digest,
//	    Allowed: []string{"read_*"},
//	}})
//	provider := apikey.NewProvider(store, apikey.WithLogger(logger))
//	identity, err := provider.Authenticate(ctx, creds)
package apikey
