// Package retry runs an operation with exponential backoff and jitter.
//
//	err := retry.Do(ctx, retry.Config{MaxAttempts: 3}, func(ctx context.Context) error {
//	    return ship(ctx, batch)
//	}, nil)
//
// Errors wrapped with Permanent stop the loop immediately.
package retry
