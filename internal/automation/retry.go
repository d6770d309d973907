package automation

import (
	"context"
	"time"
)

// Backoff yields the sleep before retry attempt n (1-based).
type Backoff func(attempt int) time.Duration

// FixedBackoff sleeps the same duration between every attempt.
func FixedBackoff(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// LinearBackoff sleeps attempt*d before retry attempt n.
func LinearBackoff(d time.Duration) Backoff {
	return func(attempt int) time.Duration { return time.Duration(attempt) * d }
}

// Retry runs fn up to attempts times, sleeping per backoff between failures.
// retryable decides whether an error is worth another attempt; a nil
// predicate retries everything. Returns the last error after exhaustion.
func Retry(ctx context.Context, attempts int, backoff Backoff, retryable func(error) bool, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		last = fn()
		if last == nil {
			return nil
		}
		if retryable != nil && !retryable(last) {
			return last
		}
		if attempt == attempts {
			break
		}
		if backoff != nil {
			if d := backoff(attempt); d > 0 {
				select {
				case <-time.After(d):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return last
}
