package llm

import (
	"context"
	"fmt"
	"time"
)

// retryPolicy controls how transient failures are retried.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
}

// do calls fn until it succeeds, fails with a non-transient error, or
// maxRetries retries have been spent. The wait doubles after every attempt.
func (r retryPolicy) do(ctx context.Context, provider string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.baseDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context cancelled during retry: %w", provider, ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		// Only retry on transient errors.
		if !isTransientError(lastErr) {
			return lastErr
		}
	}

	if r.maxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("%s: all %d retries exhausted: %w", provider, r.maxRetries, lastErr)
}
