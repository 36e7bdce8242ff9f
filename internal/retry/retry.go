// Package retry wraps fallible operations with bounded, jittered retries.
package retry

import (
	"context"
	"errors"
	"fmt"

	"github.com/oemdirect/catalog-scraper/internal/backoff"
)

// Do runs op up to maxAttempts times, sleeping a jittered exponential delay
// between attempts. The final failure is returned unchanged so callers can
// inspect typed errors. Context cancellation stops retrying immediately.
func Do[T any](ctx context.Context, maxAttempts int, policy backoff.Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := backoff.Wait(ctx, policy.Delay(attempt-1)); err != nil {
				return zero, lastErr
			}
		}
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
	}
	if lastErr == nil {
		return zero, fmt.Errorf("retry exhausted after %d attempts", maxAttempts)
	}
	return zero, lastErr
}
