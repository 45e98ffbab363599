// Package retry repeats fallible calls against external collaborators.
package retry

import (
	"context"
	"errors"
	"time"
)

// Do calls fn up to maxTries times until it succeeds or ctx is done. It
// waits backoff, doubled after each failure, between attempts. If
// maxTries <= 0 it defaults to 1. Returns the last error if all attempts
// fail.
func Do[T any](ctx context.Context, maxTries int, backoff time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if maxTries <= 0 {
		maxTries = 1
	}
	var zero T
	var lastErr error
	for i := 0; i < maxTries; i++ {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err
		if i < maxTries-1 && backoff > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return zero, lastErr
}

// DoErr is Do for functions without a result.
func DoErr(ctx context.Context, maxTries int, backoff time.Duration, fn func(context.Context) error) error {
	_, err := Do(ctx, maxTries, backoff, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
