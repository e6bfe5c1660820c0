package stategraph

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy controls RetryRun
type RetryPolicy struct {
	// MaxAttempts includes the first attempt; values below 1 mean 1
	MaxAttempts int
	// Backoff is the wait before the second attempt; it doubles after each retry
	Backoff time.Duration
	// MaxBackoff caps the wait; zero means no cap
	MaxBackoff time.Duration
	// Retryable decides whether err is worth another attempt.
	// Nil means DefaultRetryable.
	Retryable func(err error) bool
}

// DefaultRetryPolicy retries node failures twice, starting at 500ms
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 500 * time.Millisecond, MaxBackoff: 10 * time.Second}
}

// DefaultRetryable retries node execution failures other than panics.
// Routing errors, step limits and cancellation are deterministic or
// caller-driven and are never retried.
func DefaultRetryable(err error) bool {
	var pe *PanicError
	if errors.As(err, &pe) {
		return false
	}
	return errors.Is(err, ErrNodeExecution)
}

// RetryRun calls fn until it succeeds, returns a non-retryable error, or the
// policy's attempts run out. Every attempt is a whole new run from the
// initial state; fn receives the attempt number starting at 1. The last
// error is returned unchanged.
func RetryRun(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context, attempt int) (*Result, error)) (*Result, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := policy.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}

	wait := policy.Backoff
	for attempt := 1; ; attempt++ {
		res, err := fn(ctx, attempt)
		if err == nil || attempt >= attempts || !retryable(err) {
			return res, err
		}
		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return res, err
			case <-timer.C:
			}
			wait *= 2
			if policy.MaxBackoff > 0 && wait > policy.MaxBackoff {
				wait = policy.MaxBackoff
			}
		}
	}
}
