// Package retry provides a shared retry utility with exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Policy bounds a retry loop. A zero Timeout means attempts inherit the
// caller's context deadline unchanged.
type Policy struct {
	// Attempts is the maximum number of calls, including the first.
	Attempts int

	// BaseDelay is the initial backoff, doubled after each failed attempt.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Zero means uncapped.
	MaxDelay time.Duration

	// Timeout is the per-attempt deadline. An attempt that exceeds it counts
	// as one failed attempt, not a terminal failure.
	Timeout time.Duration
}

// PermanentError wraps an error that should not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so that Do will not retry it.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// Do calls fn up to p.Attempts times with exponential backoff and jitter.
// Each attempt runs under its own deadline when p.Timeout is set.
// It stops early if:
//   - fn returns nil (success)
//   - fn returns a *PermanentError (not retryable)
//   - ctx is cancelled
//
// onRetry, if non-nil, is invoked before each re-attempt (not the first call),
// letting callers count retries. The last error is returned after exhaustion.
func Do(ctx context.Context, p Policy, onRetry func(attempt int), fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	delay := p.BaseDelay

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && onRetry != nil {
			onRetry(attempt)
		}

		err = runAttempt(ctx, p.Timeout, fn)
		if err == nil {
			return nil
		}

		// Don't retry permanent errors.
		var pe *PermanentError
		if errors.As(err, &pe) {
			return pe.Err
		}

		// The caller going away ends the loop regardless of budget.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Don't sleep after the last attempt.
		if attempt == attempts-1 {
			break
		}

		// Exponential backoff with +-25% jitter.
		sleep := delay
		if jitter := delay / 4; jitter > 0 {
			sleep = delay - jitter + time.Duration(rand.Int64N(int64(2*jitter+1))) //nolint:gosec // jitter, not security
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleep):
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return err
}

func runAttempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}
