// Package retry provides the retry policy shared by all upstream calls:
// a bounded number of attempts with exponential backoff, and an escape
// hatch for errors that must not be retried (rate limits, 4xx).
package retry

import (
	"context"
	"errors"
	"time"
)

// Abort wraps an error to stop the retry loop immediately. The wrapped
// error is returned to the caller unchanged.
type Abort struct {
	Err error
}

func (a *Abort) Error() string {
	return a.Err.Error()
}

func (a *Abort) Unwrap() error {
	return a.Err
}

// Policy describes how many attempts to make and how long to wait
// between them. The delay doubles after every failed attempt.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultPolicy matches the upstream client defaults.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: time.Second}
}

// Do runs fn until it succeeds, the attempts are exhausted, fn returns an
// Abort, or ctx is cancelled. The last error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}

		err := fn()
		if err == nil {
			return nil
		}

		var abort *Abort
		if errors.As(err, &abort) {
			return abort.Err
		}
		lastErr = err
	}

	return lastErr
}
