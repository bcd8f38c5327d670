package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors surfaced synchronously to callers; none of them is retried.
var (
	ErrValidation            = errors.New("validation failed")
	ErrNotFound              = errors.New("subscription not found")
	ErrRepoNotFound          = errors.New("repository not found upstream")
	ErrDuplicateSubscription = errors.New("repository already subscribed")
	ErrInvalidRange          = errors.New("invalid time range")
	ErrStoreCorrupt          = errors.New("subscription store corrupt")
)

// FetchError reports an upstream call that failed after retry exhaustion.
// It is recorded per day and never aborts sibling work.
type FetchError struct {
	Repository string
	Endpoint   string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s for %s: %v", e.Endpoint, e.Repository, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// RateLimitError is the upstream rate-limit signal; it short-circuits
// retries for the call that hit it.
type RateLimitError struct {
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return "upstream rate limit exceeded"
	}
	return fmt.Sprintf("upstream rate limit exceeded, resets at %s", e.ResetAt.UTC().Format(time.RFC3339))
}
