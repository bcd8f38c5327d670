package domain

import (
	"fmt"
	"strings"
	"time"
)

// TimeRangeType selects how a subscription's processing window is derived.
type TimeRangeType string

const (
	// RangeDaily processes the previous UTC calendar day on each run.
	RangeDaily TimeRangeType = "daily"
	// RangeCustom processes the explicit [CustomStart, CustomEnd) window.
	RangeCustom TimeRangeType = "custom"
)

// Subscription binds a tracked repository to its recipients and window policy.
type Subscription struct {
	ID              int           `json:"id"`
	Repository      string        `json:"repository"`
	Subscribers     []string      `json:"subscribers"`
	CreatedAt       time.Time     `json:"created_at"`
	TimeRangeType   TimeRangeType `json:"time_range_type"`
	CustomStart     *time.Time    `json:"custom_start,omitempty"`
	CustomEnd       *time.Time    `json:"custom_end,omitempty"`
	Enabled         bool          `json:"enabled"`
	LastProcessedAt *time.Time    `json:"last_processed_at,omitempty"`
}

// SafeRepoName flattens owner/name into a filename-safe token.
func (s Subscription) SafeRepoName() string {
	return strings.ReplaceAll(s.Repository, "/", "_")
}

// Validate checks structural invariants enforced at creation time.
func (s Subscription) Validate() error {
	if s.Repository == "" || !strings.Contains(s.Repository, "/") {
		return fmt.Errorf("%w: repository must be owner/name, got %q", ErrValidation, s.Repository)
	}
	if len(s.Subscribers) == 0 {
		return fmt.Errorf("%w: at least one subscriber required", ErrValidation)
	}
	switch s.TimeRangeType {
	case RangeDaily:
	case RangeCustom:
		if s.CustomStart == nil || s.CustomEnd == nil {
			return fmt.Errorf("%w: custom range requires both start and end", ErrValidation)
		}
		if !s.CustomStart.Before(*s.CustomEnd) {
			return fmt.Errorf("%w: custom start %s is not before end %s",
				ErrValidation, s.CustomStart.Format(time.RFC3339), s.CustomEnd.Format(time.RFC3339))
		}
	default:
		return fmt.Errorf("%w: unknown time range type %q", ErrValidation, s.TimeRangeType)
	}
	return nil
}
