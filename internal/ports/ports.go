package ports

import (
	"context"
	"time"

	"RepoSentinel/internal/domain"
)

// UpstreamClient talks to the repository-hosting API. All time-filtered
// calls are inclusive of both bounds at the record's authoritative
// timestamp, and all returned timestamps are normalized to UTC.
type UpstreamClient interface {
	RepoInfo(ctx context.Context, repo string) (domain.RepoInfo, error)
	Releases(ctx context.Context, repo string, start, end time.Time, limit int) ([]domain.Release, error)
	PullRequests(ctx context.Context, repo string, start, end time.Time, limit int) ([]domain.PullRequest, error)
	Issues(ctx context.Context, repo string, start, end time.Time, limit int) ([]domain.Issue, error)
}

// SubscriptionStore persists the whole subscription collection. Save must
// be atomic with respect to crashes (write-to-temp-then-rename).
type SubscriptionStore interface {
	Load() ([]domain.Subscription, error)
	Save(subs []domain.Subscription) error
	NextID() (int, error)
}

// SnapshotFilter narrows a snapshot listing.
type SnapshotFilter struct {
	SubscriptionID *int
	From           *time.Time
	To             *time.Time
}

// SnapshotEntry identifies one stored snapshot file.
type SnapshotEntry struct {
	Path           string
	SubscriptionID int
	Repository     string
	Day            time.Time
}

// SnapshotStore owns the immutable per-(subscription, day) capture files.
type SnapshotStore interface {
	Exists(subscriptionID int, day time.Time) bool
	Write(snap domain.Snapshot) (string, error)
	Read(path string) (domain.Snapshot, error)
	List(filter SnapshotFilter) ([]SnapshotEntry, error)
}

// Summarizer turns structured activity into prose for digest reports.
type Summarizer interface {
	SummarizeActivity(ctx context.Context, repo string, activity domain.ActivityBundle) (string, error)
}

// Notifier delivers a subject and body to a recipient list. Delivery is
// at-least-once; idempotent storage upstream makes duplicates harmless.
type Notifier interface {
	Send(ctx context.Context, recipients []string, subject, body string) error
}

// Scheduler drives the recurring batch job. Start is a no-op when the
// trigger is already registered.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
	Status() domain.SchedulerStatus
}

// TrendingSource pulls community-trending items appended to digests.
type TrendingSource interface {
	TopStories(ctx context.Context, limit int) ([]domain.Story, error)
}

// ProcessingHistory records per-day processing outcomes for audit. Record
// failures must be logged by callers, never treated as fatal.
type ProcessingHistory interface {
	Record(ctx context.Context, entry domain.HistoryEntry) error
}
