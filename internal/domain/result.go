package domain

import "time"

// DayStatus is the outcome of one decomposed day inside a processing run.
type DayStatus string

const (
	DaySucceeded DayStatus = "succeeded"
	DaySkipped   DayStatus = "skipped"
	DayFailed    DayStatus = "failed"
)

// DayOutcome records what happened to a single UTC calendar day.
type DayOutcome struct {
	Day          time.Time
	Status       DayStatus
	SnapshotPath string
	Reason       string
}

// ProcessResult aggregates one subscription's processing run.
type ProcessResult struct {
	SubscriptionID int
	Repository     string
	Reason         string
	Days           []DayOutcome
	Succeeded      int
	Skipped        int
	Failed         int
}

// OK reports whether the run produced or confirmed at least one snapshot.
func (r ProcessResult) OK() bool {
	return r.Succeeded+r.Skipped > 0
}

// Total returns the number of decomposed days in the run.
func (r ProcessResult) Total() int {
	return len(r.Days)
}

// SchedulerState enumerates the trigger lifecycle.
type SchedulerState string

const (
	SchedulerStopped SchedulerState = "stopped"
	SchedulerRunning SchedulerState = "running"
)

// SchedulerStatus reports the trigger state and the next planned fire time.
type SchedulerStatus struct {
	State   SchedulerState
	NextRun *time.Time
}

// HistoryEntry is one per-day processing outcome recorded for audit.
type HistoryEntry struct {
	SubscriptionID int
	Repository     string
	Day            time.Time
	Status         DayStatus
	SnapshotPath   string
	Reason         string
	RecordedAt     time.Time
}
