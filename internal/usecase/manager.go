package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"RepoSentinel/internal/domain"
	"RepoSentinel/internal/ports"
)

// ManagerDeps wires all driven adapters into the subscription manager.
type ManagerDeps struct {
	Client  ports.UpstreamClient
	Subs    ports.SubscriptionStore
	Snaps   ports.SnapshotStore
	History ports.ProcessingHistory
	Logger  *slog.Logger
}

// Manager owns the subscription collection and the per-day processing
// state machine. It is the only writer to both stores; every
// load/mutate/save sequence runs under a single mutex so a concurrent
// interactive mutation cannot lose an update against a scheduled run.
type Manager struct {
	client  ports.UpstreamClient
	subs    ports.SubscriptionStore
	snaps   ports.SnapshotStore
	history ports.ProcessingHistory
	log     *slog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewManager constructs the orchestration component.
func NewManager(deps ManagerDeps) *Manager {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		client:  deps.Client,
		subs:    deps.Subs,
		snaps:   deps.Snaps,
		history: deps.History,
		log:     log,
		now:     time.Now,
	}
}

// AddSubscription validates the repository upstream and persists a new
// subscription. A repository already subscribed, enabled or not, is
// rejected; merging recipients goes through AddSubscriber instead.
func (m *Manager) AddSubscription(ctx context.Context, repo string, subscribers []string, rangeType domain.TimeRangeType, customStart, customEnd *time.Time) (domain.Subscription, error) {
	sub := domain.Subscription{
		Repository:    repo,
		Subscribers:   subscribers,
		TimeRangeType: rangeType,
		CustomStart:   customStart,
		CustomEnd:     customEnd,
		Enabled:       true,
	}
	if err := sub.Validate(); err != nil {
		return domain.Subscription{}, err
	}

	if _, err := m.client.RepoInfo(ctx, repo); err != nil {
		if errors.Is(err, domain.ErrRepoNotFound) {
			return domain.Subscription{}, fmt.Errorf("%w: %s", domain.ErrRepoNotFound, repo)
		}
		return domain.Subscription{}, fmt.Errorf("validate %s upstream: %w", repo, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.subs.Load()
	if err != nil {
		return domain.Subscription{}, err
	}
	for _, existing := range all {
		if existing.Repository == repo {
			return domain.Subscription{}, fmt.Errorf("%w: %s (id %d)", domain.ErrDuplicateSubscription, repo, existing.ID)
		}
	}

	id, err := m.subs.NextID()
	if err != nil {
		return domain.Subscription{}, err
	}
	sub.ID = id
	sub.CreatedAt = m.now().UTC()

	all = append(all, sub)
	if err := m.subs.Save(all); err != nil {
		return domain.Subscription{}, err
	}

	m.log.Info("subscription added", "id", sub.ID, "repo", repo, "subscribers", len(subscribers))
	return sub, nil
}

// AddSubscriber merges one recipient into an existing subscription.
// Adding a recipient who is already subscribed is a no-op.
func (m *Manager) AddSubscriber(ctx context.Context, repo, subscriber string) (domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.subs.Load()
	if err != nil {
		return domain.Subscription{}, err
	}
	for i, sub := range all {
		if sub.Repository != repo {
			continue
		}
		for _, existing := range sub.Subscribers {
			if existing == subscriber {
				return sub, nil
			}
		}
		all[i].Subscribers = append(all[i].Subscribers, subscriber)
		if err := m.subs.Save(all); err != nil {
			return domain.Subscription{}, err
		}
		return all[i], nil
	}
	return domain.Subscription{}, fmt.Errorf("%w: repository %s", domain.ErrNotFound, repo)
}

// RemoveSubscriber drops one recipient; removing the last recipient
// deletes the whole subscription.
func (m *Manager) RemoveSubscriber(ctx context.Context, repo, subscriber string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.subs.Load()
	if err != nil {
		return err
	}
	for i, sub := range all {
		if sub.Repository != repo {
			continue
		}

		kept := make([]string, 0, len(sub.Subscribers))
		for _, existing := range sub.Subscribers {
			if existing != subscriber {
				kept = append(kept, existing)
			}
		}
		if len(kept) == len(sub.Subscribers) {
			return nil
		}
		if len(kept) == 0 {
			all = append(all[:i], all[i+1:]...)
		} else {
			all[i].Subscribers = kept
		}
		return m.subs.Save(all)
	}
	return fmt.Errorf("%w: repository %s", domain.ErrNotFound, repo)
}

// DeleteSubscription removes the record entirely; no tombstone remains.
func (m *Manager) DeleteSubscription(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.subs.Load()
	if err != nil {
		return err
	}
	for i, sub := range all {
		if sub.ID == id {
			all = append(all[:i], all[i+1:]...)
			if err := m.subs.Save(all); err != nil {
				return err
			}
			m.log.Info("subscription deleted", "id", id, "repo", sub.Repository)
			return nil
		}
	}
	return fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
}

// ToggleEnabled flips the enabled flag and returns the new state.
func (m *Manager) ToggleEnabled(ctx context.Context, id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.subs.Load()
	if err != nil {
		return false, err
	}
	for i := range all {
		if all[i].ID == id {
			all[i].Enabled = !all[i].Enabled
			if err := m.subs.Save(all); err != nil {
				return false, err
			}
			return all[i].Enabled, nil
		}
	}
	return false, fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
}

// ListSubscriptions returns subscriptions sorted by id ascending,
// optionally filtered by exact repository name.
func (m *Manager) ListSubscriptions(ctx context.Context, repoFilter string) ([]domain.Subscription, error) {
	m.mu.Lock()
	all, err := m.subs.Load()
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if repoFilter != "" {
		filtered := all[:0]
		for _, sub := range all {
			if sub.Repository == repoFilter {
				filtered = append(filtered, sub)
			}
		}
		all = filtered
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

// GetSubscription looks one record up by id.
func (m *Manager) GetSubscription(ctx context.Context, id int) (domain.Subscription, error) {
	m.mu.Lock()
	all, err := m.subs.Load()
	m.mu.Unlock()
	if err != nil {
		return domain.Subscription{}, err
	}
	for _, sub := range all {
		if sub.ID == id {
			return sub, nil
		}
	}
	return domain.Subscription{}, fmt.Errorf("%w: id %d", domain.ErrNotFound, id)
}

// ResolveWindow derives the processing window from the subscription's
// range policy: daily means "yesterday, the full UTC day".
func (m *Manager) ResolveWindow(sub domain.Subscription) (time.Time, time.Time, error) {
	switch sub.TimeRangeType {
	case domain.RangeDaily:
		end := m.now().UTC().Truncate(24 * time.Hour)
		return end.Add(-24 * time.Hour), end, nil
	case domain.RangeCustom:
		if sub.CustomStart == nil || sub.CustomEnd == nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: custom bounds missing for subscription %d", domain.ErrInvalidRange, sub.ID)
		}
		return sub.CustomStart.UTC(), sub.CustomEnd.UTC(), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: unknown range type %q", domain.ErrInvalidRange, sub.TimeRangeType)
	}
}

// decomposeDays splits [start, end) into whole UTC calendar days. The day
// containing end is included only when end lies strictly inside it, so a
// midnight end bound never produces an empty trailing day.
func decomposeDays(start, end time.Time) []time.Time {
	first := start.UTC().Truncate(24 * time.Hour)
	last := end.UTC().Add(-time.Nanosecond).Truncate(24 * time.Hour)

	var days []time.Time
	for d := first; !d.After(last); d = d.Add(24 * time.Hour) {
		days = append(days, d)
	}
	return days
}

// ProcessSubscription runs the per-day state machine for one
// subscription. Day-level failures are recorded and never abort the
// remaining days; the returned error is reserved for validation problems
// and store persistence failures.
func (m *Manager) ProcessSubscription(ctx context.Context, sub domain.Subscription, overrideStart, overrideEnd *time.Time, avoidDuplicate bool) (domain.ProcessResult, error) {
	result := domain.ProcessResult{SubscriptionID: sub.ID, Repository: sub.Repository}

	if !sub.Enabled {
		result.Reason = "disabled"
		return result, nil
	}

	start, end, err := m.ResolveWindow(sub)
	if err != nil && (overrideStart == nil || overrideEnd == nil) {
		// A single override still leans on the resolved bound for the
		// other side, so a resolve failure cannot be papered over.
		return result, err
	}
	if overrideStart != nil {
		start = overrideStart.UTC()
	}
	if overrideEnd != nil {
		end = overrideEnd.UTC()
	}
	if !start.Before(end) {
		return result, fmt.Errorf("%w: start %s is not before end %s",
			domain.ErrInvalidRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	for _, day := range decomposeDays(start, end) {
		outcome := m.processDay(ctx, sub, day, avoidDuplicate)
		result.Days = append(result.Days, outcome)
		switch outcome.Status {
		case domain.DaySucceeded:
			result.Succeeded++
		case domain.DaySkipped:
			result.Skipped++
		case domain.DayFailed:
			result.Failed++
		}
		m.recordHistory(ctx, sub, outcome)
	}

	if result.Succeeded > 0 {
		if err := m.markProcessed(sub.ID); err != nil {
			return result, err
		}
	}
	return result, nil
}

// processDay handles one decomposed day: skip on existing snapshot,
// otherwise fetch the whole day's activity and persist it.
func (m *Manager) processDay(ctx context.Context, sub domain.Subscription, day time.Time, avoidDuplicate bool) domain.DayOutcome {
	outcome := domain.DayOutcome{Day: day}

	if avoidDuplicate && m.snaps.Exists(sub.ID, day) {
		outcome.Status = domain.DaySkipped
		outcome.Reason = "snapshot already exists"
		return outcome
	}

	dayEnd := day.Add(24 * time.Hour)
	// The client filter is inclusive of both bounds; upstream timestamps
	// have second precision, so back the end off by one second to keep
	// the stored window half-open.
	fetchEnd := dayEnd.Add(-time.Second)

	bundle, err := m.fetchActivity(ctx, sub.Repository, day, fetchEnd)
	if err != nil {
		m.log.Warn("day fetch failed", "id", sub.ID, "repo", sub.Repository, "day", day.Format("2006-01-02"), "error", err)
		outcome.Status = domain.DayFailed
		outcome.Reason = err.Error()
		return outcome
	}

	path, err := m.snaps.Write(domain.Snapshot{
		SubscriptionID: sub.ID,
		Repository:     sub.Repository,
		WindowStart:    day,
		WindowEnd:      dayEnd,
		Activity:       bundle,
		GeneratedAt:    m.now().UTC(),
	})
	if err != nil {
		m.log.Error("snapshot write failed", "id", sub.ID, "day", day.Format("2006-01-02"), "error", err)
		outcome.Status = domain.DayFailed
		outcome.Reason = fmt.Sprintf("persist snapshot: %v", err)
		return outcome
	}

	outcome.Status = domain.DaySucceeded
	outcome.SnapshotPath = path
	return outcome
}

func (m *Manager) fetchActivity(ctx context.Context, repo string, start, end time.Time) (domain.ActivityBundle, error) {
	info, err := m.client.RepoInfo(ctx, repo)
	if err != nil {
		return domain.ActivityBundle{}, err
	}
	releases, err := m.client.Releases(ctx, repo, start, end, 0)
	if err != nil {
		return domain.ActivityBundle{}, err
	}
	pulls, err := m.client.PullRequests(ctx, repo, start, end, 0)
	if err != nil {
		return domain.ActivityBundle{}, err
	}
	issues, err := m.client.Issues(ctx, repo, start, end, 0)
	if err != nil {
		return domain.ActivityBundle{}, err
	}
	return domain.ActivityBundle{
		Repo:         info,
		Releases:     releases,
		PullRequests: pulls,
		Issues:       issues,
	}, nil
}

// markProcessed advances last_processed_at for the subscription; called
// only after at least one day succeeded, so the timestamp never runs
// ahead of the snapshots on disk.
func (m *Manager) markProcessed(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	all, err := m.subs.Load()
	if err != nil {
		return err
	}
	for i := range all {
		if all[i].ID == id {
			ts := m.now().UTC()
			all[i].LastProcessedAt = &ts
			return m.subs.Save(all)
		}
	}
	// Deleted mid-run; the snapshots stay, the timestamp has nowhere to go.
	return nil
}

func (m *Manager) recordHistory(ctx context.Context, sub domain.Subscription, outcome domain.DayOutcome) {
	if m.history == nil {
		return
	}
	err := m.history.Record(ctx, domain.HistoryEntry{
		SubscriptionID: sub.ID,
		Repository:     sub.Repository,
		Day:            outcome.Day,
		Status:         outcome.Status,
		SnapshotPath:   outcome.SnapshotPath,
		Reason:         outcome.Reason,
		RecordedAt:     m.now().UTC(),
	})
	if err != nil {
		m.log.Warn("history record failed", "id", sub.ID, "day", outcome.Day.Format("2006-01-02"), "error", err)
	}
}

// ProcessAll processes every enabled subscription independently; one
// subscription's failure never prevents the others from running. The
// context is checked between subscriptions so a scheduler stop takes at
// most one subscription's remaining days.
func (m *Manager) ProcessAll(ctx context.Context, overrideStart, overrideEnd *time.Time, avoidDuplicate bool) ([]domain.ProcessResult, error) {
	subs, err := m.ListSubscriptions(ctx, "")
	if err != nil {
		return nil, err
	}

	var results []domain.ProcessResult
	for _, sub := range subs {
		if !sub.Enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return results, err
		}

		result, err := m.ProcessSubscription(ctx, sub, overrideStart, overrideEnd, avoidDuplicate)
		if err != nil {
			result.Reason = err.Error()
			m.log.Error("subscription processing failed", "id", sub.ID, "repo", sub.Repository, "error", err)
		}
		results = append(results, result)
	}
	return results, nil
}
