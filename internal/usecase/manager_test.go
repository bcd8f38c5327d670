package usecase

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RepoSentinel/internal/domain"
	"RepoSentinel/internal/infrastructure/storage"
)

// fakeUpstream returns canned activity and can be told to fail whole days.
type fakeUpstream struct {
	mu        sync.Mutex
	repoCalls []string
	missing   bool
	failDays  map[string]bool
}

func (f *fakeUpstream) failing(start time.Time) bool {
	return f.failDays[start.UTC().Format("2006-01-02")]
}

func (f *fakeUpstream) RepoInfo(ctx context.Context, repo string) (domain.RepoInfo, error) {
	f.mu.Lock()
	f.repoCalls = append(f.repoCalls, repo)
	f.mu.Unlock()
	if f.missing {
		return domain.RepoInfo{}, domain.ErrRepoNotFound
	}
	return domain.RepoInfo{FullName: repo}, nil
}

func (f *fakeUpstream) Releases(ctx context.Context, repo string, start, end time.Time, limit int) ([]domain.Release, error) {
	if f.failing(start) {
		return nil, &domain.FetchError{Repository: repo, Endpoint: "releases", Err: errors.New("boom")}
	}
	return []domain.Release{{TagName: "v1", PublishedAt: start.Add(time.Hour)}}, nil
}

func (f *fakeUpstream) PullRequests(ctx context.Context, repo string, start, end time.Time, limit int) ([]domain.PullRequest, error) {
	if f.failing(start) {
		return nil, &domain.FetchError{Repository: repo, Endpoint: "pulls", Err: errors.New("boom")}
	}
	return nil, nil
}

func (f *fakeUpstream) Issues(ctx context.Context, repo string, start, end time.Time, limit int) ([]domain.Issue, error) {
	if f.failing(start) {
		return nil, &domain.FetchError{Repository: repo, Endpoint: "issues", Err: errors.New("boom")}
	}
	return nil, nil
}

func newTestManager(t *testing.T, client *fakeUpstream) (*Manager, *storage.FileSnapshotStore) {
	t.Helper()
	dir := t.TempDir()
	snaps := storage.NewFileSnapshotStore(filepath.Join(dir, "raw"))
	m := NewManager(ManagerDeps{
		Client: client,
		Subs:   storage.NewFileSubscriptionStore(filepath.Join(dir, "subscriptions.json")),
		Snaps:  snaps,
		Logger: slog.Default(),
	})
	return m, snaps
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestAddListDeleteToggle(t *testing.T) {
	t.Parallel()

	client := &fakeUpstream{}
	m, _ := newTestManager(t, client)
	ctx := context.Background()

	sub, err := m.AddSubscription(ctx, "acme/widgets", []string{"a@test.com"}, domain.RangeDaily, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sub.ID)
	assert.True(t, sub.Enabled)

	second, err := m.AddSubscription(ctx, "acme/gears", []string{"b@test.com"}, domain.RangeDaily, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, second.ID)

	subs, err := m.ListSubscriptions(ctx, "")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, []int{subs[0].ID, subs[1].ID}, []int{1, 2})

	only, err := m.ListSubscriptions(ctx, "acme/gears")
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, 2, only[0].ID)

	enabled, err := m.ToggleEnabled(ctx, 1)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, m.DeleteSubscription(ctx, 2))
	err = m.DeleteSubscription(ctx, 2)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	// Ids are never reused after deletion.
	third, err := m.AddSubscription(ctx, "acme/cogs", []string{"c@test.com"}, domain.RangeDaily, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, third.ID)
}

func TestAddRejectsDuplicateEvenWhenDisabled(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, &fakeUpstream{})
	ctx := context.Background()

	sub, err := m.AddSubscription(ctx, "acme/widgets", []string{"a@test.com"}, domain.RangeDaily, nil, nil)
	require.NoError(t, err)

	_, err = m.ToggleEnabled(ctx, sub.ID)
	require.NoError(t, err)

	_, err = m.AddSubscription(ctx, "acme/widgets", []string{"other@test.com"}, domain.RangeDaily, nil, nil)
	assert.True(t, errors.Is(err, domain.ErrDuplicateSubscription))
}

func TestAddRejectsMissingRepo(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, &fakeUpstream{missing: true})
	_, err := m.AddSubscription(context.Background(), "acme/ghost", []string{"a@test.com"}, domain.RangeDaily, nil, nil)
	assert.True(t, errors.Is(err, domain.ErrRepoNotFound))

	subs, listErr := m.ListSubscriptions(context.Background(), "")
	require.NoError(t, listErr)
	assert.Empty(t, subs)
}

func TestAddRejectsInvertedCustomRange(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, &fakeUpstream{})
	start := ts("2024-01-05T00:00:00Z")
	end := ts("2024-01-01T00:00:00Z")
	_, err := m.AddSubscription(context.Background(), "acme/widgets", []string{"a@test.com"}, domain.RangeCustom, &start, &end)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	subs, listErr := m.ListSubscriptions(context.Background(), "")
	require.NoError(t, listErr)
	assert.Empty(t, subs)
}

func TestAddSubscriberMergesWithoutDuplicates(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, &fakeUpstream{})
	ctx := context.Background()

	_, err := m.AddSubscription(ctx, "acme/widgets", []string{"a@test.com"}, domain.RangeDaily, nil, nil)
	require.NoError(t, err)

	sub, err := m.AddSubscriber(ctx, "acme/widgets", "b@test.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@test.com", "b@test.com"}, sub.Subscribers)

	sub, err = m.AddSubscriber(ctx, "acme/widgets", "b@test.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"a@test.com", "b@test.com"}, sub.Subscribers)

	require.NoError(t, m.RemoveSubscriber(ctx, "acme/widgets", "a@test.com"))
	require.NoError(t, m.RemoveSubscriber(ctx, "acme/widgets", "b@test.com"))

	subs, err := m.ListSubscriptions(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, subs, "removing the last subscriber deletes the subscription")
}

func TestDecomposeDays(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		start string
		end   string
		want  []string
	}{
		{"single full day", "2024-03-01T00:00:00Z", "2024-03-02T00:00:00Z", []string{"2024-03-01"}},
		{"three day span", "2024-01-01T00:00:00Z", "2024-01-04T00:00:00Z", []string{"2024-01-01", "2024-01-02", "2024-01-03"}},
		{"mid day bounds", "2024-01-01T15:00:00Z", "2024-01-03T02:00:00Z", []string{"2024-01-01", "2024-01-02", "2024-01-03"}},
		{"within one day", "2024-01-01T10:00:00Z", "2024-01-01T12:00:00Z", []string{"2024-01-01"}},
		{"month boundary", "2024-02-28T00:00:00Z", "2024-03-01T00:00:00Z", []string{"2024-02-28", "2024-02-29"}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			days := decomposeDays(ts(tc.start), ts(tc.end))
			var got []string
			for _, d := range days {
				got = append(got, d.Format("2006-01-02"))
			}
			assert.Equal(t, tc.want, got)

			// No gaps, no duplicates.
			for i := 1; i < len(days); i++ {
				assert.Equal(t, 24*time.Hour, days[i].Sub(days[i-1]))
			}
		})
	}
}

func TestResolveWindowDaily(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, &fakeUpstream{})
	m.now = func() time.Time { return ts("2024-03-02T02:00:00Z") }

	sub := domain.Subscription{ID: 1, TimeRangeType: domain.RangeDaily}
	start, end, err := m.ResolveWindow(sub)
	require.NoError(t, err)
	assert.Equal(t, ts("2024-03-01T00:00:00Z"), start)
	assert.Equal(t, ts("2024-03-02T00:00:00Z"), end)
}

func TestDailyRunScenario(t *testing.T) {
	t.Parallel()

	client := &fakeUpstream{}
	m, snaps := newTestManager(t, client)
	ctx := context.Background()

	_, err := m.AddSubscription(ctx, "acme/widgets", []string{"a@test.com"}, domain.RangeDaily, nil, nil)
	require.NoError(t, err)

	m.now = func() time.Time { return ts("2024-03-02T02:00:00Z") }
	sub, err := m.GetSubscription(ctx, 1)
	require.NoError(t, err)

	result, err := m.ProcessSubscription(ctx, sub, nil, nil, true)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, 1, result.Succeeded)
	require.Len(t, result.Days, 1)
	assert.Equal(t, "20240301_sub1_acme_widgets_raw.json", filepath.Base(result.Days[0].SnapshotPath))

	snap, err := snaps.Read(result.Days[0].SnapshotPath)
	require.NoError(t, err)
	assert.Equal(t, ts("2024-03-01T00:00:00Z"), snap.WindowStart)
	assert.Equal(t, ts("2024-03-02T00:00:00Z"), snap.WindowEnd)

	sub, err = m.GetSubscription(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, sub.LastProcessedAt)
	assert.Equal(t, ts("2024-03-02T02:00:00Z"), sub.LastProcessedAt.UTC())
}

func TestOverrideSpanProducesThreeSnapshots(t *testing.T) {
	t.Parallel()

	m, snaps := newTestManager(t, &fakeUpstream{})
	ctx := context.Background()

	_, err := m.AddSubscription(ctx, "acme/widgets", []string{"a@test.com"}, domain.RangeDaily, nil, nil)
	require.NoError(t, err)
	sub, err := m.GetSubscription(ctx, 1)
	require.NoError(t, err)

	start := ts("2024-01-01T00:00:00Z")
	end := ts("2024-01-04T00:00:00Z")
	result, err := m.ProcessSubscription(ctx, sub, &start, &end, true)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Succeeded)

	for _, want := range []string{"20240101", "20240102", "20240103"} {
		assert.True(t, snaps.Exists(1, ts(want[:4]+"-"+want[4:6]+"-"+want[6:]+"T00:00:00Z")), "missing %s", want)
	}
}

func TestIdempotentReprocessing(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, &fakeUpstream{})
	ctx := context.Background()

	_, err := m.AddSubscription(ctx, "acme/widgets", []string{"a@test.com"}, domain.RangeDaily, nil, nil)
	require.NoError(t, err)
	sub, err := m.GetSubscription(ctx, 1)
	require.NoError(t, err)

	start := ts("2024-01-01T00:00:00Z")
	end := ts("2024-01-03T00:00:00Z")

	first, err := m.ProcessSubscription(ctx, sub, &start, &end, true)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Succeeded)

	second, err := m.ProcessSubscription(ctx, sub, &start, &end, true)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Succeeded)
	assert.Equal(t, 2, second.Skipped)
	assert.True(t, second.OK())
}

func TestResumabilityAfterPartialFailure(t *testing.T) {
	t.Parallel()

	client := &fakeUpstream{failDays: map[string]bool{"2024-01-02": true}}
	m, snaps := newTestManager(t, client)
	ctx := context.Background()

	_, err := m.AddSubscription(ctx, "acme/widgets", []string{"a@test.com"}, domain.RangeDaily, nil, nil)
	require.NoError(t, err)
	sub, err := m.GetSubscription(ctx, 1)
	require.NoError(t, err)

	start := ts("2024-01-01T00:00:00Z")
	end := ts("2024-01-06T00:00:00Z")

	first, err := m.ProcessSubscription(ctx, sub, &start, &end, true)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Succeeded)
	assert.Equal(t, 1, first.Failed)
	assert.False(t, snaps.Exists(1, ts("2024-01-02T00:00:00Z")))
	assert.True(t, snaps.Exists(1, ts("2024-01-03T00:00:00Z")), "failure must not halt later days")

	// The upstream recovers; only the failed day is re-fetched.
	client.failDays = nil
	second, err := m.ProcessSubscription(ctx, sub, &start, &end, true)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Succeeded)
	assert.Equal(t, 4, second.Skipped)
	assert.True(t, snaps.Exists(1, ts("2024-01-02T00:00:00Z")))
}

func TestDisabledSubscriptionNeverTouchesUpstream(t *testing.T) {
	t.Parallel()

	client := &fakeUpstream{}
	m, _ := newTestManager(t, client)
	ctx := context.Background()

	_, err := m.AddSubscription(ctx, "acme/widgets", []string{"a@test.com"}, domain.RangeDaily, nil, nil)
	require.NoError(t, err)
	_, err = m.ToggleEnabled(ctx, 1)
	require.NoError(t, err)

	callsAfterAdd := len(client.repoCalls)

	results, err := m.ProcessAll(ctx, nil, nil, true)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Len(t, client.repoCalls, callsAfterAdd)

	sub, err := m.GetSubscription(ctx, 1)
	require.NoError(t, err)
	result, err := m.ProcessSubscription(ctx, sub, nil, nil, true)
	require.NoError(t, err)
	assert.False(t, result.OK())
	assert.Equal(t, "disabled", result.Reason)
	assert.Len(t, client.repoCalls, callsAfterAdd)
}

func TestProcessRejectsInvertedWindow(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, &fakeUpstream{})
	ctx := context.Background()

	_, err := m.AddSubscription(ctx, "acme/widgets", []string{"a@test.com"}, domain.RangeDaily, nil, nil)
	require.NoError(t, err)
	sub, err := m.GetSubscription(ctx, 1)
	require.NoError(t, err)

	start := ts("2024-01-05T00:00:00Z")
	end := ts("2024-01-01T00:00:00Z")
	_, err = m.ProcessSubscription(ctx, sub, &start, &end, true)
	assert.True(t, errors.Is(err, domain.ErrInvalidRange))
}

func TestProcessSingleOverrideNeedsResolvableWindow(t *testing.T) {
	t.Parallel()

	client := &fakeUpstream{}
	m, _ := newTestManager(t, client)
	ctx := context.Background()

	// A custom subscription whose bounds were lost from the store: one
	// override still needs the other bound resolved, so processing must
	// halt instead of spanning from the zero time.
	sub := domain.Subscription{
		ID:            7,
		Repository:    "acme/widgets",
		TimeRangeType: domain.RangeCustom,
		Enabled:       true,
	}

	end := ts("2024-03-02T00:00:00Z")
	result, err := m.ProcessSubscription(ctx, sub, nil, &end, false)
	require.ErrorIs(t, err, domain.ErrInvalidRange)
	assert.Empty(t, result.Days)

	start := ts("2024-03-01T00:00:00Z")
	result, err = m.ProcessSubscription(ctx, sub, &start, nil, false)
	require.ErrorIs(t, err, domain.ErrInvalidRange)
	assert.Empty(t, result.Days)
	assert.Empty(t, client.repoCalls, "no upstream fetch with an unresolved bound")

	// Both overrides supplied: the stored bounds are irrelevant and the
	// run proceeds normally.
	result, err = m.ProcessSubscription(ctx, sub, &start, &end, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded)
}

func TestProcessAllIsolatesFailures(t *testing.T) {
	t.Parallel()

	client := &fakeUpstream{}
	m, _ := newTestManager(t, client)
	ctx := context.Background()

	_, err := m.AddSubscription(ctx, "acme/widgets", []string{"a@test.com"}, domain.RangeDaily, nil, nil)
	require.NoError(t, err)
	_, err = m.AddSubscription(ctx, "acme/gears", []string{"b@test.com"}, domain.RangeDaily, nil, nil)
	require.NoError(t, err)

	m.now = func() time.Time { return ts("2024-03-02T02:00:00Z") }
	client.failDays = map[string]bool{"2024-03-01": true}

	results, err := m.ProcessAll(ctx, nil, nil, true)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, 1, r.Failed, "repo %s", r.Repository)
	}
}

func TestProcessAllStopsBetweenSubscriptionsOnCancel(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, &fakeUpstream{})
	ctx, cancel := context.WithCancel(context.Background())

	_, err := m.AddSubscription(ctx, "acme/widgets", []string{"a@test.com"}, domain.RangeDaily, nil, nil)
	require.NoError(t, err)
	cancel()

	results, err := m.ProcessAll(ctx, nil, nil, true)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, results)
}
