package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RepoSentinel/internal/domain"
	"RepoSentinel/internal/ports"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testSnapshot(subID int, repo string, start time.Time) domain.Snapshot {
	return domain.Snapshot{
		SubscriptionID: subID,
		Repository:     repo,
		WindowStart:    start,
		WindowEnd:      start.Add(24 * time.Hour),
		Activity: domain.ActivityBundle{
			Repo:     domain.RepoInfo{FullName: repo},
			Releases: []domain.Release{{TagName: "v1.0.0", PublishedAt: start.Add(2 * time.Hour)}},
		},
		GeneratedAt: start.Add(26 * time.Hour),
	}
}

func TestWriteProducesContractedName(t *testing.T) {
	t.Parallel()

	store := NewFileSnapshotStore(t.TempDir())
	path, err := store.Write(testSnapshot(1, "acme/widgets", day(2024, 3, 1)))
	require.NoError(t, err)
	assert.Equal(t, "20240301_sub1_acme_widgets_raw.json", filepath.Base(path))

	assert.True(t, store.Exists(1, day(2024, 3, 1)))
	assert.False(t, store.Exists(1, day(2024, 3, 2)))
	assert.False(t, store.Exists(2, day(2024, 3, 1)))
}

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewFileSnapshotStore(t.TempDir())
	want := testSnapshot(7, "acme/widgets", day(2024, 1, 15))

	path, err := store.Write(want)
	require.NoError(t, err)

	got, err := store.Read(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestListNewestFirstWithFilters(t *testing.T) {
	t.Parallel()

	store := NewFileSnapshotStore(t.TempDir())
	for _, snap := range []domain.Snapshot{
		testSnapshot(1, "acme/widgets", day(2024, 3, 1)),
		testSnapshot(1, "acme/widgets", day(2024, 3, 3)),
		testSnapshot(2, "acme/gears", day(2024, 3, 2)),
	} {
		_, err := store.Write(snap)
		require.NoError(t, err)
	}

	all, err := store.List(ports.SnapshotFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, day(2024, 3, 3), all[0].Day)
	assert.Equal(t, day(2024, 3, 2), all[1].Day)
	assert.Equal(t, day(2024, 3, 1), all[2].Day)
	assert.Equal(t, "acme/widgets", all[0].Repository)

	subID := 1
	mine, err := store.List(ports.SnapshotFilter{SubscriptionID: &subID})
	require.NoError(t, err)
	require.Len(t, mine, 2)

	from := day(2024, 3, 2)
	to := day(2024, 3, 2)
	ranged, err := store.List(ports.SnapshotFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, 2, ranged[0].SubscriptionID)
}

func TestListRecoversRepositoryWithUnderscoreOwner(t *testing.T) {
	t.Parallel()

	store := NewFileSnapshotStore(t.TempDir())
	// The filename flattens "/" to "_", so the owner/name split is only
	// recoverable from the payload.
	path, err := store.Write(testSnapshot(3, "my_org/widgets", day(2024, 3, 1)))
	require.NoError(t, err)
	assert.Equal(t, "20240301_sub3_my_org_widgets_raw.json", filepath.Base(path))

	entries, err := store.List(ports.SnapshotFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "my_org/widgets", entries[0].Repository)
}

func TestListMissingDirIsEmpty(t *testing.T) {
	t.Parallel()

	store := NewFileSnapshotStore(filepath.Join(t.TempDir(), "absent"))
	entries, err := store.List(ports.SnapshotFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteReplacesExistingFile(t *testing.T) {
	t.Parallel()

	store := NewFileSnapshotStore(t.TempDir())
	first := testSnapshot(1, "acme/widgets", day(2024, 3, 1))
	_, err := store.Write(first)
	require.NoError(t, err)

	second := first
	second.Activity.Releases = nil
	path, err := store.Write(second)
	require.NoError(t, err)

	got, err := store.Read(path)
	require.NoError(t, err)
	assert.Empty(t, got.Activity.Releases)
}
