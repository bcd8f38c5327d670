package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"RepoSentinel/internal/domain"
	"RepoSentinel/internal/ports"
)

// Snapshot files follow {YYYYMMDD}_sub{id}_{owner_name}_raw.json; the
// layout is a compatibility contract with downstream report generation.
var snapshotNameExpr = regexp.MustCompile(`^(\d{8})_sub(\d+)_(.+)_raw\.json$`)

// FileSnapshotStore owns the raw data directory holding one immutable
// JSON file per (subscription, day).
type FileSnapshotStore struct {
	dir string
}

var _ ports.SnapshotStore = (*FileSnapshotStore)(nil)

// NewFileSnapshotStore wires the store to its directory.
func NewFileSnapshotStore(dir string) *FileSnapshotStore {
	return &FileSnapshotStore{dir: dir}
}

// Exists reports whether a snapshot for the subscription and UTC day is
// already on disk, regardless of the repository token in the name.
func (s *FileSnapshotStore) Exists(subscriptionID int, day time.Time) bool {
	pattern := filepath.Join(s.dir, fmt.Sprintf("%s_sub%d_*_raw.json", day.UTC().Format("20060102"), subscriptionID))
	matches, err := filepath.Glob(pattern)
	return err == nil && len(matches) > 0
}

// Write persists the snapshot under its deterministic name and returns
// the path. An existing file for the same key is fully replaced, never
// partially patched.
func (s *FileSnapshotStore) Write(snap domain.Snapshot) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", s.dir, err)
	}

	safeName := strings.ReplaceAll(snap.Repository, "/", "_")
	name := fmt.Sprintf("%s_sub%d_%s_raw.json", snap.WindowStart.UTC().Format("20060102"), snap.SubscriptionID, safeName)
	path := filepath.Join(s.dir, name)

	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".snapshot-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("rename into place: %w", err)
	}
	return path, nil
}

// Read loads a snapshot file previously produced by Write.
func (s *FileSnapshotStore) Read(path string) (domain.Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read %s: %w", path, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return snap, nil
}

// List returns snapshot entries matching the filter, newest day first.
func (s *FileSnapshotStore) List(filter ports.SnapshotFilter) ([]ports.SnapshotEntry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.dir, err)
	}

	var entries []ports.SnapshotEntry
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}

		m := snapshotNameExpr.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}

		day, err := time.ParseInLocation("20060102", m[1], time.UTC)
		if err != nil {
			continue
		}
		subID, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}

		if filter.SubscriptionID != nil && subID != *filter.SubscriptionID {
			continue
		}
		if filter.From != nil && day.Before(filter.From.UTC().Truncate(24*time.Hour)) {
			continue
		}
		if filter.To != nil && day.After(filter.To.UTC().Truncate(24*time.Hour)) {
			continue
		}

		path := filepath.Join(s.dir, de.Name())
		entries = append(entries, ports.SnapshotEntry{
			Path:           path,
			SubscriptionID: subID,
			Repository:     repositoryOf(path, m[3]),
			Day:            day,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Day.Equal(entries[j].Day) {
			return entries[i].Day.After(entries[j].Day)
		}
		return entries[i].SubscriptionID < entries[j].SubscriptionID
	})
	return entries, nil
}

// repositoryOf reads the authoritative owner/name from the snapshot
// payload. The filename token flattens "/" to "_" irreversibly, so it is
// only a display fallback for files that cannot be parsed.
func repositoryOf(path, token string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return token
	}
	var head struct {
		Repository string `json:"repository"`
	}
	if err := json.Unmarshal(raw, &head); err != nil || head.Repository == "" {
		return token
	}
	return head.Repository
}
