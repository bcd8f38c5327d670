package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"RepoSentinel/internal/domain"
	"RepoSentinel/internal/ports"
)

// FileSubscriptionStore persists the whole subscription collection as one
// JSON array file. Saves go through a temp file and an atomic rename so a
// crash can never leave a truncated store behind.
type FileSubscriptionStore struct {
	path string
}

var _ ports.SubscriptionStore = (*FileSubscriptionStore)(nil)

// NewFileSubscriptionStore wires the store to its backing file.
func NewFileSubscriptionStore(path string) *FileSubscriptionStore {
	return &FileSubscriptionStore{path: path}
}

// Load reads every subscription. A missing file is an empty collection;
// malformed content is reported as a store-corruption error and never
// auto-repaired.
func (s *FileSubscriptionStore) Load() ([]domain.Subscription, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.Subscription{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}

	var subs []domain.Subscription
	if err := json.Unmarshal(raw, &subs); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrStoreCorrupt, s.path, err)
	}
	return subs, nil
}

// Save replaces the whole collection on disk.
func (s *FileSubscriptionStore) Save(subs []domain.Subscription) error {
	if subs == nil {
		subs = []domain.Subscription{}
	}

	raw, err := json.MarshalIndent(subs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal subscriptions: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".subscriptions-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// NextID allocates max existing id + 1, starting from 1. Deleted ids are
// never reused because allocation only ever looks at the current maximum.
func (s *FileSubscriptionStore) NextID() (int, error) {
	subs, err := s.Load()
	if err != nil {
		return 0, err
	}

	next := 1
	for _, sub := range subs {
		if sub.ID >= next {
			next = sub.ID + 1
		}
	}
	return next, nil
}
