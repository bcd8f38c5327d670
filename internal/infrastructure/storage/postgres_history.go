package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"RepoSentinel/internal/domain"
	"RepoSentinel/internal/ports"
)

// PostgresHistory keeps an append-style audit of per-day processing
// outcomes. It is optional; processing never depends on it.
type PostgresHistory struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.ProcessingHistory = (*PostgresHistory)(nil)

// OpenHistory connects to Postgres with the given DSN.
func OpenHistory(dsn string) (*PostgresHistory, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	return NewPostgresHistory(db), nil
}

// NewPostgresHistory wires a sql.DB implementation.
func NewPostgresHistory(db *sql.DB) *PostgresHistory {
	return &PostgresHistory{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Record upserts the outcome for one (subscription, day).
func (h *PostgresHistory) Record(ctx context.Context, entry domain.HistoryEntry) error {
	if h.db == nil {
		return nil
	}

	query := h.builder.
		Insert("processing_history").
		Columns("subscription_id", "repository", "day", "status", "snapshot_path", "reason", "recorded_at").
		Values(
			entry.SubscriptionID,
			entry.Repository,
			entry.Day.UTC(),
			string(entry.Status),
			entry.SnapshotPath,
			entry.Reason,
			entry.RecordedAt.UTC(),
		).
		Suffix(`ON CONFLICT (subscription_id, day) DO UPDATE
                SET status = EXCLUDED.status,
                    snapshot_path = EXCLUDED.snapshot_path,
                    reason = EXCLUDED.reason,
                    recorded_at = EXCLUDED.recorded_at`)

	if _, err := query.RunWith(h.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("upsert history: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (h *PostgresHistory) Close() error {
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}
