package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailsync/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// UpsertMessages inserts the given UIDs for a mailbox, skipping ones
// already recorded, and returns how many were new.
func (s *SQLiteStore) UpsertMessages(
	ctx context.Context,
	mailbox string,
	uids []string,
	seenAt time.Time,
) (int, error) {
	if len(uids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT OR IGNORE INTO messages (mailbox, uid, first_seen_at)
		VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing message insert: %w", err)
	}
	defer stmt.Close()

	newCount := 0
	for _, uid := range uids {
		res, err := stmt.ExecContext(ctx, mailbox, uid, seenAt.UTC())
		if err != nil {
			return 0, fmt.Errorf("inserting message %s/%s: %w", mailbox, uid, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("counting inserted rows: %w", err)
		}
		newCount += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing messages: %w", err)
	}
	return newCount, nil
}

// MessageCount returns how many distinct UIDs are known for a mailbox.
func (s *SQLiteStore) MessageCount(ctx context.Context, mailbox string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM messages WHERE mailbox = ?", mailbox,
	)
	if err != nil {
		return 0, fmt.Errorf("counting messages for %s: %w", mailbox, err)
	}
	return count, nil
}

// RecordSyncRun appends a sync run to the history.
func (s *SQLiteStore) RecordSyncRun(ctx context.Context, run model.SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (
			id, mailbox, uid_count, new_count, success, error,
			started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Mailbox, run.UIDCount, run.NewCount,
		boolToInt(run.Success), run.Error,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording sync run: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent sync runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, mailbox, uid_count, new_count, success, error,
		       started_at, finished_at
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	var runs []model.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// scanSyncRun scans a sync run row from a sqlx.Rows result set.
func scanSyncRun(rows *sqlx.Rows) (model.SyncRun, error) {
	var (
		run        model.SyncRun
		success    int
		startedAt  time.Time
		finishedAt time.Time
	)

	err := rows.Scan(
		&run.ID, &run.Mailbox, &run.UIDCount, &run.NewCount,
		&success, &run.Error, &startedAt, &finishedAt,
	)
	if err != nil {
		return model.SyncRun{}, fmt.Errorf("scanning sync run row: %w", err)
	}

	run.Success = success != 0
	run.StartedAt = startedAt
	run.FinishedAt = finishedAt

	return run, nil
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
