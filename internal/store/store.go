package store

import (
	"context"
	"time"

	"github.com/nhle/mailsync/internal/model"
)

// Store defines the persistence interface for sync bookkeeping: which
// message UIDs have been seen per mailbox, and the history of sync
// runs.
type Store interface {
	// UpsertMessages records the given UIDs for a mailbox, ignoring
	// ones already known, and returns how many were new.
	UpsertMessages(ctx context.Context, mailbox string, uids []string, seenAt time.Time) (int, error)

	// MessageCount returns how many distinct UIDs are known for a
	// mailbox.
	MessageCount(ctx context.Context, mailbox string) (int, error)

	// RecordSyncRun appends a sync run to the history. A missing ID is
	// assigned.
	RecordSyncRun(ctx context.Context, run model.SyncRun) error

	// RecentRuns returns the most recent sync runs, newest first.
	RecentRuns(ctx context.Context, limit int) ([]model.SyncRun, error)

	Close() error
}
