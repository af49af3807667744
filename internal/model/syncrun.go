package model

import "time"

// SyncRun records a single mailbox sync attempt for local bookkeeping.
type SyncRun struct {
	// ID is a UUID assigned when the run is recorded.
	ID string `db:"id"`

	// Mailbox is the mailbox that was synced.
	Mailbox string `db:"mailbox"`

	// UIDCount is how many UIDs the search returned (after truncation).
	UIDCount int `db:"uid_count"`

	// NewCount is how many of those UIDs had not been seen before.
	NewCount int `db:"new_count"`

	// Success reports whether the sync completed.
	Success bool `db:"success"`

	// Error holds the failure message when Success is false.
	Error string `db:"error"`

	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
}
