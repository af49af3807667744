package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	mailbox       TEXT NOT NULL,
	uid           TEXT NOT NULL,
	first_seen_at DATETIME NOT NULL,
	PRIMARY KEY (mailbox, uid)
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id          TEXT PRIMARY KEY,
	mailbox     TEXT NOT NULL,
	uid_count   INTEGER NOT NULL DEFAULT 0,
	new_count   INTEGER NOT NULL DEFAULT 0,
	success     INTEGER NOT NULL DEFAULT 0 CHECK(success IN (0, 1)),
	error       TEXT NOT NULL DEFAULT '',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_mailbox ON messages(mailbox);
CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
