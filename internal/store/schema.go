package store

// schema holds the archive's schema steps; step i moves user_version from i
// to i+1. Append only.
var schema = []string{
	`CREATE TABLE events (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		id          TEXT NOT NULL UNIQUE,
		event       TEXT NOT NULL,
		user_id     TEXT NOT NULL DEFAULT '',
		body        TEXT NOT NULL DEFAULT '',
		data        TEXT,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX idx_events_user ON events (user_id, seq);`,

	`CREATE INDEX idx_events_event ON events (event, seq);`,
}
