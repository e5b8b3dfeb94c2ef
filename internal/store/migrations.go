package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "user_state: one document per user per subsystem",
		SQL: `
CREATE TABLE user_state (
    kind        TEXT NOT NULL CHECK (kind IN ('emotion', 'relationship')),
    user_id     TEXT NOT NULL,
    data        TEXT NOT NULL,
    updated_at  INTEGER NOT NULL,
    PRIMARY KEY (kind, user_id)
);
`,
	},
	{
		Version:     2,
		Description: "memories: append-only exchange log with embeddings",
		SQL: `
CREATE TABLE memories (
    id              INTEGER PRIMARY KEY,
    record_id       TEXT NOT NULL UNIQUE,
    user_id         TEXT NOT NULL,
    seq             INTEGER NOT NULL,
    user_message    TEXT NOT NULL,
    agent_response  TEXT NOT NULL,
    embedding       BLOB NOT NULL,
    model           TEXT NOT NULL,
    dimensions      INTEGER NOT NULL,
    importance      REAL NOT NULL DEFAULT 1.0,
    created_at      INTEGER NOT NULL,
    UNIQUE (user_id, seq)
);

CREATE INDEX idx_memories_created ON memories(created_at);

CREATE TABLE memory_sequences (
    user_id   TEXT PRIMARY KEY,
    last_seq  INTEGER NOT NULL
);
`,
	},
	{
		Version:     3,
		Description: "facts: structured personal facts per user",
		SQL: `
CREATE TABLE facts (
    id          INTEGER PRIMARY KEY,
    user_id     TEXT NOT NULL,
    key         TEXT NOT NULL,
    value       TEXT NOT NULL,
    category    TEXT NOT NULL DEFAULT 'general',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL,
    UNIQUE (user_id, key)
);
`,
	},
}

func (db *DB) migrate() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
