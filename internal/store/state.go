package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// State document kinds.
const (
	KindEmotion      = "emotion"
	KindRelationship = "relationship"
)

// ErrCorrupt marks a persisted document that could not be decoded.
var ErrCorrupt = errors.New("corrupt state document")

// StateStore persists one opaque document per (kind, user). A save replaces
// the whole document atomically; a load of a missing document returns nil, nil.
// SaveStates and DeleteStates apply to all of a user's named documents or to
// none of them.
type StateStore interface {
	LoadState(ctx context.Context, kind, userID string) ([]byte, error)
	SaveState(ctx context.Context, kind, userID string, data []byte) error
	SaveStates(ctx context.Context, userID string, docs map[string][]byte) error
	DeleteStates(ctx context.Context, userID string, kinds ...string) error
	ListStates(ctx context.Context, kind string) ([]StateDocument, error)
}

// Decode unmarshals a state document into v, wrapping failures in ErrCorrupt.
func Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}

// LoadState returns the stored document, or nil if none exists.
func (db *DB) LoadState(ctx context.Context, kind, userID string) ([]byte, error) {
	var data string
	err := db.QueryRowContext(ctx,
		"SELECT data FROM user_state WHERE kind = ? AND user_id = ?", kind, userID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s state: %w", kind, err)
	}
	return []byte(data), nil
}

const upsertState = `
	INSERT INTO user_state (kind, user_id, data, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(kind, user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
`

// SaveState upserts the document in a single statement.
func (db *DB) SaveState(ctx context.Context, kind, userID string, data []byte) error {
	if _, err := db.ExecContext(ctx, upsertState, kind, userID, string(data), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("save %s state: %w", kind, err)
	}
	return nil
}

// SaveStates upserts several of a user's documents in one transaction.
func (db *DB) SaveStates(ctx context.Context, userID string, docs map[string][]byte) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save states: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for kind, data := range docs {
		if _, err := tx.ExecContext(ctx, upsertState, kind, userID, string(data), now); err != nil {
			return fmt.Errorf("save %s state: %w", kind, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save states: %w", err)
	}
	return nil
}

// DeleteStates removes the named documents of a user in one transaction.
func (db *DB) DeleteStates(ctx context.Context, userID string, kinds ...string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete states: %w", err)
	}
	defer tx.Rollback()

	for _, kind := range kinds {
		if _, err := tx.ExecContext(ctx, "DELETE FROM user_state WHERE kind = ? AND user_id = ?", kind, userID); err != nil {
			return fmt.Errorf("delete %s state: %w", kind, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete states: %w", err)
	}
	return nil
}

// StateDocument is one row of user_state.
type StateDocument struct {
	UserID    string
	Data      []byte
	UpdatedAt int64
}

// ListStates returns every document of kind, most recently updated first.
func (db *DB) ListStates(ctx context.Context, kind string) ([]StateDocument, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id, data, updated_at FROM user_state
		WHERE kind = ? ORDER BY updated_at DESC
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("list %s states: %w", kind, err)
	}
	defer rows.Close()

	var docs []StateDocument
	for rows.Next() {
		var d StateDocument
		var data string
		if err := rows.Scan(&d.UserID, &data, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan %s state: %w", kind, err)
		}
		d.Data = []byte(data)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
