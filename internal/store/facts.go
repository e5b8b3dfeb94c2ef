package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Fact is one structured personal fact about a user, e.g. favorite_game=Celeste.
type Fact struct {
	UserID    string `json:"user_id"`
	Key       string `json:"key"`
	Value     string `json:"value"`
	Category  string `json:"category"`
	UpdatedAt int64  `json:"updated_at"`
}

// UpsertFact stores f, replacing any existing value for the same key.
func (db *DB) UpsertFact(ctx context.Context, f Fact) error {
	if f.Category == "" {
		f.Category = "general"
	}
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO facts (user_id, key, value, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET
			value = excluded.value, category = excluded.category, updated_at = excluded.updated_at
	`, f.UserID, f.Key, f.Value, f.Category, now, now)
	if err != nil {
		return fmt.Errorf("upsert fact: %w", err)
	}
	return nil
}

// ListFacts returns a user's facts ordered by category then key.
func (db *DB) ListFacts(ctx context.Context, userID string) ([]Fact, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id, key, value, category, updated_at FROM facts
		WHERE user_id = ? ORDER BY category, key
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list facts: %w", err)
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.UserID, &f.Key, &f.Value, &f.Category, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}

// DeleteFact removes one fact.
func (db *DB) DeleteFact(ctx context.Context, userID, key string) error {
	_, err := db.ExecContext(ctx, "DELETE FROM facts WHERE user_id = ? AND key = ?", userID, key)
	if err != nil {
		return fmt.Errorf("delete fact: %w", err)
	}
	return nil
}

// UserContext renders a user's facts as prompt context, or "" if none.
func (db *DB) UserContext(ctx context.Context, userID string) (string, error) {
	facts, err := db.ListFacts(ctx, userID)
	if err != nil {
		return "", err
	}
	if len(facts) == 0 {
		return "", nil
	}

	var b strings.Builder
	b.WriteString("WHAT YOU KNOW ABOUT THIS USER:\n")
	for _, f := range facts {
		fmt.Fprintf(&b, "- %s: %s\n", strings.ReplaceAll(f.Key, "_", " "), f.Value)
	}
	return b.String(), nil
}
