package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
)

// Memory is one stored exchange with its embedding. Rows are never updated.
type Memory struct {
	ID            int64     `json:"-"`
	RecordID      string    `json:"id"`
	UserID        string    `json:"user_id"`
	Seq           int64     `json:"sequence_id"`
	UserMessage   string    `json:"user_message"`
	AgentResponse string    `json:"agent_response"`
	Embedding     []float64 `json:"-"`
	Model         string    `json:"model"`
	Importance    float64   `json:"importance_score"`
	CreatedAt     int64     `json:"timestamp"`
}

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64.
func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

// InsertMemory appends m, drawing the next per-user sequence number from
// memory_sequences in the same transaction. Sequence numbers keep increasing
// even after pruning. m.ID, m.Seq and m.CreatedAt are filled in.
func (db *DB) InsertMemory(ctx context.Context, m *Memory) error {
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixMilli()
	}
	if m.Importance == 0 {
		m.Importance = 1.0
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert memory: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO memory_sequences (user_id, last_seq) VALUES (?, 1)
		ON CONFLICT(user_id) DO UPDATE SET last_seq = last_seq + 1
		RETURNING last_seq
	`, m.UserID).Scan(&m.Seq)
	if err != nil {
		return fmt.Errorf("next memory seq: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO memories (record_id, user_id, seq, user_message, agent_response,
		                      embedding, model, dimensions, importance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.RecordID, m.UserID, m.Seq, m.UserMessage, m.AgentResponse,
		encodeEmbedding(m.Embedding), m.Model, len(m.Embedding), m.Importance, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("memory id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit memory: %w", err)
	}
	return nil
}

const memoryColumns = `id, record_id, user_id, seq, user_message, agent_response,
	embedding, model, importance, created_at`

func scanMemory(s interface{ Scan(...any) error }) (Memory, error) {
	var m Memory
	var blob []byte
	err := s.Scan(&m.ID, &m.RecordID, &m.UserID, &m.Seq, &m.UserMessage, &m.AgentResponse,
		&blob, &m.Model, &m.Importance, &m.CreatedAt)
	if err != nil {
		return m, err
	}
	m.Embedding = decodeEmbedding(blob)
	return m, nil
}

func (db *DB) queryMemories(ctx context.Context, query string, args ...any) ([]Memory, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// AllMemories returns every memory in insertion order.
func (db *DB) AllMemories(ctx context.Context) ([]Memory, error) {
	out, err := db.queryMemories(ctx, "SELECT "+memoryColumns+" FROM memories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("all memories: %w", err)
	}
	return out, nil
}

// GetMemoriesByIDs returns the memories with the given row ids, keyed by id.
func (db *DB) GetMemoriesByIDs(ctx context.Context, ids []int64) (map[int64]Memory, error) {
	if len(ids) == 0 {
		return map[int64]Memory{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	list, err := db.queryMemories(ctx,
		"SELECT "+memoryColumns+" FROM memories WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("get memories by ids: %w", err)
	}
	out := make(map[int64]Memory, len(list))
	for _, m := range list {
		out[m.ID] = m
	}
	return out, nil
}

// ListMemories returns a user's most recent memories, newest first.
func (db *DB) ListMemories(ctx context.Context, userID string, limit int) ([]Memory, error) {
	if limit <= 0 {
		limit = 50
	}
	out, err := db.queryMemories(ctx,
		"SELECT "+memoryColumns+" FROM memories WHERE user_id = ? ORDER BY seq DESC LIMIT ?",
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	return out, nil
}

// GetMemory returns one memory by record id, or nil if not found.
func (db *DB) GetMemory(ctx context.Context, recordID string) (*Memory, error) {
	row := db.QueryRowContext(ctx,
		"SELECT "+memoryColumns+" FROM memories WHERE record_id = ?", recordID)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return &m, nil
}

// CountMemories returns the number of memories for a user, or all users when
// userID is empty.
func (db *DB) CountMemories(ctx context.Context, userID string) (int, error) {
	var n int
	var err error
	if userID == "" {
		err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories").Scan(&n)
	} else {
		err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memories WHERE user_id = ?", userID).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}
	return n, nil
}

// RetentionPolicy bounds memory growth. Zero fields disable that rule.
type RetentionPolicy struct {
	MaxPerUser    int
	MaxAge        time.Duration
	PinImportance float64 // memories at or above this importance ignore MaxAge
}

// PruneMemories applies policy and returns the number of rows removed.
func (db *DB) PruneMemories(ctx context.Context, policy RetentionPolicy, now time.Time) (int64, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune: %w", err)
	}
	defer tx.Rollback()

	var removed int64
	if policy.MaxAge > 0 {
		cutoff := now.Add(-policy.MaxAge).UnixMilli()
		pin := policy.PinImportance
		if pin <= 0 {
			pin = math.MaxFloat64
		}
		res, err := tx.ExecContext(ctx,
			"DELETE FROM memories WHERE created_at < ? AND importance < ?", cutoff, pin)
		if err != nil {
			return 0, fmt.Errorf("prune by age: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}

	if policy.MaxPerUser > 0 {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM memories WHERE id IN (
				SELECT id FROM (
					SELECT id, ROW_NUMBER() OVER (PARTITION BY user_id ORDER BY seq DESC) AS rn
					FROM memories
				) WHERE rn > ?
			)
		`, policy.MaxPerUser)
		if err != nil {
			return 0, fmt.Errorf("prune by count: %w", err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return removed, nil
}
