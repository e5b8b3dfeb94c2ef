package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisState keeps state documents in Redis string keys. SET replaces the
// value atomically, so a crash never leaves a half-written document.
type RedisState struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisState creates a Redis-backed StateStore. A zero ttl keeps
// documents forever.
func NewRedisState(client redis.Cmdable, ttl time.Duration) *RedisState {
	return &RedisState{client: client, prefix: "rapport:state", ttl: ttl}
}

func (s *RedisState) key(kind, userID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, kind, userID)
}

// LoadState returns the stored document, or nil if none exists.
func (s *RedisState) LoadState(ctx context.Context, kind, userID string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(kind, userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s state: %w", kind, err)
	}
	return data, nil
}

// SaveState replaces the document.
func (s *RedisState) SaveState(ctx context.Context, kind, userID string, data []byte) error {
	if err := s.client.Set(ctx, s.key(kind, userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set %s state: %w", kind, err)
	}
	return nil
}

// SaveStates writes the documents inside MULTI/EXEC.
func (s *RedisState) SaveStates(ctx context.Context, userID string, docs map[string][]byte) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for kind, data := range docs {
			pipe.Set(ctx, s.key(kind, userID), data, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("set states: %w", err)
	}
	return nil
}

// DeleteStates removes the documents with a single DEL.
func (s *RedisState) DeleteStates(ctx context.Context, userID string, kinds ...string) error {
	if len(kinds) == 0 {
		return nil
	}
	keys := make([]string, len(kinds))
	for i, kind := range kinds {
		keys[i] = s.key(kind, userID)
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("del states: %w", err)
	}
	return nil
}

// ListStates scans every document of kind. Redis keeps no update time, so
// UpdatedAt is zero and documents are ordered by user id.
func (s *RedisState) ListStates(ctx context.Context, kind string) ([]StateDocument, error) {
	prefix := s.key(kind, "")
	var keys []string
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan %s states: %w", kind, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	sort.Strings(keys)

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget %s states: %w", kind, err)
	}
	docs := make([]StateDocument, 0, len(keys))
	for i, v := range vals {
		data, ok := v.(string)
		if !ok {
			continue // expired between SCAN and MGET
		}
		docs = append(docs, StateDocument{UserID: strings.TrimPrefix(keys[i], prefix), Data: []byte(data)})
	}
	return docs, nil
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
