// Package throttle limits how often a single user can drive the engine.
package throttle

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Limiter decides whether a user may send another message now.
type Limiter interface {
	Allow(ctx context.Context, userID string) (bool, error)
}

// Unlimited allows everything.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) (bool, error) { return true, nil }

// Local is an in-process token bucket per user.
type Local struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// idleAfter is how long an untouched bucket is kept.
const idleAfter = 10 * time.Minute

// NewLocal allows limit messages per window with bursts up to limit. Idle
// buckets are swept until ctx is done.
func NewLocal(ctx context.Context, limit int, window time.Duration) *Local {
	if limit <= 0 {
		limit = 1
	}
	l := &Local{
		limit:    rate.Every(window / time.Duration(limit)),
		burst:    limit,
		visitors: make(map[string]*visitor),
	}
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweep(time.Now())
			}
		}
	}()
	return l
}

func (l *Local) Allow(_ context.Context, userID string) (bool, error) {
	l.mu.Lock()
	v, ok := l.visitors[userID]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[userID] = v
	}
	v.lastSeen = time.Now()
	l.mu.Unlock()
	return v.limiter.Allow(), nil
}

func (l *Local) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, v := range l.visitors {
		if now.Sub(v.lastSeen) > idleAfter {
			delete(l.visitors, id)
		}
	}
}

const keyPrefix = "rapport:throttle:"

// Redis is a sorted-set sliding window shared by every process using the
// same Redis.
type Redis struct {
	rdb    redis.Cmdable
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedis allows limit messages per sliding window.
func NewRedis(rdb redis.Cmdable, limit int, window time.Duration) *Redis {
	return &Redis{rdb: rdb, limit: limit, window: window, now: time.Now}
}

// Allow counts the message against the window when under the limit.
func (r *Redis) Allow(ctx context.Context, userID string) (bool, error) {
	key := keyPrefix + userID
	now := r.now()
	windowStart := now.Add(-r.window).UnixMilli()

	pipe := r.rdb.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart, 10))
	countCmd := pipe.ZCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("throttle pipeline (clean+count): %w", err)
	}
	count := countCmd.Val()
	if count >= int64(r.limit) {
		return false, nil
	}

	pipe = r.rdb.Pipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: fmt.Sprintf("%d:%d", now.UnixNano(), count)})
	pipe.Expire(ctx, key, r.window+30*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("throttle pipeline (add): %w", err)
	}
	return true, nil
}
