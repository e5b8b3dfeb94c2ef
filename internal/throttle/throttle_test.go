package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnlimited(t *testing.T) {
	ok, err := Unlimited{}.Allow(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalBurstThenDeny(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLocal(ctx, 3, time.Hour)

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, ok, "message %d", i)
	}
	ok, _ := l.Allow(ctx, "alice")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "bob")
	assert.True(t, ok, "users have separate buckets")
}

func TestLocalSweep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := NewLocal(ctx, 1, time.Minute)
	l.Allow(ctx, "alice")

	l.sweep(time.Now())
	assert.Len(t, l.visitors, 1)
	l.sweep(time.Now().Add(idleAfter + time.Second))
	assert.Empty(t, l.visitors)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisSlidingWindow(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewRedis(client, 2, time.Minute)
	r.now = func() time.Time { return now }

	ok, err := r.Allow(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	now = now.Add(time.Second)
	ok, _ = r.Allow(ctx, "alice")
	assert.True(t, ok)
	now = now.Add(time.Second)
	ok, _ = r.Allow(ctx, "alice")
	assert.False(t, ok, "third message inside the window")

	ok, _ = r.Allow(ctx, "bob")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, _ = r.Allow(ctx, "alice")
	assert.True(t, ok, "window slid past the first two")
}

func TestRedisErrorSurfaces(t *testing.T) {
	mr, client := newRedis(t)
	mr.Close()

	_, err := NewRedis(client, 1, time.Minute).Allow(context.Background(), "alice")
	assert.Error(t, err)
}
