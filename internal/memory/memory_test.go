package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/lazypower/rapport/internal/embedding"
	"github.com/lazypower/rapport/internal/store"
)

// memRepo is an in-process Repository for tests that don't need SQLite.
type memRepo struct {
	mu   sync.Mutex
	rows []store.Memory
	seq  map[string]int64
}

func newMemRepo() *memRepo { return &memRepo{seq: map[string]int64{}} }

func (r *memRepo) InsertMemory(_ context.Context, m *store.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq[m.UserID]++
	m.Seq = r.seq[m.UserID]
	m.ID = int64(len(r.rows) + 1)
	m.CreatedAt = time.Now().UnixMilli()
	r.rows = append(r.rows, *m)
	return nil
}

func (r *memRepo) AllMemories(context.Context) ([]store.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.Memory(nil), r.rows...), nil
}

func (r *memRepo) GetMemoriesByIDs(_ context.Context, ids []int64) (map[int64]store.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[int64]store.Memory{}
	for _, id := range ids {
		for _, m := range r.rows {
			if m.ID == id {
				out[id] = m
			}
		}
	}
	return out, nil
}

func (r *memRepo) CountMemories(_ context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.rows {
		if userID == "" || m.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) PruneMemories(context.Context, store.RetentionPolicy, time.Time) (int64, error) {
	return 0, nil
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, _ string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, errors.New("provider down")
}
func (failingEmbedder) Model() string   { return "failing" }
func (failingEmbedder) Dimensions() int { return 8 }

func newIndex(t *testing.T) (*Index, *memRepo) {
	t.Helper()
	repo := newMemRepo()
	return New(repo, embedding.NewHashing(256), Options{Workers: 2}, nil), repo
}

func TestStoreAndQuery(t *testing.T) {
	ix, _ := newIndex(t)
	ctx := context.Background()

	_, err := ix.Store(ctx, "alice", "my dog is named biscuit", "cute name", 1.5)
	require.NoError(t, err)
	_, err = ix.Store(ctx, "alice", "quarterly taxes are due friday", "good luck", 1.0)
	require.NoError(t, err)

	got := ix.Query(ctx, "alice", "what is my dog named", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "my dog is named biscuit", got[0].UserMessage)
	assert.Equal(t, 1.5, got[0].Importance)
	assert.Greater(t, got[0].Similarity, 0.0)
}

func TestQueryFiltersOtherUsers(t *testing.T) {
	ix, _ := newIndex(t)
	ctx := context.Background()

	_, err := ix.Store(ctx, "alice", "my dog is named biscuit", "aww", 1)
	require.NoError(t, err)
	_, err = ix.Store(ctx, "bob", "my dog is named biscuit", "aww", 1)
	require.NoError(t, err)

	got := ix.Query(ctx, "bob", "dog named biscuit", 5)
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].UserID)

	assert.Empty(t, ix.Query(ctx, "carol", "dog named biscuit", 5))
}

func TestStoreIsNotDeduplicated(t *testing.T) {
	ix, _ := newIndex(t)
	ctx := context.Background()

	a, err := ix.Store(ctx, "alice", "hello", "hi", 1)
	require.NoError(t, err)
	b, err := ix.Store(ctx, "alice", "hello", "hi", 1)
	require.NoError(t, err)

	assert.NotEqual(t, a.RecordID, b.RecordID)
	assert.NotEqual(t, a.Seq, b.Seq)
	assert.Equal(t, 2, ix.Len())
}

func TestDisabledIndex(t *testing.T) {
	ix := New(newMemRepo(), nil, Options{}, nil)
	ctx := context.Background()

	_, err := ix.Store(ctx, "alice", "hello", "hi", 1)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Empty(t, ix.Query(ctx, "alice", "hello", 3))
	ix.Remember("alice", "hello", "hi", 1)
	ix.Wait()
	assert.False(t, ix.Stats(ctx, "alice").Enabled)
}

func TestQueryEmptyIndex(t *testing.T) {
	ix, _ := newIndex(t)
	assert.Empty(t, ix.Query(context.Background(), "alice", "anything", 3))
}

func TestEmbedderFailureDegrades(t *testing.T) {
	repo := newMemRepo()
	good := New(repo, embedding.NewHashing(64), Options{}, nil)
	_, err := good.Store(context.Background(), "alice", "hello there", "hi", 1)
	require.NoError(t, err)

	ix := New(repo, failingEmbedder{}, Options{}, nil)
	ix.vectors.reset([]entry{{id: 1, userID: "alice", vec: make([]float64, 64)}})

	_, err = ix.Store(context.Background(), "alice", "x", "y", 1)
	assert.Error(t, err)
	assert.Empty(t, ix.Query(context.Background(), "alice", "hello", 3))
}

func TestQueryCancelled(t *testing.T) {
	ix, _ := newIndex(t)
	_, err := ix.Store(context.Background(), "alice", "hello there", "hi", 1)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ix.embedder = failingEmbedder{}
	assert.Empty(t, ix.Query(ctx, "alice", "hello", 3))
}

func TestRememberIsAsync(t *testing.T) {
	ix, repo := newIndex(t)
	ix.Remember("alice", "i live in denver", "nice city", Importance("i live in denver"))
	ix.Wait()

	n, _ := repo.CountMemories(context.Background(), "alice")
	assert.Equal(t, 1, n)
	got := ix.Query(context.Background(), "alice", "where do i live", 3)
	require.Len(t, got, 1)
	assert.Equal(t, 1.5, got[0].Importance)
}

// pausingRepo takes its snapshot and then holds AllMemories open until
// release is closed.
type pausingRepo struct {
	*memRepo
	entered chan struct{}
	release chan struct{}
}

func (r *pausingRepo) AllMemories(ctx context.Context) ([]store.Memory, error) {
	rows, err := r.memRepo.AllMemories(ctx)
	close(r.entered)
	<-r.release
	return rows, err
}

func TestStoreDuringLoadIsKept(t *testing.T) {
	repo := &pausingRepo{memRepo: newMemRepo(), entered: make(chan struct{}), release: make(chan struct{})}
	ix := New(repo, embedding.NewHashing(128), Options{}, nil)
	ctx := context.Background()

	loaded := make(chan error, 1)
	go func() { loaded <- ix.Load(ctx) }()
	<-repo.entered

	stored := make(chan error, 1)
	go func() {
		_, err := ix.Store(ctx, "alice", "my cat is called pickles", "adorable", 1.5)
		stored <- err
	}()
	time.Sleep(20 * time.Millisecond)
	close(repo.release)

	require.NoError(t, <-loaded)
	require.NoError(t, <-stored)

	n, _ := repo.CountMemories(ctx, "alice")
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, ix.Len())
	got := ix.Query(ctx, "alice", "what is my cat called", 5)
	require.Len(t, got, 1)
	assert.Equal(t, "my cat is called pickles", got[0].UserMessage)
}

func TestReloadDoesNotDuplicate(t *testing.T) {
	ix, _ := newIndex(t)
	ctx := context.Background()
	_, err := ix.Store(ctx, "alice", "my cat is called pickles", "adorable", 1.5)
	require.NoError(t, err)

	require.NoError(t, ix.Load(ctx))
	assert.Equal(t, 1, ix.Len())
	assert.Len(t, ix.Query(ctx, "alice", "what is my cat called", 5), 1)
}

func TestLoadSkipsOtherModels(t *testing.T) {
	repo := newMemRepo()
	ctx := context.Background()
	require.NoError(t, repo.InsertMemory(ctx, &store.Memory{UserID: "a", Model: "hashing", Embedding: make([]float64, 32)}))
	require.NoError(t, repo.InsertMemory(ctx, &store.Memory{UserID: "a", Model: "ollama:x", Embedding: make([]float64, 768)}))

	ix := New(repo, embedding.NewHashing(32), Options{}, nil)
	require.NoError(t, ix.Load(ctx))
	assert.Equal(t, 1, ix.Len())
}

func TestWithSQLite(t *testing.T) {
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()

	ix := New(db, embedding.NewHashing(128), Options{}, nil)
	_, err = ix.Store(ctx, "alice", "please remember my birthday is in june", "noted", 2.0)
	require.NoError(t, err)

	// A fresh index over the same database recovers the vectors.
	ix2 := New(db, embedding.NewHashing(128), Options{}, nil)
	require.NoError(t, ix2.Load(ctx))
	got := ix2.Query(ctx, "alice", "when is my birthday", 3)
	require.Len(t, got, 1)
	assert.Equal(t, int64(1), got[0].Seq)

	old := time.Now().Add(48 * time.Hour)
	n, err := ix2.Prune(ctx, store.RetentionPolicy{MaxAge: time.Hour, PinImportance: 2.0}, old)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "pinned memory survives age eviction")

	n, err = ix2.Prune(ctx, store.RetentionPolicy{MaxAge: time.Hour}, old)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 0, ix2.Len())

	s := ix2.Stats(ctx, "alice")
	assert.Equal(t, Stats{Enabled: true, Model: "hashing", UserCount: 0, IndexSize: 0}, s)
}

func TestImportance(t *testing.T) {
	tests := []struct {
		msg  string
		want float64
	}{
		{"Please REMEMBER this", 2.0},
		{"this is important", 2.0},
		{"never forget my cat", 2.0},
		{"my name is sam", 1.5},
		{"I live in Ohio", 1.5},
		{"my favorite food is ramen", 1.5},
		{"what's up", 1.0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Importance(tt.msg), tt.msg)
	}
}

func TestFormatContext(t *testing.T) {
	assert.Equal(t, "", FormatContext(nil))

	out := FormatContext([]Result{
		{Memory: store.Memory{UserMessage: "i like jazz", AgentResponse: "same"}},
	})
	assert.True(t, strings.HasPrefix(out, "RELEVANT PAST CONVERSATIONS:"))
	assert.Contains(t, out, `User said: "i like jazz"`)
	assert.Contains(t, out, `You replied: "same"`)
}

func TestQueryProperties(t *testing.T) {
	words := []string{"dog", "cat", "jazz", "pizza", "denver", "hiking", "taxes", "birthday"}
	rapid.Check(t, func(t *rapid.T) {
		repo := newMemRepo()
		ix := New(repo, embedding.NewHashing(64), Options{Workers: 1}, nil)
		ctx := context.Background()

		n := rapid.IntRange(0, 20).Draw(t, "n")
		for i := 0; i < n; i++ {
			user := rapid.SampledFrom([]string{"u1", "u2", "u3"}).Draw(t, "user")
			a := rapid.SampledFrom(words).Draw(t, "a")
			b := rapid.SampledFrom(words).Draw(t, "b")
			if _, err := ix.Store(ctx, user, fmt.Sprintf("%s and %s", a, b), "ok", 1); err != nil {
				t.Fatalf("store: %v", err)
			}
		}

		user := rapid.SampledFrom([]string{"u1", "u2", "u3"}).Draw(t, "query_user")
		k := rapid.IntRange(1, 10).Draw(t, "k")
		got := ix.Query(ctx, user, rapid.SampledFrom(words).Draw(t, "q"), k)

		if len(got) > k {
			t.Fatalf("got %d results, k=%d", len(got), k)
		}
		for i, r := range got {
			if r.UserID != user {
				t.Fatalf("result %d belongs to %s, want %s", i, r.UserID, user)
			}
			if i > 0 && r.Similarity > got[i-1].Similarity {
				t.Fatalf("results not sorted at %d", i)
			}
		}
	})
}
