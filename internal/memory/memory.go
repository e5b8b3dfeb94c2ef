// Package memory is the semantic memory index: every exchange with a user is
// embedded, persisted, and later recalled by similarity to new messages.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/lazypower/rapport/internal/embedding"
	"github.com/lazypower/rapport/internal/metrics"
	"github.com/lazypower/rapport/internal/store"
)

// ErrUnavailable is returned by Store when no embedder is configured.
var ErrUnavailable = errors.New("memory index unavailable")

// Repository is the persistence the index needs. *store.DB implements it.
type Repository interface {
	InsertMemory(ctx context.Context, m *store.Memory) error
	AllMemories(ctx context.Context) ([]store.Memory, error)
	GetMemoriesByIDs(ctx context.Context, ids []int64) (map[int64]store.Memory, error)
	CountMemories(ctx context.Context, userID string) (int, error)
	PruneMemories(ctx context.Context, policy store.RetentionPolicy, now time.Time) (int64, error)
}

// Result is one recalled memory.
type Result struct {
	store.Memory
	Similarity float64 `json:"similarity"`
}

// Options tunes the index.
type Options struct {
	Workers      int           // concurrent embed/search jobs
	StoreTimeout time.Duration // budget for background Remember calls
}

// Index embeds, persists and searches exchanges. A nil embedder turns the
// index into a no-op store with empty query results.
type Index struct {
	repo     Repository
	embedder embedding.Embedder
	log      *zap.Logger
	sem      *semaphore.Weighted
	timeout  time.Duration
	vectors  flat
	wg       sync.WaitGroup

	// reload is held exclusively by Load from the repository read until the
	// vectors are swapped, and shared by Store around insert and add.
	reload sync.RWMutex
}

// New creates an Index. Call Load to populate it from the repository. A nil
// repo or embedder yields a disabled index.
func New(repo Repository, embedder embedding.Embedder, opts Options, log *zap.Logger) *Index {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 30 * time.Second
	}
	return &Index{
		repo:     repo,
		embedder: embedder,
		log:      log.With(zap.String("component", "memory")),
		sem:      semaphore.NewWeighted(int64(opts.Workers)),
		timeout:  opts.StoreTimeout,
	}
}

// Enabled reports whether the index can store and search.
func (ix *Index) Enabled() bool { return ix.embedder != nil && ix.repo != nil }

// Len returns the number of vectors held in memory.
func (ix *Index) Len() int { return ix.vectors.len() }

// Load rebuilds the in-memory vectors from the repository. Records embedded
// by a different model are skipped since their vectors are not comparable.
func (ix *Index) Load(ctx context.Context) error {
	if !ix.Enabled() {
		return nil
	}
	ix.reload.Lock()
	defer ix.reload.Unlock()

	all, err := ix.repo.AllMemories(ctx)
	if err != nil {
		return fmt.Errorf("load memories: %w", err)
	}

	model := ix.embedder.Model()
	entries := make([]entry, 0, len(all))
	skipped := 0
	for _, m := range all {
		if m.Model != model {
			skipped++
			continue
		}
		entries = append(entries, entry{id: m.ID, userID: m.UserID, vec: m.Embedding})
	}
	ix.vectors.reset(entries)
	metrics.MemoryIndexSize.Set(float64(len(entries)))

	if skipped > 0 {
		ix.log.Warn("skipped memories from another embedding model",
			zap.Int("skipped", skipped), zap.String("model", model))
	}
	ix.log.Info("memory index loaded", zap.Int("size", len(entries)))
	return nil
}

// ExchangeText is the text embedded for one exchange.
func ExchangeText(userMessage, agentResponse string) string {
	return "User: " + userMessage + " Bot: " + agentResponse
}

// Store embeds and persists one exchange. The embedding step honours ctx;
// once the vector exists the write is applied in full or not at all,
// regardless of cancellation. Identical content stored twice yields two
// records with distinct sequence ids.
func (ix *Index) Store(ctx context.Context, userID, userMessage, agentResponse string, importance float64) (*store.Memory, error) {
	if !ix.Enabled() {
		metrics.MemoryStoreTotal.WithLabelValues("disabled").Inc()
		return nil, ErrUnavailable
	}
	if importance <= 0 {
		importance = 1.0
	}

	vec, err := ix.embed(ctx, ExchangeText(userMessage, agentResponse))
	if err != nil {
		metrics.MemoryStoreTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	m := &store.Memory{
		RecordID:      uuid.NewString(),
		UserID:        userID,
		UserMessage:   userMessage,
		AgentResponse: agentResponse,
		Embedding:     vec,
		Model:         ix.embedder.Model(),
		Importance:    importance,
	}
	ix.reload.RLock()
	defer ix.reload.RUnlock()
	if err := ix.repo.InsertMemory(context.WithoutCancel(ctx), m); err != nil {
		metrics.MemoryStoreTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	ix.vectors.add(entry{id: m.ID, userID: userID, vec: vec})
	metrics.MemoryIndexSize.Set(float64(ix.vectors.len()))
	metrics.MemoryStoreTotal.WithLabelValues("ok").Inc()
	return m, nil
}

// Remember stores an exchange in the background. Failures are logged and
// otherwise ignored; Wait blocks until pending calls finish.
func (ix *Index) Remember(userID, userMessage, agentResponse string, importance float64) {
	if !ix.Enabled() {
		return
	}
	ix.wg.Add(1)
	go func() {
		defer ix.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), ix.timeout)
		defer cancel()
		if _, err := ix.Store(ctx, userID, userMessage, agentResponse, importance); err != nil {
			ix.log.Warn("store memory failed", zap.String("user_id", userID), zap.Error(err))
		}
	}()
}

// Wait blocks until every pending Remember has finished.
func (ix *Index) Wait() { ix.wg.Wait() }

// Query returns up to topK of userID's memories most similar to text, best
// first. The search covers the whole index and is filtered afterwards, so a
// user whose memories are crowded out by other users' gets fewer results.
// Any failure yields an empty result.
func (ix *Index) Query(ctx context.Context, userID, text string, topK int) []Result {
	if !ix.Enabled() || topK <= 0 {
		return nil
	}
	size := ix.vectors.len()
	if size == 0 {
		return nil
	}
	start := time.Now()
	defer func() { metrics.MemoryQueryDuration.Observe(time.Since(start).Seconds()) }()

	q, err := ix.embed(ctx, text)
	if err != nil {
		ix.log.Debug("embed query failed", zap.Error(err))
		return nil
	}

	if err := ix.sem.Acquire(ctx, 1); err != nil {
		return nil
	}
	hits := ix.vectors.search(q, min(topK, size))
	ix.sem.Release(1)

	var ids []int64
	scores := make(map[int64]float64)
	for _, h := range hits {
		if h.userID != userID {
			continue
		}
		ids = append(ids, h.id)
		scores[h.id] = h.similarity
	}
	if len(ids) == 0 {
		return nil
	}

	rows, err := ix.repo.GetMemoriesByIDs(ctx, ids)
	if err != nil {
		ix.log.Debug("hydrate memories failed", zap.Error(err))
		return nil
	}
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		m, ok := rows[id]
		if !ok {
			continue // pruned since the search
		}
		results = append(results, Result{Memory: m, Similarity: scores[id]})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// embed runs the embedder inside the worker pool and normalizes the result.
func (ix *Index) embed(ctx context.Context, text string) ([]float64, error) {
	if err := ix.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire worker: %w", err)
	}
	defer ix.sem.Release(1)

	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	out := make([]float64, len(vec))
	copy(out, vec)
	embedding.Normalize(out)
	return out, nil
}

// Prune applies the retention policy and reloads the index.
func (ix *Index) Prune(ctx context.Context, policy store.RetentionPolicy, now time.Time) (int64, error) {
	if ix.repo == nil {
		return 0, nil
	}
	n, err := ix.repo.PruneMemories(ctx, policy, now)
	if err != nil {
		return 0, fmt.Errorf("prune memories: %w", err)
	}
	metrics.MemoryPrunedTotal.Add(float64(n))
	if n > 0 {
		if err := ix.Load(ctx); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Stats summarizes the index for one user.
type Stats struct {
	Enabled   bool   `json:"enabled"`
	Model     string `json:"model,omitempty"`
	UserCount int    `json:"user_memories"`
	IndexSize int    `json:"index_size"`
}

// Stats reports counts for userID. A repository error is reported as zero.
func (ix *Index) Stats(ctx context.Context, userID string) Stats {
	s := Stats{Enabled: ix.Enabled(), IndexSize: ix.vectors.len()}
	if ix.Enabled() {
		s.Model = ix.embedder.Model()
	}
	if ix.repo == nil {
		return s
	}
	if n, err := ix.repo.CountMemories(ctx, userID); err == nil {
		s.UserCount = n
	}
	return s
}

var importanceMarkers = []struct {
	words []string
	score float64
}{
	{[]string{"remember", "important", "never forget"}, 2.0},
	{[]string{"name", "live", "favorite", "hobby"}, 1.5},
}

// Importance scores a user message: explicit requests to remember rank
// highest, personal details next.
func Importance(userMessage string) float64 {
	lower := strings.ToLower(userMessage)
	for _, m := range importanceMarkers {
		for _, w := range m.words {
			if strings.Contains(lower, w) {
				return m.score
			}
		}
	}
	return 1.0
}

// FormatContext renders results as a prompt section, or "" when empty.
func FormatContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("RELEVANT PAST CONVERSATIONS:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. User said: %q\n   You replied: %q\n", i+1, r.UserMessage, r.AgentResponse)
	}
	return b.String()
}
