package memory

import (
	"sort"
	"sync"

	"github.com/lazypower/rapport/internal/embedding"
)

// flat is an exhaustive inner-product index over L2-normalized vectors.
// It is not partitioned by user; callers filter after searching.
type flat struct {
	mu      sync.RWMutex
	entries []entry
}

type entry struct {
	id     int64
	userID string
	vec    []float64
}

type hit struct {
	id         int64
	userID     string
	similarity float64
}

func (f *flat) add(e entry) {
	f.mu.Lock()
	f.entries = append(f.entries, e)
	f.mu.Unlock()
}

func (f *flat) reset(entries []entry) {
	f.mu.Lock()
	f.entries = entries
	f.mu.Unlock()
}

func (f *flat) len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// search returns the k nearest entries by inner product, best first. Ties
// keep insertion order.
func (f *flat) search(q []float64, k int) []hit {
	f.mu.RLock()
	hits := make([]hit, 0, len(f.entries))
	for _, e := range f.entries {
		hits = append(hits, hit{id: e.id, userID: e.userID, similarity: embedding.Dot(q, e.vec)})
	}
	f.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].similarity > hits[j].similarity
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}
