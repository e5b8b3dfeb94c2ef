package transcript

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/lazypower/rapport/internal/memory"
	"github.com/lazypower/rapport/internal/store"
)

// Storer persists one exchange. *memory.Index satisfies it.
type Storer interface {
	Store(ctx context.Context, userID, userMessage, agentResponse string, importance float64) (*store.Memory, error)
}

// Import stores exchanges for userID with at most workers in flight. Records
// are written as embeddings complete, so sequence ids follow completion
// order rather than log order. The first failure cancels the rest and is
// returned with the count stored so far.
func Import(ctx context.Context, s Storer, userID string, exchanges []Exchange, workers int) (int, error) {
	if workers <= 0 {
		workers = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var stored atomic.Int64
	for i, ex := range exchanges {
		g.Go(func() error {
			if _, err := s.Store(ctx, userID, ex.UserMessage, ex.AgentResponse, memory.Importance(ex.UserMessage)); err != nil {
				return fmt.Errorf("store exchange %d: %w", i+1, err)
			}
			stored.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(stored.Load()), err
}
