package embedding

import (
	"context"
	"math"

	"github.com/cespare/xxhash/v2"
)

// Hashing is the offline fallback: a bag of unigrams and bigrams hashed into
// a fixed number of buckets with sublinear term frequency. Vectors are stable
// across restarts because no vocabulary is learned.
type Hashing struct {
	dims int
}

// NewHashing creates a hashing embedder with dims buckets (512 if dims <= 0).
func NewHashing(dims int) *Hashing {
	if dims <= 0 {
		dims = 512
	}
	return &Hashing{dims: dims}
}

func (h *Hashing) Model() string   { return "hashing" }
func (h *Hashing) Dimensions() int { return h.dims }

// Embed returns an L2-normalized vector. Text with no tokens yields the zero vector.
func (h *Hashing) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, h.dims)
	tokens := tokenize(text)

	counts := make(map[string]int, len(tokens)*2)
	for i, tok := range tokens {
		counts[tok]++
		if i > 0 {
			counts[tokens[i-1]+" "+tok]++
		}
	}

	for term, n := range counts {
		sum := xxhash.Sum64String(term)
		idx := int(sum % uint64(h.dims))
		// The top bit picks a sign so collisions tend to cancel rather than pile up.
		sign := 1.0
		if sum>>63 == 1 {
			sign = -1.0
		}
		vec[idx] += sign * (1 + math.Log(float64(n)))
	}

	Normalize(vec)
	return vec, nil
}
