// Package embeddertest provides deterministic embedders for tests.
package embeddertest

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

// Hashing embeds text as a normalized bag of hashed lower-cased words, so
// texts sharing words get high cosine similarity. It is deterministic.
type Hashing struct {
	Dims int
	Err  error

	mu    sync.Mutex
	calls int
}

// NewHashing returns a Hashing embedder with dims dimensions.
func NewHashing(dims int) *Hashing {
	return &Hashing{Dims: dims}
}

func (h *Hashing) Embed(ctx context.Context, text string) ([]float64, error) {
	h.mu.Lock()
	h.calls++
	h.mu.Unlock()
	if h.Err != nil {
		return nil, h.Err
	}

	vec := make([]float64, h.Dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(word))
		vec[int(f.Sum32())%h.Dims]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func (h *Hashing) Dimensions() int { return h.Dims }

func (h *Hashing) Close() error { return nil }

// Calls returns how many times Embed was called.
func (h *Hashing) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// Static returns fixed vectors by exact text, and Default otherwise.
type Static struct {
	Vectors map[string][]float64
	Default []float64
}

func (s *Static) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := s.Vectors[text]; ok {
		return v, nil
	}
	return s.Default, nil
}

func (s *Static) Dimensions() int { return len(s.Default) }

func (s *Static) Close() error { return nil }
