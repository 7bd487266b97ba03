package embedder_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/oceanbase/vira-go/pkg/embedder"
	"github.com/oceanbase/vira-go/pkg/embedder/embeddertest"
	"github.com/oceanbase/vira-go/pkg/llm"
	"github.com/oceanbase/vira-go/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flaky struct {
	failures int
	calls    int
}

func (f *flaky) Embed(ctx context.Context, text string) ([]float64, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &llm.StatusError{Code: http.StatusTooManyRequests, Err: errors.New("slow down")}
	}
	return []float64{1, 0}, nil
}

func (f *flaky) Dimensions() int { return 2 }
func (f *flaky) Close() error    { return nil }

func TestResilientProvider_RetriesRateLimit(t *testing.T) {
	inner := &flaky{failures: 2}
	p := embedder.NewResilientProvider(inner, resilience.Guard{Policy: resilience.Policy{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	}})

	vec, err := p.Embed(context.Background(), "merhaba")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, vec)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, 2, p.Dimensions())
}

func TestHashing_SharedWordsAreSimilar(t *testing.T) {
	h := embeddertest.NewHashing(64)
	a, err := h.Embed(context.Background(), "kahve içmeyi çok severim")
	require.NoError(t, err)
	b, err := h.Embed(context.Background(), "kahve içmeyi severim")
	require.NoError(t, err)
	c, err := h.Embed(context.Background(), "uzay gemisi yolculuğu")
	require.NoError(t, err)

	dot := func(x, y []float64) float64 {
		var s float64
		for i := range x {
			s += x[i] * y[i]
		}
		return s
	}
	assert.Greater(t, dot(a, b), dot(a, c))
	assert.Len(t, a, 64)
}
