package embedder

import (
	"context"

	"github.com/oceanbase/vira-go/pkg/llm"
	"github.com/oceanbase/vira-go/pkg/resilience"
)

// ResilientProvider wraps a Provider with a resilience.Guard.
type ResilientProvider struct {
	inner Provider
	guard *resilience.Guard
}

// NewResilientProvider wraps inner. Transient errors are classified by
// llm.IsTransient unless the guard policy says otherwise.
func NewResilientProvider(inner Provider, guard resilience.Guard) *ResilientProvider {
	if guard.Policy.Retryable == nil {
		guard.Policy.Retryable = llm.IsTransient
	}
	return &ResilientProvider{inner: inner, guard: &guard}
}

// Embed calls the wrapped provider under the guard.
func (p *ResilientProvider) Embed(ctx context.Context, text string) ([]float64, error) {
	var out []float64
	err := p.guard.Do(ctx, func(ctx context.Context) error {
		vec, err := p.inner.Embed(ctx, text)
		if err != nil {
			return err
		}
		out = vec
		return nil
	})
	return out, err
}

// Dimensions returns the wrapped provider's dimensions.
func (p *ResilientProvider) Dimensions() int {
	return p.inner.Dimensions()
}

// Close closes the wrapped provider.
func (p *ResilientProvider) Close() error {
	return p.inner.Close()
}
