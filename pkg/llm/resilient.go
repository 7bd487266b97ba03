package llm

import (
	"context"

	"github.com/oceanbase/vira-go/pkg/resilience"
)

// ResilientProvider wraps a Provider with a resilience.Guard. Transient
// failures (see IsTransient) are retried; everything else is returned as is.
type ResilientProvider struct {
	inner Provider
	guard *resilience.Guard
}

// NewResilientProvider wraps inner. When guard.Policy.Retryable is nil it is
// set to IsTransient.
func NewResilientProvider(inner Provider, guard resilience.Guard) *ResilientProvider {
	if guard.Policy.Retryable == nil {
		guard.Policy.Retryable = IsTransient
	}
	return &ResilientProvider{inner: inner, guard: &guard}
}

// Generate generates text from a single user prompt.
func (p *ResilientProvider) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	return p.GenerateWithMessages(ctx, []Message{{Role: RoleUser, Content: prompt}}, opts...)
}

// GenerateWithMessages calls the wrapped provider under the guard.
func (p *ResilientProvider) GenerateWithMessages(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error) {
	var out string
	err := p.guard.Do(ctx, func(ctx context.Context) error {
		text, err := p.inner.GenerateWithMessages(ctx, messages, opts...)
		if err != nil {
			return err
		}
		out = text
		return nil
	})
	return out, err
}

// Close closes the wrapped provider.
func (p *ResilientProvider) Close() error {
	return p.inner.Close()
}
