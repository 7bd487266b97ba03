// Package llmtest provides llm.Provider fakes for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/oceanbase/vira-go/pkg/llm"
	"github.com/stretchr/testify/mock"
)

// Call records one request seen by a Func provider.
type Call struct {
	Messages []llm.Message
	Options  llm.GenerateOptions
}

// Func is a provider backed by a function. It records every call.
type Func struct {
	Fn func(ctx context.Context, messages []llm.Message, opts *llm.GenerateOptions) (string, error)

	mu    sync.Mutex
	calls []Call
}

// Reply returns a provider that always answers text.
func Reply(text string) *Func {
	return &Func{Fn: func(context.Context, []llm.Message, *llm.GenerateOptions) (string, error) {
		return text, nil
	}}
}

// Fail returns a provider that always fails with err.
func Fail(err error) *Func {
	return &Func{Fn: func(context.Context, []llm.Message, *llm.GenerateOptions) (string, error) {
		return "", err
	}}
}

func (f *Func) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return f.GenerateWithMessages(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts...)
}

func (f *Func) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	options := llm.ApplyGenerateOptions(opts)
	f.mu.Lock()
	f.calls = append(f.calls, Call{Messages: append([]llm.Message(nil), messages...), Options: *options})
	f.mu.Unlock()
	return f.Fn(ctx, messages, options)
}

func (f *Func) Close() error { return nil }

// Calls returns a copy of the recorded calls.
func (f *Func) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount returns the number of recorded calls.
func (f *Func) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Mock is a testify mock of llm.Provider. Options are applied and passed to
// Called as *llm.GenerateOptions.
type Mock struct {
	mock.Mock
}

func (m *Mock) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	args := m.Called(ctx, prompt, llm.ApplyGenerateOptions(opts))
	return args.String(0), args.Error(1)
}

func (m *Mock) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	args := m.Called(ctx, messages, llm.ApplyGenerateOptions(opts))
	return args.String(0), args.Error(1)
}

func (m *Mock) Close() error {
	return m.Called().Error(0)
}
