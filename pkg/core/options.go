package core

import (
	"time"

	"go.uber.org/zap"

	"github.com/oceanbase/vira-go/pkg/embedder"
	"github.com/oceanbase/vira-go/pkg/llm"
	"github.com/oceanbase/vira-go/pkg/persona"
	"github.com/oceanbase/vira-go/pkg/personality"
	"github.com/oceanbase/vira-go/pkg/storage"
)

// Option configures NewAssistant. Injected collaborators replace the ones
// the configuration would build; the assistant still closes them.
type Option func(*assistantOptions)

type assistantOptions struct {
	logger       *zap.Logger
	llm          llm.Provider
	embedder     embedder.Provider
	store        storage.MemoryStore
	personality  personality.Store
	protocol     *persona.Protocol
	now          func() time.Time
	skipGuarding bool
}

// WithLogger sets the logger of the assistant and every component it builds.
func WithLogger(logger *zap.Logger) Option {
	return func(o *assistantOptions) {
		o.logger = logger
	}
}

// WithLLM uses provider for generation, intent fallback and semantic scoring.
func WithLLM(provider llm.Provider) Option {
	return func(o *assistantOptions) {
		o.llm = provider
	}
}

// WithEmbedder uses provider for embeddings.
func WithEmbedder(provider embedder.Provider) Option {
	return func(o *assistantOptions) {
		o.embedder = provider
	}
}

// WithStore uses store for all memory records.
func WithStore(store storage.MemoryStore) Option {
	return func(o *assistantOptions) {
		o.store = store
	}
}

// WithPersonalityStore uses store for dynamic personality vectors.
func WithPersonalityStore(store personality.Store) Option {
	return func(o *assistantOptions) {
		o.personality = store
	}
}

// WithProtocol overrides the persona document named in the configuration.
func WithProtocol(p *persona.Protocol) Option {
	return func(o *assistantOptions) {
		o.protocol = p
	}
}

// WithClock sets the clock used for memory timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *assistantOptions) {
		o.now = now
	}
}

// WithoutGuard skips the retry, breaker and rate-limit wrappers around
// injected providers.
func WithoutGuard() Option {
	return func(o *assistantOptions) {
		o.skipGuarding = true
	}
}

// ChatOption configures one Chat call.
type ChatOption func(*ChatOptions)

// ChatOptions contains the per-turn parameters.
type ChatOptions struct {
	// SessionID scopes short-term memory. Defaults to the user ID.
	SessionID string

	// History is the prior conversation given to the intent classifier.
	History []llm.Message
}

// WithSessionID sets the session of the turn.
func WithSessionID(sessionID string) ChatOption {
	return func(opts *ChatOptions) {
		opts.SessionID = sessionID
	}
}

// WithHistory sets the prior conversation of the turn.
func WithHistory(history []llm.Message) ChatOption {
	return func(opts *ChatOptions) {
		opts.History = history
	}
}

func applyChatOptions(opts []ChatOption) *ChatOptions {
	options := &ChatOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
