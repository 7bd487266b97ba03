// Package llm provides the text generation capability used by the assistant.
//
// It defines the Provider interface that every generation backend satisfies,
// the role-tagged Message type, and the generation options shared by all
// backends.
package llm

import "context"

// Message roles understood by every provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ResponseFormat selects the shape of a completion.
type ResponseFormat string

const (
	// FormatText is free-form text (default).
	FormatText ResponseFormat = "text"

	// FormatJSONObject asks the provider for a single JSON object.
	FormatJSONObject ResponseFormat = "json_object"
)

// Provider defines the interface for text generation providers.
//
// All generation backends (OpenAI, DeepSeek, Ollama) implement this interface.
// Implementations must be safe for concurrent use.
type Provider interface {
	// Generate generates text from a single user prompt.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - prompt: The input prompt text
	//   - opts: Optional generation parameters (temperature, max tokens, etc.)
	//
	// Returns the generated text and any error.
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)

	// GenerateWithMessages generates text from an ordered list of role-tagged messages.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - messages: Ordered messages (system, user, assistant)
	//   - opts: Optional generation parameters
	//
	// Returns the generated text and any error.
	GenerateWithMessages(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error)

	// Close releases resources held by the provider.
	Close() error
}

// Message represents a single role-tagged message.
type Message struct {
	// Role is the message role: "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// GenerateOptions contains options for text generation.
type GenerateOptions struct {
	// Temperature controls randomness (0.0-2.0). Higher = more random.
	Temperature float64

	// MaxTokens limits the number of tokens in the response.
	MaxTokens int

	// TopP controls nucleus sampling (0.0-1.0).
	TopP float64

	// Stop contains stop sequences that end generation.
	Stop []string

	// Format selects text or JSON object output.
	Format ResponseFormat
}

// GenerateOption configures GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithTemperature sets the sampling temperature.
//
// Example:
//
//	text, _ := provider.Generate(ctx, "Merhaba", llm.WithTemperature(0.7))
func WithTemperature(temp float64) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Temperature = temp
	}
}

// WithMaxTokens sets the maximum number of tokens in the response.
func WithMaxTokens(max int) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.MaxTokens = max
	}
}

// WithTopP sets the top-p (nucleus sampling) parameter.
func WithTopP(topP float64) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.TopP = topP
	}
}

// WithStop sets stop sequences.
func WithStop(stop ...string) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Stop = stop
	}
}

// WithResponseFormat sets the response format.
//
// Example:
//
//	raw, _ := provider.GenerateWithMessages(ctx, msgs, llm.WithResponseFormat(llm.FormatJSONObject))
func WithResponseFormat(format ResponseFormat) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Format = format
	}
}

// ApplyGenerateOptions applies opts over the defaults.
//
// Default values: Temperature=0.7, MaxTokens=1000, TopP=1.0, Format=text.
func ApplyGenerateOptions(opts []GenerateOption) *GenerateOptions {
	options := &GenerateOptions{
		Temperature: 0.7,
		MaxTokens:   1000,
		TopP:        1.0,
		Format:      FormatText,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
