// Package openai implements llm.Provider on top of the OpenAI chat completion API
// and any endpoint that speaks the same protocol.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/oceanbase/vira-go/pkg/llm"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gpt-4o-mini"

// Client is an OpenAI-compatible generation client.
// It implements the llm.Provider interface.
type Client struct {
	client *openai.Client
	model  string
	name   string
}

// Config is the configuration for an OpenAI-compatible endpoint.
// APIKey: API key (required)
// Model: Model name, defaults to DefaultModel
// BaseURL: API base URL, defaults to the official OpenAI address
// HTTPClient: optional HTTP client carrying the provider timeout
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new OpenAI generation client.
//
// Args:
//   - cfg: configuration containing APIKey, Model and BaseURL
//
// Returns:
//   - *Client: client instance
//   - error: returned when the API key is missing
func NewClient(cfg *Config) (*Client, error) {
	return newNamedClient("openai", cfg)
}

// NewCompatibleClient creates a client for a third-party endpoint that speaks
// the OpenAI protocol. name is used in error messages.
func NewCompatibleClient(name string, cfg *Config) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: API key is required", name)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s: base URL is required", name)
	}
	return newNamedClient(name, cfg)
}

func newNamedClient(name string, cfg *Config) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: API key is required", name)
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
		name:   name,
	}, nil
}

// Generate generates text from a single user prompt.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
	}
	return c.GenerateWithMessages(ctx, messages, opts...)
}

// GenerateWithMessages generates text from role-tagged messages.
//
// Args:
//   - ctx: Context for controlling the request lifecycle
//   - messages: ordered message list
//   - opts: generation parameters (temperature, max tokens, response format)
//
// Returns:
//   - string: generated text
//   - error: API error, or an error when no choices are returned
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	options := llm.ApplyGenerateOptions(opts)

	chatMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		chatMessages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		TopP:        float32(options.TopP),
		Stop:        options.Stop,
	}
	if options.Format == llm.FormatJSONObject {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", wrapAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices returned", c.name)
	}

	return resp.Choices[0].Message.Content, nil
}

// Close is a no-op; the SDK client holds no resources.
func (c *Client) Close() error {
	return nil
}

// wrapAPIError converts SDK errors carrying an HTTP status into llm.StatusError
// so the retry policy can tell transient failures apart.
func wrapAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &llm.StatusError{Code: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &llm.StatusError{Code: reqErr.HTTPStatusCode, Err: err}
	}
	return err
}
