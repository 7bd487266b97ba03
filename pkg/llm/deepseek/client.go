// Package deepseek provides a DeepSeek generation client.
//
// DeepSeek exposes an OpenAI-compatible API, so the client is the openai
// client pointed at the DeepSeek endpoint with DeepSeek defaults.
package deepseek

import (
	"net/http"

	"github.com/oceanbase/vira-go/pkg/llm/openai"
)

const (
	// DefaultBaseURL is the public DeepSeek endpoint.
	DefaultBaseURL = "https://api.deepseek.com"

	// DefaultModel is the general chat model.
	DefaultModel = "deepseek-chat"
)

// Config is the configuration for DeepSeek.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a DeepSeek client. It implements llm.Provider.
func NewClient(cfg *Config) (*openai.Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return openai.NewCompatibleClient("deepseek", &openai.Config{
		APIKey:     cfg.APIKey,
		Model:      model,
		BaseURL:    baseURL,
		HTTPClient: cfg.HTTPClient,
	})
}
