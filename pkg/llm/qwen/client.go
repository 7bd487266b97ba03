// Package qwen provides a Qwen generation client.
//
// DashScope serves Qwen models through an OpenAI-compatible endpoint, so the
// client is the openai client pointed at DashScope with Qwen defaults.
package qwen

import (
	"net/http"

	"github.com/oceanbase/vira-go/pkg/llm/openai"
)

const (
	// DefaultBaseURL is the DashScope compatible-mode endpoint.
	DefaultBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "qwen-plus"
)

// Config is the configuration for Qwen.
// APIKey: DashScope API key (required)
// Model: defaults to DefaultModel
// BaseURL: defaults to DefaultBaseURL
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a Qwen client. It implements llm.Provider.
func NewClient(cfg *Config) (*openai.Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return openai.NewCompatibleClient("qwen", &openai.Config{
		APIKey:     cfg.APIKey,
		Model:      model,
		BaseURL:    baseURL,
		HTTPClient: cfg.HTTPClient,
	})
}
