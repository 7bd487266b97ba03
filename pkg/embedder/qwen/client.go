// Package qwen provides DashScope text embeddings for long-term memory.
//
// The client calls the native DashScope text-embedding service, which accepts
// any model name and an explicit output dimension.
package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oceanbase/vira-go/pkg/llm"
)

const (
	// DefaultBaseURL is the DashScope API root.
	DefaultBaseURL = "https://dashscope.aliyuncs.com/api/v1"

	// DefaultModel is used when Config.Model is empty.
	DefaultModel = "text-embedding-v4"

	// DefaultDimensions is the default vector size of text-embedding-v4.
	DefaultDimensions = 1024
)

// Client implements embedder.Provider with the DashScope embedding API.
type Client struct {
	client     *http.Client
	apiKey     string
	model      string
	baseURL    string
	dimensions int
}

// Config is the configuration for Qwen embeddings.
type Config struct {
	// APIKey is the DashScope API key (required).
	APIKey string

	// Model defaults to text-embedding-v4.
	Model string

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// Dimensions defaults to 1024.
	Dimensions int

	// HTTPClient is used when set; otherwise a client with a 30s timeout.
	HTTPClient *http.Client
}

// NewClient creates a Qwen embedding client.
//
// Parameters:
//   - cfg: APIKey is required; the other fields have defaults
//
// Returns:
//   - *Client: the embedding client
//   - error: when the API key is missing
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("qwen embedder: API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	dims := cfg.Dimensions
	if dims == 0 {
		dims = DefaultDimensions
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		client:     client,
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    baseURL,
		dimensions: dims,
	}, nil
}

type embeddingRequest struct {
	Model      string `json:"model"`
	Input      input  `json:"input"`
	Parameters params `json:"parameters"`
}

type input struct {
	Texts []string `json:"texts"`
}

type params struct {
	Dimension int    `json:"dimension"`
	TextType  string `json:"text_type"`
}

type embeddingResponse struct {
	Output struct {
		Embeddings []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"embeddings"`
	} `json:"output"`
}

// Embed converts a single text to a vector. A vector whose length differs
// from Dimensions() is rejected.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(embeddingRequest{
		Model:      c.model,
		Input:      input{Texts: []string{text}},
		Parameters: params{Dimension: c.dimensions, TextType: "document"},
	})
	if err != nil {
		return nil, fmt.Errorf("qwen embedder: marshal request: %w", err)
	}

	url := c.baseURL + "/services/embeddings/text-embedding/text-embedding"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("qwen embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qwen embedder: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &llm.StatusError{Code: resp.StatusCode, Err: fmt.Errorf("qwen embedder: %s", bytes.TrimSpace(msg))}
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("qwen embedder: decode response: %w", err)
	}
	if len(out.Output.Embeddings) == 0 {
		return nil, errors.New("qwen embedder: no embeddings returned")
	}

	vec := out.Output.Embeddings[0].Embedding
	if len(vec) != c.dimensions {
		return nil, fmt.Errorf("qwen embedder: got %d dimensions, want %d", len(vec), c.dimensions)
	}
	return vec, nil
}

// Dimensions returns the vector dimensions.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op.
func (c *Client) Close() error {
	return nil
}
