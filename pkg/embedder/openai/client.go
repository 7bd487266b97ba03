// Package openai implements embedder.Provider with the OpenAI embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/oceanbase/vira-go/pkg/llm"
	openai "github.com/sashabaranov/go-openai"
)

// DefaultDimensions is the vector size of text-embedding-ada-002.
const DefaultDimensions = 1536

// Client is an OpenAI embedding client.
type Client struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// Config is the configuration for OpenAI embeddings.
// Model defaults to text-embedding-ada-002 and Dimensions to 1536. Model must
// be a name ParseModel accepts.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
	HTTPClient *http.Client
}

// NewClient creates a new OpenAI embedding client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai embedder: API key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	if cfg.HTTPClient != nil {
		config.HTTPClient = cfg.HTTPClient
	}

	model, err := ParseModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = DefaultDimensions
	}

	return &Client{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// ParseModel maps a model name to the go-openai embedding model. An empty
// name selects text-embedding-ada-002; a name the library does not know is
// rejected, since the request would silently carry a different model.
func ParseModel(name string) (openai.EmbeddingModel, error) {
	if name == "" {
		return openai.AdaEmbeddingV2, nil
	}
	var model openai.EmbeddingModel
	if err := model.UnmarshalText([]byte(name)); err != nil || model == openai.Unknown {
		return openai.Unknown, fmt.Errorf("openai embedder: unsupported model %q", name)
	}
	return model, nil
}

// Embed converts a single text to a vector. A vector whose length differs
// from Dimensions() is rejected.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, &llm.StatusError{Code: apiErr.HTTPStatusCode, Err: err}
		}
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("openai embedder: no data returned")
	}

	embedding32 := resp.Data[0].Embedding
	if len(embedding32) != c.dimensions {
		return nil, fmt.Errorf("openai embedder: got %d dimensions, want %d", len(embedding32), c.dimensions)
	}

	embedding64 := make([]float64, len(embedding32))
	for i, v := range embedding32 {
		embedding64[i] = float64(v)
	}
	return embedding64, nil
}

// Dimensions returns the vector dimensions.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op.
func (c *Client) Close() error {
	return nil
}
