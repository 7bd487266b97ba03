// Package embedder provides the text embedding capability used for long-term
// memory search.
package embedder

import "context"

// Provider turns text into a fixed-length vector.
//
// Implementations must be safe for concurrent use and always return vectors
// of length Dimensions().
type Provider interface {
	// Embed converts text into a vector.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - text: The input text to embed
	//
	// Returns the embedding vector and any error.
	Embed(ctx context.Context, text string) ([]float64, error)

	// Dimensions returns the length of the vectors produced by this provider.
	Dimensions() int

	// Close releases resources held by the provider.
	Close() error
}
