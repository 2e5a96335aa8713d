// Package embedder provides interfaces for text embedding providers.
//
// It defines the Provider interface that all embedding backends must satisfy,
// plus a content-addressed Cache that wraps any Provider to avoid redundant
// upstream calls for previously embedded text.
package embedder

import (
	"context"
	"errors"
)

// ErrEmptyEmbedding indicates that a provider returned a malformed or empty
// embedding vector. A wrong-dimension or empty vector must never be passed
// downstream, since it would corrupt similarity computation.
var ErrEmptyEmbedding = errors.New("embedder: empty embedding returned")

// Provider defines the interface for embedding providers.
//
// All embedding backends (OpenAI-compatible APIs, test fakes, etc.) must
// implement this interface.
type Provider interface {
	// Embed converts a text string into a vector embedding.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - text: The input text to embed
	//
	// Returns the embedding vector and any error. Implementations must fail
	// explicitly on malformed upstream results rather than return a default
	// vector.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch converts multiple text strings into vector embeddings.
	//
	// More efficient than calling Embed repeatedly when the backend supports
	// batched requests. The returned slice preserves input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimension of vectors produced by this provider.
	//
	// Every vector returned by Embed/EmbedBatch has exactly this length.
	Dimensions() int

	// Close closes the provider and releases resources.
	Close() error
}
