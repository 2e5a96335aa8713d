// Package openai provides an embedding Provider backed by any
// OpenAI-compatible embeddings API.
package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/dsilvera/ragpipe/pkg/embedder"
)

// defaultDimensions matches the knowledge-base embedding model used by the
// similarity index. All stored document vectors share this dimension.
const defaultDimensions = 768

// Client is an embedding client for OpenAI-compatible APIs.
// It implements the embedder.Provider interface.
type Client struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// Config is the configuration for the embedding client.
type Config struct {
	// APIKey is the API key for the embeddings endpoint (required).
	APIKey string

	// Model is the embedding model name. Defaults to "text-embedding-3-small".
	Model string

	// BaseURL overrides the API base URL. Empty uses the OpenAI default,
	// which makes any OpenAI-compatible gateway usable.
	BaseURL string

	// Dimensions is the expected vector dimension. Defaults to 768.
	Dimensions int
}

// NewClient creates a new embedding client.
//
// Parameters:
//   - cfg: Configuration containing APIKey, Model, BaseURL and Dimensions
//
// Returns the client, or an error if the configuration is invalid.
func NewClient(cfg *Config) (*Client, error) {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := openai.EmbeddingModel(cfg.Model)
	if cfg.Model == "" {
		model = openai.SmallEmbedding3
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = defaultDimensions
	}

	return &Client{
		client:     openai.NewClientWithConfig(config),
		model:      model,
		dimensions: dimensions,
	}, nil
}

// Embed converts a single text to a vector.
//
// Fails explicitly when the API returns no data or a vector of unexpected
// dimension; a malformed embedding is never substituted with a default.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, embedder.ErrEmptyEmbedding
	}

	vector := widen(resp.Data[0].Embedding)
	if len(vector) != c.dimensions {
		return nil, fmt.Errorf("embedder: unexpected dimension %d (want %d)", len(vector), c.dimensions)
	}

	return vector, nil
}

// EmbedBatch converts multiple texts to vectors in one request.
//
// The result order matches the input order. An error is returned when the
// API result count does not match the input count.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedder: got %d results, expected %d", len(resp.Data), len(texts))
	}

	vectors := make([][]float64, len(texts))
	for i, data := range resp.Data {
		if len(data.Embedding) == 0 {
			return nil, embedder.ErrEmptyEmbedding
		}
		vectors[i] = widen(data.Embedding)
	}

	return vectors, nil
}

// Dimensions returns the configured vector dimension.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close closes the client. The underlying SDK client holds no resources
// that require explicit closing.
func (c *Client) Close() error {
	return nil
}

// widen converts the API's float32 vector to float64.
func widen(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}
