// Package search provides interfaces and types for similarity-search
// backends.
//
// It defines the Store interface that all vector search implementations
// must satisfy. The pipeline core never owns a vector index; it delegates
// matching to a Store and treats its results as read-only.
package search

import "context"

// Result is a single similarity-search match.
type Result struct {
	// ID is the unique identifier of the matched document.
	ID string

	// Content is the document text.
	Content string

	// Metadata contains open key/value information about the document,
	// including a human-readable title and provenance fields.
	Metadata map[string]interface{}

	// Similarity is the match score in [0,1], highest first.
	Similarity float64
}

// Document is a unit of content to index in a Store.
type Document struct {
	// ID is the unique identifier of the document.
	ID string

	// Content is the document text.
	Content string

	// Metadata contains open key/value information about the document.
	Metadata map[string]interface{}

	// Embedding is the vector representation of Content.
	Embedding []float64
}

// Store defines the interface for similarity-search backends.
type Store interface {
	// Match performs vector similarity search.
	//
	// Parameters:
	//   - ctx: Context for cancellation
	//   - vector: Query embedding vector
	//   - threshold: Minimum similarity score for a match
	//   - limit: Maximum number of results
	//
	// Returns matches ordered by similarity, highest first.
	Match(ctx context.Context, vector []float64, threshold float64, limit int) ([]Result, error)

	// Upsert inserts or replaces documents in the index.
	Upsert(ctx context.Context, docs []Document) error

	// Close closes the store and releases resources.
	Close() error
}
