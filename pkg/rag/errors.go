// Package rag implements the retrieval-augmented chat pipeline: query
// routing, semantic retrieval, prompt construction and grounded response
// generation over a personal knowledge base.
package rag

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrInvalidInput indicates a malformed or empty inbound query.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidEmbedding indicates a query vector whose dimension does not
	// match the knowledge base. Detected before any external call.
	ErrInvalidEmbedding = errors.New("invalid embedding dimension")

	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates that embedding generation failed.
	// A failed embedding is never substituted with a default vector.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrSearchFailed indicates that the similarity-search collaborator
	// failed. Callers recover locally by treating the result as empty.
	ErrSearchFailed = errors.New("similarity search failed")

	// ErrGenerationFailed indicates that the text-generation collaborator
	// failed. The pipeline converts this into a fixed fallback response.
	ErrGenerationFailed = errors.New("response generation failed")

	// ErrStorageOperation indicates that a persistence operation failed.
	ErrStorageOperation = errors.New("storage operation failed")
)

// PipelineError wraps errors with operation context.
//
// It records which pipeline operation failed, making error messages more
// informative for debugging.
//
// Example:
//
//	err := &PipelineError{
//	    Op:  "SemanticSearch",
//	    Err: ErrInvalidEmbedding,
//	}
//	// Error() returns: "ragpipe: SemanticSearch: invalid embedding dimension"
type PipelineError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "ragpipe: <Op>: <Err>"
func (e *PipelineError) Error() string {
	return fmt.Sprintf("ragpipe: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with PipelineError.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a new PipelineError wrapping the given error.
//
// If err is nil, returns nil, which allows safe unconditional wrapping at
// return sites.
func NewPipelineError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PipelineError{
		Op:  op,
		Err: err,
	}
}
