// Package memory provides an in-process similarity-search Store.
//
// It keeps documents in a map and ranks matches by cosine similarity. It is
// intended for tests, examples and small single-process deployments; larger
// knowledge bases should use the qdrant backend.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/dsilvera/ragpipe/pkg/search"
)

// Store is an in-process vector store. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	docs map[string]search.Document
}

// NewStore creates an empty in-process store.
func NewStore() *Store {
	return &Store{
		docs: make(map[string]search.Document),
	}
}

// Upsert inserts or replaces documents by ID.
func (s *Store) Upsert(ctx context.Context, docs []search.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		if doc.ID == "" {
			continue
		}
		s.docs[doc.ID] = doc
	}
	return nil
}

// Match ranks all stored documents by cosine similarity against vector and
// returns those scoring at or above threshold, highest first, capped at
// limit.
func (s *Store) Match(ctx context.Context, vector []float64, threshold float64, limit int) ([]search.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]search.Result, 0, len(s.docs))
	for _, doc := range s.docs {
		score := cosine(vector, doc.Embedding)
		if score < threshold {
			continue
		}
		results = append(results, search.Result{
			ID:         doc.ID,
			Content:    doc.Content,
			Metadata:   doc.Metadata,
			Similarity: score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity == results[j].Similarity {
			return results[i].ID < results[j].ID
		}
		return results[i].Similarity > results[j].Similarity
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Close releases the store's documents.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]search.Document)
	return nil
}

// cosine computes cosine similarity between two vectors. Mismatched lengths
// or zero vectors score 0.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
