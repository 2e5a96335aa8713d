package rag

import (
	"context"
	"log/slog"

	"github.com/dsilvera/ragpipe/pkg/search"
)

// Retriever runs semantic retrieval against the similarity-search
// collaborator and applies the confidence filters.
type Retriever struct {
	store      search.Store
	thresholds Thresholds
	dimensions int
	logger     *slog.Logger
}

// NewRetriever creates a retrieval engine.
func NewRetriever(store search.Store, thresholds Thresholds, dimensions int, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		store:      store,
		thresholds: thresholds,
		dimensions: dimensions,
		logger:     logger,
	}
}

// SemanticSearch retrieves the documents most relevant to the query vector.
//
// The vector must have the configured dimension; a malformed vector is
// rejected with ErrInvalidEmbedding before any external call. A failing
// search collaborator is recovered locally: the error is logged and an
// empty result returned, since "no context" is a valid, non-fatal outcome
// for callers.
//
// Post-filtering keeps documents at or above the similarity threshold (and
// the minimum content length when configured), takes at most KeepTop from
// the collaborator's descending order, then applies the confidence-gap
// heuristic: when the top two scores sit closer than MinConfidenceDrop the
// ranking is ambiguous evidence, so only the strongest document is kept.
func (r *Retriever) SemanticSearch(ctx context.Context, vector []float64) ([]Document, error) {
	if len(vector) != r.dimensions {
		return nil, NewPipelineError("SemanticSearch", ErrInvalidEmbedding)
	}

	results, err := r.store.Match(ctx, vector, r.thresholds.Similarity, r.thresholds.MatchCount)
	if err != nil {
		r.logger.Warn("similarity search failed, continuing without context", "error", err)
		return []Document{}, nil
	}

	kept := make([]Document, 0, r.thresholds.KeepTop)
	for _, result := range results {
		if result.Similarity < r.thresholds.Similarity {
			continue
		}
		if r.thresholds.MinContentLength > 0 && len(result.Content) < r.thresholds.MinContentLength {
			continue
		}
		kept = append(kept, documentFromResult(result))
		if len(kept) == r.thresholds.KeepTop {
			break
		}
	}

	if len(kept) >= 2 {
		gap := kept[0].Similarity - kept[1].Similarity
		if gap < r.thresholds.MinConfidenceDrop {
			r.logger.Debug("confidence gap too small, collapsing to top result",
				"gap", gap, "min_drop", r.thresholds.MinConfidenceDrop)
			kept = kept[:1]
		}
	}

	r.logger.Debug("retrieval complete",
		"matched", len(results), "kept", len(kept), "max_similarity", maxSimilarity(kept))

	return kept, nil
}

// maxSimilarity returns the highest similarity among docs, 0 when empty.
func maxSimilarity(docs []Document) float64 {
	max := 0.0
	for _, doc := range docs {
		if doc.Similarity > max {
			max = doc.Similarity
		}
	}
	return max
}
