package rag

import (
	"time"

	"github.com/dsilvera/ragpipe/pkg/search"
)

// Metadata describes a retrieved document.
//
// The well-known provenance fields are typed; anything else the index
// stores for a document lands in Extra.
type Metadata struct {
	// Title is the human-readable document title.
	Title string `json:"title,omitempty"`

	// Source identifies where the document content came from.
	Source string `json:"source,omitempty"`

	// CreatedAt is when the document was first indexed.
	CreatedAt string `json:"created_at,omitempty"`

	// UpdatedAt is when the document was last reindexed.
	UpdatedAt string `json:"updated_at,omitempty"`

	// Extra holds any additional metadata fields.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Document is one retrieved knowledge unit.
//
// Documents are sourced from the external similarity index and are
// immutable once retrieved within a request.
type Document struct {
	// ID is the unique document identifier.
	ID string `json:"id"`

	// Content is the document text.
	Content string `json:"content"`

	// Metadata carries title and provenance information.
	Metadata Metadata `json:"metadata"`

	// Embedding is the document's vector representation. Usually omitted
	// by the search backend on retrieval.
	Embedding []float64 `json:"embedding,omitempty"`

	// Similarity is the match score in [0,1], populated by retrieval.
	Similarity float64 `json:"similarity"`
}

// DisplayTitle returns the document title, or a placeholder when the index
// has none for it.
func (d *Document) DisplayTitle() string {
	if d.Metadata.Title == "" {
		return "Untitled"
	}
	return d.Metadata.Title
}

// documentFromResult converts a search backend result into a Document,
// lifting the well-known metadata keys into typed fields.
func documentFromResult(r search.Result) Document {
	doc := Document{
		ID:         r.ID,
		Content:    r.Content,
		Similarity: r.Similarity,
	}
	for key, value := range r.Metadata {
		s, isString := value.(string)
		switch {
		case key == "title" && isString:
			doc.Metadata.Title = s
		case key == "source" && isString:
			doc.Metadata.Source = s
		case key == "created_at" && isString:
			doc.Metadata.CreatedAt = s
		case key == "updated_at" && isString:
			doc.Metadata.UpdatedAt = s
		default:
			if doc.Metadata.Extra == nil {
				doc.Metadata.Extra = make(map[string]interface{})
			}
			doc.Metadata.Extra[key] = value
		}
	}
	return doc
}

// LogEntry is the provenance record of one generation cycle.
//
// It is produced once per request and handed to the configured LogSink;
// the pipeline itself does not retain entries.
type LogEntry struct {
	// ID uniquely identifies the entry. Assigned by sinks that persist
	// entries; zero otherwise.
	ID int64 `json:"id,omitempty"`

	// Query is the user query as received.
	Query string `json:"query"`

	// Response is the cleaned, display-ready response text.
	Response string `json:"response"`

	// ResponseTime is the total generation latency. Always populated,
	// success or failure.
	ResponseTime time.Duration `json:"response_time"`

	// Model is the generation model identifier.
	Model string `json:"model"`

	// Sources lists the titles of context documents confident enough to
	// cite.
	Sources []string `json:"sources"`

	// ContextCount is the number of documents passed to generation.
	ContextCount int `json:"context_count"`

	// MaxSimilarity is the highest similarity among the context documents,
	// 0 when no context was used.
	MaxSimilarity float64 `json:"max_similarity"`

	// Error holds the failure description when generation fell back.
	Error string `json:"error,omitempty"`

	// Metadata holds optional request metadata for observability.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ChatResult is the outcome of one Chat call, shaped for the inbound
// boundary (the HTTP handler).
type ChatResult struct {
	// SessionID identifies the session the exchange belongs to. When the
	// caller supplied none, this is the freshly issued identifier.
	SessionID string `json:"session_id"`

	// Response is the display-ready response text.
	Response string `json:"response"`

	// Sources lists cited document titles, empty when nothing was
	// confidently grounded.
	Sources []string `json:"sources"`
}
