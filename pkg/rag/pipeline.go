package rag

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dsilvera/ragpipe/pkg/embedder"
	"github.com/dsilvera/ragpipe/pkg/llm"
	"github.com/dsilvera/ragpipe/pkg/search"
	"github.com/dsilvera/ragpipe/pkg/session"
)

// Dependencies are the external collaborators a Pipeline is wired with.
//
// LLM, Embedder, Search and SessionStore are required. Sink defaults to a
// SlogSink and Logger to slog.Default.
type Dependencies struct {
	// LLM serves both the routing classifier and response generation.
	LLM llm.Provider

	// Embedder produces query vectors. The pipeline wraps it in a
	// content-addressed cache.
	Embedder embedder.Provider

	// Search is the similarity index over the knowledge base.
	Search search.Store

	// SessionStore persists conversation memory across process restarts.
	SessionStore session.Store

	// Sink receives one LogEntry per chat cycle.
	Sink LogSink

	// Logger receives the pipeline's structured diagnostics.
	Logger *slog.Logger
}

// Pipeline is the chatbot's full request path: routing, retrieval,
// generation, session memory and provenance logging behind one entry point.
//
// A Pipeline is safe for concurrent use; per-session state lives in the
// session registry, everything else is read-only after construction.
type Pipeline struct {
	cfg       *Config
	router    *Router
	retriever *Retriever
	generator *Generator
	registry  *session.Registry
	cache     *embedder.Cache
	llm       llm.Provider
	search    search.Store
	sink      LogSink
	logger    *slog.Logger
}

// NewPipeline validates the configuration and wires the pipeline stages.
func NewPipeline(cfg *Config, deps Dependencies) (*Pipeline, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.LLM == nil || deps.Embedder == nil || deps.Search == nil || deps.SessionStore == nil {
		return nil, NewPipelineError("NewPipeline", ErrInvalidConfig)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sink := deps.Sink
	if sink == nil {
		sink = NewSlogSink(logger)
	}

	cache := embedder.NewCache(deps.Embedder, &embedder.CacheConfig{
		MaxEntries: cfg.CacheMaxEntries,
	})
	registry := session.NewRegistry(deps.SessionStore, cfg.Registry, logger)

	return &Pipeline{
		cfg:       cfg,
		router:    NewRouter(deps.LLM, cfg.Persona, logger),
		retriever: NewRetriever(deps.Search, cfg.Thresholds, cfg.EmbeddingDims, logger),
		generator: NewGenerator(deps.LLM, registry, cfg.Generation, cfg.Persona,
			cfg.Thresholds.SourceConfidence, logger),
		registry: registry,
		cache:    cache,
		llm:      deps.LLM,
		search:   deps.Search,
		sink:     sink,
		logger:   logger,
	}, nil
}

// Chat runs one full conversation turn.
//
// An empty message is rejected with ErrInvalidInput. An empty sessionID
// starts a fresh session; the issued identifier comes back in the result.
// Queries the router classifies as unrelated to the knowledge base skip
// embedding and retrieval entirely. Downstream failures (embedding, search,
// generation) never surface as errors here: the user gets the configured
// fallback message and the failure is recorded in the LogEntry handed to
// the sink.
func (p *Pipeline) Chat(ctx context.Context, sessionID, message string) (*ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, NewPipelineError("Chat", ErrInvalidInput)
	}
	if sessionID == "" {
		sessionID = session.NewSessionID()
		p.logger.Debug("issued new session", "session_id", sessionID)
	}

	start := time.Now()

	docs := []Document{}
	if p.router.ShouldUseRAG(ctx, message) {
		vector, err := p.cache.Embed(ctx, message)
		if err != nil {
			p.logger.Error("embedding failed", "session_id", sessionID, "error", err)
			entry := p.failureEntry(message, err, start)
			p.record(ctx, entry)
			return &ChatResult{
				SessionID: sessionID,
				Response:  entry.Response,
				Sources:   entry.Sources,
			}, nil
		}

		docs, err = p.retriever.SemanticSearch(ctx, vector)
		if err != nil {
			// Only a malformed vector reaches here; search outages are
			// absorbed inside the retriever.
			p.logger.Error("retrieval failed", "session_id", sessionID, "error", err)
			docs = []Document{}
		}
	}

	entry := p.generator.GenerateResponse(ctx, message, docs, sessionID)
	p.record(ctx, entry)

	return &ChatResult{
		SessionID: sessionID,
		Response:  entry.Response,
		Sources:   entry.Sources,
	}, nil
}

// ResetSession wipes all memory for the session and returns a fresh
// identifier for the caller to continue with.
func (p *Pipeline) ResetSession(ctx context.Context, sessionID string) (string, error) {
	return p.registry.Reset(ctx, sessionID)
}

// CacheStats returns the embedding cache counters.
func (p *Pipeline) CacheStats() embedder.CacheStats {
	return p.cache.Stats()
}

// Sessions returns the number of active sessions.
func (p *Pipeline) Sessions() int {
	return p.registry.Len()
}

// Close releases every collaborator the pipeline owns.
func (p *Pipeline) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	keep(p.registry.Close())
	keep(p.cache.Close())
	keep(p.llm.Close())
	keep(p.search.Close())
	keep(p.sink.Close())
	return firstErr
}

// failureEntry builds the LogEntry for a turn that failed before
// generation could run.
func (p *Pipeline) failureEntry(query string, err error, start time.Time) *LogEntry {
	return &LogEntry{
		Query:        query,
		Response:     p.cfg.Generation.FallbackMessage,
		ResponseTime: time.Since(start),
		Model:        p.cfg.Generation.Model,
		Sources:      []string{},
		Error:        err.Error(),
	}
}

// record hands the entry to the sink; sink failures are logged, not
// propagated.
func (p *Pipeline) record(ctx context.Context, entry *LogEntry) {
	if err := p.sink.Record(ctx, entry); err != nil {
		p.logger.Warn("log sink rejected entry", "error", err)
	}
}
