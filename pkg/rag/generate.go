package rag

import (
	"context"
	"log/slog"
	"time"

	"github.com/dsilvera/ragpipe/pkg/llm"
	"github.com/dsilvera/ragpipe/pkg/session"
)

// Generator produces the final response from the query, the retrieved
// context and the session's conversation memory.
type Generator struct {
	llm      llm.Provider
	registry *session.Registry
	cfg      GenerationConfig
	persona  PersonaConfig
	// sourceConfidence gates which context documents get cited.
	sourceConfidence float64
	logger           *slog.Logger
}

// NewGenerator creates a response generator.
func NewGenerator(provider llm.Provider, registry *session.Registry, cfg GenerationConfig, persona PersonaConfig, sourceConfidence float64, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		llm:              provider,
		registry:         registry,
		cfg:              cfg,
		persona:          persona,
		sourceConfidence: sourceConfidence,
		logger:           logger,
	}
}

// GenerateResponse runs one generation cycle and always returns a complete
// LogEntry, success or failure.
//
// The user turn is recorded in session memory before generation, so the
// exchange survives even when the model call fails. With context present
// the grounded temperature applies; without it the open temperature does.
// On failure the entry carries the configured fallback message plus the
// error description, and the measured latency in both cases.
func (g *Generator) GenerateResponse(ctx context.Context, query string, docs []Document, sessionID string) *LogEntry {
	start := time.Now()
	entry := &LogEntry{
		Query:         query,
		Model:         g.cfg.Model,
		Sources:       []string{},
		ContextCount:  len(docs),
		MaxSimilarity: maxSimilarity(docs),
	}
	defer func() {
		entry.ResponseTime = time.Since(start)
	}()

	manager, err := g.registry.Get(ctx, sessionID)
	if err != nil {
		g.logger.Error("session lookup failed", "session_id", sessionID, "error", err)
		entry.Response = g.cfg.FallbackMessage
		entry.Error = err.Error()
		return entry
	}

	manager.AddInteraction(ctx, session.RoleUser, query)

	prompt := BuildPrompt(query, docs, manager.Snapshot(), g.persona)

	temperature := g.cfg.OpenTemperature
	if len(docs) > 0 {
		temperature = g.cfg.GroundedTemperature
	}

	raw, err := g.llm.Generate(ctx, prompt,
		llm.WithTemperature(temperature),
		llm.WithTopP(g.cfg.TopP),
		llm.WithMaxTokens(g.cfg.MaxOutputTokens))
	if err != nil {
		g.logger.Error("generation failed", "session_id", sessionID, "error", err)
		entry.Response = g.cfg.FallbackMessage
		entry.Error = err.Error()
		return entry
	}

	entry.Response = FormatResponse(raw, query)
	entry.Sources = g.citedSources(docs)

	manager.AddInteraction(ctx, session.RoleAssistant, entry.Response)

	return entry
}

// citedSources returns the titles of documents confident enough to cite.
func (g *Generator) citedSources(docs []Document) []string {
	sources := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc.Similarity >= g.sourceConfidence {
			sources = append(sources, doc.DisplayTitle())
		}
	}
	return sources
}
