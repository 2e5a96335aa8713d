package rag_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsilvera/ragpipe/pkg/rag"
	"github.com/dsilvera/ragpipe/pkg/session"
)

func newGenerator(t *testing.T, provider *fakeLLM, sourceConfidence float64) *rag.Generator {
	t.Helper()
	registry := session.NewRegistry(session.NewMemoryStore(), session.RegistryConfig{
		IdleTimeout:   time.Hour,
		SweepInterval: time.Hour,
	}, nil)
	t.Cleanup(func() { registry.Close() })

	cfg := rag.DefaultConfig()
	return rag.NewGenerator(provider, registry, cfg.Generation, cfg.Persona, sourceConfidence, nil)
}

func TestGenerateResponseFiltersLowConfidenceSources(t *testing.T) {
	provider := &fakeLLM{genAnswer: "an answer"}
	generator := newGenerator(t, provider, 0.75)

	docs := []rag.Document{
		{ID: "strong", Metadata: rag.Metadata{Title: "Strong"}, Similarity: 0.90},
		{ID: "weak", Metadata: rag.Metadata{Title: "Weak"}, Similarity: 0.65},
	}

	entry := generator.GenerateResponse(context.Background(), "query", docs, session.NewSessionID())

	// Both documents ground the answer, but only one is confident enough
	// to cite.
	assert.Equal(t, 2, entry.ContextCount)
	assert.Equal(t, []string{"Strong"}, entry.Sources)
	assert.InDelta(t, 0.90, entry.MaxSimilarity, 1e-9)
}

func TestGenerateResponseFailureKeepsUserTurn(t *testing.T) {
	provider := &fakeLLM{genErr: assert.AnError}
	registry := session.NewRegistry(session.NewMemoryStore(), session.RegistryConfig{
		IdleTimeout:   time.Hour,
		SweepInterval: time.Hour,
	}, nil)
	t.Cleanup(func() { registry.Close() })

	cfg := rag.DefaultConfig()
	generator := rag.NewGenerator(provider, registry, cfg.Generation, cfg.Persona, 0.60, nil)
	ctx := context.Background()
	sessionID := session.NewSessionID()

	entry := generator.GenerateResponse(ctx, "will fail", nil, sessionID)

	require.NotEmpty(t, entry.Error)
	assert.Equal(t, cfg.Generation.FallbackMessage, entry.Response)
	assert.Empty(t, entry.Sources)
	assert.Positive(t, entry.ResponseTime)

	// The user turn was recorded before generation, so the exchange is not
	// lost to the failure.
	mgr, err := registry.Get(ctx, sessionID)
	require.NoError(t, err)
	history := mgr.Snapshot().ShortTerm
	require.Len(t, history, 1)
	assert.Equal(t, session.RoleUser, history[0].Role)
}
