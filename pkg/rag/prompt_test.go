package rag_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsilvera/ragpipe/pkg/rag"
	"github.com/dsilvera/ragpipe/pkg/session"
)

func promptFixtures() (string, []rag.Document, session.Memory, rag.PersonaConfig) {
	query := "What databases has David worked with?"
	docs := []rag.Document{
		{
			ID:         "d1",
			Content:    strings.Repeat("PostgreSQL and Redis in production. ", 12),
			Metadata:   rag.Metadata{Title: "Tech Stack"},
			Similarity: 0.884,
		},
		{
			ID:         "d2",
			Content:    "A short untitled note.",
			Similarity: 0.7,
		},
	}
	memory := *session.NewMemory()
	memory.ShortTerm = []session.Interaction{
		{Role: session.RoleUser, Content: "hi", Timestamp: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
		{Role: session.RoleAssistant, Content: "hello!", Timestamp: time.Date(2025, 6, 1, 9, 0, 5, 0, time.UTC)},
	}
	memory.LongTerm.ConversationSummary = "user asked about tooling"
	return query, docs, memory, rag.PersonaConfig{AssistantName: "Bob", SubjectName: "David"}
}

func TestBuildPromptIsDeterministic(t *testing.T) {
	query, docs, memory, persona := promptFixtures()

	first := rag.BuildPrompt(query, docs, memory, persona)
	second := rag.BuildPrompt(query, docs, memory, persona)

	assert.Equal(t, first, second)
}

func TestBuildPromptContainsAllSections(t *testing.T) {
	query, docs, memory, persona := promptFixtures()

	prompt := rag.BuildPrompt(query, docs, memory, persona)

	assert.Contains(t, prompt, "Bob")
	assert.Contains(t, prompt, "David")
	assert.Contains(t, prompt, query)
	assert.Contains(t, prompt, "Source 1 (88.4% relevant)")
	assert.Contains(t, prompt, "Tech Stack")
	assert.Contains(t, prompt, "Source 2 (70.0% relevant)")
	assert.Contains(t, prompt, "Untitled")
	assert.Contains(t, prompt, "user asked about tooling")

	// History renders chronologically with both speakers.
	userIdx := strings.Index(prompt, "### User (09:00:00):")
	assistantIdx := strings.Index(prompt, "### Assistant (09:00:05):")
	require.NotEqual(t, -1, userIdx)
	require.NotEqual(t, -1, assistantIdx)
	assert.Less(t, userIdx, assistantIdx)
}

func TestBuildPromptTruncatesLongContent(t *testing.T) {
	query, docs, memory, persona := promptFixtures()

	prompt := rag.BuildPrompt(query, docs, memory, persona)

	assert.Contains(t, prompt, "...")
	assert.NotContains(t, prompt, docs[0].Content)
}

func TestBuildPromptNoContextMarker(t *testing.T) {
	query, _, memory, persona := promptFixtures()

	prompt := rag.BuildPrompt(query, nil, memory, persona)

	assert.Contains(t, prompt, "No relevant information")
	assert.NotContains(t, prompt, "Source 1")
}

func TestBuildPromptEmptyMemory(t *testing.T) {
	query, docs, _, persona := promptFixtures()

	prompt := rag.BuildPrompt(query, docs, *session.NewMemory(), persona)

	assert.Contains(t, prompt, query)
	assert.NotContains(t, prompt, "### User")
}
