package rag_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dsilvera/ragpipe/pkg/rag"
)

func testPersona() rag.PersonaConfig {
	return rag.PersonaConfig{
		AssistantName:    "Bob",
		SubjectName:      "David",
		FallbackKeywords: []string{"portfolio", "tutorial"},
	}
}

func TestShouldUseRAGEmptyQuery(t *testing.T) {
	provider := &fakeLLM{routeAnswer: "YES"}
	router := rag.NewRouter(provider, testPersona(), nil)

	assert.False(t, router.ShouldUseRAG(context.Background(), "   "))

	route, _ := provider.counts()
	assert.Equal(t, 0, route)
}

func TestShouldUseRAGFastPathSkipsClassifier(t *testing.T) {
	provider := &fakeLLM{routeAnswer: "NO"}
	router := rag.NewRouter(provider, testPersona(), nil)

	assert.True(t, router.ShouldUseRAG(context.Background(), "Who is DAVID exactly?"))

	route, _ := provider.counts()
	assert.Equal(t, 0, route)
}

func TestShouldUseRAGClassifierDecides(t *testing.T) {
	cases := []struct {
		name   string
		answer string
		want   bool
	}{
		{"affirmative", "YES", true},
		{"affirmative with whitespace", "  yes\n", true},
		{"negative", "NO", false},
		{"rambling answer", "YES, because the query mentions projects", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := &fakeLLM{routeAnswer: tc.answer}
			router := rag.NewRouter(provider, rag.PersonaConfig{SubjectName: "David"}, nil)

			got := router.ShouldUseRAG(context.Background(), "tell me about the weather")
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestShouldUseRAGKeywordFallbackOnClassifierError(t *testing.T) {
	provider := &fakeLLM{routeErr: errors.New("upstream down")}
	router := rag.NewRouter(provider, testPersona(), nil)
	ctx := context.Background()

	assert.True(t, router.ShouldUseRAG(ctx, "where is the TUTORIAL section"))
	assert.False(t, router.ShouldUseRAG(ctx, "what time is it"))
}

func TestShouldUseRAGKeywordFallbackOnNegative(t *testing.T) {
	provider := &fakeLLM{routeAnswer: "NO"}
	router := rag.NewRouter(provider, testPersona(), nil)

	// The classifier said no, but the keyword list overrides it.
	assert.True(t, router.ShouldUseRAG(context.Background(), "show me your portfolio"))
}

func TestShouldUseRAGCustomFastPathPhrases(t *testing.T) {
	persona := testPersona()
	persona.FastPathPhrases = []string{"dsilvera.dev"}
	provider := &fakeLLM{routeAnswer: "NO"}
	router := rag.NewRouter(provider, persona, nil)
	ctx := context.Background()

	assert.True(t, router.ShouldUseRAG(ctx, "is dsilvera.dev open source?"))

	// With custom phrases configured the subject name no longer short-circuits.
	assert.False(t, router.ShouldUseRAG(ctx, "who is David"))
}
