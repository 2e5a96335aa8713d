package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dsilvera/ragpipe/pkg/llm"
)

// affirmativeToken is the exact classifier answer that routes a query to
// retrieval. Anything else counts as a negative.
const affirmativeToken = "YES"

// routingPromptTemplate asks the classifier for a binary judgment on
// whether a query needs subject-specific grounding.
const routingPromptTemplate = `Analyze the following query and decide whether answering it requires
specific information about %[1]s or public information about %[1]s's
website, projects, social profiles, personal background, services or
tutorials.

Query: "%[2]s"

Answer ONLY with "YES" or "NO", considering:
1. Does it mention %[1]s's name, key dates or personal details?
2. Does it reference %[1]s's technologies or projects, or similar ones?
3. Does it ask about specific professional or academic information?
4. Does it reference %[1]s's social profiles, services or tutorials?
5. Does it require a personalized or contextualized answer?

Answer:`

// Router decides, per incoming query, whether retrieval is needed at all.
//
// Decision order: a fixed set of high-confidence substrings short-circuits
// to true with no external call; otherwise an external classifier is asked
// for a yes/no judgment; on classifier failure or a non-affirmative answer
// the configurable keyword list decides. The router never returns an error
// and treats empty input as "no".
type Router struct {
	llm     llm.Provider
	persona PersonaConfig
	logger  *slog.Logger
}

// NewRouter creates a routing classifier.
func NewRouter(provider llm.Provider, persona PersonaConfig, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		llm:     provider,
		persona: persona,
		logger:  logger,
	}
}

// ShouldUseRAG reports whether the query needs grounding in the knowledge
// base.
//
// Idempotent and safe for any input; all failure modes degrade to the
// keyword fallback rather than an error.
func (r *Router) ShouldUseRAG(ctx context.Context, query string) bool {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return false
	}

	lower := strings.ToLower(trimmed)
	for _, phrase := range r.fastPathPhrases() {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			r.logger.Debug("routing fast path hit", "phrase", phrase)
			return true
		}
	}

	prompt := fmt.Sprintf(routingPromptTemplate, r.persona.SubjectName, trimmed)
	answer, err := r.llm.Generate(ctx, prompt, llm.WithTemperature(0), llm.WithMaxTokens(8))
	if err != nil {
		r.logger.Warn("routing classifier failed, falling back to keywords", "error", err)
		return r.keywordFallback(lower)
	}

	decision := strings.ToUpper(strings.TrimSpace(answer)) == affirmativeToken
	r.logger.Debug("routing decision",
		"query", truncate(trimmed, 50), "decision", decision)

	if !decision {
		// A negative (or unparseable) classifier answer still gets a
		// second opinion from the keyword list.
		return r.keywordFallback(lower)
	}
	return true
}

// fastPathPhrases returns the configured phrases, defaulting to the
// subject's name.
func (r *Router) fastPathPhrases() []string {
	if len(r.persona.FastPathPhrases) > 0 {
		return r.persona.FastPathPhrases
	}
	if r.persona.SubjectName != "" {
		return []string{r.persona.SubjectName}
	}
	return nil
}

// keywordFallback matches the lowercased query against the configured
// keyword list.
func (r *Router) keywordFallback(lowerQuery string) bool {
	for _, keyword := range r.persona.FallbackKeywords {
		if keyword != "" && strings.Contains(lowerQuery, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
