package rag

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dsilvera/ragpipe/pkg/session"
)

// noContextMarker renders in place of the context section when retrieval
// produced nothing.
const noContextMarker = "No relevant information"

// contextSnippetLen caps how much of a document is quoted into the prompt.
const contextSnippetLen = 300

// BuildPrompt assembles the generation prompt from the persona, retrieved
// context, conversation memory and the verbatim query.
//
// It is a pure function: no external calls, no side effects, and
// byte-identical output for identical inputs (map-backed sections are
// rendered through JSON, which orders keys deterministically). Context
// documents render in input order.
func BuildPrompt(query string, docs []Document, memory session.Memory, persona PersonaConfig) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**Your Name:** %s\n\n", persona.AssistantName)
	fmt.Fprintf(&b, `**Your Story:**
You are %[1]s, the virtual assistant of %[2]s.
You know you are a retrieval-grounded chatbot
with access to information about %[2]s and %[2]s's work.

**Goal:**
Help visitors of %[2]s's website find relevant information about
%[2]s's work, projects, personal background, social profiles,
services and tutorials, answering in a professional, technical and
friendly manner.

**Information Sources:**
- A vector knowledge base holding public information about the website,
  projects, social profiles, personal background, services and tutorials.
- The context retrieved for the current query.
- The conversation history within this session.

**Context:**
- Analyze the provided context in depth to produce a relevant, concise
  and precise answer.
- Use short-term and long-term memory to improve answer quality.
- Only reference personal information stored in the knowledge base when
  necessary.

`, persona.AssistantName, persona.SubjectName)

	b.WriteString(renderContext(docs))
	b.WriteString("\n\n**Conversation History:**\n")
	b.WriteString(renderShortTerm(memory.ShortTerm))
	b.WriteString("\n**Persistent Information:**\n")
	b.WriteString(renderLongTerm(memory.LongTerm))
	b.WriteString("\n**Current Query:**\n")
	b.WriteString(query)
	fmt.Fprintf(&b, `

**Constraints:**
- Only answer questions related to %[1]s's website and the information in
  your knowledge base.
- Do not provide external information or answer topics outside the
  website's scope.
- Answer off-scope questions wittily without drifting from your purpose.
- Maximum 150 words; be brief without sacrificing answer quality.

**Response Style:**
- IMPORTANT: Answer in the same language as the current query.
- Use a friendly, technical and professional tone, in first person.
- Prefer structured answers with concise summaries; use markdown where it
  improves readability (lists, code, tables).

**Response:**
`, persona.SubjectName)

	return b.String()
}

// renderContext renders the retrieved documents, or the no-context marker.
func renderContext(docs []Document) string {
	if len(docs) == 0 {
		return noContextMarker
	}

	parts := make([]string, 0, len(docs))
	for i, doc := range docs {
		parts = append(parts, fmt.Sprintf(
			"### Source %d (%.1f%% relevant)\n**Title:** %s\n**Content:** %s\n",
			i+1, doc.Similarity*100, doc.DisplayTitle(), snippet(doc.Content)))
	}
	return strings.Join(parts, "\n---\n")
}

// renderShortTerm renders the dialogue history chronologically.
func renderShortTerm(history []session.Interaction) string {
	if len(history) == 0 {
		return ""
	}

	var b strings.Builder
	for _, entry := range history {
		speaker := "User"
		if entry.Role == session.RoleAssistant {
			speaker = "Assistant"
		}
		fmt.Fprintf(&b, "### %s (%s):\n%s\n\n",
			speaker, entry.Timestamp.UTC().Format("15:04:05"), entry.Content)
	}
	return b.String()
}

// renderLongTerm renders the long-term facts as a structured dump.
func renderLongTerm(longTerm session.LongTermMemory) string {
	if longTerm.IsEmpty() {
		return ""
	}

	data, err := json.MarshalIndent(longTerm, "", "  ")
	if err != nil {
		return ""
	}
	return string(data) + "\n"
}

// snippet truncates content for prompt inclusion, marking the cut.
func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= contextSnippetLen {
		return content
	}
	return string(runes[:contextSnippetLen]) + "..."
}
