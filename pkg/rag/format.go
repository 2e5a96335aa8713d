package rag

import (
	"bytes"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// markdown renders model output. GFM covers the tables and strikethrough
// models routinely emit; hard wraps keep single newlines visible.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// sanitizer strips everything the UGC policy disallows from rendered HTML.
// Model output is untrusted input.
var sanitizer = bluemonday.UGCPolicy()

// FormatResponse turns raw model output into display-ready HTML.
//
// Models sometimes open the response by repeating the question; a leading
// case-insensitive echo of the query is stripped first. The remainder is
// rendered from markdown to HTML and sanitized. When markdown rendering
// fails the sanitized raw text is returned so the user still sees an
// answer.
func FormatResponse(raw, query string) string {
	cleaned := stripQueryEcho(raw, query)

	var buf bytes.Buffer
	if err := markdown.Convert([]byte(cleaned), &buf); err != nil {
		return sanitizer.Sanitize(cleaned)
	}
	return sanitizer.Sanitize(buf.String())
}

// stripQueryEcho removes a leading repetition of the query, with optional
// trailing punctuation, from the response.
func stripQueryEcho(response, query string) string {
	trimmed := strings.TrimSpace(response)
	q := strings.TrimSpace(query)
	if q == "" || len(trimmed) < len(q) {
		return trimmed
	}
	if !strings.EqualFold(trimmed[:len(q)], q) {
		return trimmed
	}

	rest := strings.TrimLeft(trimmed[len(q):], ":?!.,; \t\n")
	if rest == "" {
		return trimmed
	}
	return rest
}

// truncate shortens s to max runes for log output.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
