package rag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dsilvera/ragpipe/pkg/rag"
)

func TestFormatResponseRendersMarkdown(t *testing.T) {
	html := rag.FormatResponse("I use **Go** daily.", "what do you use?")

	assert.Contains(t, html, "<strong>Go</strong>")
	assert.NotContains(t, html, "**")
}

func TestFormatResponseStripsQueryEcho(t *testing.T) {
	html := rag.FormatResponse("WHAT IS GO? Go is a programming language.", "what is go")

	assert.Contains(t, html, "Go is a programming language.")
	assert.NotContains(t, html, "WHAT IS GO")
}

func TestFormatResponseKeepsNonEchoPrefix(t *testing.T) {
	html := rag.FormatResponse("Great question! Go is a language.", "what is go")

	assert.Contains(t, html, "Great question!")
}

func TestFormatResponseEchoOnlyResponseSurvives(t *testing.T) {
	// A response that is nothing but the echo must not collapse to empty.
	html := rag.FormatResponse("what is go?", "what is go")

	assert.Contains(t, html, "what is go")
}

func TestFormatResponseSanitizesHTML(t *testing.T) {
	html := rag.FormatResponse("hello <script>alert('x')</script> world", "hi")

	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "hello")
	assert.Contains(t, html, "world")
}

func TestFormatResponseRendersLists(t *testing.T) {
	html := rag.FormatResponse("- first\n- second", "list please")

	assert.Contains(t, html, "<li>")
	assert.Contains(t, html, "first")
}
