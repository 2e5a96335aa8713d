package rag_test

import (
	"context"
	"strings"
	"sync"

	"github.com/dsilvera/ragpipe/pkg/llm"
	"github.com/dsilvera/ragpipe/pkg/search"
)

// fakeLLM is a scripted generation provider.
//
// Routing prompts (recognized by the binary-answer instruction) receive
// routeAnswer; every other prompt receives genAnswer or genErr.
type fakeLLM struct {
	mu          sync.Mutex
	routeAnswer string
	routeErr    error
	genAnswer   string
	genErr      error

	routeCalls int
	genCalls   int
	lastOpts   *llm.GenerateOptions
	lastPrompt string
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if strings.Contains(prompt, `Answer ONLY with "YES" or "NO"`) {
		f.routeCalls++
		return f.routeAnswer, f.routeErr
	}

	f.genCalls++
	f.lastPrompt = prompt
	f.lastOpts = llm.ApplyGenerateOptions(opts)
	if f.genErr != nil {
		return "", f.genErr
	}
	return f.genAnswer, nil
}

func (f *fakeLLM) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	last := ""
	if len(messages) > 0 {
		last = messages[len(messages)-1].Content
	}
	return f.Generate(ctx, last, opts...)
}

func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) counts() (route, gen int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.routeCalls, f.genCalls
}

func (f *fakeLLM) lastGenOptions() *llm.GenerateOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastOpts
}

// fakeEmbedder returns a fixed vector for every input.
type fakeEmbedder struct {
	mu     sync.Mutex
	vector []float64
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float64, len(f.vector))
	copy(out, f.vector)
	return out, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		vector, err := f.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = vector
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return len(f.vector) }
func (f *fakeEmbedder) Close() error    { return nil }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeSearch returns scripted results regardless of the query vector.
type fakeSearch struct {
	mu      sync.Mutex
	results []search.Result
	err     error
	calls   int
}

func (f *fakeSearch) Match(context.Context, []float64, float64, int) ([]search.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeSearch) Upsert(context.Context, []search.Document) error { return nil }
func (f *fakeSearch) Close() error                                    { return nil }

func (f *fakeSearch) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
