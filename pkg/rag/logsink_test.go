package rag_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsilvera/ragpipe/pkg/rag"
)

func sampleEntry() *rag.LogEntry {
	return &rag.LogEntry{
		Query:         "who is David?",
		Response:      "<p>David is a backend engineer.</p>",
		ResponseTime:  420 * time.Millisecond,
		Model:         "gpt-4o-mini",
		Sources:       []string{"About"},
		ContextCount:  1,
		MaxSimilarity: 0.88,
		Metadata:      map[string]interface{}{"client": "web"},
	}
}

func TestSlogSinkNeverFails(t *testing.T) {
	sink := rag.NewSlogSink(nil)
	defer sink.Close()
	ctx := context.Background()

	assert.NoError(t, sink.Record(ctx, sampleEntry()))

	failed := sampleEntry()
	failed.Error = "model overloaded"
	assert.NoError(t, sink.Record(ctx, failed))
}

func TestSQLiteSinkAssignsIDs(t *testing.T) {
	sink, err := rag.NewSQLiteSink(":memory:")
	require.NoError(t, err)
	defer sink.Close()
	ctx := context.Background()

	first := sampleEntry()
	require.NoError(t, sink.Record(ctx, first))
	assert.NotZero(t, first.ID)

	second := sampleEntry()
	require.NoError(t, sink.Record(ctx, second))
	assert.NotEqual(t, first.ID, second.ID)
}

func TestSQLiteSinkRecordsFailures(t *testing.T) {
	sink, err := rag.NewSQLiteSink(":memory:")
	require.NoError(t, err)
	defer sink.Close()

	entry := sampleEntry()
	entry.Error = "embedding service down"
	entry.Sources = []string{}

	assert.NoError(t, sink.Record(context.Background(), entry))
}
