package session_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsilvera/ragpipe/pkg/session"
)

func newManager(t *testing.T, store session.Store, cfg session.Config) *session.Manager {
	t.Helper()
	return session.NewManager(context.Background(), "sid", store, cfg, nil)
}

func TestAddInteractionBoundsHistory(t *testing.T) {
	mgr := newManager(t, session.NewMemoryStore(), session.Config{MaxShortTerm: 3})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		mgr.AddInteraction(ctx, session.RoleUser, fmt.Sprintf("turn %d", i))
	}

	snapshot := mgr.Snapshot()
	require.Len(t, snapshot.ShortTerm, 3)
	assert.Equal(t, "turn 2", snapshot.ShortTerm[0].Content)
	assert.Equal(t, "turn 4", snapshot.ShortTerm[2].Content)
}

func TestAddInteractionTruncatesContent(t *testing.T) {
	mgr := newManager(t, session.NewMemoryStore(), session.Config{MaxContentLen: 10})

	mgr.AddInteraction(context.Background(), session.RoleUser, strings.Repeat("é", 25))

	snapshot := mgr.Snapshot()
	require.Len(t, snapshot.ShortTerm, 1)
	assert.Equal(t, 10, len([]rune(snapshot.ShortTerm[0].Content)))
}

func TestAddInteractionRejectsInvalidInput(t *testing.T) {
	mgr := newManager(t, session.NewMemoryStore(), session.Config{})
	ctx := context.Background()

	mgr.AddInteraction(ctx, session.RoleUser, "")
	mgr.AddInteraction(ctx, session.Role("ghost"), "content")

	assert.Empty(t, mgr.Snapshot().ShortTerm)
}

func TestManagerPersistsAndReloads(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()

	first := newManager(t, store, session.Config{})
	first.AddInteraction(ctx, session.RoleUser, "remember this")
	first.UpdateLongTerm(ctx, session.KeyConversationSummary, "user wants recall")

	data, ok, err := store.Get(ctx, "memory-sid")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, data)

	second := newManager(t, store, session.Config{})
	snapshot := second.Snapshot()
	require.Len(t, snapshot.ShortTerm, 1)
	assert.Equal(t, "remember this", snapshot.ShortTerm[0].Content)
	assert.Equal(t, "user wants recall", snapshot.LongTerm.ConversationSummary)
}

func TestManagerReplacesCorruptState(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "memory-sid", "{{{not json"))

	mgr := newManager(t, store, session.Config{})
	assert.Empty(t, mgr.Snapshot().ShortTerm)

	// The corrupt record was overwritten with a valid empty memory.
	data, ok, err := store.Get(ctx, "memory-sid")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = session.DecodeMemory([]byte(data))
	assert.NoError(t, err)
}

func TestClearScopes(t *testing.T) {
	ctx := context.Background()
	seed := func(t *testing.T) *session.Manager {
		mgr := newManager(t, session.NewMemoryStore(), session.Config{})
		mgr.AddInteraction(ctx, session.RoleUser, "hi")
		mgr.UpdateLongTerm(ctx, session.KeyConversationSummary, "summary")
		return mgr
	}

	t.Run("short", func(t *testing.T) {
		mgr := seed(t)
		mgr.Clear(ctx, session.ScopeShort)
		snapshot := mgr.Snapshot()
		assert.Empty(t, snapshot.ShortTerm)
		assert.Equal(t, "summary", snapshot.LongTerm.ConversationSummary)
	})

	t.Run("long", func(t *testing.T) {
		mgr := seed(t)
		mgr.Clear(ctx, session.ScopeLong)
		snapshot := mgr.Snapshot()
		assert.Len(t, snapshot.ShortTerm, 1)
		assert.True(t, snapshot.LongTerm.IsEmpty())
	})

	t.Run("all", func(t *testing.T) {
		mgr := seed(t)
		mgr.Clear(ctx, session.ScopeAll)
		snapshot := mgr.Snapshot()
		assert.Empty(t, snapshot.ShortTerm)
		assert.True(t, snapshot.LongTerm.IsEmpty())
	})
}

func TestWriteBackupsAddsTimestampedCopy(t *testing.T) {
	store := session.NewMemoryStore()
	mgr := session.NewManager(context.Background(), "sid", store, session.Config{WriteBackups: true}, nil)

	mgr.AddInteraction(context.Background(), session.RoleUser, "backed up")

	// One primary record plus at least one backup copy.
	assert.GreaterOrEqual(t, store.Len(), 2)
}

func TestSnapshotIsIsolated(t *testing.T) {
	mgr := newManager(t, session.NewMemoryStore(), session.Config{})
	mgr.AddInteraction(context.Background(), session.RoleUser, "original")

	snapshot := mgr.Snapshot()
	snapshot.ShortTerm[0].Content = "mutated"

	assert.Equal(t, "original", mgr.Snapshot().ShortTerm[0].Content)
}
