package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(store Store, idle time.Duration) *Registry {
	return NewRegistry(store, RegistryConfig{
		IdleTimeout:   idle,
		SweepInterval: time.Hour,
	}, nil)
}

func TestRegistryGetCreatesOnce(t *testing.T) {
	registry := newTestRegistry(NewMemoryStore(), time.Hour)
	defer registry.Close()
	ctx := context.Background()

	first, err := registry.Get(ctx, "abc")
	require.NoError(t, err)
	second, err := registry.Get(ctx, "abc")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryGetRejectsEmptyID(t *testing.T) {
	registry := newTestRegistry(NewMemoryStore(), time.Hour)
	defer registry.Close()

	_, err := registry.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRegistryResetIssuesFreshID(t *testing.T) {
	store := NewMemoryStore()
	registry := newTestRegistry(store, time.Hour)
	defer registry.Close()
	ctx := context.Background()

	mgr, err := registry.Get(ctx, "abc")
	require.NoError(t, err)
	mgr.AddInteraction(ctx, RoleUser, "hello")

	fresh, err := registry.Reset(ctx, "abc")
	require.NoError(t, err)
	assert.NotEmpty(t, fresh)
	assert.NotEqual(t, "abc", fresh)
	assert.Equal(t, 0, registry.Len())

	_, ok, err := store.Get(ctx, memoryKey("abc"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSweepOnceEvictsOnlyIdleSessions(t *testing.T) {
	store := NewMemoryStore()
	registry := newTestRegistry(store, 30*time.Minute)
	defer registry.Close()
	ctx := context.Background()

	idle, err := registry.Get(ctx, "idle")
	require.NoError(t, err)
	idle.AddInteraction(ctx, RoleUser, "stale turn")
	idle.mu.Lock()
	idle.lastAccessed = time.Now().Add(-time.Hour)
	idle.mu.Unlock()

	active, err := registry.Get(ctx, "active")
	require.NoError(t, err)
	active.AddInteraction(ctx, RoleUser, "fresh turn")

	evicted := registry.sweepOnce(ctx)

	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, registry.Len())

	_, ok, err := store.Get(ctx, memoryKey("idle"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Get(ctx, memoryKey("active"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewSessionIDIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewSessionID()
		assert.NotEmpty(t, id)
		assert.False(t, seen[id])
		seen[id] = true
	}
}
