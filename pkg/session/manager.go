package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Config contains per-session memory limits.
type Config struct {
	// MaxShortTerm bounds the short-term history length. When a new
	// interaction would exceed it, the oldest entries are evicted first.
	// Default: 10.
	MaxShortTerm int `json:"max_short_term"`

	// MaxContentLen caps the stored length of one interaction, in runes.
	// Longer content is truncated before storage. Default: 500.
	MaxContentLen int `json:"max_content_len"`

	// WriteBackups also writes a timestamped backup copy on every persist.
	// Backups are a debugging aid and are never restored automatically.
	WriteBackups bool `json:"write_backups"`
}

func (c Config) withDefaults() Config {
	if c.MaxShortTerm <= 0 {
		c.MaxShortTerm = 10
	}
	if c.MaxContentLen <= 0 {
		c.MaxContentLen = 500
	}
	return c
}

// Scope selects which memory partition an operation applies to.
type Scope string

const (
	// ScopeShort targets only the short-term dialogue history.
	ScopeShort Scope = "short"

	// ScopeLong targets only the long-term fact store.
	ScopeLong Scope = "long"

	// ScopeAll targets both partitions.
	ScopeAll Scope = "all"
)

// Manager owns one session's Memory.
//
// Lifecycle: created on first reference to a session identifier (loading
// persisted state if present), mutated by every dialogue turn, and cleared
// when the session is reset or evicted for inactivity.
//
// All mutations serialize on an internal mutex, persist the full memory
// after applying, and re-validate against the schema before trusting loaded
// state. Manager is safe for concurrent use.
type Manager struct {
	mu           sync.Mutex
	sessionID    string
	store        Store
	cfg          Config
	logger       *slog.Logger
	memory       *Memory
	lastAccessed time.Time
}

// NewManager creates the memory manager for a session, attempting to load
// persisted state.
//
// Absent state initializes empty. Corrupt or schema-incompatible state is
// logged and replaced by a fully empty memory rather than propagated, so the
// session stays usable.
func NewManager(ctx context.Context, sessionID string, store Store, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		sessionID:    sessionID,
		store:        store,
		cfg:          cfg.withDefaults(),
		logger:       logger,
		memory:       NewMemory(),
		lastAccessed: time.Now(),
	}
	m.load(ctx)
	return m
}

// SessionID returns the session identifier this manager serves.
func (m *Manager) SessionID() string {
	return m.sessionID
}

// AddInteraction appends one dialogue turn to short-term memory.
//
// Empty content or an unknown role is rejected as a logged no-op. Content
// is truncated to the configured cap, the oldest entries are evicted to
// keep the history within its bound, and the full memory is persisted.
func (m *Manager) AddInteraction(ctx context.Context, role Role, content string) {
	if content == "" || (role != RoleUser && role != RoleAssistant) {
		m.logger.Warn("rejecting invalid interaction",
			"session", m.sessionID, "role", string(role), "empty", content == "")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.memory.ShortTerm = append(m.memory.ShortTerm, Interaction{
		Role:      role,
		Content:   truncate(content, m.cfg.MaxContentLen),
		Timestamp: time.Now().UTC(),
	})
	for len(m.memory.ShortTerm) > m.cfg.MaxShortTerm {
		m.memory.ShortTerm = m.memory.ShortTerm[1:]
	}

	m.lastAccessed = time.Now()
	m.persistLocked(ctx)
}

// UpdateLongTerm merges a value into long-term memory under key,
// last write wins, and persists.
//
// An empty key is rejected as a logged no-op.
func (m *Manager) UpdateLongTerm(ctx context.Context, key string, value interface{}) {
	if key == "" {
		m.logger.Warn("rejecting empty long-term key", "session", m.sessionID)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.memory.LongTerm.Set(key, value); err != nil {
		m.logger.Warn("rejecting long-term update", "session", m.sessionID, "error", err)
		return
	}

	m.lastAccessed = time.Now()
	m.persistLocked(ctx)
}

// Clear resets the requested memory partition(s) to empty and persists.
func (m *Manager) Clear(ctx context.Context, scope Scope) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if scope == ScopeShort || scope == ScopeAll {
		m.memory.ShortTerm = []Interaction{}
	}
	if scope == ScopeLong || scope == ScopeAll {
		m.memory.LongTerm = LongTermMemory{}
	}
	m.persistLocked(ctx)
}

// Snapshot returns a deep copy of the current memory.
func (m *Manager) Snapshot() Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.memory.Clone()
}

// LastAccessed returns the time of the last mutation, used by the registry
// idle sweep.
func (m *Manager) LastAccessed() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastAccessed
}

// Persist writes the current memory to the store.
func (m *Manager) Persist(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persistLocked(ctx)
}

// load restores persisted state. Any failure leaves an empty memory and
// overwrites the corrupt record.
func (m *Manager) load(ctx context.Context) {
	data, ok, err := m.store.Get(ctx, memoryKey(m.sessionID))
	if err != nil {
		m.logger.Warn("loading session memory failed", "session", m.sessionID, "error", err)
		return
	}
	if !ok {
		return
	}

	memory, err := DecodeMemory([]byte(data))
	if err != nil {
		m.logger.Warn("discarding corrupt session memory", "session", m.sessionID, "error", err)
		m.mu.Lock()
		m.memory = NewMemory()
		m.persistLocked(ctx)
		m.mu.Unlock()
		return
	}
	m.mu.Lock()
	m.memory = memory
	m.mu.Unlock()
}

// persistLocked writes the serialized memory under the session key, plus a
// timestamped backup copy when configured. Persistence failures are logged,
// never fatal. Caller must hold m.mu.
func (m *Manager) persistLocked(ctx context.Context) {
	data, err := json.Marshal(m.memory)
	if err != nil {
		m.logger.Error("serializing session memory failed", "session", m.sessionID, "error", err)
		return
	}

	if err := m.store.Set(ctx, memoryKey(m.sessionID), string(data)); err != nil {
		m.logger.Warn("persisting session memory failed", "session", m.sessionID, "error", err)
		return
	}

	if m.cfg.WriteBackups {
		backupKey := fmt.Sprintf("backup-%s-%d", m.sessionID, time.Now().UnixMilli())
		if err := m.store.Set(ctx, backupKey, string(data)); err != nil {
			m.logger.Warn("writing memory backup failed", "session", m.sessionID, "error", err)
		}
	}
}

// memoryKey is the session-scoped storage key.
func memoryKey(sessionID string) string {
	return "memory-" + sessionID
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
