package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidSession indicates an empty or malformed session identifier.
var ErrInvalidSession = errors.New("session: invalid session identifier")

// RegistryConfig contains registry lifetime settings.
type RegistryConfig struct {
	// IdleTimeout is how long a session may go untouched before the sweep
	// evicts it. Default: 30 minutes.
	IdleTimeout time.Duration `json:"idle_timeout"`

	// SweepInterval is how often the background sweep runs. Default: 5
	// minutes.
	SweepInterval time.Duration `json:"sweep_interval"`

	// Manager holds the per-session memory limits applied to every manager
	// the registry creates.
	Manager Config `json:"manager"`
}

func (c RegistryConfig) withDefaults() RegistryConfig {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 5 * time.Minute
	}
	return c
}

// Registry is the process-wide mapping from session identifier to its
// memory Manager.
//
// It is an explicitly owned, injectable object rather than a package-level
// singleton, so tests can run isolated registries. At most one manager
// exists per session identifier. A background sweep removes sessions idle
// longer than the configured timeout, clearing their memory and storage
// entry first; the sweep runs on its own goroutine and never blocks
// request-serving calls.
type Registry struct {
	store  Store
	cfg    RegistryConfig
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Manager

	done      chan struct{}
	closeOnce sync.Once
}

// NewRegistry creates a registry backed by the given store and starts the
// idle sweep.
func NewRegistry(store Store, cfg RegistryConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		store:    store,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		sessions: make(map[string]*Manager),
		done:     make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

// NewSessionID issues a fresh opaque session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Get returns the Manager for sessionID, creating it (and loading persisted
// state) on first reference.
func (r *Registry) Get(ctx context.Context, sessionID string) (*Manager, error) {
	if sessionID == "" {
		return nil, ErrInvalidSession
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if mgr, ok := r.sessions[sessionID]; ok {
		return mgr, nil
	}

	mgr := NewManager(ctx, sessionID, r.store, r.cfg.Manager, r.logger)
	r.sessions[sessionID] = mgr
	return mgr, nil
}

// Reset clears all memory for sessionID, removes it from the active set and
// its storage entry, and issues a fresh session identifier for the caller
// to continue with.
func (r *Registry) Reset(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrInvalidSession
	}

	r.mu.Lock()
	mgr, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if ok {
		mgr.Clear(ctx, ScopeAll)
	}
	if err := r.store.Delete(ctx, memoryKey(sessionID)); err != nil {
		r.logger.Warn("deleting session storage failed", "session", sessionID, "error", err)
	}

	return NewSessionID(), nil
}

// Len returns the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close stops the background sweep. Session storage is left intact.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	return nil
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweepOnce(context.Background())
		}
	}
}

// sweepOnce evicts every session idle longer than the timeout, clearing its
// memory and storage entry first. Returns the number of evicted sessions.
func (r *Registry) sweepOnce(ctx context.Context) int {
	now := time.Now()

	r.mu.Lock()
	var idle []*Manager
	for id, mgr := range r.sessions {
		if now.Sub(mgr.LastAccessed()) > r.cfg.IdleTimeout {
			idle = append(idle, mgr)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, mgr := range idle {
		mgr.Clear(ctx, ScopeAll)
		if err := r.store.Delete(ctx, memoryKey(mgr.SessionID())); err != nil {
			r.logger.Warn("deleting idle session storage failed", "session", mgr.SessionID(), "error", err)
		}
		r.logger.Info("evicted idle session", "session", mgr.SessionID())
	}
	return len(idle)
}
