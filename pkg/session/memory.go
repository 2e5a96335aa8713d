// Package session provides per-session conversational memory management.
//
// Each chat session owns a Memory: a bounded short-term dialogue history
// plus an unbounded long-term fact store. A Manager mutates and persists one
// session's Memory; a Registry tracks active managers and evicts idle ones.
package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is the current persisted memory schema version.
//
// Version 1 was the original schema with camelCase keys and an untyped
// long-term map. Version 2 introduces typed long-term fields. Loading an
// older version triggers an explicit migration step.
const SchemaVersion = 2

// Role identifies the author of a dialogue turn.
type Role string

const (
	// RoleUser marks a turn written by the human user.
	RoleUser Role = "user"

	// RoleAssistant marks a turn written by the assistant.
	RoleAssistant Role = "assistant"
)

// Interaction is one dialogue turn in short-term memory.
type Interaction struct {
	// Role is the author of the turn.
	Role Role `json:"role"`

	// Content is the turn text, truncated to the configured cap.
	Content string `json:"content"`

	// Timestamp is when the turn was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Long-term memory well-known keys accepted by LongTermMemory.Set.
const (
	// KeyUserPreferences stores per-user preference pairs.
	KeyUserPreferences = "user_preferences"

	// KeyConversationSummary stores a rolling summary of the conversation.
	KeyConversationSummary = "conversation_summary"

	// KeyTechnicalContext stores technical facts mentioned in the session.
	KeyTechnicalContext = "technical_context"
)

// LongTermMemory holds per-session facts that survive short-term eviction.
//
// Well-known fields are typed; anything else lands in Extra, preserving the
// open key/value extensibility of the original schema without losing type
// safety for the common keys.
type LongTermMemory struct {
	// UserPreferences holds per-user preference pairs.
	UserPreferences map[string]string `json:"user_preferences,omitempty"`

	// ConversationSummary is a rolling summary of the conversation.
	ConversationSummary string `json:"conversation_summary,omitempty"`

	// TechnicalContext holds technical facts mentioned in the session.
	TechnicalContext map[string]string `json:"technical_context,omitempty"`

	// Extra is the escape hatch for arbitrary additional data.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Set merges a value into long-term memory under key, last write wins.
//
// Well-known keys map onto the typed fields; map-valued writes merge per
// entry. Any other key is stored in Extra.
func (l *LongTermMemory) Set(key string, value interface{}) error {
	switch key {
	case KeyConversationSummary:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("session: %s requires a string value, got %T", key, value)
		}
		l.ConversationSummary = s
	case KeyUserPreferences:
		merged, err := mergeStringMap(l.UserPreferences, value)
		if err != nil {
			return fmt.Errorf("session: %s: %w", key, err)
		}
		l.UserPreferences = merged
	case KeyTechnicalContext:
		merged, err := mergeStringMap(l.TechnicalContext, value)
		if err != nil {
			return fmt.Errorf("session: %s: %w", key, err)
		}
		l.TechnicalContext = merged
	default:
		if l.Extra == nil {
			l.Extra = make(map[string]interface{})
		}
		l.Extra[key] = value
	}
	return nil
}

// IsEmpty reports whether no long-term facts are stored.
func (l *LongTermMemory) IsEmpty() bool {
	return len(l.UserPreferences) == 0 &&
		l.ConversationSummary == "" &&
		len(l.TechnicalContext) == 0 &&
		len(l.Extra) == 0
}

// Memory is the complete per-session conversational state.
type Memory struct {
	// Version is the schema version this memory was written with.
	Version int `json:"version"`

	// ShortTerm is the bounded recent-dialogue buffer, oldest first.
	ShortTerm []Interaction `json:"short_term"`

	// LongTerm is the unbounded fact store.
	LongTerm LongTermMemory `json:"long_term"`
}

// NewMemory returns an empty memory at the current schema version.
func NewMemory() *Memory {
	return &Memory{
		Version:   SchemaVersion,
		ShortTerm: []Interaction{},
	}
}

// Validate checks the memory against the current schema.
//
// A memory is valid when its version matches SchemaVersion and every
// short-term entry has a known role and non-empty content. Mutated or
// freshly loaded memories must pass Validate before being trusted.
func (m *Memory) Validate() error {
	if m.Version != SchemaVersion {
		return fmt.Errorf("session: unsupported schema version %d (want %d)", m.Version, SchemaVersion)
	}
	for i, entry := range m.ShortTerm {
		if entry.Role != RoleUser && entry.Role != RoleAssistant {
			return fmt.Errorf("session: short-term entry %d has unknown role %q", i, entry.Role)
		}
		if entry.Content == "" {
			return fmt.Errorf("session: short-term entry %d has empty content", i)
		}
	}
	return nil
}

// Clone returns a deep copy of the memory.
func (m *Memory) Clone() *Memory {
	out := &Memory{
		Version:   m.Version,
		ShortTerm: make([]Interaction, len(m.ShortTerm)),
		LongTerm: LongTermMemory{
			ConversationSummary: m.LongTerm.ConversationSummary,
		},
	}
	copy(out.ShortTerm, m.ShortTerm)
	out.LongTerm.UserPreferences = cloneStringMap(m.LongTerm.UserPreferences)
	out.LongTerm.TechnicalContext = cloneStringMap(m.LongTerm.TechnicalContext)
	if m.LongTerm.Extra != nil {
		out.LongTerm.Extra = make(map[string]interface{}, len(m.LongTerm.Extra))
		for k, v := range m.LongTerm.Extra {
			out.LongTerm.Extra[k] = v
		}
	}
	return out
}

// memoryV1 mirrors the original persisted schema: camelCase keys, a
// fractional version number and an untyped long-term map.
type memoryV1 struct {
	Version   float64                `json:"version"`
	ShortTerm []Interaction          `json:"shortTerm"`
	LongTerm  map[string]interface{} `json:"longTerm"`
}

// DecodeMemory parses persisted memory data, migrating older schema
// versions, and validates the result.
//
// Callers should treat any returned error as corrupt state and fall back to
// an empty memory rather than operate on unverified data.
func DecodeMemory(data []byte) (*Memory, error) {
	var probe struct {
		Version float64 `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("session: decode memory: %w", err)
	}

	var memory *Memory
	if probe.Version >= SchemaVersion {
		memory = &Memory{}
		if err := json.Unmarshal(data, memory); err != nil {
			return nil, fmt.Errorf("session: decode memory: %w", err)
		}
	} else {
		var old memoryV1
		if err := json.Unmarshal(data, &old); err != nil {
			return nil, fmt.Errorf("session: decode v1 memory: %w", err)
		}
		memory = migrateV1(&old)
	}

	if err := memory.Validate(); err != nil {
		return nil, err
	}
	return memory, nil
}

// migrateV1 upgrades a version-1 memory, backfilling missing fields with
// safe defaults.
func migrateV1(old *memoryV1) *Memory {
	memory := NewMemory()
	if old.ShortTerm != nil {
		memory.ShortTerm = old.ShortTerm
	}

	for key, value := range old.LongTerm {
		switch key {
		case "userPreferences":
			memory.LongTerm.UserPreferences, _ = toStringMap(value)
		case "conversationSummary":
			if s, ok := value.(string); ok {
				memory.LongTerm.ConversationSummary = s
			}
		case "technicalContext":
			memory.LongTerm.TechnicalContext, _ = toStringMap(value)
		default:
			if memory.LongTerm.Extra == nil {
				memory.LongTerm.Extra = make(map[string]interface{})
			}
			memory.LongTerm.Extra[key] = value
		}
	}
	return memory
}

// mergeStringMap merges value (a string-keyed map) into dst.
func mergeStringMap(dst map[string]string, value interface{}) (map[string]string, error) {
	src, ok := toStringMap(value)
	if !ok {
		return dst, fmt.Errorf("requires a string map value, got %T", value)
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst, nil
}

// toStringMap converts the supported map shapes to map[string]string.
func toStringMap(value interface{}) (map[string]string, bool) {
	switch src := value.(type) {
	case map[string]string:
		out := make(map[string]string, len(src))
		for k, v := range src {
			out[k] = v
		}
		return out, true
	case map[string]interface{}:
		out := make(map[string]string, len(src))
		for k, v := range src {
			out[k] = fmt.Sprint(v)
		}
		return out, true
	default:
		return nil, false
	}
}

func cloneStringMap(src map[string]string) map[string]string {
	if src == nil {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
