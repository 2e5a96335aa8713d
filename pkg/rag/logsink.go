package rag

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/snowflake"
	_ "github.com/mattn/go-sqlite3"
)

// LogSink receives the provenance record of each generation cycle.
//
// Sinks must tolerate concurrent Record calls. A sink failure is an
// observability loss, not a chat failure; callers log and continue.
type LogSink interface {
	// Record persists or emits one entry. Implementations may assign
	// entry.ID.
	Record(ctx context.Context, entry *LogEntry) error

	// Close releases sink resources.
	Close() error
}

// SlogSink emits entries as structured log records. The zero-dependency
// default when no persistent sink is configured.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a sink writing to the given logger.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger}
}

// Record emits the entry at info level, or warn when it carries an error.
func (s *SlogSink) Record(_ context.Context, entry *LogEntry) error {
	attrs := []interface{}{
		"query", truncate(entry.Query, 80),
		"model", entry.Model,
		"response_time", entry.ResponseTime,
		"context_count", entry.ContextCount,
		"max_similarity", entry.MaxSimilarity,
		"sources", entry.Sources,
	}
	if entry.Error != "" {
		attrs = append(attrs, "error", entry.Error)
		s.logger.Warn("chat completed with fallback", attrs...)
		return nil
	}
	s.logger.Info("chat completed", attrs...)
	return nil
}

// Close implements LogSink.
func (s *SlogSink) Close() error { return nil }

// SQLiteSink persists entries to a local SQLite database.
type SQLiteSink struct {
	db   *sql.DB
	node *snowflake.Node
}

// NewSQLiteSink opens (or creates) the database at path and ensures the
// chat_logs table exists. Entry IDs are snowflake identifiers, so they
// stay unique and time-ordered across restarts.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS chat_logs (
		id INTEGER PRIMARY KEY,
		query TEXT NOT NULL,
		response TEXT NOT NULL,
		response_time_ms INTEGER NOT NULL,
		model TEXT NOT NULL,
		sources TEXT NOT NULL,
		context_count INTEGER NOT NULL,
		max_similarity REAL NOT NULL,
		error TEXT,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create chat_logs table: %w", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create ID node: %w", err)
	}

	return &SQLiteSink{db: db, node: node}, nil
}

// Record inserts the entry and assigns its ID.
func (s *SQLiteSink) Record(ctx context.Context, entry *LogEntry) error {
	entry.ID = s.node.Generate().Int64()

	sources, err := json.Marshal(entry.Sources)
	if err != nil {
		return fmt.Errorf("failed to encode sources: %w", err)
	}

	var metadata interface{}
	if len(entry.Metadata) > 0 {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = string(data)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO chat_logs (id, query, response, response_time_ms, model,
			sources, context_count, max_similarity, error, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Query, entry.Response, entry.ResponseTime.Milliseconds(),
		entry.Model, string(sources), entry.ContextCount, entry.MaxSimilarity,
		nullable(entry.Error), metadata)
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
