// Package mysql provides a session Store backed by MySQL.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// Store implements session.Store on a MySQL database.
type Store struct {
	db        *sql.DB
	tableName string
}

// Config is the configuration for the MySQL store.
type Config struct {
	// Host is the database host (default "localhost").
	Host string

	// Port is the database port (default 3306).
	Port int

	// User is the database user.
	User string

	// Password is the database password.
	Password string

	// DBName is the database name.
	DBName string

	// TableName is the table holding session state (default "sessions").
	TableName string
}

// NewStore opens the database and creates the session table if needed.
func NewStore(cfg *Config) (*Store, error) {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	tableName := cfg.TableName
	if tableName == "" {
		tableName = "sessions"
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, host, port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}

	store := &Store{db: db, tableName: tableName}
	if err := store.initTable(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// initTable initializes the key/value table. The key column length stays
// within MySQL's index limit for utf8mb4 primary keys.
func (s *Store) initTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			`+"`key`"+` VARCHAR(191) PRIMARY KEY,
			value MEDIUMTEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("mysql: create table: %w", err)
	}
	return nil
}

// Get returns the value stored under key. A missing key is not an error.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	query := fmt.Sprintf("SELECT value FROM %s WHERE `key` = ?", s.tableName)

	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("mysql: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(
		"INSERT INTO %s (`key`, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)",
		s.tableName)

	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("mysql: set %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE `key` = ?", s.tableName)

	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("mysql: delete %q: %w", key, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
