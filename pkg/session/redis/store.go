// Package redis provides a session Store backed by Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dsilvera/ragpipe/pkg/session"
)

// Store implements session.Store on a Redis connection.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// Config is the configuration for the Redis store.
type Config struct {
	// Host is the Redis host (default "localhost").
	Host string

	// Port is the Redis port (default 6379).
	Port int

	// Password is the optional Redis password.
	Password string

	// DB is the Redis database number.
	DB int

	// TTL is an optional expiry applied to every key. 0 means no expiry;
	// the registry's idle sweep remains the authority on session lifetime,
	// the TTL is a safety net against orphaned keys.
	TTL time.Duration
}

// NewStore connects to Redis and verifies the connection with a ping.
func NewStore(cfg *Config) (*Store, error) {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 6379
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &Store{client: client, ttl: cfg.TTL}, nil
}

// Get returns the value stored under key. A missing key is not an error.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis: get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, applying the configured TTL if any.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: del %q: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
