// Package cache is a small key/value port with a Redis adapter.
package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is safe for concurrent use. Values are plain strings.
type Cache interface {
	// Get returns ErrMiss when the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. A non-positive ttl means no expiration.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// SetNX stores value only if key does not exist yet and reports
	// whether it did.
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

var ErrMiss = errors.New("cache: miss")
