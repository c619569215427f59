package cache

import (
	"context"
	"testing"
	"time"
)

func TestNewRedisRejectsInvalidURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, err := NewRedis(ctx, "not-a-redis-url"); err == nil {
		t.Fatal("NewRedis() expected error for invalid url")
	}
}

func TestNewRedisFailsWhenUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	// Port 1 is reserved and never has a Redis server listening.
	if _, err := NewRedis(ctx, "redis://127.0.0.1:1/0"); err == nil {
		t.Fatal("NewRedis() expected ping error for unreachable server")
	}
}
