package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

var configKeys = []string{
	"PORT", "ENVIRONMENT", "DATABASE_URL", "JWT_SECRET", "TOKEN_TTL", "CORS_ORIGINS", "MAX_UPLOAD_SIZE",
	"FILE_STORAGE_PATH", "REDIS_URL", "LOG_LEVEL", "STATIC_DIR",
}

func writeEnvFile(t *testing.T, dir string, body string) string {
	t.Helper()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	return path
}

func unsetKeys(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		// t.Setenv registers the restore; Unsetenv then removes the key for the test.
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
}

func TestLoadReadsExplicitEnvFile(t *testing.T) {
	unsetKeys(t, configKeys...)

	envPath := writeEnvFile(t, t.TempDir(), `
PORT=9090
ENVIRONMENT=production
DATABASE_URL=postgres://messenger:secret@db:5432/messenger
JWT_SECRET=super-secret
TOKEN_TTL=45m
CORS_ORIGINS=https://example.com, https://app.example.com
MAX_UPLOAD_SIZE=2048
FILE_STORAGE_PATH=/var/lib/messenger/uploads
REDIS_URL=redis://cache:6379/0
LOG_LEVEL=debug
STATIC_DIR=/srv/spa
`)
	t.Setenv(envFileVar, envPath)

	cfg := Load()

	if cfg.Port != "9090" {
		t.Fatalf("Port = %q, want %q", cfg.Port, "9090")
	}
	if !cfg.IsProduction() {
		t.Fatalf("Environment = %q, want production", cfg.Environment)
	}
	if cfg.DatabaseURL != "postgres://messenger:secret@db:5432/messenger" {
		t.Fatalf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.JWTSecret != "super-secret" {
		t.Fatalf("JWTSecret = %q", cfg.JWTSecret)
	}
	if cfg.TokenTTL != 45*time.Minute {
		t.Fatalf("TokenTTL = %v, want 45m", cfg.TokenTTL)
	}
	if want := []string{"https://example.com", "https://app.example.com"}; !reflect.DeepEqual(cfg.CORSOrigins, want) {
		t.Fatalf("CORSOrigins = %v, want %v", cfg.CORSOrigins, want)
	}
	if cfg.MaxUploadSize != 2048 {
		t.Fatalf("MaxUploadSize = %d, want 2048", cfg.MaxUploadSize)
	}
	if cfg.FileStoragePath != "/var/lib/messenger/uploads" {
		t.Fatalf("FileStoragePath = %q", cfg.FileStoragePath)
	}
	if cfg.RedisURL != "redis://cache:6379/0" {
		t.Fatalf("RedisURL = %q", cfg.RedisURL)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.StaticDir != "/srv/spa" {
		t.Fatalf("StaticDir = %q", cfg.StaticDir)
	}
}

func TestLoadEnvVarOverridesEnvFile(t *testing.T) {
	unsetKeys(t, configKeys...)

	envPath := writeEnvFile(t, t.TempDir(), `
PORT=9090
DATABASE_URL=/var/lib/messenger/messenger.db
FILE_STORAGE_PATH=/var/lib/messenger/uploads
JWT_SECRET=file-secret
`)
	t.Setenv(envFileVar, envPath)
	t.Setenv("DATABASE_URL", "/override.db")
	t.Setenv("PORT", "7777")

	cfg := Load()

	if cfg.Port != "7777" {
		t.Fatalf("Port = %q, want %q", cfg.Port, "7777")
	}
	if cfg.DatabaseURL != "/override.db" {
		t.Fatalf("DatabaseURL = %q, want %q", cfg.DatabaseURL, "/override.db")
	}
	if cfg.FileStoragePath != "/var/lib/messenger/uploads" {
		t.Fatalf("FileStoragePath = %q", cfg.FileStoragePath)
	}
	if cfg.JWTSecret != "file-secret" {
		t.Fatalf("JWTSecret = %q", cfg.JWTSecret)
	}
}

func TestLoadFallsBackToDefaultsWhenNoEnvFile(t *testing.T) {
	unsetKeys(t, append([]string{envFileVar}, configKeys...)...)
	t.Chdir(t.TempDir())

	cfg := Load()

	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want %q", cfg.Port, "8080")
	}
	if cfg.DatabaseURL != "./data/messenger.db" {
		t.Fatalf("DatabaseURL = %q, want default", cfg.DatabaseURL)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Fatalf("TokenTTL = %v, want 30m", cfg.TokenTTL)
	}
	if cfg.MaxUploadSize != 10485760 {
		t.Fatalf("MaxUploadSize = %d, want 10485760", cfg.MaxUploadSize)
	}
	if cfg.RedisURL != "" {
		t.Fatalf("RedisURL = %q, want empty", cfg.RedisURL)
	}
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	unsetKeys(t, configKeys...)
	t.Setenv(envFileVar, filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("MAX_UPLOAD_SIZE", "lots")
	t.Setenv("TOKEN_TTL", "-5m")

	cfg := Load()

	if cfg.MaxUploadSize != 10485760 {
		t.Fatalf("MaxUploadSize = %d, want default", cfg.MaxUploadSize)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Fatalf("TokenTTL = %v, want default", cfg.TokenTTL)
	}
}
