package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envFileVar = "MESSENGER_ENV_FILE"

type Config struct {
	Port            string
	Environment     string
	DatabaseURL     string
	JWTSecret       string
	TokenTTL        time.Duration
	CORSOrigins     []string
	MaxUploadSize   int64
	FileStoragePath string
	RedisURL        string
	LogLevel        string
	StaticDir       string
}

func Load() *Config {
	file := readEnvFile()
	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		if value, exists := file[key]; exists {
			return value
		}
		return defaultValue
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		DatabaseURL:     getEnv("DATABASE_URL", "./data/messenger.db"),
		JWTSecret:       getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		TokenTTL:        parseDuration(getEnv("TOKEN_TTL", "30m"), 30*time.Minute),
		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")),
		MaxUploadSize:   parseInt64(getEnv("MAX_UPLOAD_SIZE", "10485760"), 10485760), // 10MB default
		FileStoragePath: getEnv("FILE_STORAGE_PATH", "./data/uploads"),
		RedisURL:        getEnv("REDIS_URL", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		StaticDir:       getEnv("STATIC_DIR", ""),
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// readEnvFile reads MESSENGER_ENV_FILE, or ./.env when present. Values are
// only used as fallbacks; the process environment is never modified.
func readEnvFile() map[string]string {
	path, explicit := os.LookupEnv(envFileVar)
	if !explicit {
		path = ".env"
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}
	values, err := godotenv.Read(path)
	if err != nil {
		return nil
	}
	return values
}

func parseInt64(s string, fallback int64) int64 {
	val, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || val <= 0 {
		return fallback
	}
	return val
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
