package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	"github.com/meduzzen/messenger/internal/auth"
	"github.com/meduzzen/messenger/internal/db"
	"github.com/meduzzen/messenger/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestShouldServeSPA(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		accept string
		want   bool
	}{
		{"browser route", http.MethodGet, "/chats/3", "text/html,application/xhtml+xml", true},
		{"head request", http.MethodHead, "/login", "text/html", true},
		{"json client", http.MethodGet, "/chats/3", "application/json", false},
		{"post", http.MethodPost, "/chats", "text/html", false},
		{"file-like path", http.MethodGet, "/wp-login.php", "text/html", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(tt.method, tt.path, nil)
			c.Request.Header.Set("Accept", tt.accept)
			if got := shouldServeSPA(c); got != tt.want {
				t.Errorf("shouldServeSPA() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSPAHandler(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644)
	os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644)

	router := gin.New()
	router.NoRoute(spaHandler(dir))

	tests := []struct {
		name       string
		path       string
		accept     string
		wantStatus int
		wantBody   string
	}{
		{"static asset", "/app.js", "", http.StatusOK, "console.log(1)"},
		{"client route", "/chats/1", "text/html", http.StatusOK, "<html>app</html>"},
		{"unknown api path", "/nope", "application/json", http.StatusNotFound, `"detail":"not found"`},
		{"traversal", "/../secret.txt", "application/json", http.StatusNotFound, `"detail"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(corsMiddleware([]string{"http://localhost:3000"}))
	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})

	t.Run("foreign origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://evil.example")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, want empty", got)
		}
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d, want 204", w.Code)
		}
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	store, err := newLimiterStore(nil, "test")
	if err != nil {
		t.Fatalf("newLimiterStore: %v", err)
	}
	instance := limiter.New(store, limiter.Rate{Period: time.Minute, Limit: 2})

	router := gin.New()
	router.POST("/login", rateLimitMiddleware(instance), func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 1; i <= 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.Header.Set("Accept-Language", "uk")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if i <= 2 {
			if w.Code != http.StatusOK {
				t.Fatalf("request %d status = %d, want 200", i, w.Code)
			}
			if w.Header().Get("X-RateLimit-Limit") != "2" {
				t.Errorf("X-RateLimit-Limit = %q", w.Header().Get("X-RateLimit-Limit"))
			}
			continue
		}

		if w.Code != http.StatusTooManyRequests {
			t.Fatalf("request %d status = %d, want 429", i, w.Code)
		}
		var resp map[string]string
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp["detail"] == "" || resp["detail"] == "rate limit exceeded" {
			t.Errorf("detail = %q, want localized message", resp["detail"])
		}
	}
}

func TestRunCommand(t *testing.T) {
	cfg := &config.Config{DatabaseURL: filepath.Join(t.TempDir(), "messenger.db")}

	if err := runCommand(cfg, []string{"bogus"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
	if err := runCommand(cfg, []string{"status", "--bad"}); err == nil {
		t.Fatal("expected error for bad status flag")
	}
}

func TestPrintUsage(t *testing.T) {
	var out bytes.Buffer
	printUsage(&out)
	for _, cmd := range []string{"status", "migrate chat-members", "prune-tokens"} {
		if !strings.Contains(out.String(), cmd) {
			t.Errorf("usage missing %q", cmd)
		}
	}
}

func TestRunPruneTokens(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		DatabaseURL:     filepath.Join(dir, "data", "messenger.db"),
		FileStoragePath: filepath.Join(dir, "uploads"),
		JWTSecret:       "secret",
	}

	if err := runPruneTokens(cfg, &bytes.Buffer{}, []string{"--all"}); err == nil {
		t.Fatal("expected error for unknown flag")
	}

	var out bytes.Buffer
	if err := runPruneTokens(cfg, &out, nil); err != nil {
		t.Fatalf("runPruneTokens: %v", err)
	}
	if !strings.Contains(out.String(), "Pruned 0 expired revoked tokens") {
		t.Fatalf("unexpected output: %s", out.String())
	}

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	store := auth.NewDBRevocations(database.GetConn())
	store.Revoke(context.Background(), "old", 1, time.Now().Add(-time.Hour))
	store.Revoke(context.Background(), "fresh", 1, time.Now().Add(time.Hour))
	database.Close()

	out.Reset()
	if err := runPruneTokens(cfg, &out, nil); err != nil {
		t.Fatalf("runPruneTokens: %v", err)
	}
	if !strings.Contains(out.String(), "Pruned 1 expired revoked tokens") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}
