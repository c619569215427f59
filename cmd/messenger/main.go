package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"runtime/debug"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/meduzzen/messenger/internal/auth"
	"github.com/meduzzen/messenger/internal/cache"
	"github.com/meduzzen/messenger/internal/chat"
	"github.com/meduzzen/messenger/internal/db"
	"github.com/meduzzen/messenger/internal/handlers"
	"github.com/meduzzen/messenger/internal/storage"
	"github.com/meduzzen/messenger/pkg/config"
	"github.com/meduzzen/messenger/pkg/i18n"
)

func rateLimitMiddleware(limiterInstance *limiter.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := c.GetHeader("Accept-Language")
		limiterContext, err := limiterInstance.Get(c.Request.Context(), c.ClientIP())
		if err != nil {
			log.Error("rate limiter failed", "path", c.Request.URL.Path, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": i18n.Localize("rate limiter error", lang)})
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limiterContext.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", limiterContext.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", limiterContext.Reset))

		if limiterContext.Reached {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"detail": i18n.Localize("rate limit exceeded", lang)})
			return
		}

		c.Next()
	}
}

func newLimiterStore(rc *cache.RedisCache, name string) (limiter.Store, error) {
	if rc == nil {
		return memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          "messenger:" + name,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		}), nil
	}
	return sredis.NewStoreWithOptions(rc.Client(), limiter.StoreOptions{
		Prefix: "messenger:" + name,
	})
}

type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseBodyWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w responseBodyWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// requestLogger logs every request; 5xx responses also carry the body and
// any gin errors attached by handlers.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		blw := &responseBodyWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"status", status,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"duration", time.Since(start).Truncate(time.Millisecond),
		}
		if status >= http.StatusInternalServerError {
			fields = append(fields,
				"errors", c.Errors.ByType(gin.ErrorTypeAny).String(),
				"response", strings.TrimSpace(blw.body.String()),
			)
			log.Error("request", fields...)
			return
		}
		log.Info("request", fields...)
	}
}

func panicRecovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.Error("panic recovered",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
			"error", recovered,
			"stack", string(debug.Stack()),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": i18n.Localize("internal server error", c.GetHeader("Accept-Language"))})
	})
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := slices.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || slices.Contains(origins, origin)) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept-Language")
			c.Writer.Header().Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func shouldServeSPA(c *gin.Context) bool {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		return false
	}

	accept := c.GetHeader("Accept")
	if !strings.Contains(accept, "text/html") {
		return false
	}

	reqPath := c.Request.URL.Path
	if reqPath == "" {
		return false
	}

	// Do not SPA-fallback unknown file-like paths (common scanner probes).
	if ext := strings.ToLower(path.Ext(reqPath)); ext != "" {
		return false
	}

	return true
}

// spaHandler serves files under dir and falls back to index.html for
// client-side routes.
func spaHandler(dir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := c.GetHeader("Accept-Language")
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			rel := path.Clean("/" + c.Request.URL.Path)
			full := filepath.Join(dir, filepath.FromSlash(rel))
			if info, err := os.Stat(full); err == nil && !info.IsDir() {
				c.File(full)
				return
			}
		}

		if !shouldServeSPA(c) {
			c.JSON(http.StatusNotFound, gin.H{"detail": i18n.Localize("not found", lang)})
			return
		}

		c.Header("Cache-Control", "no-cache")
		c.File(filepath.Join(dir, "index.html"))
	}
}

func setupLogger(cfg *config.Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetReportTimestamp(true)
	if cfg.IsProduction() {
		log.SetFormatter(log.JSONFormatter)
	}
}

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	if len(os.Args) > 1 {
		if err := runCommand(cfg, os.Args[1:]); err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := runServer(cfg); err != nil {
		log.Fatal("Failed to start server", "err", err)
	}
}

func runCommand(cfg *config.Config, args []string) error {
	command := args[0]

	switch command {
	case "status":
		return runStatus(cfg, os.Stdout, args[1:])
	case "migrate":
		return runMigrate(cfg, os.Stdout, args[1:])
	case "prune-tokens":
		return runPruneTokens(cfg, os.Stdout, args[1:])
	case "-h", "--help", "help":
		printUsage(os.Stdout)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintln(out, "Usage:")
	fmt.Fprintln(out, "  messenger                   Start the web server")
	fmt.Fprintln(out, "  messenger status            Show application statistics")
	fmt.Fprintln(out, "  messenger status --json")
	fmt.Fprintln(out, "  messenger migrate chat-members [--dry-run] [--database DSN]")
	fmt.Fprintln(out, "  messenger prune-tokens      Delete expired entries from the token blacklist")
}

func ensureDataDirs(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.FileStoragePath, 0o755); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}
	if !db.IsPostgres(cfg.DatabaseURL) {
		if dir := filepath.Dir(db.SQLitePath(cfg.DatabaseURL)); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create database dir: %w", err)
			}
		}
	}
	return nil
}

func runServer(cfg *config.Config) error {
	if err := ensureDataDirs(cfg); err != nil {
		return err
	}

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	files, err := storage.New(cfg.FileStoragePath)
	if err != nil {
		return err
	}

	var redisCache *cache.RedisCache
	authOpts := []auth.Option{auth.WithTokenTTL(cfg.TokenTTL)}
	if cfg.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisCache, err = cache.NewRedis(ctx, cfg.RedisURL)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisCache.Close()
		authOpts = append(authOpts, auth.WithRevocationCache(redisCache))
		log.Info("redis connected", "url", cfg.RedisURL)
	}

	// Initialize services
	authSvc := auth.New(database.GetConn(), cfg.JWTSecret, authOpts...)
	chatSvc := chat.New(database.GetConn(), files, chat.WithMaxUploadSize(cfg.MaxUploadSize))

	if _, err := chatSvc.BackfillMembers(context.Background(), false); err != nil {
		return fmt.Errorf("failed to backfill chat members: %w", err)
	}

	// Initialize handlers
	if err := handlers.RegisterValidators(); err != nil {
		return err
	}
	authHandler := handlers.NewAuthHandler(authSvc)
	chatHandler := handlers.NewChatHandler(chatSvc)
	msgHandler := handlers.NewMessageHandler(chatSvc)

	// Setup router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(requestLogger())
	router.Use(panicRecovery())
	router.Use(corsMiddleware(cfg.CORSOrigins))
	router.MaxMultipartMemory = cfg.MaxUploadSize

	loginStore, err := newLimiterStore(redisCache, "login")
	if err != nil {
		return fmt.Errorf("failed to create rate limiter store: %w", err)
	}
	registerStore, err := newLimiterStore(redisCache, "register")
	if err != nil {
		return fmt.Errorf("failed to create rate limiter store: %w", err)
	}
	loginLimiter := limiter.New(loginStore, limiter.Rate{Period: time.Minute, Limit: 5})
	registerLimiter := limiter.New(registerStore, limiter.Rate{Period: time.Minute, Limit: 2})

	// Public endpoints
	router.POST("/register", rateLimitMiddleware(registerLimiter), authHandler.Register)
	router.POST("/login", rateLimitMiddleware(loginLimiter), authHandler.Login)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Protected endpoints
	protected := router.Group("")
	protected.Use(authHandler.AuthMiddleware())
	{
		protected.POST("/logout", authHandler.Logout)
		protected.GET("/me", authHandler.Me)
		protected.GET("/users", authHandler.ListUsers)

		// Chats
		protected.POST("/chats", chatHandler.CreateChat)
		protected.GET("/chats", chatHandler.ListChats)
		protected.DELETE("/chats/:id", chatHandler.DeactivateChat)
		protected.GET("/chats/:id/participants", chatHandler.Participants)

		// Messages
		protected.POST("/chats/:id/messages", msgHandler.SendMessage)
		protected.GET("/chats/:id/messages", msgHandler.ListMessages)
		protected.PUT("/messages/:id", msgHandler.EditMessage)
		protected.DELETE("/messages/:id", msgHandler.DeleteMessage)

		// Files
		protected.POST("/messages/:id/files", msgHandler.UploadFile)
		protected.GET("/files/:id", msgHandler.DownloadFile)
	}

	if cfg.StaticDir != "" {
		router.NoRoute(spaHandler(cfg.StaticDir))
	} else {
		router.NoRoute(func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"detail": i18n.Localize("not found", c.GetHeader("Accept-Language"))})
		})
	}

	addr := fmt.Sprintf("0.0.0.0:%s", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", "addr", addr, "database", database.Dialect(), "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
