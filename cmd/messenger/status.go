package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/meduzzen/messenger/internal/db"
	"github.com/meduzzen/messenger/internal/models"
	"github.com/meduzzen/messenger/pkg/config"
)

type appStatus struct {
	GeneratedAt     time.Time
	Environment     string
	Port            string
	Database        string
	Dialect         string
	FileStoragePath string
	Users           int64
	ActiveChats     int64
	Messages        int64
	DeletedMessages int64
	Files           int64
	UploadedBytes   int64
	MessagesLast24h int64
	LatestMessageAt string
	RevokedTokens   int64
	ExpiredRevoked  int64
	DBSize          int64
	DBWALSize       int64
	DBSHMSize       int64
	UploadDirSize   int64
	UploadFileCount int64
	DBMetricsReady  bool
	DBWarning       string
	StorageWarnings []string
}

type statusOptions struct {
	JSON bool
}

func parseStatusArgs(args []string) (statusOptions, error) {
	opts := statusOptions{}
	for _, arg := range args {
		switch arg {
		case "--json", "-j":
			opts.JSON = true
		default:
			return opts, fmt.Errorf("unknown status flag: %s", arg)
		}
	}
	return opts, nil
}

func runStatus(cfg *config.Config, out io.Writer, args []string) error {
	opts, err := parseStatusArgs(args)
	if err != nil {
		return err
	}

	status := collectStatus(cfg)
	if opts.JSON {
		return printStatusJSON(out, status)
	}
	printStatus(out, status)
	return nil
}

func collectStatus(cfg *config.Config) appStatus {
	status := appStatus{
		GeneratedAt:     time.Now(),
		Environment:     cfg.Environment,
		Port:            cfg.Port,
		Database:        redactDSN(cfg.DatabaseURL),
		Dialect:         db.DialectSQLite,
		FileStoragePath: cfg.FileStoragePath,
	}

	if bytes, files, err := dirUsage(cfg.FileStoragePath); err == nil {
		status.UploadDirSize = bytes
		status.UploadFileCount = files
	} else {
		status.StorageWarnings = append(status.StorageWarnings, fmt.Sprintf("upload dir: %v", err))
	}

	if db.IsPostgres(cfg.DatabaseURL) {
		status.Dialect = db.DialectPostgres
	} else {
		dbPath := db.SQLitePath(cfg.DatabaseURL)
		if size, err := fileSize(dbPath); err == nil {
			status.DBSize = size
		} else {
			status.StorageWarnings = append(status.StorageWarnings, fmt.Sprintf("database file: %v", err))
		}
		if size, err := fileSize(dbPath + "-wal"); err == nil {
			status.DBWALSize = size
		}
		if size, err := fileSize(dbPath + "-shm"); err == nil {
			status.DBSHMSize = size
		}

		// Opening a missing SQLite file would create an empty database.
		if _, err := os.Stat(dbPath); err != nil {
			status.DBWarning = fmt.Sprintf("database unavailable: %v", err)
			return status
		}
	}

	database, err := db.OpenExisting(cfg.DatabaseURL)
	if err != nil {
		status.DBWarning = fmt.Sprintf("database unavailable: %v", err)
		return status
	}
	defer database.Close()

	if err := collectMetrics(database.GetConn(), &status); err != nil {
		status.DBWarning = fmt.Sprintf("could not read database stats: %v", err)
		return status
	}

	status.DBMetricsReady = true
	return status
}

func collectMetrics(conn *gorm.DB, status *appStatus) error {
	now := time.Now().UTC()
	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&status.Users, conn.Model(&models.User{})},
		{&status.ActiveChats, conn.Model(&models.Chat{}).Where("is_active = ?", true)},
		{&status.Messages, conn.Model(&models.Message{}).Where("status = ?", models.MessageStatusActive)},
		{&status.DeletedMessages, conn.Model(&models.Message{}).Where("status = ?", models.MessageStatusDeleted)},
		{&status.Files, conn.Model(&models.FileAttachment{})},
		{&status.MessagesLast24h, conn.Model(&models.Message{}).Where("created_at >= ?", now.Add(-24*time.Hour))},
		{&status.RevokedTokens, conn.Model(&models.BlacklistedToken{})},
		{&status.ExpiredRevoked, conn.Model(&models.BlacklistedToken{}).Where("expires_at < ?", now)},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return err
		}
	}

	if err := conn.Model(&models.FileAttachment{}).Select("COALESCE(SUM(file_size), 0)").Scan(&status.UploadedBytes).Error; err != nil {
		return err
	}

	var latest []models.Message
	if err := conn.Order("created_at DESC").Limit(1).Find(&latest).Error; err != nil {
		return err
	}
	if len(latest) > 0 {
		status.LatestMessageAt = latest[0].CreatedAt.UTC().Format(time.RFC3339)
	}
	return nil
}

// redactDSN hides the password of a postgres URL.
func redactDSN(dsn string) string {
	if !db.IsPostgres(dsn) {
		return dsn
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	return u.Redacted()
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

func dirUsage(root string) (int64, int64, error) {
	var totalBytes int64
	var totalFiles int64

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		totalBytes += info.Size()
		totalFiles++
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return totalBytes, totalFiles, nil
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatTimestamp(value string) string {
	if value == "" {
		return "n/a"
	}
	return value
}

func printStatus(out io.Writer, status appStatus) {
	totalDB := status.DBSize + status.DBWALSize + status.DBSHMSize

	fmt.Fprintln(out, "Messenger Status")
	fmt.Fprintf(out, "Generated at: %s\n", status.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Environment : %s\n", status.Environment)
	fmt.Fprintf(out, "Port        : %s\n", status.Port)
	fmt.Fprintf(out, "Database    : %s (%s)\n", status.Database, status.Dialect)
	fmt.Fprintf(out, "Uploads dir : %s\n", status.FileStoragePath)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Data")
	if status.DBMetricsReady {
		fmt.Fprintf(out, "  Users             : %d\n", status.Users)
		fmt.Fprintf(out, "  Active chats      : %d\n", status.ActiveChats)
		fmt.Fprintf(out, "  Messages          : %d\n", status.Messages)
		fmt.Fprintf(out, "  Deleted messages  : %d\n", status.DeletedMessages)
		fmt.Fprintf(out, "  File records      : %d\n", status.Files)
		fmt.Fprintf(out, "  Uploaded bytes DB : %s\n", formatBytes(status.UploadedBytes))
		fmt.Fprintf(out, "  Messages last 24h : %d\n", status.MessagesLast24h)
		fmt.Fprintf(out, "  Latest message at : %s\n", formatTimestamp(status.LatestMessageAt))
		fmt.Fprintf(out, "  Revoked tokens    : %d (%d expired)\n", status.RevokedTokens, status.ExpiredRevoked)
	} else {
		fmt.Fprintln(out, "  Database metrics  : n/a")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Storage")
	if status.Dialect == db.DialectSQLite {
		fmt.Fprintf(out, "  DB file       : %s\n", formatBytes(status.DBSize))
		fmt.Fprintf(out, "  DB WAL file   : %s\n", formatBytes(status.DBWALSize))
		fmt.Fprintf(out, "  DB SHM file   : %s\n", formatBytes(status.DBSHMSize))
		fmt.Fprintf(out, "  DB footprint  : %s\n", formatBytes(totalDB))
	}
	fmt.Fprintf(out, "  Upload files  : %d\n", status.UploadFileCount)
	fmt.Fprintf(out, "  Upload size   : %s\n", formatBytes(status.UploadDirSize))

	if status.DBWarning != "" {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Warning: %s\n", status.DBWarning)
	}

	if len(status.StorageWarnings) > 0 {
		fmt.Fprintln(out)
		for _, warning := range status.StorageWarnings {
			fmt.Fprintf(out, "Warning: %s\n", warning)
		}
	}
}

func printStatusJSON(out io.Writer, status appStatus) error {
	payload := map[string]any{
		"generated_at":      status.GeneratedAt.Format(time.RFC3339),
		"environment":       status.Environment,
		"port":              status.Port,
		"database":          status.Database,
		"dialect":           status.Dialect,
		"file_storage_path": status.FileStoragePath,
		"metrics_ready":     status.DBMetricsReady,
		"metrics": map[string]any{
			"users":              status.Users,
			"active_chats":       status.ActiveChats,
			"messages":           status.Messages,
			"deleted_messages":   status.DeletedMessages,
			"files":              status.Files,
			"uploaded_bytes_db":  status.UploadedBytes,
			"messages_last_24h":  status.MessagesLast24h,
			"latest_message_at":  formatTimestamp(status.LatestMessageAt),
			"uploaded_bytes_hum": formatBytes(status.UploadedBytes),
			"revoked_tokens":     status.RevokedTokens,
			"expired_revoked":    status.ExpiredRevoked,
		},
		"storage": map[string]any{
			"db_file_bytes":      status.DBSize,
			"db_wal_bytes":       status.DBWALSize,
			"db_shm_bytes":       status.DBSHMSize,
			"db_footprint_bytes": status.DBSize + status.DBWALSize + status.DBSHMSize,
			"upload_dir_bytes":   status.UploadDirSize,
			"upload_file_count":  status.UploadFileCount,
			"db_footprint_hum":   formatBytes(status.DBSize + status.DBWALSize + status.DBSHMSize),
			"upload_dir_hum":     formatBytes(status.UploadDirSize),
		},
		"warnings": map[string]any{
			"database": status.DBWarning,
			"storage":  status.StorageWarnings,
		},
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
