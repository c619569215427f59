package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/meduzzen/messenger/internal/chat"
	"github.com/meduzzen/messenger/internal/db"
	"github.com/meduzzen/messenger/internal/models"
	"github.com/meduzzen/messenger/pkg/config"
)

type chatMembersMigrationOptions struct {
	DatabaseURL string
	DryRun      bool
}

func runMigrate(cfg *config.Config, out io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("missing migration target (supported: chat-members)")
	}

	switch args[0] {
	case "chat-members":
		opts, err := parseChatMembersMigrationArgs(cfg, args[1:])
		if err != nil {
			return err
		}
		return runChatMembersMigration(context.Background(), out, opts)
	default:
		return fmt.Errorf("unknown migration target: %s", args[0])
	}
}

func parseChatMembersMigrationArgs(cfg *config.Config, args []string) (chatMembersMigrationOptions, error) {
	opts := chatMembersMigrationOptions{DatabaseURL: cfg.DatabaseURL}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--dry-run":
			opts.DryRun = true
		case "--database":
			i++
			if i >= len(args) || strings.TrimSpace(args[i]) == "" {
				return opts, fmt.Errorf("--database requires a path or URL")
			}
			opts.DatabaseURL = args[i]
		default:
			return opts, fmt.Errorf("unknown migration flag: %s", args[i])
		}
	}

	if strings.TrimSpace(opts.DatabaseURL) == "" {
		return opts, fmt.Errorf("database path cannot be empty")
	}

	return opts, nil
}

// runChatMembersMigration creates the membership rows missing for chat
// participants. A dry run only reports the count; it neither migrates the
// schema nor changes the SQLite journal mode.
func runChatMembersMigration(ctx context.Context, out io.Writer, opts chatMembersMigrationOptions) error {
	if !db.IsPostgres(opts.DatabaseURL) {
		if _, err := os.Stat(db.SQLitePath(opts.DatabaseURL)); err != nil {
			return fmt.Errorf("failed to access database path: %w", err)
		}
	}

	var (
		database *db.DB
		err      error
	)
	if opts.DryRun {
		database, err = db.OpenExisting(opts.DatabaseURL)
	} else {
		database, err = db.New(opts.DatabaseURL)
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	conn := database.GetConn()
	for _, table := range []any{&models.Chat{}, &models.ChatMember{}} {
		if !conn.Migrator().HasTable(table) {
			return fmt.Errorf("database has no chat schema yet; start the server once or run without --dry-run")
		}
	}

	missing, err := chat.New(conn, nil).BackfillMembers(ctx, opts.DryRun)
	if err != nil {
		return err
	}

	if opts.DryRun {
		fmt.Fprintf(out, "Dry-run successful. Database: %s\n", redactDSN(opts.DatabaseURL))
		fmt.Fprintf(out, "Would create %d chat member rows.\n", missing)
		return nil
	}

	fmt.Fprintf(out, "Migration completed. Database: %s\n", redactDSN(opts.DatabaseURL))
	fmt.Fprintf(out, "Created %d chat member rows.\n", missing)
	return nil
}
