package main

import (
	"context"
	"fmt"
	"io"

	"github.com/meduzzen/messenger/internal/auth"
	"github.com/meduzzen/messenger/internal/db"
	"github.com/meduzzen/messenger/pkg/config"
)

func runPruneTokens(cfg *config.Config, out io.Writer, args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("unknown prune-tokens flag: %s", args[0])
	}

	if err := ensureDataDirs(cfg); err != nil {
		return err
	}

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	n, err := auth.New(database.GetConn(), cfg.JWTSecret).PruneRevoked(context.Background())
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Pruned %d expired revoked tokens.\n", n)
	return nil
}
