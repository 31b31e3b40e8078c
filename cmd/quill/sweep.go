package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/quill/internal/config"
	"github.com/MikeSquared-Agency/quill/internal/configstore"
	"github.com/MikeSquared-Agency/quill/internal/notion"
	"github.com/MikeSquared-Agency/quill/internal/recovery"
	"github.com/MikeSquared-Agency/quill/internal/writer"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one recovery sweep over repaired error artifacts and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sweep(cmd.Context())
	},
}

func sweep(ctx context.Context) error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	configs, err := configstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer configs.Close()

	notionClient := notion.NewClient(slog.Default())
	defaults := writer.Target{Token: cfg.NotionAPIKey, DatabaseID: cfg.NotionDatabaseID}
	docWriter := writer.New(notionClient, defaults, slog.Default())

	sweeper := recovery.NewSweeper(configs, notionClient, docWriter, slog.Default())
	sum := sweeper.Sweep(ctx)

	fmt.Fprintf(os.Stdout, "channels=%d pages=%d recovered=%d skipped=%d\n",
		sum.Channels, sum.Pages, sum.Recovered, sum.Skipped)
	return nil
}
