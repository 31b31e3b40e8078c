package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/quill/internal/api"
	"github.com/MikeSquared-Agency/quill/internal/config"
	"github.com/MikeSquared-Agency/quill/internal/configstore"
	"github.com/MikeSquared-Agency/quill/internal/gemini"
	"github.com/MikeSquared-Agency/quill/internal/generator"
	"github.com/MikeSquared-Agency/quill/internal/hermes"
	"github.com/MikeSquared-Agency/quill/internal/notion"
	"github.com/MikeSquared-Agency/quill/internal/processor"
	"github.com/MikeSquared-Agency/quill/internal/recovery"
	"github.com/MikeSquared-Agency/quill/internal/slack"
	"github.com/MikeSquared-Agency/quill/internal/thread"
	"github.com/MikeSquared-Agency/quill/internal/writer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent: listen for reaction triggers and serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("quill starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	configs, err := configstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer configs.Close()
	slog.Info("database connected")

	// Slack client
	if cfg.SlackBotToken == "" {
		slog.Error("SLACK_BOT_TOKEN is required")
		os.Exit(1)
	}
	slackClient := slack.NewClient(cfg.SlackBotToken, slog.Default())

	// Document store and writer
	notionClient := notion.NewClient(slog.Default())
	defaults := writer.Target{Token: cfg.NotionAPIKey, DatabaseID: cfg.NotionDatabaseID}
	docWriter := writer.New(notionClient, defaults, slog.Default())

	// Generation
	llm := gemini.NewClient(cfg.GeminiModel)
	gen := generator.New(llm, docWriter, cfg.GeminiAPIKey, slog.Default())
	slog.Info("gemini client ready", "model", cfg.GeminiModel)

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		slog.Error("failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer hermesClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// Processor, the main pipeline
	resolver := thread.NewResolver(slackClient, slog.Default())
	proc := processor.New(configs, resolver, gen, docWriter, slackClient, hermesClient, slog.Default())

	if err := hermesClient.Subscribe(hermes.SubjectReaction, proc.HandleReaction); err != nil {
		slog.Error("failed to subscribe to slack reactions", "error", err)
		os.Exit(1)
	}

	// Recovery sweeper, reachable via the HTTP API
	sweeper := recovery.NewSweeper(configs, notionClient, docWriter, slog.Default())

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.RecoveryToken, sweeper, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if err := hermesClient.Publish(hermes.SubjectRegistered, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("quill ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("quill stopped")
	return nil
}
