package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "quill",
		Short: "Slack decision threads to Notion records",
		Long: `Quill watches for reaction triggers on Slack threads, generates an
architectural decision record from the conversation and files it in Notion.

Failed runs are checkpointed as error-artifact pages; "quill sweep" (or the
/recovery endpoint) promotes manually repaired artifacts into real records.`,
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd, sweepCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
