// Package cli wires the pipeline into the review-insights command.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/quiby-ai/review-insights/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	cfgFile string
	cfg     *config.Config
	logger  *slog.Logger
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "review-insights",
		Short: "Review Intelligence Pipeline - ingest, search and summarize product reviews",
		Long: `review-insights normalizes scraped product reviews, scores their sentiment,
indexes them for similarity search and summarizes the collected corpus.

Example usage:
  review-insights serve                          # Run the HTTP API (and Kafka consumer if enabled)
  review-insights ingest "dumps/**/*.json"       # Ingest scraped tuple files
  review-insights search -q "battery life" -k 3  # Search the stored reviews
  review-insights summarize                      # Summarize the stored reviews
  review-insights stats                          # Show record store statistics`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			opts.cfg = cfg
			opts.logger = newLogger(cfg.Log, cmd.ErrOrStderr())
			slog.SetDefault(opts.logger)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./config.toml)")

	cmd.AddCommand(
		newServeCommand(opts),
		newIngestCommand(opts),
		newSearchCommand(opts),
		newSummarizeCommand(opts),
		newStatsCommand(opts),
	)

	return cmd
}

func Execute(ctx context.Context) {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}
