package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/quiby-ai/review-insights/internal/scraper"
	"github.com/quiby-ai/review-insights/internal/service"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newIngestCommand(opts *rootOptions) *cobra.Command {
	var productURL string

	cmd := &cobra.Command{
		Use:   "ingest [glob...]",
		Short: "Ingest scraped review tuples from JSON files or a product URL",
		Long: `Ingest review tuples produced by the scraping agent. Each matching file is
ingested as one batch.

Examples:
  review-insights ingest "dumps/**/*.json"
  review-insights ingest --url https://www.amazon.fr/dp/B0C1234`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if productURL == "" && len(args) == 0 {
				return fmt.Errorf("provide at least one glob pattern or --url")
			}

			a, err := newApp(cmd.Context(), opts.cfg, opts.logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			var total service.IngestResult
			if productURL != "" {
				ctx, cancel := batchContext(cmd.Context(), opts.cfg.Processing.TimeoutPerBatch)
				result, err := a.ingest.IngestURL(ctx, productURL)
				cancel()
				if err != nil {
					return fmt.Errorf("failed to ingest %s: %w", productURL, err)
				}
				addResult(&total, result)
			}

			for _, pattern := range args {
				if err := ingestFiles(cmd, a, pattern, &total); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Received: %d  Skipped: %d  Failed: %d  Indexed: %d  Created: %d  Updated: %d  Persisted: %d\n",
				total.Received, total.Skipped, total.Failed, total.Indexed, total.Created, total.Updated, total.Persisted)
			return nil
		},
	}

	cmd.Flags().StringVar(&productURL, "url", "", "product URL to scrape through the configured agent")
	return cmd
}

func ingestFiles(cmd *cobra.Command, a *app, pattern string, total *service.IngestResult) error {
	src := scraper.NewFileSource(pattern)
	files, err := src.Files()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		a.logger.Warn("No files matched pattern", "pattern", pattern)
		return nil
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(cmd.ErrOrStderr())
		}),
	)

	for _, path := range files {
		raws, skipped, err := src.ReadFile(path)
		if err != nil {
			return err
		}
		if skipped > 0 {
			a.logger.Warn("Skipped malformed records", "file", path, "skipped", skipped)
			total.Received += skipped
			total.Skipped += skipped
		}

		ctx, cancel := batchContext(cmd.Context(), a.cfg.Processing.TimeoutPerBatch)
		result, err := a.ingest.Ingest(ctx, raws)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}
		addResult(total, result)
		_ = bar.Add(1)
	}
	return nil
}

// batchContext bounds one batch by timeout. Zero means no bound.
func batchContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func addResult(total *service.IngestResult, r service.IngestResult) {
	total.Received += r.Received
	total.Skipped += r.Skipped
	total.Failed += r.Failed
	total.Indexed += r.Indexed
	total.Created += r.Created
	total.Updated += r.Updated
	total.Persisted += r.Persisted
}
