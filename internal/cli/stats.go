package cli

import (
	"fmt"

	"github.com/quiby-ai/review-insights/internal/domain"
	"github.com/spf13/cobra"
)

func newStatsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show record store statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.query.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend:     %s\n", opts.cfg.Storage.Backend)
			fmt.Fprintf(out, "Reviews:     %d\n", stats.Total)
			fmt.Fprintf(out, "Positive:    %d\n", stats.BySentiment[domain.Positive])
			fmt.Fprintf(out, "Negative:    %d\n", stats.BySentiment[domain.Negative])
			fmt.Fprintf(out, "Neutral:     %d\n", stats.BySentiment[domain.Neutral])
			fmt.Fprintf(out, "Rated:       %d\n", stats.RatedCount)
			if stats.RatedCount > 0 {
				fmt.Fprintf(out, "Avg rating:  %.2f\n", stats.AvgRating)
			}
			if stats.OldestScrape != nil && stats.NewestScrape != nil {
				fmt.Fprintf(out, "Scraped:     %s .. %s\n",
					stats.OldestScrape.Format("2006-01-02 15:04"), stats.NewestScrape.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}
