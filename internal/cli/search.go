package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newSearchCommand(opts *rootOptions) *cobra.Command {
	var (
		query    string
		topK     int
		jsonMode bool
		stored   bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search stored reviews by similarity",
		Long: `Index the stored reviews and return the ones nearest to the query.

Examples:
  review-insights search -q "battery life"
  review-insights search -q "livraison" -k 10 --json
  review-insights search -q "écran" --stored`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger, appOptions{warmStart: !stored})
			if err != nil {
				return err
			}
			defer a.Close()

			if stored {
				return searchStored(cmd, a, query, topK, jsonMode)
			}

			result, err := a.query.Search(cmd.Context(), query, topK)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonMode {
				enc := json.NewEncoder(out)
				enc.SetEscapeHTML(false)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			if result.NoData {
				fmt.Fprintln(out, "No reviews available.")
				return nil
			}
			for i, hit := range result.Hits {
				fmt.Fprintf(out, "%d. [%.4f] %s: %s\n", i+1, hit.Distance, hit.Username, hit.Comment)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "search query (required)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of results (default from config)")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&stored, "stored", false, "rank stored embeddings in the database instead of the in-memory index")
	_ = cmd.MarkFlagRequired("query")
	return cmd
}

func searchStored(cmd *cobra.Command, a *app, query string, topK int, jsonMode bool) error {
	reviews, err := a.query.SearchStored(cmd.Context(), query, topK)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonMode {
		enc := json.NewEncoder(out)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(reviews)
	}

	if len(reviews) == 0 {
		fmt.Fprintln(out, "No reviews available.")
		return nil
	}
	for i, r := range reviews {
		fmt.Fprintf(out, "%d. [%s] %s: %s\n", i+1, r.Sentiment, r.Username, r.Comment)
	}
	return nil
}
