package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSummarizeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize",
		Short: "Summarize all stored reviews",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger, appOptions{warmStart: true})
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.query.Summary(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			return nil
		},
	}
}
