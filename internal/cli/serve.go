package cli

import (
	"github.com/quiby-ai/review-insights/internal/api"
	"github.com/quiby-ai/review-insights/internal/consumer"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when enabled, the Kafka batch consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := opts.cfg, opts.logger
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			a, err := newApp(cmd.Context(), cfg, logger, appOptions{warmStart: cfg.Index.WarmStart, withKafka: true})
			if err != nil {
				return err
			}
			defer a.Close()

			server := api.NewServer(api.Config{
				Addr:           cfg.HTTP.Addr,
				RequestTimeout: cfg.HTTP.RequestTimeout,
			}, a.ingest, a.query, logger)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error { return server.Run(ctx) })

			if cfg.Kafka.Enabled {
				cons := consumer.NewKafkaConsumer(cfg.Kafka, a.ingest, logger)
				defer cons.Close()
				g.Go(func() error { return cons.Run(ctx) })
			}

			if err := g.Wait(); err != nil {
				logger.Error("Server exited with error", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
