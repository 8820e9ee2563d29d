package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/quiby-ai/review-insights/config"
	"github.com/quiby-ai/review-insights/internal/embedding"
	"github.com/quiby-ai/review-insights/internal/index"
	"github.com/quiby-ai/review-insights/internal/producer"
	"github.com/quiby-ai/review-insights/internal/scraper"
	"github.com/quiby-ai/review-insights/internal/sentiment"
	"github.com/quiby-ai/review-insights/internal/service"
	"github.com/quiby-ai/review-insights/internal/storage"
	"github.com/quiby-ai/review-insights/internal/summarize"
)

// app holds the wired pipeline for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	repo     storage.Repository
	index    *index.Store
	ingest   *service.IngestService
	query    *service.QueryService
	producer *producer.Producer
}

type appOptions struct {
	warmStart bool
	withKafka bool
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (*app, error) {
	logger.Info("Opening review store", "backend", cfg.Storage.Backend)
	repo, err := storage.NewRepository(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open review store: %w", err)
	}

	embedder := embedding.New(cfg, logger)
	idx := index.NewStore(embedder, cfg.Index.DefaultK, logger)

	scorer := sentiment.NewScorer(nil, sentiment.Thresholds{
		PositiveCutoff: cfg.Sentiment.PositiveCutoff,
		NegativeCutoff: cfg.Sentiment.NegativeCutoff,
		RatingBoost:    cfg.Sentiment.RatingBoost,
		HighRating:     cfg.Sentiment.HighRating,
		LowRating:      cfg.Sentiment.LowRating,
		NeutralRating:  cfg.Sentiment.NeutralRating,
	})

	ingestOpts := service.IngestOptions{AllowedPrefixes: cfg.Scraper.AllowedPrefixes}
	if cfg.Scraper.AgentURL != "" {
		agent, err := scraper.NewAgentClient(scraper.AgentConfig{
			Endpoint: cfg.Scraper.AgentURL,
			Timeout:  cfg.Scraper.Timeout,
		}, logger)
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to create scraping agent client: %w", err)
		}
		ingestOpts.Agent = agent
	}

	a := &app{cfg: cfg, logger: logger, repo: repo, index: idx}

	if opts.withKafka && cfg.Kafka.Enabled {
		a.producer = producer.NewProducer(cfg.Kafka)
		ingestOpts.Publisher = a.producer
	}

	a.ingest = service.NewIngestService(idx, repo, scorer, ingestOpts, logger)
	a.query = service.NewQueryService(idx, repo, summarize.NewFromConfig(cfg, logger), embedder.ModelName(), logger)

	if opts.warmStart {
		if _, err := a.ingest.WarmStart(ctx, cfg.Embedding.BatchSize); err != nil {
			a.Close()
			return nil, err
		}
	}

	return a, nil
}

func (a *app) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("Failed to close producer", "error", err)
		}
	}
	if err := a.repo.Close(); err != nil {
		a.logger.Warn("Failed to close review store", "error", err)
	}
}
