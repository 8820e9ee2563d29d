package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/quiby-ai/review-insights/internal/domain"
	"github.com/quiby-ai/review-insights/internal/index"
	"github.com/quiby-ai/review-insights/internal/normalize"
	"github.com/quiby-ai/review-insights/internal/producer"
	"github.com/quiby-ai/review-insights/internal/scraper"
	"github.com/quiby-ai/review-insights/internal/sentiment"
	"github.com/quiby-ai/review-insights/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/quiby-ai/review-insights/internal/service")

var ErrNoReviews = errors.New("no reviews extracted")

type IngestResult struct {
	Received  int             `json:"received"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
	Indexed   int             `json:"indexed"`
	Created   int             `json:"created"`
	Updated   int             `json:"updated"`
	Persisted int             `json:"persisted"`
	Records   []domain.Review `json:"records"`
}

// EventPublisher is satisfied by *producer.Producer.
type EventPublisher interface {
	PublishIngested(ctx context.Context, evt producer.IngestedEvent) error
}

type IngestOptions struct {
	AllowedPrefixes []string
	Agent           scraper.Agent
	Publisher       EventPublisher
}

// IngestService turns raw scraped tuples into indexed, persisted records.
// Ingest calls are serialized.
type IngestService struct {
	mu        sync.Mutex
	index     *index.Store
	repo      storage.Repository
	scorer    *sentiment.Scorer
	agent     scraper.Agent
	prefixes  []string
	publisher EventPublisher
	now       func() time.Time
	logger    *slog.Logger
}

func NewIngestService(idx *index.Store, repo storage.Repository, scorer *sentiment.Scorer, opts IngestOptions, logger *slog.Logger) *IngestService {
	return &IngestService{
		index:     idx,
		repo:      repo,
		scorer:    scorer,
		agent:     opts.Agent,
		prefixes:  opts.AllowedPrefixes,
		publisher: opts.Publisher,
		now:       time.Now,
		logger:    logger,
	}
}

// Ingest normalizes, scores and indexes each raw record in order, then
// upserts the indexed ones as one batch. Records without a username or
// comment are skipped; records that fail to embed are counted as failed and
// neither indexed nor persisted.
func (s *IngestService) Ingest(ctx context.Context, raws []domain.RawReview) (IngestResult, error) {
	ctx, span := tracer.Start(ctx, "IngestService.Ingest")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	result := IngestResult{Received: len(raws), Records: []domain.Review{}}
	if len(raws) == 0 {
		return result, nil
	}

	startTime := time.Now()
	scrapedAt := s.now().UTC()

	s.logger.Info("Processing batch of reviews", "batch_size", len(raws))

	for i, raw := range raws {
		select {
		case <-ctx.Done():
			s.logger.Info("Context cancelled, stopping review processing", "processed", i)
			return result, ctx.Err()
		default:
		}

		review, ok := s.buildReview(raw, scrapedAt)
		if !ok {
			s.logger.Warn("Skipping review with missing fields", "position", i, "username", raw.Username)
			result.Skipped++
			continue
		}

		vec, err := s.index.Insert(ctx, review.Username, review.Comment)
		if err != nil {
			s.logger.Warn("Failed to index review", "position", i, "username", review.Username, "error", err)
			result.Failed++
			continue
		}
		review.Embedding = vec

		result.Indexed++
		result.Records = append(result.Records, review)
	}

	if len(result.Records) > 0 {
		upserted, err := s.repo.Upsert(ctx, result.Records)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "persist failed")
			return result, fmt.Errorf("failed to persist reviews: %w", err)
		}
		result.Created = upserted.Created
		result.Updated = upserted.Updated
		result.Persisted = upserted.Persisted()
	}

	span.SetAttributes(
		attribute.Int("reviews.received", result.Received),
		attribute.Int("reviews.indexed", result.Indexed),
		attribute.Int("reviews.persisted", result.Persisted),
	)

	s.logger.Info("Batch ingested",
		"duration", time.Since(startTime),
		"received", result.Received,
		"skipped", result.Skipped,
		"failed", result.Failed,
		"indexed", result.Indexed,
		"persisted", result.Persisted,
		"index_size", s.index.Size())

	return result, nil
}

func (s *IngestService) buildReview(raw domain.RawReview, scrapedAt time.Time) (domain.Review, bool) {
	username := strings.TrimSpace(raw.Username)
	comment := normalize.Comment(raw.Comment)
	if username == "" || comment == "" {
		return domain.Review{}, false
	}

	review := domain.NewReview(username, strings.TrimSpace(raw.Rating), comment, raw.SourceURL)
	review.RatingNumeric = normalize.Rating(raw.Rating)
	review.Sentiment = s.scorer.Score(comment, review.RatingNumeric)
	review.ScrapedAt = scrapedAt
	return review, true
}

// IngestURL validates productURL, has the agent extract its reviews and
// ingests them.
func (s *IngestService) IngestURL(ctx context.Context, productURL string) (IngestResult, error) {
	productURL = strings.TrimSpace(productURL)
	if err := scraper.ValidateURL(productURL, s.prefixes); err != nil {
		return IngestResult{}, err
	}
	if s.agent == nil {
		return IngestResult{}, fmt.Errorf("%w: no agent configured", scraper.ErrAgent)
	}

	s.logger.Info("Scraping product reviews", "url", productURL)
	raws, err := s.agent.Fetch(ctx, productURL)
	if err != nil {
		return IngestResult{}, err
	}
	if len(raws) == 0 {
		return IngestResult{}, ErrNoReviews
	}

	for i := range raws {
		if raws[i].SourceURL == "" {
			raws[i].SourceURL = productURL
		}
	}

	return s.Ingest(ctx, raws)
}

// HandleBatch ingests a batch received from the message bus and publishes
// the outcome when a publisher is configured.
func (s *IngestService) HandleBatch(ctx context.Context, batchID, sourceURL string, raws []domain.RawReview) error {
	s.logger.Info("Processing scraped batch event", "batch_id", batchID, "reviews", len(raws))

	result, err := s.Ingest(ctx, raws)
	if err != nil {
		s.logger.Error("Ingestion failed", "error", err, "batch_id", batchID)
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if s.publisher == nil {
		return nil
	}

	evt := producer.NewIngestedEvent(batchID, sourceURL)
	evt.Received = result.Received
	evt.Skipped = result.Skipped
	evt.Failed = result.Failed
	evt.Indexed = result.Indexed
	evt.Created = result.Created
	evt.Updated = result.Updated
	evt.Persisted = result.Persisted
	evt.IndexSize = s.index.Size()

	if err := s.publisher.PublishIngested(ctx, evt); err != nil {
		s.logger.Error("Failed to publish ingested event", "error", err, "batch_id", batchID)
	}

	return nil
}

// WarmStart indexes the persisted records so search covers earlier runs.
func (s *IngestService) WarmStart(ctx context.Context, batchSize int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reviews, err := s.repo.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list stored reviews: %w", err)
	}
	if batchSize <= 0 {
		batchSize = 64
	}

	loaded := 0
	for start := 0; start < len(reviews); start += batchSize {
		end := min(start+batchSize, len(reviews))

		items := make([]index.Item, 0, end-start)
		for _, r := range reviews[start:end] {
			items = append(items, index.Item{Username: r.Username, Comment: r.Comment})
		}

		if err := s.index.AddBatch(ctx, items); err != nil {
			return loaded, fmt.Errorf("failed to index stored reviews %d-%d: %w", start, end, err)
		}
		loaded += len(items)
	}

	s.logger.Info("Index warm start completed", "loaded", loaded, "index_size", s.index.Size())
	return loaded, nil
}
