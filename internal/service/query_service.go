package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quiby-ai/review-insights/internal/domain"
	"github.com/quiby-ai/review-insights/internal/index"
	"github.com/quiby-ai/review-insights/internal/storage"
	"github.com/quiby-ai/review-insights/internal/summarize"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrNoData                  = errors.New("no reviews available")
	ErrStoredSearchUnsupported = errors.New("storage backend does not support vector search")
)

// VectorSearcher is implemented by backends that keep review embeddings and
// can rank them server-side.
type VectorSearcher interface {
	NearestStored(ctx context.Context, vector []float32, k int) ([]domain.Review, error)
}

var _ VectorSearcher = (*storage.PostgresRepository)(nil)

type IndexStatus struct {
	Size      int    `json:"faiss_total"`
	Dimension int    `json:"dimension"`
	Model     string `json:"model"`
}

// QueryService answers read-side requests over the index and the record store.
type QueryService struct {
	index      *index.Store
	repo       storage.Repository
	summarizer *summarize.Summarizer
	model      string
	logger     *slog.Logger
}

func NewQueryService(idx *index.Store, repo storage.Repository, summarizer *summarize.Summarizer, model string, logger *slog.Logger) *QueryService {
	return &QueryService{
		index:      idx,
		repo:       repo,
		summarizer: summarizer,
		model:      model,
		logger:     logger,
	}
}

func (s *QueryService) Search(ctx context.Context, query string, k int) (index.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "QueryService.Search")
	defer span.End()

	result, err := s.index.Search(ctx, query, k)
	if err != nil {
		span.RecordError(err)
		return index.SearchResult{}, err
	}
	span.SetAttributes(attribute.Int("search.k", k), attribute.Int("search.hits", len(result.Hits)))
	s.logger.Debug("Search completed", "query", query, "k", k, "hits", len(result.Hits), "no_data", result.NoData)
	return result, nil
}

// SearchStored ranks persisted reviews by embedding distance inside the
// storage backend, so it works without a warm in-memory index.
func (s *QueryService) SearchStored(ctx context.Context, query string, k int) ([]domain.Review, error) {
	ctx, span := tracer.Start(ctx, "QueryService.SearchStored")
	defer span.End()

	searcher, ok := s.repo.(VectorSearcher)
	if !ok {
		return nil, ErrStoredSearchUnsupported
	}

	vec, k, err := s.index.EmbedQuery(ctx, query, k)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	reviews, err := searcher.NearestStored(ctx, vec, k)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search stored reviews: %w", err)
	}
	span.SetAttributes(attribute.Int("search.k", k), attribute.Int("search.hits", len(reviews)))
	s.logger.Debug("Stored search completed", "query", query, "k", k, "hits", len(reviews))
	return reviews, nil
}

// Summary summarizes every indexed comment with the default lengths.
func (s *QueryService) Summary(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "QueryService.Summary")
	defer span.End()

	comments := s.index.Comments()
	if len(comments) == 0 {
		return "", ErrNoData
	}

	summary, err := s.summarizer.Summarize(ctx, comments, 0, 0)
	if err != nil {
		return "", err
	}
	s.logger.Info("Summary generated", "comments", len(comments), "summary_chars", len(summary))
	return summary, nil
}

func (s *QueryService) IndexStatus() IndexStatus {
	return IndexStatus{
		Size:      s.index.Size(),
		Dimension: s.index.Dimension(),
		Model:     s.model,
	}
}

// IndexedComments lists the comments currently in the in-memory index.
func (s *QueryService) IndexedComments() []string {
	return s.index.Comments()
}

// StoredReviews lists the persisted record set.
func (s *QueryService) StoredReviews(ctx context.Context) ([]domain.Review, error) {
	reviews, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

func (s *QueryService) Stats(ctx context.Context) (storage.Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return storage.Stats{}, fmt.Errorf("failed to get table stats: %w", err)
	}
	return stats, nil
}
