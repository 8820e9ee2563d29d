package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/quiby-ai/review-insights/config"
	"github.com/quiby-ai/review-insights/internal/domain"
)

// UpsertResult reports how many records of a batch were inserted and how
// many replaced an existing record with the same key.
type UpsertResult struct {
	Created int
	Updated int
}

func (r UpsertResult) Persisted() int {
	return r.Created + r.Updated
}

type Stats struct {
	Total        int                      `json:"total"`
	BySentiment  map[domain.Sentiment]int `json:"by_sentiment"`
	RatedCount   int                      `json:"rated_count"`
	AvgRating    float64                  `json:"avg_rating"`
	OldestScrape *time.Time               `json:"oldest_scrape,omitempty"`
	NewestScrape *time.Time               `json:"newest_scrape,omitempty"`
}

type Repository interface {
	Upsert(ctx context.Context, reviews []domain.Review) (UpsertResult, error)
	List(ctx context.Context) ([]domain.Review, error)
	Count(ctx context.Context) (int, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

func NewRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Repository, error) {
	withTime := cfg.Storage.KeyIncludesScrapedAt

	switch cfg.Storage.Backend {
	case "file", "":
		return NewFileRepository(cfg.Storage.FilePath, withTime, logger)
	case "bolt":
		return NewBoltRepository(cfg.Bolt.Path, withTime)
	case "postgres":
		return NewPostgresRepository(ctx, cfg.Postgres.DSN, cfg.Embedding.Dimension, withTime)
	case "mongo":
		return NewMongoRepository(ctx, cfg.Mongo.URL, cfg.Mongo.Database, cfg.Mongo.Collection, withTime)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

// mergeBatch applies a batch onto existing records keyed by dedup key. A
// record matching an existing key keeps the stored ID and replaces the rest.
func mergeBatch(existing []domain.Review, batch []domain.Review, withTime bool) ([]domain.Review, UpsertResult) {
	var result UpsertResult

	positions := make(map[string]int, len(existing))
	for i, r := range existing {
		positions[r.Key(withTime).String()] = i
	}

	for _, r := range batch {
		key := r.Key(withTime).String()
		if i, ok := positions[key]; ok {
			r.ID = existing[i].ID
			existing[i] = r
			result.Updated++
			continue
		}
		positions[key] = len(existing)
		existing = append(existing, r)
		result.Created++
	}

	return existing, result
}

func computeStats(reviews []domain.Review) Stats {
	stats := Stats{
		Total: len(reviews),
		BySentiment: map[domain.Sentiment]int{
			domain.Positive: 0,
			domain.Negative: 0,
			domain.Neutral:  0,
		},
	}

	var ratingSum float64
	for _, r := range reviews {
		stats.BySentiment[r.Sentiment]++
		if r.RatingNumeric != nil {
			stats.RatedCount++
			ratingSum += *r.RatingNumeric
		}
		if r.ScrapedAt.IsZero() {
			continue
		}
		t := r.ScrapedAt
		if stats.OldestScrape == nil || t.Before(*stats.OldestScrape) {
			stats.OldestScrape = &t
		}
		if stats.NewestScrape == nil || t.After(*stats.NewestScrape) {
			stats.NewestScrape = &t
		}
	}
	if stats.RatedCount > 0 {
		stats.AvgRating = ratingSum / float64(stats.RatedCount)
	}

	return stats
}

func sortByScrapedAt(reviews []domain.Review) {
	sort.SliceStable(reviews, func(i, j int) bool {
		return reviews[i].ScrapedAt.Before(reviews[j].ScrapedAt)
	})
}
