package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/quiby-ai/review-insights/internal/domain"
)

type PostgresRepository struct {
	db       *pgxpool.Pool
	dim      int
	withTime bool
}

func NewPostgresRepository(ctx context.Context, dsn string, dim int, withTime bool) (*PostgresRepository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &PostgresRepository{db: pool, dim: dim, withTime: withTime}

	if err := repo.initTables(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return repo, nil
}

func (r *PostgresRepository) initTables(ctx context.Context) error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS reviews (
			id VARCHAR(64) PRIMARY KEY,
			dedup_key TEXT UNIQUE NOT NULL,
			username TEXT NOT NULL,
			rating_raw TEXT NOT NULL DEFAULT '',
			rating_num DOUBLE PRECISION,
			comment TEXT NOT NULL,
			sentiment VARCHAR(16) NOT NULL,
			scraped_at TIMESTAMP WITH TIME ZONE NOT NULL,
			source_url TEXT NOT NULL DEFAULT '',
			embedding vector(%d),
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`, r.dim),
		`CREATE INDEX IF NOT EXISTS idx_reviews_sentiment ON reviews(sentiment);`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_scraped_at ON reviews(scraped_at);`,
	}

	for i, query := range queries {
		if _, err := r.db.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query %d: %w", i+1, err)
		}
	}

	return nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, reviews []domain.Review) (UpsertResult, error) {
	var result UpsertResult
	if len(reviews) == 0 {
		return result, nil
	}

	query := `
		INSERT INTO reviews
			(id, dedup_key, username, rating_raw, rating_num, comment, sentiment, scraped_at, source_url, embedding)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (dedup_key) DO UPDATE SET
			rating_raw = EXCLUDED.rating_raw,
			rating_num = EXCLUDED.rating_num,
			sentiment = EXCLUDED.sentiment,
			scraped_at = EXCLUDED.scraped_at,
			source_url = EXCLUDED.source_url,
			embedding = COALESCE(EXCLUDED.embedding, reviews.embedding),
			updated_at = NOW()
		RETURNING (xmax = 0) AS inserted;
	`

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, review := range reviews {
		var embedding *pgvector.Vector
		if len(review.Embedding) == r.dim {
			vec := pgvector.NewVector(review.Embedding)
			embedding = &vec
		}

		var inserted bool
		err := tx.QueryRow(ctx, query,
			review.ID,
			review.Key(r.withTime).String(),
			review.Username,
			review.RatingRaw,
			review.RatingNumeric,
			review.Comment,
			string(review.Sentiment),
			review.ScrapedAt.UTC(),
			review.SourceURL,
			embedding,
		).Scan(&inserted)
		if err != nil {
			return UpsertResult{}, fmt.Errorf("failed to upsert review %s: %w", review.ID, err)
		}

		if inserted {
			result.Created++
		} else {
			result.Updated++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return UpsertResult{}, fmt.Errorf("failed to commit upsert: %w", err)
	}

	return result, nil
}

const selectReviewColumns = `id, username, rating_raw, rating_num, comment, sentiment, scraped_at, source_url`

func (r *PostgresRepository) List(ctx context.Context) ([]domain.Review, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectReviewColumns+` FROM reviews ORDER BY scraped_at, created_at;`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	return scanReviews(rows)
}

// NearestStored runs the k-NN query against the stored embeddings. Rows
// without an embedding are ignored.
func (r *PostgresRepository) NearestStored(ctx context.Context, vector []float32, k int) ([]domain.Review, error) {
	if len(vector) != r.dim {
		return nil, fmt.Errorf("query vector has %d dimensions, column has %d", len(vector), r.dim)
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+selectReviewColumns+`
		FROM reviews
		WHERE embedding IS NOT NULL
		ORDER BY embedding <-> $1
		LIMIT $2;
	`, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest reviews: %w", err)
	}
	return scanReviews(rows)
}

func scanReviews(rows pgx.Rows) ([]domain.Review, error) {
	defer rows.Close()

	reviews := []domain.Review{}
	for rows.Next() {
		var review domain.Review
		var sentiment string
		if err := rows.Scan(
			&review.ID,
			&review.Username,
			&review.RatingRaw,
			&review.RatingNumeric,
			&review.Comment,
			&sentiment,
			&review.ScrapedAt,
			&review.SourceURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		review.Sentiment = domain.Sentiment(sentiment)
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return reviews, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM reviews;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Stats(ctx context.Context) (Stats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE sentiment = 'Positive') AS positive,
			COUNT(*) FILTER (WHERE sentiment = 'Negative') AS negative,
			COUNT(*) FILTER (WHERE sentiment = 'Neutral') AS neutral,
			COUNT(rating_num) AS rated,
			AVG(rating_num) AS avg_rating,
			MIN(scraped_at) AS oldest,
			MAX(scraped_at) AS newest
		FROM reviews;
	`

	var total, positive, negative, neutral, rated int
	var avgRating *float64
	var oldest, newest *time.Time

	if err := r.db.QueryRow(ctx, query).Scan(
		&total,
		&positive,
		&negative,
		&neutral,
		&rated,
		&avgRating,
		&oldest,
		&newest,
	); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return Stats{}, fmt.Errorf("failed to scan table stats: %w", err)
	}

	stats := Stats{
		Total: total,
		BySentiment: map[domain.Sentiment]int{
			domain.Positive: positive,
			domain.Negative: negative,
			domain.Neutral:  neutral,
		},
		RatedCount:   rated,
		OldestScrape: oldest,
		NewestScrape: newest,
	}
	if avgRating != nil {
		stats.AvgRating = *avgRating
	}

	return stats, nil
}

func (r *PostgresRepository) Close() error {
	r.db.Close()
	return nil
}
