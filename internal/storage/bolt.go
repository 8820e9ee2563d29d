package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quiby-ai/review-insights/internal/domain"
	"go.etcd.io/bbolt"
)

var bucketReviews = []byte("reviews")

// BoltRepository stores one JSON document per dedup key.
type BoltRepository struct {
	db       *bbolt.DB
	withTime bool
}

func NewBoltRepository(path string, withTime bool) (*BoltRepository, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketReviews); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketReviews, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltRepository{db: db, withTime: withTime}, nil
}

func (r *BoltRepository) Upsert(ctx context.Context, reviews []domain.Review) (UpsertResult, error) {
	var result UpsertResult
	if len(reviews) == 0 {
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketReviews)
		for _, review := range reviews {
			key := []byte(review.Key(r.withTime).String())

			if existing := b.Get(key); existing != nil {
				var prev domain.Review
				if err := json.Unmarshal(existing, &prev); err == nil && prev.ID != "" {
					review.ID = prev.ID
				}
				result.Updated++
			} else {
				result.Created++
			}

			data, err := json.Marshal(review)
			if err != nil {
				return fmt.Errorf("failed to encode review: %w", err)
			}
			if err := b.Put(key, data); err != nil {
				return fmt.Errorf("failed to put review: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return UpsertResult{}, err
	}

	return result, nil
}

func (r *BoltRepository) List(ctx context.Context) ([]domain.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reviews := []domain.Review{}
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketReviews).ForEach(func(_, v []byte) error {
			var review domain.Review
			if err := json.Unmarshal(v, &review); err != nil {
				return fmt.Errorf("failed to decode review: %w", err)
			}
			reviews = append(reviews, review)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortByScrapedAt(reviews)
	return reviews, nil
}

func (r *BoltRepository) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int
	err := r.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketReviews).Stats().KeyN
		return nil
	})
	return n, err
}

func (r *BoltRepository) Stats(ctx context.Context) (Stats, error) {
	reviews, err := r.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return computeStats(reviews), nil
}

func (r *BoltRepository) Close() error {
	return r.db.Close()
}
