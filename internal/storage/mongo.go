package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/quiby-ai/review-insights/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoRepository struct {
	client   *mongo.Client
	coll     *mongo.Collection
	withTime bool
}

func NewMongoRepository(ctx context.Context, uri, database, collection string, withTime bool) (*MongoRepository, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "username", Value: 1},
			{Key: "comment", Value: 1},
			{Key: "scraped_at", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create review index: %w", err)
	}

	return &MongoRepository{client: client, coll: coll, withTime: withTime}, nil
}

func (r *MongoRepository) filter(review domain.Review) bson.D {
	f := bson.D{
		{Key: "username", Value: review.Username},
		{Key: "comment", Value: review.Comment},
	}
	if r.withTime {
		f = append(f, bson.E{Key: "scraped_at", Value: review.ScrapedAt.UTC()})
	}
	return f
}

func (r *MongoRepository) Upsert(ctx context.Context, reviews []domain.Review) (UpsertResult, error) {
	if len(reviews) == 0 {
		return UpsertResult{}, nil
	}

	models := make([]mongo.WriteModel, 0, len(reviews))
	for _, review := range reviews {
		update := bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "rating", Value: review.RatingRaw},
				{Key: "rating_num", Value: review.RatingNumeric},
				{Key: "sentiment", Value: review.Sentiment},
				{Key: "scraped_at", Value: review.ScrapedAt.UTC()},
				{Key: "url", Value: review.SourceURL},
			}},
			{Key: "$setOnInsert", Value: bson.D{
				{Key: "id", Value: review.ID},
			}},
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(r.filter(review)).
			SetUpdate(update).
			SetUpsert(true))
	}

	res, err := r.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to bulk upsert reviews: %w", err)
	}

	return UpsertResult{
		Created: int(res.UpsertedCount),
		Updated: int(res.ModifiedCount),
	}, nil
}

func (r *MongoRepository) List(ctx context.Context) ([]domain.Review, error) {
	cursor, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "scraped_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}

	reviews := []domain.Review{}
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}

	return reviews, nil
}

func (r *MongoRepository) Count(ctx context.Context) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return int(n), nil
}

func (r *MongoRepository) Stats(ctx context.Context) (Stats, error) {
	reviews, err := r.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	return computeStats(reviews), nil
}

func (r *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}
