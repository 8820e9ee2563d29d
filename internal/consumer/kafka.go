package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quiby-ai/review-insights/config"
	"github.com/quiby-ai/review-insights/internal/domain"
	"github.com/quiby-ai/review-insights/internal/scraper"
	"github.com/segmentio/kafka-go"
)

// ScrapedBatch is the payload of a reviews.scraped message. Reviews are
// decoded one by one so a malformed element only drops itself.
type ScrapedBatch struct {
	BatchID   string            `json:"batch_id"`
	SourceURL string            `json:"source_url"`
	Reviews   []json.RawMessage `json:"reviews"`
}

type BatchHandler interface {
	HandleBatch(ctx context.Context, batchID, sourceURL string, raws []domain.RawReview) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaConsumer struct {
	reader  messageReader
	handler BatchHandler
	logger  *slog.Logger
}

func NewKafkaConsumer(cfg config.KafkaConfig, handler BatchHandler, logger *slog.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.ScrapedTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &KafkaConsumer{reader: reader, handler: handler, logger: logger}
}

// Run consumes until ctx is cancelled. Messages are committed after
// handling, including ones that could not be decoded or ingested.
func (kc *KafkaConsumer) Run(ctx context.Context) error {
	kc.logger.Info("Starting Kafka consumer")

	for {
		msg, err := kc.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				kc.logger.Info("Kafka consumer stopped")
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		kc.handle(ctx, msg)

		if err := kc.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to commit offset %d: %w", msg.Offset, err)
		}
	}
}

func (kc *KafkaConsumer) handle(ctx context.Context, msg kafka.Message) {
	var batch ScrapedBatch
	if err := json.Unmarshal(msg.Value, &batch); err != nil {
		kc.logger.Error("Failed to decode scraped batch",
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err)
		return
	}

	if batch.BatchID == "" {
		batch.BatchID = string(msg.Key)
	}

	raws, skipped := scraper.DecodeRecords(batch.Reviews)
	if skipped > 0 {
		kc.logger.Warn("Skipped malformed scraped records",
			"batch_id", batch.BatchID,
			"offset", msg.Offset,
			"skipped", skipped)
	}
	for i := range raws {
		if raws[i].SourceURL == "" {
			raws[i].SourceURL = batch.SourceURL
		}
	}

	if err := kc.handler.HandleBatch(ctx, batch.BatchID, batch.SourceURL, raws); err != nil {
		kc.logger.Error("Failed to ingest scraped batch",
			"batch_id", batch.BatchID,
			"offset", msg.Offset,
			"error", err)
	}
}

func (kc *KafkaConsumer) Close() error {
	return kc.reader.Close()
}
