package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quiby-ai/review-insights/config"
	"github.com/segmentio/kafka-go"
)

const EventTypeIngested = "reviews.ingested"

// IngestedEvent announces the outcome of one ingested scrape batch.
type IngestedEvent struct {
	EventID    string    `json:"event_id"`
	BatchID    string    `json:"batch_id"`
	SourceURL  string    `json:"source_url,omitempty"`
	Received   int       `json:"received"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Indexed    int       `json:"indexed"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Persisted  int       `json:"persisted"`
	IndexSize  int       `json:"index_size"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewIngestedEvent(batchID, sourceURL string) IngestedEvent {
	return IngestedEvent{
		EventID:    uuid.New().String(),
		BatchID:    batchID,
		SourceURL:  sourceURL,
		OccurredAt: time.Now().UTC(),
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
}

func NewProducer(cfg config.KafkaConfig) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.IngestedTopic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: writer}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishIngested writes evt keyed by its batch ID.
func (p *Producer) PublishIngested(ctx context.Context, evt IngestedEvent) error {
	value, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(evt.BatchID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeIngested)},
			{Key: "event_id", Value: []byte(evt.EventID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", EventTypeIngested, err)
	}
	return nil
}
