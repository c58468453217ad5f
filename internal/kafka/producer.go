package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sbj175/trade-journal/internal/models"
)

// Producer handles publishing ledger events to Kafka
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishPipelineCompleted publishes the counts of a finished pipeline run.
func (p *Producer) PublishPipelineCompleted(ctx context.Context, event models.LedgerEvent) error {
	event.EventType = models.EventPipelineCompleted
	event.Timestamp = time.Now()
	return p.publish(ctx, event.UserID, event)
}

// PublishPipelineFailed publishes a failed run with its error.
func (p *Producer) PublishPipelineFailed(ctx context.Context, userID string, runErr error) error {
	event := models.LedgerEvent{
		EventType: models.EventPipelineFailed,
		UserID:    userID,
		Error:     runErr.Error(),
		Timestamp: time.Now(),
	}
	return p.publish(ctx, userID, event)
}

func (p *Producer) publish(ctx context.Context, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close closes the Kafka writer
func (p *Producer) Close() error {
	return p.writer.Close()
}
