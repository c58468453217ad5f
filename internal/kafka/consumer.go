package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sbj175/trade-journal/internal/models"
)

// Ingestor defines the raw-transaction persistence the consumer needs.
type Ingestor interface {
	SaveRawTransactions(userID string, rows []models.RawTransaction) (int, error)
}

// Reprocessor triggers a pipeline run for a user after ingest.
type Reprocessor func(userID string, affectedUnderlyings []string) error

// Consumer ingests transaction batches published by the broker sync service
// and triggers reprocessing for the affected user.
type Consumer struct {
	reader    *kafka.Reader
	ingestor  Ingestor
	reprocess Reprocessor
}

// NewConsumer creates a Kafka consumer for transaction batch events.
func NewConsumer(brokers []string, topic, groupID string, ingestor Ingestor, reprocess Reprocessor) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader:    reader,
		ingestor:  ingestor,
		reprocess: reprocess,
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting Kafka consumer for topic: %s", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			log.Println("Kafka consumer shutting down...")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				log.Printf("Error reading message: %v", err)
				continue
			}

			if err := c.processMessage(msg); err != nil {
				log.Printf("Error processing message: %v", err)
				// Continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(msg kafka.Message) error {
	log.Printf("Received message from partition %d offset %d: key=%s",
		msg.Partition, msg.Offset, string(msg.Key))

	var event models.TransactionBatchEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal transaction batch event: %w", err)
	}

	if event.EventType != models.EventTransactionsSynced {
		log.Printf("Ignoring event type: %s", event.EventType)
		return nil
	}

	userID := event.UserID
	if userID == "" {
		userID = models.DefaultUserID
	}

	saved, err := c.ingestor.SaveRawTransactions(userID, event.Transactions)
	if err != nil {
		return fmt.Errorf("failed to ingest transaction batch: %w", err)
	}
	log.Printf("Ingested %d/%d transactions for user %s", saved, len(event.Transactions), userID)

	if err := c.reprocess(userID, event.AffectedUnderlyings); err != nil {
		return fmt.Errorf("failed to reprocess after ingest: %w", err)
	}

	return nil
}
