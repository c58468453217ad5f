package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbj175/trade-journal/internal/models"
)

// MockIngestor implements the Ingestor interface for testing
type MockIngestor struct {
	saved       map[string][]models.RawTransaction
	reprocessed []string
	underlyings [][]string
}

func NewMockIngestor() *MockIngestor {
	return &MockIngestor{saved: make(map[string][]models.RawTransaction)}
}

func (m *MockIngestor) SaveRawTransactions(userID string, rows []models.RawTransaction) (int, error) {
	m.saved[userID] = append(m.saved[userID], rows...)
	return len(rows), nil
}

func (m *MockIngestor) reprocess(userID string, affectedUnderlyings []string) error {
	m.reprocessed = append(m.reprocessed, userID)
	m.underlyings = append(m.underlyings, affectedUnderlyings)
	return nil
}

func newTestConsumer(ingestor *MockIngestor) *Consumer {
	return &Consumer{ingestor: ingestor, reprocess: ingestor.reprocess}
}

func batchMessage(t *testing.T, event models.TransactionBatchEvent) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(event.UserID), Value: value}
}

func TestProcessMessage(t *testing.T) {
	t.Run("ingests batch and triggers reprocess", func(t *testing.T) {
		ingestor := NewMockIngestor()
		consumer := newTestConsumer(ingestor)

		event := models.TransactionBatchEvent{
			EventType:     models.EventTransactionsSynced,
			UserID:        "user-1",
			AccountNumber: "5WT00001",
			Transactions: []models.RawTransaction{{
				ID:               "t1",
				AccountNumber:    "5WT00001",
				Symbol:           "AAPL",
				UnderlyingSymbol: "AAPL",
				Action:           models.ActionBuyToOpen,
				InstrumentType:   models.InstrumentEquity,
				TransactionType:  models.TransactionTypeTrade,
				Quantity:         100,
				Price:            decimal.NewFromFloat(150.00),
				ExecutedAt:       time.Now(),
			}},
			AffectedUnderlyings: []string{"AAPL"},
			Timestamp:           time.Now(),
		}

		err := consumer.processMessage(batchMessage(t, event))
		require.NoError(t, err)

		assert.Len(t, ingestor.saved["user-1"], 1)
		require.Len(t, ingestor.reprocessed, 1)
		assert.Equal(t, "user-1", ingestor.reprocessed[0])
		assert.Equal(t, []string{"AAPL"}, ingestor.underlyings[0])
	})

	t.Run("ignores other event types", func(t *testing.T) {
		ingestor := NewMockIngestor()
		consumer := newTestConsumer(ingestor)

		event := models.TransactionBatchEvent{EventType: "SOMETHING_ELSE", UserID: "user-1"}
		err := consumer.processMessage(batchMessage(t, event))
		require.NoError(t, err)
		assert.Empty(t, ingestor.saved)
		assert.Empty(t, ingestor.reprocessed)
	})

	t.Run("missing user id falls back to default user", func(t *testing.T) {
		ingestor := NewMockIngestor()
		consumer := newTestConsumer(ingestor)

		event := models.TransactionBatchEvent{EventType: models.EventTransactionsSynced}
		err := consumer.processMessage(batchMessage(t, event))
		require.NoError(t, err)
		assert.Contains(t, ingestor.reprocessed, models.DefaultUserID)
	})

	t.Run("rejects malformed payload", func(t *testing.T) {
		ingestor := NewMockIngestor()
		consumer := newTestConsumer(ingestor)

		err := consumer.processMessage(kafka.Message{Value: []byte("{not json")})
		assert.Error(t, err)
	})
}
