package models

import "time"

// Event type constants
const (
	EventTransactionsSynced = "TRANSACTIONS_SYNCED"
	EventPipelineCompleted  = "PIPELINE_COMPLETED"
	EventPipelineFailed     = "PIPELINE_FAILED"
)

// TransactionBatchEvent is published by the broker sync service: a batch of
// raw transactions for one user, ready for ingest and reprocessing.
type TransactionBatchEvent struct {
	EventType           string           `json:"event_type"`
	UserID              string           `json:"user_id"`
	AccountNumber       string           `json:"account_number"`
	Transactions        []RawTransaction `json:"transactions"`
	AffectedUnderlyings []string         `json:"affected_underlyings,omitempty"`
	Timestamp           time.Time        `json:"timestamp"`
}

// LedgerEvent is published after a pipeline run with its per-stage counts.
type LedgerEvent struct {
	EventType        string    `json:"event_type"`
	UserID           string    `json:"user_id"`
	OrdersAssembled  int       `json:"orders_assembled"`
	LotsCreated      int       `json:"lots_created"`
	ChainsDerived    int       `json:"chains_derived"`
	GroupsSeeded     int       `json:"groups_seeded"`
	EquityLotsNetted int       `json:"equity_lots_netted"`
	Error            string    `json:"error,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}
