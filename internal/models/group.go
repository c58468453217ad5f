package models

import "time"

// Group status constants mirror chain statuses.
const (
	GroupStatusOpen     = "OPEN"
	GroupStatusClosed   = "CLOSED"
	GroupStatusAssigned = "ASSIGNED"
)

// UngroupedLabel is the strategy label of the catch-all group that collects
// lots with no chain.
const UngroupedLabel = "Ungrouped"

// PositionGroup is the user-facing unit of the ledger. Seeded from chains,
// then owned by the user: strategy labels and lot membership survive
// pipeline reruns, except that a group rebound to a new source chain by
// stale-group reconciliation takes that chain's strategy label.
type PositionGroup struct {
	GroupID       string     `json:"group_id"`
	AccountNumber string     `json:"account_number"`
	Underlying    string     `json:"underlying"`
	StrategyLabel string     `json:"strategy_label,omitempty"`
	Status        string     `json:"status"`
	SourceChainID string     `json:"source_chain_id,omitempty"`
	OpeningDate   *time.Time `json:"opening_date,omitempty"`
	ClosingDate   *time.Time `json:"closing_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// PositionGroupLot links a lot into a group by the lot's transaction id.
type PositionGroupLot struct {
	GroupID       string `json:"group_id"`
	TransactionID string `json:"transaction_id"`
}
