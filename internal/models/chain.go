package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Chain status constants
const (
	ChainStatusOpen     = "OPEN"
	ChainStatusClosed   = "CLOSED"
	ChainStatusAssigned = "ASSIGNED"
)

// Chain is a connected component of orders tied together by lot/closing
// relationships. Recomputed every pipeline run; cached for reads but never
// user-edited.
type Chain struct {
	ChainID       string
	Underlying    string
	AccountNumber string
	Orders        []*Order
	Status        string
}

// OpeningDate returns the execution date of the earliest order.
func (c *Chain) OpeningDate() time.Time {
	if len(c.Orders) == 0 {
		return time.Time{}
	}
	return c.Orders[0].ExecutedAt
}

// ClosingDate returns the execution date of the last order when the chain
// is closed, zero otherwise.
func (c *Chain) ClosingDate() time.Time {
	if c.Status != ChainStatusClosed || len(c.Orders) == 0 {
		return time.Time{}
	}
	return c.Orders[len(c.Orders)-1].ExecutedAt
}

// ChainSummary is the cached read model served to the chains view.
type ChainSummary struct {
	ChainID       string          `json:"chain_id"`
	AccountNumber string          `json:"account_number"`
	Underlying    string          `json:"underlying"`
	Status        string          `json:"status"`
	StrategyLabel string          `json:"strategy_label"`
	OrderCount    int             `json:"order_count"`
	RealizedPnl   decimal.Decimal `json:"realized_pnl"`
	UnrealizedPnl decimal.Decimal `json:"unrealized_pnl"`
	TotalPnl      decimal.Decimal `json:"total_pnl"`
	OpeningDate   time.Time       `json:"opening_date"`
	ClosingDate   *time.Time      `json:"closing_date,omitempty"`
}

// ChainOrderPosition is the per-order drill-down blob stored in
// order_chain_cache for cheap UI reads.
type ChainOrderPosition struct {
	OrderID    string          `json:"order_id"`
	OrderType  string          `json:"order_type"`
	ExecutedAt time.Time       `json:"executed_at"`
	Symbol     string          `json:"symbol"`
	Action     string          `json:"action"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
}
