package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderType classifies an assembled order by the verbs it contains.
type OrderType string

const (
	OrderTypeOpening OrderType = "OPENING"
	OrderTypeRolling OrderType = "ROLLING"
	OrderTypeClosing OrderType = "CLOSING"
)

// Option type constants
const (
	OptionTypeCall = "Call"
	OptionTypePut  = "Put"
)

// Transaction is a single normalized fill inside an assembled order. Stage 2
// builds these from RawTransaction rows; aggregated fills carry the joined
// ids of their sources.
type Transaction struct {
	ID                 string
	AccountNumber      string
	OrderID            string
	Symbol             string
	UnderlyingSymbol   string
	Action             string
	Quantity           int64
	Price              decimal.Decimal
	ExecutedAt         time.Time
	TransactionType    string
	TransactionSubType string
	Description        string
	OptionType         string          // "Call", "Put", or "" for equity
	Strike             decimal.Decimal // zero for equity
	Expiration         time.Time       // zero for equity
	Commission         decimal.Decimal
	RegulatoryFees     decimal.Decimal
	ClearingFees       decimal.Decimal
	Value              decimal.Decimal
	NetValue           decimal.Decimal
}

// IsOpening reports whether the fill opens a position.
func (t *Transaction) IsOpening() bool {
	return strings.Contains(t.Action, "TO_OPEN")
}

// IsClosing reports whether the fill closes a position, including the
// system events that close without a trade verb.
func (t *Transaction) IsClosing() bool {
	return strings.Contains(t.Action, "TO_CLOSE") ||
		t.IsExpiration() || t.IsAssignment() || t.IsExercise()
}

func (t *Transaction) IsExpiration() bool {
	return strings.Contains(strings.ToUpper(t.TransactionSubType), "EXPIR")
}

func (t *Transaction) IsAssignment() bool {
	return strings.Contains(strings.ToUpper(t.TransactionSubType), "ASSIGNMENT")
}

func (t *Transaction) IsExercise() bool {
	return strings.Contains(strings.ToUpper(t.TransactionSubType), "EXERCISE")
}

func (t *Transaction) IsBuy() bool {
	return strings.Contains(t.Action, "BUY")
}

func (t *Transaction) IsSell() bool {
	return strings.Contains(t.Action, "SELL")
}

// IsCashSettlement reports whether the broker settled the position in cash
// (index options); these rows carry their P&L in Value.
func (t *Transaction) IsCashSettlement() bool {
	return strings.Contains(strings.ToLower(t.Description), "cash settlement")
}

// IsOption reports whether the fill is an option leg.
func (t *Transaction) IsOption() bool {
	return t.OptionType != ""
}

// Multiplier returns the contract multiplier: 100 for options, 1 for equity.
func (t *Transaction) Multiplier() decimal.Decimal {
	if t.IsOption() {
		return decimal.NewFromInt(100)
	}
	return decimal.NewFromInt(1)
}

// Order is a group of transactions sharing (account, underlying, order_id).
// Orders exist in memory through Stages 2-4; chains and lots are the
// persisted record.
type Order struct {
	OrderID       string
	AccountNumber string
	Underlying    string
	ExecutedAt    time.Time
	OrderType     OrderType
	Transactions  []*Transaction
}

// OpeningTransactions returns the fills that open positions.
func (o *Order) OpeningTransactions() []*Transaction {
	var out []*Transaction
	for _, t := range o.Transactions {
		if t.IsOpening() {
			out = append(out, t)
		}
	}
	return out
}

// ClosingTransactions returns the fills that close positions.
func (o *Order) ClosingTransactions() []*Transaction {
	var out []*Transaction
	for _, t := range o.Transactions {
		if t.IsClosing() {
			out = append(out, t)
		}
	}
	return out
}
