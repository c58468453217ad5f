package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Action constants (broker trade verbs)
const (
	ActionBuyToOpen   = "BUY_TO_OPEN"
	ActionSellToOpen  = "SELL_TO_OPEN"
	ActionBuyToClose  = "BUY_TO_CLOSE"
	ActionSellToClose = "SELL_TO_CLOSE"
	ActionBuy         = "BUY"
	ActionSell        = "SELL"
)

// Instrument type constants
const (
	InstrumentEquity       = "EQUITY"
	InstrumentEquityOption = "EQUITY_OPTION"
)

// Transaction type constants
const (
	TransactionTypeTrade          = "Trade"
	TransactionTypeReceiveDeliver = "Receive Deliver"
)

// Transaction sub-type constants (system events)
const (
	SubTypeExpiration   = "Expiration"
	SubTypeAssignment   = "Assignment"
	SubTypeExercise     = "Exercise"
	SubTypeSymbolChange = "Symbol Change"
)

// RawTransaction is the broker-native event, persisted verbatim by Stage 1.
// Unique per (id, user_id); never mutated after ingest.
type RawTransaction struct {
	ID                 string          `json:"id"`
	AccountNumber      string          `json:"account_number"`
	OrderID            string          `json:"order_id,omitempty"`
	Symbol             string          `json:"symbol"`
	UnderlyingSymbol   string          `json:"underlying_symbol"`
	Action             string          `json:"action,omitempty"`
	InstrumentType     string          `json:"instrument_type"`
	TransactionType    string          `json:"transaction_type"`
	TransactionSubType string          `json:"transaction_sub_type,omitempty"`
	Description        string          `json:"description,omitempty"`
	Quantity           int64           `json:"quantity"`
	Price              decimal.Decimal `json:"price"`
	Value              decimal.Decimal `json:"value"`
	Commission         decimal.Decimal `json:"commission"`
	RegulatoryFees     decimal.Decimal `json:"regulatory_fees"`
	ClearingFees       decimal.Decimal `json:"clearing_fees"`
	ExecutedAt         time.Time       `json:"executed_at"`
	CreatedAt          time.Time       `json:"created_at,omitempty"`
}

// IsEquity reports whether the row is a plain equity instrument. Broker
// payloads vary between "EQUITY" and "InstrumentType.EQUITY", so match by
// substring and exclude the option variant.
func (t *RawTransaction) IsEquity() bool {
	it := strings.ToUpper(t.InstrumentType)
	return strings.Contains(it, InstrumentEquity) && !strings.Contains(it, "OPTION")
}

// IsOption reports whether the row is an equity option.
func (t *RawTransaction) IsOption() bool {
	return strings.Contains(strings.ToUpper(t.InstrumentType), "OPTION")
}

// IsSymbolChange reports whether the row is one leg of a symbol change.
func (t *RawTransaction) IsSymbolChange() bool {
	return t.TransactionSubType == SubTypeSymbolChange
}

// IsReceiveDeliver reports whether the row is an ACAT transfer or other
// receive/deliver event.
func (t *RawTransaction) IsReceiveDeliver() bool {
	return t.TransactionType == TransactionTypeReceiveDeliver
}

// Underlying returns the underlying symbol, falling back to the leading
// token of an OCC option symbol when the broker omitted it.
func (t *RawTransaction) Underlying() string {
	if t.UnderlyingSymbol != "" {
		return t.UnderlyingSymbol
	}
	if i := strings.IndexByte(t.Symbol, ' '); i > 0 {
		return t.Symbol[:i]
	}
	return t.Symbol
}
