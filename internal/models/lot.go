package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot status constants
const (
	LotStatusOpen    = "OPEN"
	LotStatusPartial = "PARTIAL"
	LotStatusClosed  = "CLOSED"
)

// Derivation type constants (stock lots created from option events)
const (
	DerivationAssignment = "ASSIGNMENT"
	DerivationExercise   = "EXERCISE"
)

// Closing type constants
const (
	ClosingTypeManual     = "MANUAL"
	ClosingTypeExpiration = "EXPIRATION"
	ClosingTypeAssignment = "ASSIGNMENT"
	ClosingTypeExercise   = "EXERCISE"
)

// EquityNettingOrderID marks synthetic closings produced by the netting pass.
const EquityNettingOrderID = "EQUITY_NETTING"

// Lot is an open position unit created by an opening transaction. Quantity
// is signed (negative = short); RemainingQuantity moves toward zero as
// closings consume it, always keeping the sign of Quantity.
type Lot struct {
	ID                int64           `json:"id"`
	TransactionID     string          `json:"transaction_id"`
	AccountNumber     string          `json:"account_number"`
	Symbol            string          `json:"symbol"`
	Underlying        string          `json:"underlying"`
	InstrumentType    string          `json:"instrument_type"`
	OptionType        string          `json:"option_type,omitempty"`
	Strike            decimal.Decimal `json:"strike,omitempty"`
	Expiration        time.Time       `json:"expiration,omitempty"`
	Quantity          int64           `json:"quantity"`
	EntryPrice        decimal.Decimal `json:"entry_price"`
	EntryDate         time.Time       `json:"entry_date"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	OriginalQuantity  int64           `json:"original_quantity"`
	ChainID           string          `json:"chain_id,omitempty"`
	LegIndex          int             `json:"leg_index"`
	OpeningOrderID    string          `json:"opening_order_id,omitempty"`
	DerivedFromLotID  *int64          `json:"derived_from_lot_id,omitempty"`
	DerivationType    string          `json:"derivation_type,omitempty"`
	Status            string          `json:"status"`
}

func (l *Lot) IsShort() bool { return l.Quantity < 0 }

func (l *Lot) IsLong() bool { return l.Quantity > 0 }

func (l *Lot) IsClosed() bool { return l.RemainingQuantity == 0 }

func (l *Lot) IsOption() bool { return l.OptionType != "" }

// Multiplier returns 100 for option lots and 1 for equity lots.
func (l *Lot) Multiplier() decimal.Decimal {
	if l.IsOption() {
		return decimal.NewFromInt(100)
	}
	return decimal.NewFromInt(1)
}

// LotClosing records one FIFO match against a lot. Append-only.
type LotClosing struct {
	ID                   int64           `json:"id"`
	LotID                int64           `json:"lot_id"`
	ClosingOrderID       string          `json:"closing_order_id"`
	ClosingTransactionID string          `json:"closing_transaction_id,omitempty"`
	QuantityClosed       int64           `json:"quantity_closed"`
	ClosingPrice         decimal.Decimal `json:"closing_price"`
	ClosingDate          time.Time       `json:"closing_date"`
	ClosingType          string          `json:"closing_type"`
	RealizedPnl          decimal.Decimal `json:"realized_pnl"`
	ResultingLotID       *int64          `json:"resulting_lot_id,omitempty"`
}
