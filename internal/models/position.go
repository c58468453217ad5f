package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quantity direction constants reported by the broker positions endpoint.
const (
	DirectionLong  = "Long"
	DirectionShort = "Short"
)

// BrokerPosition is one row of the broker's live positions snapshot, used
// only by reconciliation. Quantity is unsigned; QuantityDirection carries
// the sign.
type BrokerPosition struct {
	ID                int64           `json:"id"`
	AccountNumber     string          `json:"account_number"`
	Symbol            string          `json:"symbol"`
	UnderlyingSymbol  string          `json:"underlying_symbol"`
	InstrumentType    string          `json:"instrument_type"`
	Quantity          int64           `json:"quantity"`
	QuantityDirection string          `json:"quantity_direction"`
	AveragePrice      decimal.Decimal `json:"average_price"`
	SyncedAt          time.Time       `json:"synced_at"`
}

// SignedQuantity applies QuantityDirection to Quantity.
func (p *BrokerPosition) SignedQuantity() int64 {
	q := p.Quantity
	if q < 0 {
		q = -q
	}
	if p.QuantityDirection == DirectionShort {
		return -q
	}
	return q
}
