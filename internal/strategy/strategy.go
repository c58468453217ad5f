// Package strategy identifies the option strategy formed by a set of open
// legs. Recognition is a pure pattern match: no DB access, first match in
// dispatch order wins.
package strategy

import (
	"time"

	"github.com/shopspring/decimal"
)

// Leg instrument constants
const (
	LegEquity = "Equity"
	LegOption = "Option"
)

// Leg option type constants
const (
	Call = "C"
	Put  = "P"
)

// Leg direction constants
const (
	Long  = "long"
	Short = "short"
)

// Leg is the structural summary of one or more lots sharing the same
// instrument, option type, strike, expiration, and direction.
type Leg struct {
	InstrumentType string          // LegEquity or LegOption
	OptionType     string          // Call, Put, or "" for equity
	Strike         decimal.Decimal // zero for equity
	Expiration     time.Time       // zero for equity
	Direction      string          // Long or Short
	Quantity       int64           // always positive
}

// IsOption reports whether the leg is an option.
func (l Leg) IsOption() bool { return l.InstrumentType == LegOption }

// Def is a registry entry describing a recognized strategy.
type Def struct {
	Name        string
	Direction   string // "bullish", "bearish", "neutral", or ""
	CreditDebit string // "credit", "debit", "mixed", or ""
	LegCount    int
	Category    string // "single", "vertical", "multi", "calendar", "combo"
}

// Result is the outcome of recognition. Confidence is 1.0 for a registry
// match and 0 for the Custom fallback.
type Result struct {
	Name        string  `json:"name"`
	Direction   string  `json:"direction,omitempty"`
	CreditDebit string  `json:"credit_debit,omitempty"`
	LegCount    int     `json:"leg_count"`
	Confidence  float64 `json:"confidence"`
}

// Registry is the single source of truth for strategy metadata.
var Registry = map[string]Def{
	// Credit strategies
	"Bull Put Spread":  {"Bull Put Spread", "bullish", "credit", 2, "vertical"},
	"Bear Call Spread": {"Bear Call Spread", "bearish", "credit", 2, "vertical"},
	"Iron Condor":      {"Iron Condor", "neutral", "credit", 4, "multi"},
	"Iron Butterfly":   {"Iron Butterfly", "neutral", "credit", 4, "multi"},
	"Short Strangle":   {"Short Strangle", "neutral", "credit", 2, "multi"},
	"Short Straddle":   {"Short Straddle", "neutral", "credit", 2, "multi"},
	"Cash Secured Put": {"Cash Secured Put", "bullish", "credit", 1, "single"},
	"Short Put":        {"Short Put", "bullish", "credit", 1, "single"},
	"Short Call":       {"Short Call", "bearish", "credit", 1, "single"},
	"Covered Call":     {"Covered Call", "bullish", "credit", 2, "combo"},
	"Jade Lizard":      {"Jade Lizard", "bullish", "credit", 3, "combo"},
	// Debit strategies
	"Bull Call Spread": {"Bull Call Spread", "bullish", "debit", 2, "vertical"},
	"Bear Put Spread":  {"Bear Put Spread", "bearish", "debit", 2, "vertical"},
	"Long Call":        {"Long Call", "bullish", "debit", 1, "single"},
	"Long Put":         {"Long Put", "bearish", "debit", 1, "single"},
	"Long Strangle":    {"Long Strangle", "neutral", "debit", 2, "multi"},
	"Long Straddle":    {"Long Straddle", "neutral", "debit", 2, "multi"},
	"Calendar Spread":  {"Calendar Spread", "neutral", "debit", 2, "calendar"},
	"Diagonal Spread":  {"Diagonal Spread", "neutral", "debit", 2, "calendar"},
	"PMCC":             {"PMCC", "bullish", "debit", 2, "calendar"},
	// Mixed / neutral
	"Collar": {"Collar", "neutral", "mixed", 3, "combo"},
	// Equity
	"Shares": {"Shares", "", "", 1, "single"},
}
