package strategy

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbj175/trade-journal/internal/models"
)

var (
	marchExp = time.Date(2025, 3, 21, 0, 0, 0, 0, time.UTC)
	aprilExp = time.Date(2025, 4, 18, 0, 0, 0, 0, time.UTC)
)

func optionLeg(optType string, strike float64, exp time.Time, direction string, qty int64) Leg {
	return Leg{
		InstrumentType: LegOption,
		OptionType:     optType,
		Strike:         decimal.NewFromFloat(strike),
		Expiration:     exp,
		Direction:      direction,
		Quantity:       qty,
	}
}

func equityLeg(direction string, qty int64) Leg {
	return Leg{InstrumentType: LegEquity, Direction: direction, Quantity: qty}
}

// canonicalLegs builds the canonical leg set for each registry strategy.
func canonicalLegs(name string) []Leg {
	switch name {
	case "Bull Put Spread":
		return []Leg{
			optionLeg(Put, 160, marchExp, Long, 1),
			optionLeg(Put, 170, marchExp, Short, 1),
		}
	case "Bear Put Spread":
		return []Leg{
			optionLeg(Put, 160, marchExp, Short, 1),
			optionLeg(Put, 170, marchExp, Long, 1),
		}
	case "Bull Call Spread":
		return []Leg{
			optionLeg(Call, 170, marchExp, Long, 1),
			optionLeg(Call, 180, marchExp, Short, 1),
		}
	case "Bear Call Spread":
		return []Leg{
			optionLeg(Call, 170, marchExp, Short, 1),
			optionLeg(Call, 180, marchExp, Long, 1),
		}
	case "Iron Condor":
		return []Leg{
			optionLeg(Put, 160, marchExp, Long, 1),
			optionLeg(Put, 170, marchExp, Short, 1),
			optionLeg(Call, 190, marchExp, Short, 1),
			optionLeg(Call, 200, marchExp, Long, 1),
		}
	case "Iron Butterfly":
		return []Leg{
			optionLeg(Put, 160, marchExp, Long, 1),
			optionLeg(Put, 175, marchExp, Short, 1),
			optionLeg(Call, 175, marchExp, Short, 1),
			optionLeg(Call, 190, marchExp, Long, 1),
		}
	case "Short Strangle":
		return []Leg{
			optionLeg(Put, 160, marchExp, Short, 1),
			optionLeg(Call, 190, marchExp, Short, 1),
		}
	case "Long Strangle":
		return []Leg{
			optionLeg(Put, 160, marchExp, Long, 1),
			optionLeg(Call, 190, marchExp, Long, 1),
		}
	case "Short Straddle":
		return []Leg{
			optionLeg(Put, 175, marchExp, Short, 1),
			optionLeg(Call, 175, marchExp, Short, 1),
		}
	case "Long Straddle":
		return []Leg{
			optionLeg(Put, 175, marchExp, Long, 1),
			optionLeg(Call, 175, marchExp, Long, 1),
		}
	case "Cash Secured Put", "Short Put":
		return []Leg{optionLeg(Put, 170, marchExp, Short, 1)}
	case "Short Call":
		return []Leg{optionLeg(Call, 190, marchExp, Short, 1)}
	case "Long Call":
		return []Leg{optionLeg(Call, 190, marchExp, Long, 1)}
	case "Long Put":
		return []Leg{optionLeg(Put, 170, marchExp, Long, 1)}
	case "Covered Call":
		return []Leg{
			equityLeg(Long, 100),
			optionLeg(Call, 190, marchExp, Short, 1),
		}
	case "Collar":
		return []Leg{
			equityLeg(Long, 100),
			optionLeg(Call, 190, marchExp, Short, 1),
			optionLeg(Put, 160, marchExp, Long, 1),
		}
	case "Jade Lizard":
		return []Leg{
			optionLeg(Put, 160, marchExp, Short, 1),
			optionLeg(Call, 185, marchExp, Short, 1),
			optionLeg(Call, 195, marchExp, Long, 1),
		}
	case "Calendar Spread":
		return []Leg{
			optionLeg(Call, 175, marchExp, Short, 1),
			optionLeg(Call, 175, aprilExp, Long, 1),
		}
	case "PMCC":
		return []Leg{
			optionLeg(Call, 150, aprilExp, Long, 1),
			optionLeg(Call, 180, marchExp, Short, 1),
		}
	case "Diagonal Spread":
		return []Leg{
			optionLeg(Put, 160, marchExp, Short, 1),
			optionLeg(Put, 170, aprilExp, Long, 1),
		}
	case "Shares":
		return []Leg{equityLeg(Long, 100)}
	}
	return nil
}

func TestRecognizeRegistryRoundTrip(t *testing.T) {
	// Short Put and Cash Secured Put share the same canonical shape; the
	// combo matcher wins by dispatch order
	expectedOverride := map[string]string{
		"Short Put": "Cash Secured Put",
	}

	for name := range Registry {
		t.Run(name, func(t *testing.T) {
			legs := canonicalLegs(name)
			require.NotNil(t, legs, "no canonical leg set for %s", name)

			result := Recognize(legs)
			expected := name
			if override, ok := expectedOverride[name]; ok {
				expected = override
			}
			assert.Equal(t, expected, result.Name)
			assert.Equal(t, 1.0, result.Confidence)
		})
	}
}

func TestRecognizeDispatchOrder(t *testing.T) {
	t.Run("covered call beats short call when equity present", func(t *testing.T) {
		result := Recognize([]Leg{
			equityLeg(Long, 200),
			optionLeg(Call, 190, marchExp, Short, 2),
		})
		assert.Equal(t, "Covered Call", result.Name)
	})

	t.Run("insufficient shares is not a covered call", func(t *testing.T) {
		result := Recognize([]Leg{
			equityLeg(Long, 50),
			optionLeg(Call, 190, marchExp, Short, 1),
		})
		assert.Equal(t, "Custom (2-leg)", result.Name)
		assert.Equal(t, 0.0, result.Confidence)
	})

	t.Run("same-strike bodies make a butterfly not a condor", func(t *testing.T) {
		result := Recognize(canonicalLegs("Iron Butterfly"))
		assert.Equal(t, "Iron Butterfly", result.Name)
	})

	t.Run("far long call above near strike is diagonal not PMCC", func(t *testing.T) {
		result := Recognize([]Leg{
			optionLeg(Call, 200, aprilExp, Long, 1),
			optionLeg(Call, 180, marchExp, Short, 1),
		})
		assert.Equal(t, "Diagonal Spread", result.Name)
	})

	t.Run("empty legs fall back to custom", func(t *testing.T) {
		result := Recognize(nil)
		assert.Equal(t, "Custom (0-leg)", result.Name)
		assert.Equal(t, 0.0, result.Confidence)
	})

	t.Run("five same-expiry legs fall back to custom", func(t *testing.T) {
		legs := canonicalLegs("Iron Condor")
		legs = append(legs, optionLeg(Put, 150, marchExp, Long, 1))
		result := Recognize(legs)
		assert.Equal(t, "Custom (5-leg)", result.Name)
	})
}

func TestLotsToLegs(t *testing.T) {
	strike := decimal.NewFromInt(170)

	makeLot := func(id int64, optType string, qty, remaining int64, status string) *models.Lot {
		return &models.Lot{
			ID:                id,
			Symbol:            fmt.Sprintf("AAPL  250321%s00170000", optType[:1]),
			InstrumentType:    models.InstrumentEquityOption,
			OptionType:        optType,
			Strike:            strike,
			Expiration:        marchExp,
			Quantity:          qty,
			RemainingQuantity: remaining,
			Status:            status,
		}
	}

	t.Run("closed lots are dropped", func(t *testing.T) {
		legs := LotsToLegs([]*models.Lot{
			makeLot(1, models.OptionTypePut, -2, 0, models.LotStatusClosed),
		})
		assert.Empty(t, legs)
	})

	t.Run("same structure merges into one leg", func(t *testing.T) {
		legs := LotsToLegs([]*models.Lot{
			makeLot(1, models.OptionTypePut, -2, -2, models.LotStatusOpen),
			makeLot(2, models.OptionTypePut, -3, -1, models.LotStatusPartial),
		})
		require.Len(t, legs, 1)
		assert.Equal(t, Put, legs[0].OptionType)
		assert.Equal(t, Short, legs[0].Direction)
		assert.Equal(t, int64(3), legs[0].Quantity)
	})

	t.Run("equity and option lots stay separate", func(t *testing.T) {
		legs := LotsToLegs([]*models.Lot{
			makeLot(1, models.OptionTypeCall, -1, -1, models.LotStatusOpen),
			{
				ID:                2,
				Symbol:            "AAPL",
				InstrumentType:    models.InstrumentEquity,
				Quantity:          100,
				RemainingQuantity: 100,
				Status:            models.LotStatusOpen,
			},
		})
		require.Len(t, legs, 2)
		assert.Equal(t, LegEquity, legs[0].InstrumentType)
		assert.Equal(t, LegOption, legs[1].InstrumentType)
	})
}
