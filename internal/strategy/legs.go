package strategy

import (
	"sort"
	"strings"

	"github.com/sbj175/trade-journal/internal/models"
)

// LotsToLegs converts lots to aggregated legs. Lots sharing the same
// structural identity (instrument, option type, strike, expiration,
// direction) are merged; closed lots and zero-remaining lots are dropped.
func LotsToLegs(lots []*models.Lot) []Leg {
	type key struct {
		inst      string
		optType   string
		strike    string
		exp       string
		direction string
	}

	groups := make(map[key]*Leg)
	var order []key

	for _, lot := range lots {
		if lot.Status == models.LotStatusClosed || lot.RemainingQuantity == 0 {
			continue
		}

		inst := LegOption
		if !lot.IsOption() {
			inst = LegEquity
		}

		optType := ""
		if lot.OptionType != "" {
			if strings.HasPrefix(strings.ToUpper(lot.OptionType), "C") {
				optType = Call
			} else {
				optType = Put
			}
		}

		direction := Long
		if lot.IsShort() {
			direction = Short
		}

		k := key{
			inst:      inst,
			optType:   optType,
			strike:    lot.Strike.String(),
			exp:       lot.Expiration.Format("2006-01-02"),
			direction: direction,
		}

		qty := lot.RemainingQuantity
		if qty < 0 {
			qty = -qty
		}

		if leg, ok := groups[k]; ok {
			leg.Quantity += qty
			continue
		}
		groups[k] = &Leg{
			InstrumentType: inst,
			OptionType:     optType,
			Strike:         lot.Strike,
			Expiration:     lot.Expiration,
			Direction:      direction,
			Quantity:       qty,
		}
		order = append(order, k)
	}

	legs := make([]Leg, 0, len(order))
	for _, k := range order {
		legs = append(legs, *groups[k])
	}

	// Stable output regardless of lot order
	sort.Slice(legs, func(i, j int) bool {
		a, b := legs[i], legs[j]
		if a.InstrumentType != b.InstrumentType {
			return a.InstrumentType < b.InstrumentType
		}
		if !a.Expiration.Equal(b.Expiration) {
			return a.Expiration.Before(b.Expiration)
		}
		if c := a.Strike.Cmp(b.Strike); c != 0 {
			return c < 0
		}
		if a.OptionType != b.OptionType {
			return a.OptionType < b.OptionType
		}
		return a.Direction < b.Direction
	})

	return legs
}
