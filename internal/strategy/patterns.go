package strategy

import "sort"

// matchSingle identifies a single-leg strategy.
func matchSingle(leg Leg) string {
	if leg.InstrumentType == LegEquity {
		return "Shares"
	}
	switch leg.OptionType {
	case Call:
		if leg.Direction == Long {
			return "Long Call"
		}
		return "Short Call"
	case Put:
		if leg.Direction == Long {
			return "Long Put"
		}
		return "Short Put"
	}
	return ""
}

// matchVertical identifies a vertical spread from exactly 2 option legs
// with the same expiration and option type but distinct strikes.
func matchVertical(legs []Leg) string {
	if len(legs) != 2 {
		return ""
	}
	a, b := legs[0], legs[1]
	if !a.IsOption() || !b.IsOption() {
		return ""
	}
	if a.OptionType != b.OptionType || !a.Expiration.Equal(b.Expiration) {
		return ""
	}
	if a.Strike.Equal(b.Strike) {
		return ""
	}

	low, high := a, b
	if low.Strike.GreaterThan(high.Strike) {
		low, high = high, low
	}

	if a.OptionType == Put {
		if low.Direction == Long && high.Direction == Short {
			return "Bull Put Spread"
		}
		if low.Direction == Short && high.Direction == Long {
			return "Bear Put Spread"
		}
		return ""
	}
	if low.Direction == Long && high.Direction == Short {
		return "Bull Call Spread"
	}
	if low.Direction == Short && high.Direction == Long {
		return "Bear Call Spread"
	}
	return ""
}

// matchMulti identifies same-expiration multi-leg strategies: 4-leg iron
// condor/butterfly and 2-leg strangle/straddle.
func matchMulti(legs []Leg) string {
	if len(legs) == 0 {
		return ""
	}
	for _, l := range legs {
		if !l.IsOption() {
			return ""
		}
	}
	exp := legs[0].Expiration
	for _, l := range legs[1:] {
		if !l.Expiration.Equal(exp) {
			return ""
		}
	}

	switch len(legs) {
	case 4:
		return matchFourLeg(legs)
	case 2:
		return matchTwoLeg(legs)
	}
	return ""
}

func matchFourLeg(legs []Leg) string {
	var puts, calls []Leg
	for _, l := range legs {
		if l.OptionType == Put {
			puts = append(puts, l)
		} else {
			calls = append(calls, l)
		}
	}
	if len(puts) != 2 || len(calls) != 2 {
		return ""
	}

	sort.Slice(puts, func(i, j int) bool { return puts[i].Strike.LessThan(puts[j].Strike) })
	sort.Slice(calls, func(i, j int) bool { return calls[i].Strike.LessThan(calls[j].Strike) })

	longPut, shortPut := puts[0], puts[1]
	shortCall, longCall := calls[0], calls[1]

	// Long wings, short body
	if longPut.Direction != Long || shortPut.Direction != Short ||
		shortCall.Direction != Short || longCall.Direction != Long {
		return ""
	}

	// Strike ordering: long_put < short_put <= short_call < long_call
	if !longPut.Strike.LessThan(shortPut.Strike) ||
		shortPut.Strike.GreaterThan(shortCall.Strike) ||
		!shortCall.Strike.LessThan(longCall.Strike) {
		return ""
	}

	if shortPut.Strike.Equal(shortCall.Strike) {
		return "Iron Butterfly"
	}
	return "Iron Condor"
}

func matchTwoLeg(legs []Leg) string {
	a, b := legs[0], legs[1]

	// One put + one call, same direction; same-type pairs are verticals
	if a.OptionType == b.OptionType || a.Direction != b.Direction {
		return ""
	}

	if a.Strike.Equal(b.Strike) {
		if a.Direction == Short {
			return "Short Straddle"
		}
		return "Long Straddle"
	}
	if a.Direction == Short {
		return "Short Strangle"
	}
	return "Long Strangle"
}

// matchCalendar identifies calendar-family strategies from 2 option legs of
// the same type with different expirations.
func matchCalendar(legs []Leg) string {
	if len(legs) != 2 {
		return ""
	}
	a, b := legs[0], legs[1]
	if !a.IsOption() || !b.IsOption() {
		return ""
	}
	if a.OptionType != b.OptionType || a.Expiration.Equal(b.Expiration) {
		return ""
	}

	near, far := a, b
	if near.Expiration.After(far.Expiration) {
		near, far = far, near
	}

	if near.Strike.Equal(far.Strike) {
		return "Calendar Spread"
	}

	// PMCC: long far-dated call below the short near-term call's strike
	if a.OptionType == Call &&
		far.Direction == Long && near.Direction == Short &&
		far.Strike.LessThan(near.Strike) {
		return "PMCC"
	}
	return "Diagonal Spread"
}

// matchCombo identifies strategies that mix equity with options, plus the
// option-only combos (Cash Secured Put, Jade Lizard).
func matchCombo(equityLegs, optionLegs []Leg) string {
	if len(equityLegs) == 0 {
		return matchOptionOnlyCombo(optionLegs)
	}
	if len(equityLegs) != 1 {
		return ""
	}

	equity := equityLegs[0]
	if equity.Direction != Long {
		return ""
	}

	switch len(optionLegs) {
	case 1:
		return matchCoveredCall(equity, optionLegs[0])
	case 2:
		return matchCollar(optionLegs)
	}
	return ""
}

func matchOptionOnlyCombo(optionLegs []Leg) string {
	switch len(optionLegs) {
	case 1:
		leg := optionLegs[0]
		if leg.OptionType == Put && leg.Direction == Short {
			return "Cash Secured Put"
		}
	case 3:
		return matchJadeLizard(optionLegs)
	}
	return ""
}

// matchCoveredCall requires the equity to cover the short calls 100:1.
func matchCoveredCall(equity, option Leg) string {
	if option.OptionType == Call && option.Direction == Short &&
		equity.Quantity >= option.Quantity*100 {
		return "Covered Call"
	}
	return ""
}

func matchCollar(optionLegs []Leg) string {
	var calls, puts []Leg
	for _, l := range optionLegs {
		if l.OptionType == Call {
			calls = append(calls, l)
		} else if l.OptionType == Put {
			puts = append(puts, l)
		}
	}
	if len(calls) == 1 && len(puts) == 1 &&
		calls[0].Direction == Short && puts[0].Direction == Long {
		return "Collar"
	}
	return ""
}

// matchJadeLizard: short put + bear call spread, no equity.
func matchJadeLizard(optionLegs []Leg) string {
	var puts, calls []Leg
	for _, l := range optionLegs {
		if l.OptionType == Put {
			puts = append(puts, l)
		} else {
			calls = append(calls, l)
		}
	}
	if len(puts) != 1 || len(calls) != 2 {
		return ""
	}
	if puts[0].Direction != Short {
		return ""
	}

	sort.Slice(calls, func(i, j int) bool { return calls[i].Strike.LessThan(calls[j].Strike) })
	if calls[0].Direction == Short && calls[1].Direction == Long {
		return "Jade Lizard"
	}
	return ""
}
