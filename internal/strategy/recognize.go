package strategy

import "fmt"

// Recognize identifies the strategy formed by a set of legs.
//
// Dispatch order (first match wins):
//  1. equity-containing combos (Covered Call, Collar)
//  2. option-only combos (Cash Secured Put, Jade Lizard)
//  3. same-expiration multi-leg (condor, butterfly, strangle, straddle)
//  4. cross-expiration calendar family
//  5. same-expiration verticals
//  6. single-leg patterns
//  7. Custom (N-leg) fallback with confidence 0
func Recognize(legs []Leg) Result {
	if len(legs) == 0 {
		return customResult(0)
	}

	var equityLegs, optionLegs []Leg
	for _, l := range legs {
		if l.InstrumentType == LegEquity {
			equityLegs = append(equityLegs, l)
		} else {
			optionLegs = append(optionLegs, l)
		}
	}

	if len(equityLegs) > 0 {
		if name := matchCombo(equityLegs, optionLegs); name != "" {
			return registryResult(name)
		}
	} else if name := matchOptionOnlyCombo(optionLegs); name != "" {
		return registryResult(name)
	}

	if len(optionLegs) > 0 {
		sameExpiry := true
		for _, l := range optionLegs[1:] {
			if !l.Expiration.Equal(optionLegs[0].Expiration) {
				sameExpiry = false
				break
			}
		}

		if sameExpiry {
			if name := matchMulti(optionLegs); name != "" {
				return registryResult(name)
			}
			if len(optionLegs) == 2 && optionLegs[0].OptionType == optionLegs[1].OptionType {
				if name := matchVertical(optionLegs); name != "" {
					return registryResult(name)
				}
			}
		} else if len(optionLegs) == 2 && optionLegs[0].OptionType == optionLegs[1].OptionType {
			if name := matchCalendar(optionLegs); name != "" {
				return registryResult(name)
			}
		}
	}

	if len(legs) == 1 {
		if name := matchSingle(legs[0]); name != "" {
			return registryResult(name)
		}
	}

	return customResult(len(legs))
}

func registryResult(name string) Result {
	if def, ok := Registry[name]; ok {
		return Result{
			Name:        def.Name,
			Direction:   def.Direction,
			CreditDebit: def.CreditDebit,
			LegCount:    def.LegCount,
			Confidence:  1.0,
		}
	}
	// Recognized but unregistered
	return Result{Name: name, Confidence: 0.5}
}

func customResult(legCount int) Result {
	return Result{
		Name:     fmt.Sprintf("Custom (%d-leg)", legCount),
		LegCount: legCount,
	}
}
