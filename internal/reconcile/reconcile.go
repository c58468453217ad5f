// Package reconcile compares the broker's live positions snapshot against
// the ledger's open lots and categorizes every divergence.
package reconcile

import (
	"log"
	"strings"

	"github.com/sbj175/trade-journal/internal/database"
	"github.com/sbj175/trade-journal/internal/models"
)

// Reconciliation categories
const (
	CategoryMatched          = "MATCHED"
	CategoryQuantityMismatch = "QUANTITY_MISMATCH"
	CategoryUnlinked         = "UNLINKED"
	CategoryStale            = "STALE"
)

// Entry is one position-level comparison result.
type Entry struct {
	Category       string `json:"category"`
	AccountNumber  string `json:"account_number"`
	Symbol         string `json:"symbol"`
	Underlying     string `json:"underlying,omitempty"`
	BrokerQuantity int64  `json:"broker_quantity,omitempty"`
	LedgerQuantity int64  `json:"ledger_quantity,omitempty"`
	GroupID        string `json:"group_id,omitempty"`
}

// Summary is the full reconciliation report.
type Summary struct {
	Matched          int      `json:"matched"`
	QuantityMismatch []Entry  `json:"quantity_mismatch"`
	Unlinked         []Entry  `json:"unlinked"`
	Stale            []Entry  `json:"stale"`
	AutoClosedGroups []string `json:"auto_closed_groups"`
	AutoClosedLots   int      `json:"auto_closed_lots"`
}

// Run compares broker positions vs open lots for a user. Stale lots (ledger
// open, broker gone) are force-closed and their groups refreshed, so the
// ledger converges toward the broker's view.
func Run(db *database.DB, userID string) (*Summary, error) {
	brokerPositions, err := db.GetBrokerPositions(userID)
	if err != nil {
		return nil, err
	}
	ledgerLegs, err := db.GetOpenLegAggregates(userID)
	if err != nil {
		return nil, err
	}

	type posKey struct {
		account string
		symbol  string
	}

	brokerByKey := make(map[posKey]*models.BrokerPosition, len(brokerPositions))
	for i := range brokerPositions {
		p := &brokerPositions[i]
		k := posKey{p.AccountNumber, strings.TrimSpace(p.Symbol)}
		brokerByKey[k] = p
	}

	ledgerByKey := make(map[posKey]database.OpenLegAggregate, len(ledgerLegs))
	for _, leg := range ledgerLegs {
		ledgerByKey[posKey{leg.AccountNumber, strings.TrimSpace(leg.Symbol)}] = leg
	}

	summary := &Summary{}

	for i := range brokerPositions {
		p := &brokerPositions[i]
		instrument := strings.ToUpper(p.InstrumentType)
		if !strings.Contains(instrument, "OPTION") && !strings.Contains(instrument, "EQUITY") {
			continue
		}

		k := posKey{p.AccountNumber, strings.TrimSpace(p.Symbol)}
		signed := p.SignedQuantity()

		leg, ok := ledgerByKey[k]
		if !ok {
			summary.Unlinked = append(summary.Unlinked, Entry{
				Category:       CategoryUnlinked,
				AccountNumber:  k.account,
				Symbol:         k.symbol,
				Underlying:     p.UnderlyingSymbol,
				BrokerQuantity: signed,
			})
			continue
		}

		if leg.NetQuantity == signed {
			summary.Matched++
		} else {
			summary.QuantityMismatch = append(summary.QuantityMismatch, Entry{
				Category:       CategoryQuantityMismatch,
				AccountNumber:  k.account,
				Symbol:         k.symbol,
				Underlying:     leg.Underlying,
				BrokerQuantity: signed,
				LedgerQuantity: leg.NetQuantity,
				GroupID:        leg.GroupID,
			})
		}
	}

	// Ledger legs the broker no longer holds
	matchedGroups := make(map[string]struct{})
	staleGroups := make(map[string]struct{})
	for _, leg := range ledgerLegs {
		k := posKey{leg.AccountNumber, strings.TrimSpace(leg.Symbol)}
		if _, ok := brokerByKey[k]; ok {
			if leg.GroupID != "" {
				matchedGroups[leg.GroupID] = struct{}{}
			}
			continue
		}
		summary.Stale = append(summary.Stale, Entry{
			Category:       CategoryStale,
			AccountNumber:  leg.AccountNumber,
			Symbol:         leg.Symbol,
			Underlying:     leg.Underlying,
			LedgerQuantity: leg.NetQuantity,
			GroupID:        leg.GroupID,
		})
		if leg.GroupID != "" {
			staleGroups[leg.GroupID] = struct{}{}
		}
	}

	// Auto-close stale lots, but never touch a group that still has a
	// matched leg
	for groupID := range staleGroups {
		if _, ok := matchedGroups[groupID]; ok {
			continue
		}

		err := db.WithinTx(func(tx *database.DB) error {
			closed, err := tx.ForceCloseGroupLots(userID, groupID)
			if err != nil {
				return err
			}
			summary.AutoClosedLots += closed
			return tx.RefreshGroupStatus(userID, groupID)
		})
		if err != nil {
			log.Printf("WARN: failed to auto-close stale group %s: %v", groupID, err)
			continue
		}
		summary.AutoClosedGroups = append(summary.AutoClosedGroups, groupID)
	}

	return summary, nil
}
