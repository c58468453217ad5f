package pipeline

import (
	"log"

	"github.com/sbj175/trade-journal/internal/database"
	"github.com/sbj175/trade-journal/internal/models"
)

// Result carries the per-stage counts of one pipeline run.
type Result struct {
	OrdersAssembled  int `json:"orders_assembled"`
	LotsCreated      int `json:"lots_created"`
	ChainsDerived    int `json:"chains_derived"`
	GroupsSeeded     int `json:"groups_seeded"`
	GroupsReconciled int `json:"groups_reconciled"`
	EquityLotsNetted int `json:"equity_lots_netted"`
}

// Reprocess runs stages 2-6 over a user's raw transactions inside a single
// transaction: assemble orders, rebuild the lot ledger, derive chains,
// refresh the chain cache, and seed/reconcile position groups.
//
// With affectedUnderlyings set, only those symbols' lots, chains, and groups
// are rebuilt (incremental mode after a partial sync). The run is a pure
// function of (raw transactions, prior group state): rerunning with the
// same inputs produces identical lots, closings, chains, and groups.
func Reprocess(db *database.DB, userID string, raw []models.RawTransaction, affectedUnderlyings []string) (*Result, error) {
	if len(raw) == 0 {
		log.Printf("No transactions to process for user %s", userID)
		return &Result{}, nil
	}

	if len(affectedUnderlyings) > 0 {
		affected := make(map[string]struct{}, len(affectedUnderlyings))
		for _, u := range affectedUnderlyings {
			affected[u] = struct{}{}
		}
		var filtered []models.RawTransaction
		for i := range raw {
			if _, ok := affected[raw[i].Underlying()]; ok {
				filtered = append(filtered, raw[i])
			}
		}
		raw = filtered
	}

	result := &Result{}

	err := db.WithinTx(func(tx *database.DB) error {
		if err := tx.ClearLots(userID, affectedUnderlyings); err != nil {
			return err
		}

		assembly := AssembleOrders(raw)
		result.OrdersAssembled = len(assembly.Orders)
		log.Printf("Stage 2: assembled %d orders", result.OrdersAssembled)

		ledger := ProcessLots(assembly.Orders, assembly.AssignmentStockRows)
		result.LotsCreated = len(ledger.Lots)
		result.EquityLotsNetted = ledger.NettedLots
		log.Printf("Stage 3: created %d lots, %d closings", len(ledger.Lots), len(ledger.Closings))

		chains := DeriveChains(assembly.Orders, ledger.Lots, ledger.Closings)
		result.ChainsDerived = len(chains)
		AssignChainIDs(chains, ledger.Lots)
		log.Printf("Stage 4: derived %d chains", result.ChainsDerived)

		if err := tx.SaveLedger(userID, ledger.Lots, ledger.Closings); err != nil {
			return err
		}

		summaries, positions := BuildChainSummaries(chains, ledger.Lots, ledger.Closings)
		if err := tx.ReplaceChains(userID, summaries, positions, affectedUnderlyings); err != nil {
			return err
		}
		log.Printf("Stage 5: cached %d chain summaries", len(summaries))

		seeded, err := tx.SeedNewLotsIntoGroups(userID)
		if err != nil {
			return err
		}
		result.GroupsSeeded = seeded

		reconciled, err := tx.ReconcileStaleGroups(userID)
		if err != nil {
			return err
		}
		result.GroupsReconciled = reconciled
		log.Printf("Stage 6: seeded %d lots into groups, reconciled %d stale groups", seeded, reconciled)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ReprocessFromStore loads the user's raw transactions (all of them, or just
// the affected underlyings) and runs Reprocess. This is the entry point the
// sync trigger and the Kafka consumer use.
func ReprocessFromStore(db *database.DB, userID string, affectedUnderlyings []string) (*Result, error) {
	var (
		raw []models.RawTransaction
		err error
	)
	if len(affectedUnderlyings) > 0 {
		raw, err = db.GetRawTransactionsForUnderlyings(userID, affectedUnderlyings)
	} else {
		raw, err = db.GetRawTransactions(userID)
	}
	if err != nil {
		return nil, err
	}
	return Reprocess(db, userID, raw, affectedUnderlyings)
}
