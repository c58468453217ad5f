package pipeline

import (
	"log"
	"strings"
	"time"

	"github.com/sbj175/trade-journal/internal/models"
)

// assignmentWindow is how far apart an option assignment/exercise and its
// stock settlement may execute and still be treated as one event.
const assignmentWindow = 60 * time.Second

// processAssignmentsAndExercises matches assignment/exercise option fills
// with their stock settlement rows, creating derived stock lots (or closing
// existing shares for exercises that deliver out). Returns the stock rows
// that matched nothing.
func (b *lotBook) processAssignmentsAndExercises(orders []*models.Order, stockRows []models.RawTransaction) []models.RawTransaction {
	if len(stockRows) == 0 {
		return nil
	}

	remaining := make([]models.RawTransaction, len(stockRows))
	copy(remaining, stockRows)

	var assignmentTxs, exerciseTxs []*models.Transaction
	for _, order := range orders {
		for _, tx := range order.Transactions {
			if tx.OptionType == "" {
				continue
			}
			if tx.IsAssignment() {
				assignmentTxs = append(assignmentTxs, tx)
			} else if tx.IsExercise() {
				exerciseTxs = append(exerciseTxs, tx)
			}
		}
	}

	if len(assignmentTxs) > 0 {
		log.Printf("Processing %d assignments with %d stock transactions", len(assignmentTxs), len(remaining))
	}

	for _, assignTx := range assignmentTxs {
		stock, idx := findMatchingStock(assignTx, remaining)
		if stock == nil {
			log.Printf("WARN: no matching stock transaction for assignment %s", assignTx.Symbol)
			continue
		}

		lot, closing := b.unresolvedClosing(assignTx.AccountNumber, assignTx.Symbol, models.ClosingTypeAssignment)
		if lot == nil {
			log.Printf("WARN: no closed option lot found for assignment %s", assignTx.Symbol)
			continue
		}
		if lot.ChainID == "" {
			log.Printf("WARN: option lot %d has no chain, skipping derived lot creation", lot.ID)
			continue
		}

		derived := b.createDerivedLot(lot, stock, models.DerivationAssignment, lot.ChainID, 0)
		closing.ResultingLotID = &derived.ID
		log.Printf("Created derived stock lot %d from option lot %d via ASSIGNMENT", derived.ID, lot.ID)

		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}

	if len(remaining) == 0 || len(exerciseTxs) == 0 {
		return remaining
	}

	log.Printf("Processing %d exercises with %d stock transactions", len(exerciseTxs), len(remaining))

	for _, exTx := range exerciseTxs {
		stock, idx := findMatchingStock(exTx, remaining)
		if stock == nil {
			log.Printf("WARN: no matching stock transaction for exercise %s", exTx.Symbol)
			continue
		}

		lot, closing := b.unresolvedClosing(exTx.AccountNumber, exTx.Symbol, models.ClosingTypeExercise)
		if lot == nil {
			log.Printf("WARN: no closed option lot found for exercise %s", exTx.Symbol)
			continue
		}

		action := strings.ToUpper(stock.Action)
		switch {
		case strings.Contains(action, "TO_CLOSE"):
			// Exercise settles against existing shares
			filter := closeShortOnly
			if strings.Contains(action, "SELL") {
				filter = closeLongOnly
			}
			orderID := closing.ClosingOrderID
			if orderID == "" {
				orderID = "EXERCISE_" + exTx.Symbol
			}
			pnl, created := b.closeFIFO(closeRequest{
				account:       stock.AccountNumber,
				symbol:        stock.Symbol,
				quantity:      abs64(stock.Quantity),
				price:         stock.Price,
				orderID:       orderID,
				transactionID: stock.ID,
				date:          stock.ExecutedAt,
				closingType:   models.ClosingTypeExercise,
				filter:        filter,
			})
			log.Printf("Exercise closed %d stock lots via %s, P&L: %s", len(created), exTx.Symbol, pnl.StringFixed(2))
			if len(created) > 0 && created[0].LotID != 0 {
				closing.ResultingLotID = &created[0].LotID
			}

		case strings.Contains(action, "TO_OPEN"):
			override := abs64(stock.Quantity)
			if strings.Contains(action, "SELL") {
				override = -override
			}
			derived := b.createDerivedLot(lot, stock, models.DerivationExercise, lot.ChainID, override)
			closing.ResultingLotID = &derived.ID
			log.Printf("Created derived stock lot %d from exercise of option lot %d", derived.ID, lot.ID)

		default:
			log.Printf("WARN: unexpected stock action for exercise: %s", action)
			continue
		}

		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}

	return remaining
}

// unresolvedClosing finds the most recent closing of the given type for
// (account, symbol) that has no resulting lot yet, along with its lot.
func (b *lotBook) unresolvedClosing(account, symbol, closingType string) (*models.Lot, *models.LotClosing) {
	var bestLot *models.Lot
	var bestClosing *models.LotClosing
	for _, c := range b.closings {
		if c.ClosingType != closingType || c.ResultingLotID != nil || c.LotID == 0 {
			continue
		}
		lot := b.lotByID(c.LotID)
		if lot == nil || lot.AccountNumber != account || lot.Symbol != symbol {
			continue
		}
		if bestClosing == nil || c.ClosingDate.After(bestClosing.ClosingDate) {
			bestLot, bestClosing = lot, c
		}
	}
	return bestLot, bestClosing
}

// createDerivedLot books the stock lot produced by an assignment/exercise.
// Entry price is the parent option's strike; a call delivers shares out
// (short lot), a put delivers shares in (long lot). overrideQty, when
// nonzero, fixes the signed quantity (exercise-opened stock).
func (b *lotBook) createDerivedLot(parent *models.Lot, stock *models.RawTransaction, derivationType, chainID string, overrideQty int64) *models.Lot {
	qty := abs64(stock.Quantity)
	if overrideQty != 0 {
		qty = overrideQty
	} else if strings.EqualFold(parent.OptionType, models.OptionTypeCall) {
		qty = -qty
	}

	entryPrice := parent.Strike
	if entryPrice.IsZero() {
		entryPrice = stock.Price
	}

	parentID := parent.ID
	lot := &models.Lot{
		ID:                b.nextLotID,
		TransactionID:     stock.ID,
		AccountNumber:     stock.AccountNumber,
		Symbol:            stock.Symbol,
		Underlying:        stock.Underlying(),
		InstrumentType:    models.InstrumentEquity,
		Quantity:          qty,
		EntryPrice:        entryPrice,
		EntryDate:         stock.ExecutedAt,
		RemainingQuantity: qty,
		OriginalQuantity:  abs64(qty),
		ChainID:           chainID,
		DerivedFromLotID:  &parentID,
		DerivationType:    derivationType,
		Status:            models.LotStatusOpen,
	}
	b.nextLotID++
	b.lots = append(b.lots, lot)
	return lot
}

// findMatchingStock locates the stock settlement for an option assignment or
// exercise: same underlying, executed within the matching window, share
// count equal to contracts x 100. Returns the row and its index.
func findMatchingStock(optionTx *models.Transaction, stockRows []models.RawTransaction) (*models.RawTransaction, int) {
	expectedShares := abs64(optionTx.Quantity) * 100
	for i := range stockRows {
		stock := &stockRows[i]
		if stock.Underlying() != optionTx.UnderlyingSymbol {
			continue
		}

		diff := optionTx.ExecutedAt.Sub(stock.ExecutedAt)
		if diff < 0 {
			diff = -diff
		}
		if diff > assignmentWindow {
			continue
		}

		if abs64(stock.Quantity) != expectedShares {
			continue
		}
		return stock, i
	}
	return nil, -1
}
