package pipeline

import (
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sbj175/trade-journal/internal/models"
)

// processStockDeliveries books the stock rows left over after assignment and
// exercise matching: ACAT transfers and other order-less equity events.
// Opening actions create chainless lots; Receive Deliver closing actions are
// skipped because the assignment-derived lot already represents that side;
// plain trade closes FIFO-close with the usual direction filter.
func (b *lotBook) processStockDeliveries(stockRows []models.RawTransaction) {
	for i := range stockRows {
		row := &stockRows[i]
		action := strings.ToUpper(row.Action)

		switch {
		case strings.Contains(action, "TO_OPEN"):
			tx := &models.Transaction{
				ID:               row.ID,
				AccountNumber:    row.AccountNumber,
				OrderID:          row.OrderID,
				Symbol:           row.Symbol,
				UnderlyingSymbol: row.Underlying(),
				Action:           row.Action,
				Quantity:         row.Quantity,
				Price:            row.Price,
				ExecutedAt:       row.ExecutedAt,
				TransactionType:  row.TransactionType,
			}
			b.createLot(tx, "", 0, row.OrderID)

		case strings.Contains(action, "TO_CLOSE"):
			if row.IsReceiveDeliver() {
				continue
			}
			filter := closeShortOnly
			if strings.Contains(action, "SELL") {
				filter = closeLongOnly
			}
			b.closeFIFO(closeRequest{
				account:       row.AccountNumber,
				symbol:        row.Symbol,
				quantity:      abs64(row.Quantity),
				price:         row.Price,
				orderID:       row.OrderID,
				transactionID: row.ID,
				date:          row.ExecutedAt,
				closingType:   models.ClosingTypeManual,
				filter:        filter,
			})

		default:
			log.Printf("WARN: unmatched stock transaction %s (%s %s) left unprocessed",
				row.ID, row.Action, row.Symbol)
		}
	}
}

type accountSymbol struct {
	account string
	symbol  string
}

// netOpposingEquityLots closes opposing long and short open equity lots of
// the same (account, symbol) against each other at the short lot's entry
// price. P&L lands on the long side; the short side gets a synthetic
// zero-P&L closing. Returns the number of lot sides closed.
func (b *lotBook) netOpposingEquityLots() int {
	netted := 0

	for _, key := range b.nettableEquityPairs() {
		for _, neg := range b.openEquityLots(key, true) {
			qtyToClose := abs64(neg.RemainingQuantity)
			if qtyToClose == 0 {
				continue
			}

			// Closing date must not precede either side
			closingDate := neg.EntryDate
			for _, pos := range b.openEquityLots(key, false) {
				if pos.EntryDate.After(closingDate) {
					closingDate = pos.EntryDate
				}
			}

			_, created := b.closeFIFO(closeRequest{
				account:     key.account,
				symbol:      key.symbol,
				quantity:    qtyToClose,
				price:       neg.EntryPrice,
				orderID:     models.EquityNettingOrderID,
				date:        closingDate,
				closingType: models.ClosingTypeManual,
				filter:      closeLongOnly,
			})
			if len(created) == 0 {
				continue
			}

			var totalClosed int64
			for _, c := range created {
				totalClosed += c.QuantityClosed
			}
			if totalClosed == 0 {
				continue
			}

			neg.RemainingQuantity += totalClosed
			if neg.RemainingQuantity == 0 {
				neg.Status = models.LotStatusClosed
			} else {
				neg.Status = models.LotStatusPartial
			}

			b.closings = append(b.closings, &models.LotClosing{
				ID:             b.nextClosingID,
				LotID:          neg.ID,
				ClosingOrderID: models.EquityNettingOrderID,
				QuantityClosed: totalClosed,
				ClosingPrice:   neg.EntryPrice,
				ClosingDate:    closingDate,
				ClosingType:    models.ClosingTypeManual,
				RealizedPnl:    decimal.Zero,
			})
			b.nextClosingID++

			netted += len(created) + 1
			log.Printf("Netted %d shares of %s: lot %d against %d long lots",
				totalClosed, key.symbol, neg.ID, len(created))
		}
	}

	return netted
}

// openEquityLots returns open equity lots for the pair, one direction at a
// time, in FIFO order.
func (b *lotBook) openEquityLots(key accountSymbol, short bool) []*models.Lot {
	filter := closeLongOnly
	if short {
		filter = closeShortOnly
	}
	var out []*models.Lot
	for _, lot := range b.openLots(key.account, key.symbol, filter) {
		if lot.InstrumentType == models.InstrumentEquity {
			out = append(out, lot)
		}
	}
	return out
}

// nettableEquityPairs finds (account, symbol) pairs holding both long and
// short open equity lots.
func (b *lotBook) nettableEquityPairs() []accountSymbol {
	type state struct {
		hasLong, hasShort bool
	}
	seen := make(map[accountSymbol]*state)
	var order []accountSymbol

	for _, lot := range b.lots {
		if lot.InstrumentType != models.InstrumentEquity {
			continue
		}
		if lot.RemainingQuantity == 0 || lot.Status == models.LotStatusClosed {
			continue
		}
		k := accountSymbol{lot.AccountNumber, lot.Symbol}
		s, ok := seen[k]
		if !ok {
			s = &state{}
			seen[k] = s
			order = append(order, k)
		}
		if lot.RemainingQuantity > 0 {
			s.hasLong = true
		} else {
			s.hasShort = true
		}
	}

	var out []accountSymbol
	for _, k := range order {
		if seen[k].hasLong && seen[k].hasShort {
			out = append(out, k)
		}
	}
	return out
}
