package pipeline

import (
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sbj175/trade-journal/internal/models"
)

// directionFilter restricts which lots a FIFO close may consume.
type directionFilter int

const (
	closeAny directionFilter = iota
	closeLongOnly
	closeShortOnly
)

// LedgerResult holds the lots and closings produced by one pipeline run.
// Lot and closing ids are run-local sequence numbers; the store remaps them
// to database ids on save.
type LedgerResult struct {
	Lots       []*models.Lot
	Closings   []*models.LotClosing
	NettedLots int
}

// lotBook is the in-memory position ledger for one run. All FIFO matching
// happens here; the result is persisted in a single transaction afterwards.
type lotBook struct {
	lots          []*models.Lot
	closings      []*models.LotClosing
	nextLotID     int64
	nextClosingID int64
}

func newLotBook() *lotBook {
	return &lotBook{nextLotID: 1, nextClosingID: 1}
}

// ProcessLots runs Stage 3: creates lots for opening fills, FIFO-closes lots
// for closing fills, derives stock lots from assignments/exercises, books
// remaining stock deliveries, and nets opposing equity lots.
func ProcessLots(orders []*models.Order, stockRows []models.RawTransaction) *LedgerResult {
	book := newLotBook()

	book.createAndCloseLots(orders)
	remaining := book.processAssignmentsAndExercises(orders, stockRows)
	book.processStockDeliveries(remaining)
	netted := book.netOpposingEquityLots()

	return &LedgerResult{
		Lots:       book.lots,
		Closings:   book.closings,
		NettedLots: netted,
	}
}

// createAndCloseLots walks orders chronologically. Opening orders get a new
// provisional chain id; rolling orders inherit the chain of the lots they
// close, so the new legs stay in the same chain.
func (b *lotBook) createAndCloseLots(orders []*models.Order) {
	for _, order := range orders {
		tempChainID := ""

		if order.OrderType == models.OrderTypeOpening {
			tempChainID = synthesizeChainID(order.Underlying, order.ExecutedAt, order.OrderID)
		}

		if order.OrderType == models.OrderTypeClosing || order.OrderType == models.OrderTypeRolling {
			affected := make(map[string]struct{})
			var first string
			for _, tx := range order.ClosingTransactions() {
				for _, lot := range b.openLots(tx.AccountNumber, tx.Symbol, closeAny) {
					if lot.ChainID == "" {
						continue
					}
					if _, ok := affected[lot.ChainID]; !ok && first == "" {
						first = lot.ChainID
					}
					affected[lot.ChainID] = struct{}{}
				}
			}
			if order.OrderType == models.OrderTypeRolling && first != "" {
				tempChainID = first
			}
		}

		for idx, tx := range order.Transactions {
			// The closing side of a Receive Deliver is the settlement of an
			// assignment; the derived lot already represents it. Symbol
			// change legs are the exception: they must close the old
			// symbol's lots
			if tx.TransactionType == models.TransactionTypeReceiveDeliver &&
				!tx.IsOption() && tx.IsClosing() && !tx.IsOpening() &&
				tx.TransactionSubType != models.SubTypeSymbolChange {
				continue
			}

			if tx.IsOpening() {
				b.createLot(tx, tempChainID, idx, order.OrderID)
			} else if tx.IsClosing() {
				filter := closeAny
				if strings.Contains(tx.Action, models.ActionSellToClose) {
					filter = closeLongOnly
				} else if strings.Contains(tx.Action, models.ActionBuyToClose) {
					filter = closeShortOnly
				}

				b.closeFIFO(closeRequest{
					account:       tx.AccountNumber,
					symbol:        tx.Symbol,
					quantity:      abs64(tx.Quantity),
					price:         tx.Price,
					orderID:       order.OrderID,
					transactionID: tx.ID,
					date:          tx.ExecutedAt,
					closingType:   classifyClosing(tx),
					filter:        filter,
				})
			}
		}
	}
}

func classifyClosing(tx *models.Transaction) string {
	switch {
	case tx.IsAssignment():
		return models.ClosingTypeAssignment
	case tx.IsExercise():
		return models.ClosingTypeExercise
	case tx.IsExpiration():
		return models.ClosingTypeExpiration
	default:
		return models.ClosingTypeManual
	}
}

// synthesizeChainID builds the provisional chain id for an opening order.
// Stage 4 produces the same format from the earliest order of a component.
func synthesizeChainID(underlying string, executedAt time.Time, orderID string) string {
	short := orderID
	if len(short) > 8 {
		short = short[:8]
	}
	return underlying + "_OPENING_" + executedAt.Format("20060102") + "_" + short
}

// createLot books a new lot from an opening fill. Sell-to-open fills create
// short (negative quantity) lots.
func (b *lotBook) createLot(tx *models.Transaction, chainID string, legIndex int, openingOrderID string) *models.Lot {
	qty := abs64(tx.Quantity)
	if strings.Contains(tx.Action, models.ActionSellToOpen) {
		qty = -qty
	}

	instrument := models.InstrumentEquity
	if tx.IsOption() {
		instrument = models.InstrumentEquityOption
	}

	lot := &models.Lot{
		ID:                b.nextLotID,
		TransactionID:     tx.ID,
		AccountNumber:     tx.AccountNumber,
		Symbol:            tx.Symbol,
		Underlying:        tx.UnderlyingSymbol,
		InstrumentType:    instrument,
		OptionType:        tx.OptionType,
		Strike:            tx.Strike,
		Expiration:        tx.Expiration,
		Quantity:          qty,
		EntryPrice:        tx.Price,
		EntryDate:         tx.ExecutedAt,
		RemainingQuantity: qty,
		OriginalQuantity:  abs64(qty),
		ChainID:           chainID,
		LegIndex:          legIndex,
		OpeningOrderID:    openingOrderID,
		Status:            models.LotStatusOpen,
	}
	b.nextLotID++
	b.lots = append(b.lots, lot)
	return lot
}

type closeRequest struct {
	account       string
	symbol        string
	quantity      int64 // absolute
	price         decimal.Decimal
	orderID       string
	transactionID string
	date          time.Time
	closingType   string
	filter        directionFilter
}

// closeFIFO consumes open lots oldest-first until the requested quantity is
// exhausted, booking one LotClosing per lot touched. A close that matches no
// lots at all records a single orphan closing with zero P&L so the
// discrepancy surfaces in reconciliation.
func (b *lotBook) closeFIFO(req closeRequest) (decimal.Decimal, []*models.LotClosing) {
	totalPnl := decimal.Zero
	var created []*models.LotClosing
	remaining := req.quantity

	for _, lot := range b.openLots(req.account, req.symbol, req.filter) {
		if remaining <= 0 {
			break
		}

		available := abs64(lot.RemainingQuantity)
		closeAmount := min64(remaining, available)

		var pnl decimal.Decimal
		amount := decimal.NewFromInt(closeAmount).Mul(lot.Multiplier())
		if lot.IsLong() {
			pnl = req.price.Sub(lot.EntryPrice).Mul(amount)
		} else {
			pnl = lot.EntryPrice.Sub(req.price).Mul(amount)
		}
		totalPnl = totalPnl.Add(pnl)

		newRemaining := available - closeAmount
		if lot.Quantity < 0 {
			newRemaining = -newRemaining
		}
		lot.RemainingQuantity = newRemaining
		if newRemaining == 0 {
			lot.Status = models.LotStatusClosed
		} else {
			lot.Status = models.LotStatusPartial
		}

		closing := &models.LotClosing{
			ID:                   b.nextClosingID,
			LotID:                lot.ID,
			ClosingOrderID:       req.orderID,
			ClosingTransactionID: req.transactionID,
			QuantityClosed:       closeAmount,
			ClosingPrice:         req.price,
			ClosingDate:          req.date,
			ClosingType:          req.closingType,
			RealizedPnl:          pnl,
		}
		b.nextClosingID++
		b.closings = append(b.closings, closing)
		created = append(created, closing)

		remaining -= closeAmount
	}

	if len(created) == 0 && req.quantity > 0 {
		// Broker reported a close with no prior open in our window
		log.Printf("WARN: close of %d %s in %s matched no open lots", req.quantity, req.symbol, req.account)
		orphan := &models.LotClosing{
			ID:                   b.nextClosingID,
			ClosingOrderID:       req.orderID,
			ClosingTransactionID: req.transactionID,
			QuantityClosed:       req.quantity,
			ClosingPrice:         req.price,
			ClosingDate:          req.date,
			ClosingType:          req.closingType,
			RealizedPnl:          decimal.Zero,
		}
		b.nextClosingID++
		b.closings = append(b.closings, orphan)
	} else if remaining > 0 {
		log.Printf("WARN: close of %d %s in %s left %d unmatched", req.quantity, req.symbol, req.account, remaining)
	}

	return totalPnl, created
}

// openLots returns open lots for (account, symbol) in FIFO order, optionally
// restricted to one direction.
func (b *lotBook) openLots(account, symbol string, filter directionFilter) []*models.Lot {
	var out []*models.Lot
	for _, lot := range b.lots {
		if lot.AccountNumber != account || lot.Symbol != symbol {
			continue
		}
		if lot.RemainingQuantity == 0 || lot.Status == models.LotStatusClosed {
			continue
		}
		if filter == closeLongOnly && lot.Quantity <= 0 {
			continue
		}
		if filter == closeShortOnly && lot.Quantity >= 0 {
			continue
		}
		out = append(out, lot)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EntryDate.Before(out[j].EntryDate)
	})
	return out
}

func (b *lotBook) lotByID(id int64) *models.Lot {
	for _, lot := range b.lots {
		if lot.ID == id {
			return lot
		}
	}
	return nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
