// Package pipeline implements the transaction-to-chain pipeline: order
// assembly, the lot ledger, chain derivation, and orchestration. Stages 2-4
// are pure with respect to the database; persistence happens once per run.
package pipeline

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sbj175/trade-journal/internal/models"
)

// AssemblyResult is the output of AssembleOrders: classified orders plus the
// stock rows that belong to assignments/exercises rather than orders.
type AssemblyResult struct {
	Orders              []*models.Order
	AssignmentStockRows []models.RawTransaction
}

type symbolChangeOverride struct {
	orderID    string
	underlying string
}

// AssembleOrders converts raw transaction rows into normalized, classified
// Order objects. Pure function: no DB access, no side effects.
func AssembleOrders(raw []models.RawTransaction) AssemblyResult {
	overrides := scanSymbolChanges(raw)

	var txs []*models.Transaction
	var stockRows []models.RawTransaction

	for i := range raw {
		row := &raw[i]

		// Non-trading rows carry no symbol
		if row.Symbol == "" {
			continue
		}

		// Rows with no action are kept only for expiration/assignment/
		// exercise system events
		subType := strings.ToUpper(row.TransactionSubType)
		if row.Action == "" &&
			!strings.Contains(subType, "ASSIGNMENT") &&
			!strings.Contains(subType, "EXERCISE") &&
			!strings.Contains(subType, "EXPIR") {
			continue
		}

		// An equity row with an action but no order id is the stock side of
		// an assignment/exercise (or an ACAT delivery); it does not become
		// an order. Symbol change legs are exempt: their paired synthetic
		// ids make them orders
		if row.IsEquity() && row.OrderID == "" && row.Action != "" && overrides[row.ID] == nil {
			stockRows = append(stockRows, *row)
			continue
		}

		txs = append(txs, buildTransaction(row, overrides[row.ID]))
	}

	orders := createOrders(groupTransactions(txs))

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].ExecutedAt.Before(orders[j].ExecutedAt)
	})

	return AssemblyResult{Orders: orders, AssignmentStockRows: stockRows}
}

// scanSymbolChanges groups Symbol Change rows by (account, old underlying,
// date) and assigns paired synthetic order ids so the close side of the old
// symbol and the open side of the new symbol can be linked.
func scanSymbolChanges(raw []models.RawTransaction) map[string]*symbolChangeOverride {
	type scKey struct {
		account    string
		underlying string
		date       string
	}

	groups := make(map[scKey][]*models.RawTransaction)
	var order []scKey
	for i := range raw {
		row := &raw[i]
		if !row.IsSymbolChange() {
			continue
		}
		k := scKey{row.AccountNumber, row.Underlying(), row.ExecutedAt.Format("2006-01-02")}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], row)
	}

	overrides := make(map[string]*symbolChangeOverride)
	for _, k := range order {
		var closeTxs, openTxs []*models.RawTransaction
		for _, t := range groups[k] {
			if strings.Contains(t.Action, "TO_CLOSE") {
				closeTxs = append(closeTxs, t)
			} else if strings.Contains(t.Action, "TO_OPEN") {
				openTxs = append(openTxs, t)
			}
		}

		// The open legs carry the post-change symbol
		newUnder := k.underlying
		if len(openTxs) > 0 {
			if sym := openTxs[0].Symbol; sym != "" {
				newUnder = strings.Fields(sym)[0]
			}
		}

		closeOID := fmt.Sprintf("SYMCHG_CLOSE_%s_%s_%s", k.account, k.underlying, k.date)
		openOID := fmt.Sprintf("SYMCHG_OPEN_%s_%s_%s", k.account, newUnder, k.date)

		for _, t := range closeTxs {
			overrides[t.ID] = &symbolChangeOverride{orderID: closeOID, underlying: k.underlying}
		}
		for _, t := range openTxs {
			overrides[t.ID] = &symbolChangeOverride{orderID: openOID, underlying: newUnder}
		}

		if len(closeTxs) > 0 || len(openTxs) > 0 {
			log.Printf("Symbol change: %s -> %s, %d close legs, %d open legs",
				k.underlying, newUnder, len(closeTxs), len(openTxs))
		}
	}
	return overrides
}

func buildTransaction(row *models.RawTransaction, sc *symbolChangeOverride) *models.Transaction {
	orderID := row.OrderID
	underlying := row.Underlying()
	if sc != nil {
		orderID = sc.orderID
		underlying = sc.underlying
	} else if orderID == "" {
		// Synthetic id for system events like expiration
		subType := row.TransactionSubType
		if subType == "" {
			subType = "UNKNOWN"
		}
		orderID = fmt.Sprintf("SYSTEM_%s_%s_%s_%s",
			subType, row.ExecutedAt.Format("2006-01-02T150405"), row.Symbol, row.Action)
		orderID = strings.NewReplacer(" ", "_", ":", "").Replace(orderID)
	}

	tx := &models.Transaction{
		ID:                 row.ID,
		AccountNumber:      row.AccountNumber,
		OrderID:            orderID,
		Symbol:             row.Symbol,
		UnderlyingSymbol:   underlying,
		Action:             row.Action,
		Quantity:           row.Quantity,
		Price:              row.Price,
		ExecutedAt:         row.ExecutedAt,
		TransactionType:    row.TransactionType,
		TransactionSubType: row.TransactionSubType,
		Description:        row.Description,
		Commission:         row.Commission,
		RegulatoryFees:     row.RegulatoryFees,
		ClearingFees:       row.ClearingFees,
		Value:              row.Value,
	}

	if row.IsOption() {
		optType, strike, exp, ok := ParseOptionSymbol(row.Symbol)
		if ok {
			tx.OptionType = optType
			tx.Strike = strike
			tx.Expiration = exp
		} else {
			log.Printf("WARN: unparseable option symbol %q, leaving option fields empty", row.Symbol)
		}
	}

	return tx
}

// ParseOptionSymbol parses an OCC symbol "UNDERLYING  YYMMDD[C|P]NNNNNNNN".
// The strike digits are thousandths of a dollar.
func ParseOptionSymbol(symbol string) (optionType string, strike decimal.Decimal, expiration time.Time, ok bool) {
	fields := strings.Fields(symbol)
	if len(fields) < 2 {
		return "", decimal.Decimal{}, time.Time{}, false
	}

	part := fields[1]
	if len(part) < 8 {
		return "", decimal.Decimal{}, time.Time{}, false
	}

	exp, err := time.Parse("20060102", "20"+part[:6])
	if err != nil {
		return "", decimal.Decimal{}, time.Time{}, false
	}

	switch part[6] {
	case 'C':
		optionType = models.OptionTypeCall
	case 'P':
		optionType = models.OptionTypePut
	default:
		return "", decimal.Decimal{}, time.Time{}, false
	}

	strikeDec, err := decimal.NewFromString(part[7:])
	if err != nil {
		return "", decimal.Decimal{}, time.Time{}, false
	}

	return optionType, strikeDec.Div(decimal.NewFromInt(1000)), exp, true
}

type orderKey struct {
	account    string
	underlying string
	orderID    string
}

type orderGroup struct {
	key orderKey
	txs []*models.Transaction
}

// groupTransactions buckets fills by (account, underlying, order id),
// preserving first-seen order for deterministic output.
func groupTransactions(txs []*models.Transaction) []orderGroup {
	index := make(map[orderKey]int)
	var groups []orderGroup

	for _, tx := range txs {
		underlying := tx.UnderlyingSymbol
		if i := strings.IndexByte(underlying, ' '); i > 0 {
			underlying = underlying[:i]
		}
		k := orderKey{tx.AccountNumber, underlying, tx.OrderID}
		if i, ok := index[k]; ok {
			groups[i].txs = append(groups[i].txs, tx)
			continue
		}
		index[k] = len(groups)
		groups = append(groups, orderGroup{key: k, txs: []*models.Transaction{tx}})
	}
	return groups
}

// normalizeFills aggregates fills with the same (action, symbol, option
// type, strike, expiration, price), summing quantities and fees.
// Different-price fills stay separate.
func normalizeFills(txs []*models.Transaction) []*models.Transaction {
	type fillKey struct {
		action  string
		symbol  string
		optType string
		strike  string
		exp     string
		price   string
	}

	index := make(map[fillKey]int)
	var buckets [][]*models.Transaction

	for _, tx := range txs {
		k := fillKey{
			action:  tx.Action,
			symbol:  tx.Symbol,
			optType: tx.OptionType,
			strike:  tx.Strike.String(),
			exp:     tx.Expiration.Format("2006-01-02"),
			price:   tx.Price.String(),
		}
		if i, ok := index[k]; ok {
			buckets[i] = append(buckets[i], tx)
			continue
		}
		index[k] = len(buckets)
		buckets = append(buckets, []*models.Transaction{tx})
	}

	normalized := make([]*models.Transaction, 0, len(buckets))
	for _, group := range buckets {
		if len(group) == 1 {
			normalized = append(normalized, group[0])
			continue
		}

		first := group[0]
		agg := *first
		ids := make([]string, len(group))
		for i, tx := range group {
			ids[i] = tx.ID
		}
		agg.ID = strings.Join(ids, ",")
		agg.Description = fmt.Sprintf("Aggregated %d fills", len(group))

		agg.Quantity = 0
		agg.Commission = decimal.Zero
		agg.RegulatoryFees = decimal.Zero
		agg.ClearingFees = decimal.Zero
		agg.Value = decimal.Zero
		agg.ExecutedAt = first.ExecutedAt
		for _, tx := range group {
			agg.Quantity += tx.Quantity
			agg.Commission = agg.Commission.Add(tx.Commission)
			agg.RegulatoryFees = agg.RegulatoryFees.Add(tx.RegulatoryFees)
			agg.ClearingFees = agg.ClearingFees.Add(tx.ClearingFees)
			agg.Value = agg.Value.Add(tx.Value)
			if tx.ExecutedAt.Before(agg.ExecutedAt) {
				agg.ExecutedAt = tx.ExecutedAt
			}
		}

		normalized = append(normalized, &agg)
	}
	return normalized
}

// classifyOrder derives the order type from its normalized fills.
func classifyOrder(txs []*models.Transaction) models.OrderType {
	var hasOpening, hasClosing bool
	for _, tx := range txs {
		if tx.IsOpening() {
			hasOpening = true
		}
		if tx.IsClosing() {
			hasClosing = true
		}
	}

	switch {
	case hasOpening && !hasClosing:
		return models.OrderTypeOpening
	case hasClosing && !hasOpening:
		return models.OrderTypeClosing
	case hasOpening && hasClosing:
		return models.OrderTypeRolling
	default:
		actions := make([]string, len(txs))
		for i, tx := range txs {
			actions[i] = tx.Action
		}
		log.Printf("WARN: could not classify order with actions %v, treating as CLOSING", actions)
		return models.OrderTypeClosing
	}
}

func createOrders(groups []orderGroup) []*models.Order {
	orders := make([]*models.Order, 0, len(groups))
	for _, g := range groups {
		normalized := normalizeFills(g.txs)
		executedAt := normalized[0].ExecutedAt
		for _, tx := range normalized[1:] {
			if tx.ExecutedAt.Before(executedAt) {
				executedAt = tx.ExecutedAt
			}
		}

		orders = append(orders, &models.Order{
			OrderID:       g.key.orderID,
			AccountNumber: g.key.account,
			Underlying:    g.key.underlying,
			ExecutedAt:    executedAt,
			OrderType:     classifyOrder(normalized),
			Transactions:  normalized,
		})
	}
	return orders
}
