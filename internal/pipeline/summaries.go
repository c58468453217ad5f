package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/sbj175/trade-journal/internal/models"
	"github.com/sbj175/trade-journal/internal/strategy"
)

// BuildChainSummaries produces the cached read model for the chains view:
// one summary per chain plus the per-order drill-down positions.
//
// Realized P&L is the sum of realized P&L over the chain's lot closings.
// Unrealized P&L is the net entry flow of the still-open quantity (credit
// received positive, debit paid negative); marking to market is the quote
// layer's concern, not the pipeline's.
func BuildChainSummaries(chains []*models.Chain, lots []*models.Lot, closings []*models.LotClosing) ([]*models.ChainSummary, map[string][]models.ChainOrderPosition) {
	lotByID := make(map[int64]*models.Lot, len(lots))
	lotsByChain := make(map[string][]*models.Lot)
	for _, lot := range lots {
		lotByID[lot.ID] = lot
		if lot.ChainID != "" {
			lotsByChain[lot.ChainID] = append(lotsByChain[lot.ChainID], lot)
		}
	}

	closingsByChain := make(map[string][]*models.LotClosing)
	for _, c := range closings {
		lot := lotByID[c.LotID]
		if lot == nil || lot.ChainID == "" {
			continue
		}
		closingsByChain[lot.ChainID] = append(closingsByChain[lot.ChainID], c)
	}

	summaries := make([]*models.ChainSummary, 0, len(chains))
	positions := make(map[string][]models.ChainOrderPosition)

	for _, chain := range chains {
		chainLots := lotsByChain[chain.ChainID]

		realized := decimal.Zero
		for _, c := range closingsByChain[chain.ChainID] {
			realized = realized.Add(c.RealizedPnl)
		}

		unrealized := decimal.Zero
		for _, lot := range chainLots {
			if lot.RemainingQuantity == 0 {
				continue
			}
			flow := lot.EntryPrice.Mul(decimal.NewFromInt(abs64(lot.RemainingQuantity))).Mul(lot.Multiplier())
			if lot.IsShort() {
				unrealized = unrealized.Add(flow)
			} else {
				unrealized = unrealized.Sub(flow)
			}
		}

		summary := &models.ChainSummary{
			ChainID:       chain.ChainID,
			AccountNumber: chain.AccountNumber,
			Underlying:    chain.Underlying,
			Status:        chain.Status,
			StrategyLabel: chainStrategyLabel(chainLots),
			OrderCount:    len(chain.Orders),
			RealizedPnl:   realized,
			UnrealizedPnl: unrealized,
			TotalPnl:      realized.Add(unrealized),
			OpeningDate:   chain.OpeningDate(),
		}
		if chain.Status == models.ChainStatusClosed {
			cd := chain.ClosingDate()
			summary.ClosingDate = &cd
		}
		summaries = append(summaries, summary)

		var orderPositions []models.ChainOrderPosition
		for _, order := range chain.Orders {
			for _, tx := range order.Transactions {
				orderPositions = append(orderPositions, models.ChainOrderPosition{
					OrderID:    order.OrderID,
					OrderType:  string(order.OrderType),
					ExecutedAt: order.ExecutedAt,
					Symbol:     tx.Symbol,
					Action:     tx.Action,
					Quantity:   tx.Quantity,
					Price:      tx.Price,
				})
			}
		}
		positions[chain.ChainID] = orderPositions
	}

	return summaries, positions
}

// chainStrategyLabel recognizes the strategy from the chain's directly
// opened lots (derived stock is excluded; it would mask the option
// structure). Closed chains are labeled from their original leg structure.
func chainStrategyLabel(chainLots []*models.Lot) string {
	var direct []*models.Lot
	for _, lot := range chainLots {
		if lot.DerivedFromLotID == nil {
			direct = append(direct, lot)
		}
	}
	if len(direct) == 0 {
		return "Unknown"
	}

	legs := strategy.LotsToLegs(direct)
	if len(legs) == 0 {
		// Everything closed: recognize the original structure
		restored := make([]*models.Lot, len(direct))
		for i, lot := range direct {
			clone := *lot
			clone.RemainingQuantity = clone.Quantity
			clone.Status = models.LotStatusOpen
			restored[i] = &clone
		}
		legs = strategy.LotsToLegs(restored)
	}

	return strategy.Recognize(legs).Name
}
