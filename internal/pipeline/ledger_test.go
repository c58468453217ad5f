package pipeline

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbj175/trade-journal/internal/models"
)

// runLedger pushes raw rows through stages 2 and 3.
func runLedger(t *testing.T, rows []models.RawTransaction) (*LedgerResult, AssemblyResult) {
	t.Helper()
	assembly := AssembleOrders(rows)
	return ProcessLots(assembly.Orders, assembly.AssignmentStockRows), assembly
}

func totalRealized(result *LedgerResult) decimal.Decimal {
	total := decimal.Zero
	for _, c := range result.Closings {
		total = total.Add(c.RealizedPnl)
	}
	return total
}

func TestSimpleOpenClose(t *testing.T) {
	rows := []models.RawTransaction{
		rawOption("t1", "o1", models.ActionBuyToOpen, "AAPL  250321C00170000", 2, 1.50, ts(1, 10)),
		rawOption("t2", "o2", models.ActionSellToClose, "AAPL  250321C00170000", -2, 3.00, ts(10, 10)),
	}
	result, _ := runLedger(t, rows)

	require.Len(t, result.Lots, 1)
	require.Len(t, result.Closings, 1)

	lot := result.Lots[0]
	assert.Equal(t, int64(2), lot.Quantity)
	assert.Equal(t, int64(0), lot.RemainingQuantity)
	assert.Equal(t, models.LotStatusClosed, lot.Status)
	assert.Equal(t, models.OptionTypeCall, lot.OptionType)

	closing := result.Closings[0]
	assert.Equal(t, models.ClosingTypeManual, closing.ClosingType)
	assert.Equal(t, int64(2), closing.QuantityClosed)
	// (3.00 - 1.50) * 2 * 100 = 300
	assert.True(t, decimal.NewFromInt(300).Equal(closing.RealizedPnl),
		"expected 300, got %s", closing.RealizedPnl)
}

func TestRoll(t *testing.T) {
	rows := []models.RawTransaction{
		rawOption("t1", "o1", models.ActionSellToOpen, "AAPL  250321P00170000", -1, 2.00, ts(1, 10)),
		rawOption("t2", "o2", models.ActionBuyToClose, "AAPL  250321P00170000", 1, 1.50, ts(10, 10)),
		rawOption("t3", "o2", models.ActionSellToOpen, "AAPL  250418P00170000", -1, 2.50, ts(10, 10)),
		rawOption("t4", "o3", models.ActionBuyToClose, "AAPL  250418P00170000", 1, 1.00, ts(20, 10)),
	}
	result, assembly := runLedger(t, rows)

	require.Len(t, result.Lots, 2)
	require.Len(t, result.Closings, 2)

	// Rolled lot inherits the chain opened by o1
	assert.Equal(t, result.Lots[0].ChainID, result.Lots[1].ChainID)
	assert.NotEmpty(t, result.Lots[1].ChainID)

	// (2.00-1.50)*100 + (2.50-1.00)*100 = 50 + 150 = 200
	assert.True(t, decimal.NewFromInt(200).Equal(totalRealized(result)),
		"expected 200, got %s", totalRealized(result))

	chains := DeriveChains(assembly.Orders, result.Lots, result.Closings)
	require.Len(t, chains, 1)
	assert.Len(t, chains[0].Orders, 3)
	assert.Equal(t, models.ChainStatusClosed, chains[0].Status)
}

func TestPartialClose(t *testing.T) {
	rows := []models.RawTransaction{
		rawOption("t1", "o1", models.ActionSellToOpen, "AAPL  250321P00170000", -4, 2.00, ts(1, 10)),
		rawOption("t2", "o2", models.ActionBuyToClose, "AAPL  250321P00170000", 2, 1.00, ts(10, 10)),
	}
	result, assembly := runLedger(t, rows)

	require.Len(t, result.Lots, 1)
	lot := result.Lots[0]
	assert.Equal(t, models.LotStatusPartial, lot.Status)
	assert.Equal(t, int64(-2), lot.RemainingQuantity)
	assert.Equal(t, int64(4), lot.OriginalQuantity)

	// (2.00-1.00)*2*100 = 200
	assert.True(t, decimal.NewFromInt(200).Equal(totalRealized(result)))

	chains := DeriveChains(assembly.Orders, result.Lots, result.Closings)
	require.Len(t, chains, 1)
	assert.Equal(t, models.ChainStatusOpen, chains[0].Status)
}

func TestDirectionSafety(t *testing.T) {
	t.Run("sell to close never touches short lots", func(t *testing.T) {
		rows := []models.RawTransaction{
			rawOption("t1", "o1", models.ActionSellToOpen, "AAPL  250321P00170000", -2, 2.00, ts(1, 10)),
			rawOption("t2", "o2", models.ActionSellToClose, "AAPL  250321P00170000", -2, 1.00, ts(10, 10)),
		}
		result, _ := runLedger(t, rows)

		lot := result.Lots[0]
		assert.Equal(t, int64(-2), lot.RemainingQuantity, "short lot must be untouched")

		// The close matched nothing: one orphan closing with zero P&L
		require.Len(t, result.Closings, 1)
		assert.Equal(t, int64(0), result.Closings[0].LotID)
		assert.True(t, result.Closings[0].RealizedPnl.IsZero())
	})

	t.Run("buy to close never touches long lots", func(t *testing.T) {
		rows := []models.RawTransaction{
			rawOption("t1", "o1", models.ActionBuyToOpen, "AAPL  250321C00170000", 2, 1.50, ts(1, 10)),
			rawOption("t2", "o2", models.ActionBuyToClose, "AAPL  250321C00170000", 2, 1.00, ts(10, 10)),
		}
		result, _ := runLedger(t, rows)
		assert.Equal(t, int64(2), result.Lots[0].RemainingQuantity)
	})
}

func TestFIFOOrderingAndConservation(t *testing.T) {
	rows := []models.RawTransaction{
		rawOption("t1", "o1", models.ActionSellToOpen, "AAPL  250321P00170000", -2, 2.00, ts(1, 10)),
		rawOption("t2", "o2", models.ActionSellToOpen, "AAPL  250321P00170000", -3, 2.50, ts(2, 10)),
		rawOption("t3", "o3", models.ActionBuyToClose, "AAPL  250321P00170000", 4, 1.00, ts(10, 10)),
	}
	result, _ := runLedger(t, rows)

	require.Len(t, result.Lots, 2)
	first, second := result.Lots[0], result.Lots[1]

	// Oldest lot consumed first
	assert.Equal(t, models.LotStatusClosed, first.Status)
	assert.Equal(t, models.LotStatusPartial, second.Status)
	assert.Equal(t, int64(-1), second.RemainingQuantity)

	// Closing conservation: sum(quantity_closed) + |remaining| = original
	closedByLot := make(map[int64]int64)
	for _, c := range result.Closings {
		closedByLot[c.LotID] += c.QuantityClosed
	}
	for _, lot := range result.Lots {
		remaining := lot.RemainingQuantity
		if remaining < 0 {
			remaining = -remaining
		}
		assert.Equal(t, lot.OriginalQuantity, closedByLot[lot.ID]+remaining,
			"conservation violated for lot %d", lot.ID)
	}

	// (2.00-1.00)*2*100 + (2.50-1.00)*2*100 = 200 + 300 = 500
	assert.True(t, decimal.NewFromInt(500).Equal(totalRealized(result)))
}

func TestFIFODeterminism(t *testing.T) {
	rows := []models.RawTransaction{
		rawOption("t1", "o1", models.ActionSellToOpen, "AAPL  250321P00170000", -2, 2.00, ts(1, 10)),
		rawOption("t2", "o2", models.ActionSellToOpen, "AAPL  250321P00170000", -3, 2.50, ts(2, 10)),
		rawOption("t3", "o3", models.ActionBuyToClose, "AAPL  250321P00170000", 4, 1.00, ts(10, 10)),
		rawEquity("t4", "o4", models.ActionBuyToOpen, 100, 150, ts(3, 10)),
		rawEquity("t5", "o5", models.ActionSellToClose, -60, 160, ts(12, 10)),
	}

	first, _ := runLedger(t, rows)
	second, _ := runLedger(t, rows)

	require.Equal(t, len(first.Lots), len(second.Lots))
	require.Equal(t, len(first.Closings), len(second.Closings))

	for i := range first.Closings {
		a, b := first.Closings[i], second.Closings[i]
		assert.Equal(t, a.LotID, b.LotID)
		assert.Equal(t, a.QuantityClosed, b.QuantityClosed)
		assert.True(t, a.RealizedPnl.Equal(b.RealizedPnl))
	}
}

func TestExpirationClosesLot(t *testing.T) {
	expiration := rawOption("t2", "", "", "AAPL  250321P00170000", 1, 0, ts(21, 16))
	expiration.TransactionSubType = models.SubTypeExpiration

	rows := []models.RawTransaction{
		rawOption("t1", "o1", models.ActionSellToOpen, "AAPL  250321P00170000", -1, 2.00, ts(1, 10)),
		expiration,
	}
	result, _ := runLedger(t, rows)

	require.Len(t, result.Closings, 1)
	closing := result.Closings[0]
	assert.Equal(t, models.ClosingTypeExpiration, closing.ClosingType)
	// Expired short put: full premium kept, (2.00 - 0) * 1 * 100
	assert.True(t, decimal.NewFromInt(200).Equal(closing.RealizedPnl))
	assert.Equal(t, models.LotStatusClosed, result.Lots[0].Status)
}

func TestEquityUsesMultiplierOne(t *testing.T) {
	rows := []models.RawTransaction{
		rawEquity("t1", "o1", models.ActionBuyToOpen, 100, 150.00, ts(1, 10)),
		rawEquity("t2", "o2", models.ActionSellToClose, -100, 160.00, ts(10, 10)),
	}
	result, _ := runLedger(t, rows)

	// (160-150) * 100 * 1 = 1000
	assert.True(t, decimal.NewFromInt(1000).Equal(totalRealized(result)))
}
