package pipeline

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbj175/trade-journal/internal/models"
)

func TestIronCondorLifecycle(t *testing.T) {
	open := []models.RawTransaction{
		rawOption("t1", "o1", models.ActionSellToOpen, "AAPL  250321P00170000", -1, 1.50, ts(1, 10)),
		rawOption("t2", "o1", models.ActionBuyToOpen, "AAPL  250321P00160000", 1, 0.50, ts(1, 10)),
		rawOption("t3", "o1", models.ActionSellToOpen, "AAPL  250321C00190000", -1, 1.50, ts(1, 10)),
		rawOption("t4", "o1", models.ActionBuyToOpen, "AAPL  250321C00200000", 1, 0.50, ts(1, 10)),
	}
	closeRows := []models.RawTransaction{
		rawOption("t5", "o2", models.ActionBuyToClose, "AAPL  250321P00170000", 1, 0.50, ts(10, 10)),
		rawOption("t6", "o2", models.ActionSellToClose, "AAPL  250321P00160000", -1, 0.10, ts(10, 10)),
		rawOption("t7", "o2", models.ActionBuyToClose, "AAPL  250321C00190000", 1, 0.50, ts(10, 10)),
		rawOption("t8", "o2", models.ActionSellToClose, "AAPL  250321C00200000", -1, 0.10, ts(10, 10)),
	}

	result, assembly := runLedger(t, append(open, closeRows...))

	require.Len(t, result.Lots, 4)
	require.Len(t, result.Closings, 4)

	chains := DeriveChains(assembly.Orders, result.Lots, result.Closings)
	require.Len(t, chains, 1)
	assert.Equal(t, models.ChainStatusClosed, chains[0].Status)

	AssignChainIDs(chains, result.Lots)
	summaries, positions := BuildChainSummaries(chains, result.Lots, result.Closings)
	require.Len(t, summaries, 1)

	summary := summaries[0]
	// 100 - 40 + 100 - 40 = 120
	assert.True(t, decimal.NewFromInt(120).Equal(summary.RealizedPnl), "got %s", summary.RealizedPnl)
	assert.True(t, summary.UnrealizedPnl.IsZero())
	assert.Equal(t, "Iron Condor", summary.StrategyLabel)
	assert.Equal(t, models.ChainStatusClosed, summary.Status)
	assert.Equal(t, 2, summary.OrderCount)
	require.NotNil(t, summary.ClosingDate)

	// Drill-down blob covers every fill of both orders
	assert.Len(t, positions[summary.ChainID], 8)
}

func TestRealizedPnlComposition(t *testing.T) {
	rows := []models.RawTransaction{
		rawOption("t1", "o1", models.ActionSellToOpen, "AAPL  250321P00170000", -2, 2.00, ts(1, 10)),
		rawOption("t2", "o2", models.ActionBuyToClose, "AAPL  250321P00170000", 1, 1.00, ts(10, 10)),
		rawOption("t3", "o3", models.ActionBuyToClose, "AAPL  250321P00170000", 1, 0.50, ts(12, 10)),
	}
	result, assembly := runLedger(t, rows)

	chains := DeriveChains(assembly.Orders, result.Lots, result.Closings)
	AssignChainIDs(chains, result.Lots)
	summaries, _ := BuildChainSummaries(chains, result.Lots, result.Closings)
	require.Len(t, summaries, 1)

	// Chain realized P&L equals the sum over its lot closings
	expected := decimal.Zero
	for _, c := range result.Closings {
		expected = expected.Add(c.RealizedPnl)
	}
	assert.True(t, expected.Equal(summaries[0].RealizedPnl))
}

func TestOpenChainCarriesEntryFlow(t *testing.T) {
	rows := []models.RawTransaction{
		rawOption("t1", "o1", models.ActionSellToOpen, "AAPL  250321P00170000", -1, 2.00, ts(1, 10)),
	}
	result, assembly := runLedger(t, rows)

	chains := DeriveChains(assembly.Orders, result.Lots, result.Closings)
	AssignChainIDs(chains, result.Lots)
	summaries, _ := BuildChainSummaries(chains, result.Lots, result.Closings)
	require.Len(t, summaries, 1)

	summary := summaries[0]
	assert.Equal(t, "Cash Secured Put", summary.StrategyLabel)
	// Short premium collected: 2.00 * 1 * 100
	assert.True(t, decimal.NewFromInt(200).Equal(summary.UnrealizedPnl))
	assert.Nil(t, summary.ClosingDate)
}
