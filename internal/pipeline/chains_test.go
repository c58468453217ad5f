package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbj175/trade-journal/internal/models"
)

func TestBuildOrderGraph(t *testing.T) {
	t.Run("links orders through shared edges", func(t *testing.T) {
		components := BuildOrderGraph(
			[]edge{{"o1", "o2"}, {"o2", "o3"}},
			nil,
		)
		require.Len(t, components, 1)
		for _, members := range components {
			assert.ElementsMatch(t, []string{"o1", "o2", "o3"}, members)
		}
	})

	t.Run("keeps unrelated orders apart", func(t *testing.T) {
		components := BuildOrderGraph(
			[]edge{{"o1", "o2"}, {"o3", "o4"}},
			nil,
		)
		assert.Len(t, components, 2)
	})

	t.Run("derived edges join components", func(t *testing.T) {
		components := BuildOrderGraph(
			[]edge{{"o1", "o2"}},
			[]edge{{"o2", "o3"}},
		)
		require.Len(t, components, 1)
	})
}

func TestDeriveChains(t *testing.T) {
	t.Run("chain id derives from the earliest order", func(t *testing.T) {
		rows := []models.RawTransaction{
			rawOption("t1", "ABCDEFGH123", models.ActionSellToOpen, "AAPL  250321P00170000", -1, 2.00, ts(1, 10)),
			rawOption("t2", "o2", models.ActionBuyToClose, "AAPL  250321P00170000", 1, 1.00, ts(10, 10)),
		}
		result, assembly := runLedger(t, rows)

		chains := DeriveChains(assembly.Orders, result.Lots, result.Closings)
		require.Len(t, chains, 1)
		assert.Equal(t, "AAPL_OPENING_20250301_ABCDEFGH", chains[0].ChainID)
	})

	t.Run("unrelated orders become separate singleton chains", func(t *testing.T) {
		rows := []models.RawTransaction{
			rawOption("t1", "o1", models.ActionSellToOpen, "AAPL  250321P00170000", -1, 2.00, ts(1, 10)),
			rawOption("t2", "o2", models.ActionSellToOpen, "AAPL  250418P00160000", -1, 2.00, ts(2, 10)),
		}
		result, assembly := runLedger(t, rows)

		chains := DeriveChains(assembly.Orders, result.Lots, result.Closings)
		assert.Len(t, chains, 2)
		for _, chain := range chains {
			assert.Equal(t, models.ChainStatusOpen, chain.Status)
			assert.Len(t, chain.Orders, 1)
		}
	})

	t.Run("every closing edge lands in one component", func(t *testing.T) {
		rows := []models.RawTransaction{
			rawOption("t1", "o1", models.ActionSellToOpen, "AAPL  250321P00170000", -2, 2.00, ts(1, 10)),
			rawOption("t2", "o2", models.ActionBuyToClose, "AAPL  250321P00170000", 1, 1.00, ts(10, 10)),
			rawOption("t3", "o3", models.ActionBuyToClose, "AAPL  250321P00170000", 1, 0.80, ts(12, 10)),
		}
		result, assembly := runLedger(t, rows)

		chains := DeriveChains(assembly.Orders, result.Lots, result.Closings)
		require.Len(t, chains, 1)

		members := memberSet(chains[0].Orders)
		lotByID := make(map[int64]*models.Lot)
		for _, lot := range result.Lots {
			lotByID[lot.ID] = lot
		}
		for _, c := range result.Closings {
			lot := lotByID[c.LotID]
			require.NotNil(t, lot)
			_, hasOpen := members[lot.OpeningOrderID]
			_, hasClose := members[c.ClosingOrderID]
			assert.True(t, hasOpen && hasClose,
				"closing edge (%s -> %s) must be inside the chain", lot.OpeningOrderID, c.ClosingOrderID)
		}
	})
}

func TestAssignChainIDs(t *testing.T) {
	rows := []models.RawTransaction{
		rawOption("t1", "o1", models.ActionSellToOpen, "AAPL  250321P00170000", -1, 2.00, ts(1, 10)),
		rawOption("t2", "o2", models.ActionBuyToClose, "AAPL  250321P00170000", 1, 1.50, ts(10, 10)),
		rawOption("t3", "o2", models.ActionSellToOpen, "AAPL  250418P00170000", -1, 2.50, ts(10, 10)),
	}
	result, assembly := runLedger(t, rows)

	chains := DeriveChains(assembly.Orders, result.Lots, result.Closings)
	require.Len(t, chains, 1)

	AssignChainIDs(chains, result.Lots)
	for _, lot := range result.Lots {
		assert.Equal(t, chains[0].ChainID, lot.ChainID)
	}
}
