package pipeline

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sbj175/trade-journal/internal/database"
	"github.com/sbj175/trade-journal/internal/models"
	"github.com/sbj175/trade-journal/internal/reconcile"
)

// setupPipelineDB starts a PostgreSQL container, migrates it, and returns a
// connected store; cleanup is registered on t.
func setupPipelineDB(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := database.New(connStr)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, filename, _, _ := runtime.Caller(0)
	migrationsPath := filepath.Join(filepath.Dir(filename), "..", "..", "db", "migrations")
	if err := db.RunMigrations(migrationsPath); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	if err := db.EnsureDefaultUser(); err != nil {
		t.Fatalf("failed to ensure default user: %v", err)
	}
	return db
}

// ledgerSnapshot flattens the persisted ledger state for comparison.
type ledgerSnapshot struct {
	lots      []models.Lot
	chains    []models.ChainSummary
	groupKeys []string
}

func snapshotLedger(t *testing.T, db *database.DB, userID string) ledgerSnapshot {
	t.Helper()

	var snap ledgerSnapshot

	lots, err := db.GetLots(userID)
	require.NoError(t, err)
	for _, lot := range lots {
		clone := *lot
		clone.ID = 0 // database ids differ between runs
		clone.DerivedFromLotID = nil
		snap.lots = append(snap.lots, clone)
	}

	chains, err := db.GetChainSummaries(userID, "", "")
	require.NoError(t, err)
	for _, c := range chains {
		snap.chains = append(snap.chains, *c)
	}

	groups, err := db.GetGroups(userID, "", "")
	require.NoError(t, err)
	for _, g := range groups {
		// group ids are random uuids; compare by identity
		snap.groupKeys = append(snap.groupKeys,
			g.AccountNumber+"|"+g.Underlying+"|"+g.StrategyLabel+"|"+g.Status+"|"+g.SourceChainID)
	}

	return snap
}

func TestReprocessIdempotence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupPipelineDB(t)
	userID := models.DefaultUserID

	raw := []models.RawTransaction{
		rawOption("t1", "o1", models.ActionSellToOpen, "AAPL  250321P00170000", -1, 2.00, ts(1, 10)),
		rawOption("t2", "o2", models.ActionBuyToClose, "AAPL  250321P00170000", 1, 1.50, ts(10, 10)),
		rawOption("t3", "o2", models.ActionSellToOpen, "AAPL  250418P00170000", -1, 2.50, ts(10, 10)),
		rawEquity("t4", "o4", models.ActionBuyToOpen, 100, 150.00, ts(3, 10)),
	}

	_, err := db.SaveRawTransactions(userID, raw)
	require.NoError(t, err)

	first, err := ReprocessFromStore(db, userID, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, first.OrdersAssembled)
	snapFirst := snapshotLedger(t, db, userID)

	second, err := ReprocessFromStore(db, userID, nil)
	require.NoError(t, err)
	assert.Equal(t, first.OrdersAssembled, second.OrdersAssembled)

	snapSecond := snapshotLedger(t, db, userID)
	assert.Equal(t, snapFirst.lots, snapSecond.lots)
	assert.Equal(t, snapFirst.chains, snapSecond.chains)
	assert.ElementsMatch(t, snapFirst.groupKeys, snapSecond.groupKeys)
}

func TestReprocessIncremental(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupPipelineDB(t)
	userID := models.DefaultUserID

	aapl := rawOption("t1", "o1", models.ActionSellToOpen, "AAPL  250321P00170000", -1, 2.00, ts(1, 10))
	msft := rawOption("t2", "o2", models.ActionSellToOpen, "MSFT  250321P00400000", -1, 5.00, ts(1, 11))
	msft.UnderlyingSymbol = "MSFT"

	_, err := db.SaveRawTransactions(userID, []models.RawTransaction{aapl, msft})
	require.NoError(t, err)

	_, err = ReprocessFromStore(db, userID, nil)
	require.NoError(t, err)

	// Incremental run touching only MSFT must leave AAPL lots alone
	_, err = ReprocessFromStore(db, userID, []string{"MSFT"})
	require.NoError(t, err)

	lots, err := db.GetLots(userID)
	require.NoError(t, err)
	require.Len(t, lots, 2)

	underlyings := map[string]bool{}
	for _, lot := range lots {
		underlyings[lot.Underlying] = true
	}
	assert.True(t, underlyings["AAPL"])
	assert.True(t, underlyings["MSFT"])
}

func TestReconciliation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupPipelineDB(t)
	userID := models.DefaultUserID

	raw := []models.RawTransaction{
		rawOption("t1", "o1", models.ActionSellToOpen, "AAPL  250321P00170000", -1, 2.00, ts(1, 10)),
		rawEquity("t2", "o2", models.ActionBuyToOpen, 100, 150.00, ts(2, 10)),
	}
	_, err := db.SaveRawTransactions(userID, raw)
	require.NoError(t, err)
	_, err = ReprocessFromStore(db, userID, nil)
	require.NoError(t, err)

	// Broker agrees on the put, disagrees on share count, and holds an
	// extra position the ledger has never seen
	positions := []models.BrokerPosition{
		{
			AccountNumber:     "5WT00001",
			Symbol:            "AAPL  250321P00170000",
			UnderlyingSymbol:  "AAPL",
			InstrumentType:    models.InstrumentEquityOption,
			Quantity:          1,
			QuantityDirection: models.DirectionShort,
			AveragePrice:      decimal.NewFromFloat(2.00),
		},
		{
			AccountNumber:     "5WT00001",
			Symbol:            "AAPL",
			UnderlyingSymbol:  "AAPL",
			InstrumentType:    models.InstrumentEquity,
			Quantity:          150,
			QuantityDirection: models.DirectionLong,
			AveragePrice:      decimal.NewFromFloat(150.00),
		},
		{
			AccountNumber:     "5WT00001",
			Symbol:            "TSLA",
			UnderlyingSymbol:  "TSLA",
			InstrumentType:    models.InstrumentEquity,
			Quantity:          10,
			QuantityDirection: models.DirectionLong,
			AveragePrice:      decimal.NewFromFloat(250.00),
		},
	}
	require.NoError(t, db.ReplaceBrokerPositions(userID, "5WT00001", positions))

	summary, err := reconcile.Run(db, userID)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Matched)
	require.Len(t, summary.QuantityMismatch, 1)
	assert.Equal(t, int64(150), summary.QuantityMismatch[0].BrokerQuantity)
	assert.Equal(t, int64(100), summary.QuantityMismatch[0].LedgerQuantity)
	require.Len(t, summary.Unlinked, 1)
	assert.Equal(t, "TSLA", summary.Unlinked[0].Symbol)
	assert.Empty(t, summary.Stale)
}

func TestReconciliationAutoClosesStaleLots(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupPipelineDB(t)
	userID := models.DefaultUserID

	raw := []models.RawTransaction{
		rawEquity("t1", "o1", models.ActionBuyToOpen, 100, 150.00, ts(2, 10)),
	}
	_, err := db.SaveRawTransactions(userID, raw)
	require.NoError(t, err)
	_, err = ReprocessFromStore(db, userID, nil)
	require.NoError(t, err)

	// Broker snapshot is empty: the ledger's open shares are stale
	require.NoError(t, db.ReplaceBrokerPositions(userID, "5WT00001", nil))

	summary, err := reconcile.Run(db, userID)
	require.NoError(t, err)
	require.Len(t, summary.Stale, 1)
	assert.NotZero(t, summary.AutoClosedLots)

	lots, err := db.GetLots(userID)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, models.LotStatusClosed, lots[0].Status)
	assert.Zero(t, lots[0].RemainingQuantity)
}
