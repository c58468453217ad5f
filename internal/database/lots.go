package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sbj175/trade-journal/internal/models"
)

// ClearLots removes lots (closings cascade) for a user. When underlyings is
// non-empty only those symbols are cleared, for incremental reprocessing.
// Orphan closings with no lot carry no underlying, so all of the user's
// orphans are deleted in either mode; an incremental run regenerates only
// those of the underlyings it reprocesses.
func (db *DB) ClearLots(userID string, underlyings []string) error {
	var err error
	if len(underlyings) > 0 {
		_, err = db.q.Exec(
			`DELETE FROM position_lots WHERE user_id = $1 AND underlying = ANY($2)`,
			userID, pq.Array(underlyings),
		)
	} else {
		_, err = db.q.Exec(`DELETE FROM position_lots WHERE user_id = $1`, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to clear lots: %w", err)
	}

	if _, err := db.q.Exec(
		`DELETE FROM lot_closings WHERE user_id = $1 AND lot_id IS NULL`, userID,
	); err != nil {
		return fmt.Errorf("failed to clear orphan closings: %w", err)
	}
	return nil
}

// SaveLedger persists a pipeline run's lots and closings. Run-local ids are
// remapped to database ids: lots insert parents-first (derived lots are
// always created after their parent, so ascending id order suffices), then
// closings follow the remap for lot_id and resulting_lot_id.
func (db *DB) SaveLedger(userID string, lots []*models.Lot, closings []*models.LotClosing) error {
	idMap := make(map[int64]int64, len(lots))

	lotQuery := `
		INSERT INTO position_lots (
			user_id, transaction_id, account_number, symbol, underlying,
			instrument_type, option_type, strike, expiration, quantity,
			entry_price, entry_date, remaining_quantity, original_quantity,
			chain_id, leg_index, opening_order_id, derived_from_lot_id,
			derivation_type, status
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)
		RETURNING id
	`
	for _, lot := range lots {
		var derivedFrom sql.NullInt64
		if lot.DerivedFromLotID != nil {
			mapped, ok := idMap[*lot.DerivedFromLotID]
			if !ok {
				return fmt.Errorf("derived lot %d references unknown parent %d", lot.ID, *lot.DerivedFromLotID)
			}
			derivedFrom = sql.NullInt64{Int64: mapped, Valid: true}
		}

		var dbID int64
		err := db.q.QueryRow(lotQuery,
			userID, lot.TransactionID, lot.AccountNumber, lot.Symbol, lot.Underlying,
			lot.InstrumentType, nullString(lot.OptionType), nullDecimal(lot.Strike, lot.OptionType != ""),
			nullTime(lot.Expiration), lot.Quantity, lot.EntryPrice, lot.EntryDate,
			lot.RemainingQuantity, lot.OriginalQuantity, nullString(lot.ChainID),
			lot.LegIndex, nullString(lot.OpeningOrderID), derivedFrom,
			nullString(lot.DerivationType), lot.Status,
		).Scan(&dbID)
		if err != nil {
			return fmt.Errorf("failed to save lot %s: %w", lot.TransactionID, err)
		}
		idMap[lot.ID] = dbID
	}

	closingQuery := `
		INSERT INTO lot_closings (
			user_id, lot_id, closing_order_id, closing_transaction_id,
			quantity_closed, closing_price, closing_date, closing_type,
			realized_pnl, resulting_lot_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	for _, c := range closings {
		var lotID, resultingID sql.NullInt64
		if c.LotID != 0 {
			mapped, ok := idMap[c.LotID]
			if !ok {
				return fmt.Errorf("closing %d references unknown lot %d", c.ID, c.LotID)
			}
			lotID = sql.NullInt64{Int64: mapped, Valid: true}
		}
		if c.ResultingLotID != nil {
			if mapped, ok := idMap[*c.ResultingLotID]; ok {
				resultingID = sql.NullInt64{Int64: mapped, Valid: true}
			}
		}

		_, err := db.q.Exec(closingQuery,
			userID, lotID, c.ClosingOrderID, nullString(c.ClosingTransactionID),
			c.QuantityClosed, c.ClosingPrice, c.ClosingDate, c.ClosingType,
			c.RealizedPnl, resultingID,
		)
		if err != nil {
			return fmt.Errorf("failed to save lot closing: %w", err)
		}
	}

	return nil
}

// GetLots retrieves all lots for a user ordered for display.
func (db *DB) GetLots(userID string) ([]*models.Lot, error) {
	query := lotSelect + `
		WHERE user_id = $1
		ORDER BY entry_date ASC, leg_index ASC, id ASC
	`
	return db.scanLots(db.q.Query(query, userID))
}

// GetLotsForChain retrieves lots for one chain, oldest first.
func (db *DB) GetLotsForChain(userID, chainID string) ([]*models.Lot, error) {
	query := lotSelect + `
		WHERE user_id = $1 AND chain_id = $2
		ORDER BY entry_date ASC, leg_index ASC, id ASC
	`
	return db.scanLots(db.q.Query(query, userID, chainID))
}

// GetLotsForGroup retrieves lots linked to a position group.
func (db *DB) GetLotsForGroup(userID, groupID string) ([]*models.Lot, error) {
	query := `
		SELECT pl.id, pl.transaction_id, pl.account_number, pl.symbol, pl.underlying,
		       pl.instrument_type, pl.option_type, pl.strike, pl.expiration,
		       pl.quantity, pl.entry_price, pl.entry_date, pl.remaining_quantity,
		       pl.original_quantity, pl.chain_id, pl.leg_index, pl.opening_order_id,
		       pl.derived_from_lot_id, pl.derivation_type, pl.status
		FROM position_group_lots pgl
		JOIN position_lots pl
		  ON pgl.transaction_id = pl.transaction_id AND pgl.user_id = pl.user_id
		WHERE pgl.user_id = $1 AND pgl.group_id = $2
		ORDER BY pl.entry_date ASC, pl.leg_index ASC, pl.id ASC
	`
	return db.scanLots(db.q.Query(query, userID, groupID))
}

// GetUnassignedLots finds lots not yet linked to any position group.
func (db *DB) GetUnassignedLots(userID string) ([]*models.Lot, error) {
	query := `
		SELECT pl.id, pl.transaction_id, pl.account_number, pl.symbol, pl.underlying,
		       pl.instrument_type, pl.option_type, pl.strike, pl.expiration,
		       pl.quantity, pl.entry_price, pl.entry_date, pl.remaining_quantity,
		       pl.original_quantity, pl.chain_id, pl.leg_index, pl.opening_order_id,
		       pl.derived_from_lot_id, pl.derivation_type, pl.status
		FROM position_lots pl
		LEFT JOIN position_group_lots pgl
		  ON pl.transaction_id = pgl.transaction_id AND pl.user_id = pgl.user_id
		WHERE pl.user_id = $1 AND pgl.transaction_id IS NULL
		ORDER BY pl.entry_date ASC, pl.id ASC
	`
	return db.scanLots(db.q.Query(query, userID))
}

// OpenLegAggregate is the net open quantity per (account, symbol), used by
// reconciliation against the broker snapshot.
type OpenLegAggregate struct {
	AccountNumber string
	Symbol        string
	Underlying    string
	NetQuantity   int64
	GroupID       string
}

// GetOpenLegAggregates sums open lot quantities per (account, symbol).
func (db *DB) GetOpenLegAggregates(userID string) ([]OpenLegAggregate, error) {
	query := `
		SELECT pl.account_number, pl.symbol,
		       MAX(pl.underlying) AS underlying,
		       SUM(pl.remaining_quantity) AS net_qty,
		       COALESCE(MAX(pgl.group_id), '') AS group_id
		FROM position_lots pl
		LEFT JOIN position_group_lots pgl
		  ON pl.transaction_id = pgl.transaction_id AND pl.user_id = pgl.user_id
		WHERE pl.user_id = $1
		  AND pl.remaining_quantity != 0
		  AND pl.status != 'CLOSED'
		GROUP BY pl.account_number, pl.symbol
		HAVING SUM(pl.remaining_quantity) != 0
		ORDER BY pl.account_number, pl.symbol
	`
	rows, err := db.q.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query open leg aggregates: %w", err)
	}
	defer rows.Close()

	var out []OpenLegAggregate
	for rows.Next() {
		var a OpenLegAggregate
		if err := rows.Scan(&a.AccountNumber, &a.Symbol, &a.Underlying, &a.NetQuantity, &a.GroupID); err != nil {
			return nil, fmt.Errorf("failed to scan open leg aggregate: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ForceCloseGroupLots zeroes the remaining quantity of every open lot in a
// group. Used when reconciliation finds lots the broker no longer holds.
func (db *DB) ForceCloseGroupLots(userID, groupID string) (int, error) {
	result, err := db.q.Exec(`
		UPDATE position_lots
		SET remaining_quantity = 0, status = 'CLOSED'
		WHERE user_id = $1
		  AND remaining_quantity != 0
		  AND transaction_id IN (
			SELECT transaction_id FROM position_group_lots
			WHERE user_id = $1 AND group_id = $2
		  )
	`, userID, groupID)
	if err != nil {
		return 0, fmt.Errorf("failed to force-close group lots: %w", err)
	}
	affected, _ := result.RowsAffected()
	return int(affected), nil
}

const lotSelect = `
	SELECT id, transaction_id, account_number, symbol, underlying,
	       instrument_type, option_type, strike, expiration, quantity,
	       entry_price, entry_date, remaining_quantity, original_quantity,
	       chain_id, leg_index, opening_order_id, derived_from_lot_id,
	       derivation_type, status
	FROM position_lots
`

func (db *DB) scanLots(rows *sql.Rows, err error) ([]*models.Lot, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query lots: %w", err)
	}
	defer rows.Close()

	var lots []*models.Lot
	for rows.Next() {
		var l models.Lot
		var optionType, chainID, openingOrderID, derivationType sql.NullString
		var strike, entryPrice sql.NullString
		var expiration sql.NullTime
		var derivedFrom sql.NullInt64

		err := rows.Scan(
			&l.ID, &l.TransactionID, &l.AccountNumber, &l.Symbol, &l.Underlying,
			&l.InstrumentType, &optionType, &strike, &expiration, &l.Quantity,
			&entryPrice, &l.EntryDate, &l.RemainingQuantity, &l.OriginalQuantity,
			&chainID, &l.LegIndex, &openingOrderID, &derivedFrom,
			&derivationType, &l.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lot: %w", err)
		}

		l.OptionType = optionType.String
		l.Strike = scanDecimal(strike)
		l.EntryPrice = scanDecimal(entryPrice)
		if expiration.Valid {
			l.Expiration = expiration.Time
		}
		l.ChainID = chainID.String
		l.OpeningOrderID = openingOrderID.String
		l.DerivationType = derivationType.String
		if derivedFrom.Valid {
			id := derivedFrom.Int64
			l.DerivedFromLotID = &id
		}

		lots = append(lots, &l)
	}
	return lots, rows.Err()
}

func nullDecimal(d decimal.Decimal, valid bool) sql.NullString {
	if !valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
