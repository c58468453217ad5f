package database

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sbj175/trade-journal/internal/models"
)

// GetClosingsForLots retrieves closings for a set of lots in one query,
// keyed by lot id.
func (db *DB) GetClosingsForLots(userID string, lotIDs []int64) (map[int64][]*models.LotClosing, error) {
	result := make(map[int64][]*models.LotClosing, len(lotIDs))
	if len(lotIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT id, lot_id, closing_order_id, closing_transaction_id,
		       quantity_closed, closing_price, closing_date, closing_type,
		       realized_pnl, resulting_lot_id
		FROM lot_closings
		WHERE user_id = $1 AND lot_id = ANY($2)
		ORDER BY closing_date ASC, id ASC
	`
	rows, err := db.q.Query(query, userID, pq.Array(lotIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query lot closings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanClosing(rows)
		if err != nil {
			return nil, err
		}
		result[c.LotID] = append(result[c.LotID], c)
	}
	return result, rows.Err()
}

// GetOrphanClosings retrieves closings that matched no lot (broker closes
// with no prior open), surfaced by reconciliation.
func (db *DB) GetOrphanClosings(userID string) ([]*models.LotClosing, error) {
	query := `
		SELECT id, lot_id, closing_order_id, closing_transaction_id,
		       quantity_closed, closing_price, closing_date, closing_type,
		       realized_pnl, resulting_lot_id
		FROM lot_closings
		WHERE user_id = $1 AND lot_id IS NULL
		ORDER BY closing_date ASC, id ASC
	`
	rows, err := db.q.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orphan closings: %w", err)
	}
	defer rows.Close()

	var out []*models.LotClosing
	for rows.Next() {
		c, err := scanClosing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetRealizedPnlForChain sums realized P&L over all closings of a chain's
// lots.
func (db *DB) GetRealizedPnlForChain(userID, chainID string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(lc.realized_pnl), 0)
		FROM lot_closings lc
		JOIN position_lots pl ON lc.lot_id = pl.id
		WHERE pl.user_id = $1 AND pl.chain_id = $2
	`
	var total sql.NullString
	if err := db.q.QueryRow(query, userID, chainID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to get realized pnl for chain: %w", err)
	}
	return scanDecimal(total), nil
}

func scanClosing(rows *sql.Rows) (*models.LotClosing, error) {
	var c models.LotClosing
	var lotID, resultingID sql.NullInt64
	var closingTxID sql.NullString
	var price, pnl sql.NullString

	err := rows.Scan(
		&c.ID, &lotID, &c.ClosingOrderID, &closingTxID,
		&c.QuantityClosed, &price, &c.ClosingDate, &c.ClosingType,
		&pnl, &resultingID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan lot closing: %w", err)
	}

	c.LotID = lotID.Int64
	c.ClosingTransactionID = closingTxID.String
	c.ClosingPrice = scanDecimal(price)
	c.RealizedPnl = scanDecimal(pnl)
	if resultingID.Valid {
		id := resultingID.Int64
		c.ResultingLotID = &id
	}
	return &c, nil
}
