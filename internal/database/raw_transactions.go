package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sbj175/trade-journal/internal/models"
)

// SaveRawTransactions upserts raw broker transactions for a user. Re-running
// the same batch is a no-op: duplicates by (id, user_id) are skipped.
// Malformed rows (no id) are dropped with a warning rather than aborting the
// batch. Returns the number of rows actually inserted.
func (db *DB) SaveRawTransactions(userID string, rows []models.RawTransaction) (int, error) {
	query := `
		INSERT INTO raw_transactions (
			id, user_id, account_number, order_id, symbol, underlying_symbol,
			action, instrument_type, transaction_type, transaction_sub_type,
			description, quantity, price, value, commission, regulatory_fees,
			clearing_fees, executed_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)
		ON CONFLICT (id, user_id) DO NOTHING
	`
	saved := 0
	now := time.Now()

	for i := range rows {
		row := &rows[i]
		if row.ID == "" {
			log.Printf("WARN: dropping raw transaction with no id (symbol=%s)", row.Symbol)
			continue
		}

		result, err := db.q.Exec(query,
			row.ID, userID, row.AccountNumber, nullString(row.OrderID),
			row.Symbol, row.UnderlyingSymbol, nullString(row.Action),
			row.InstrumentType, row.TransactionType, nullString(row.TransactionSubType),
			row.Description, row.Quantity, row.Price, row.Value,
			row.Commission, row.RegulatoryFees, row.ClearingFees,
			row.ExecutedAt, now,
		)
		if err != nil {
			return saved, fmt.Errorf("failed to save raw transaction %s: %w", row.ID, err)
		}

		affected, _ := result.RowsAffected()
		if affected == 0 {
			log.Printf("DEBUG: raw transaction %s already exists, skipping", row.ID)
			continue
		}
		saved++
	}

	return saved, nil
}

// GetRawTransactions retrieves all raw transactions for a user in execution
// order.
func (db *DB) GetRawTransactions(userID string) ([]models.RawTransaction, error) {
	query := rawTransactionSelect + `
		WHERE user_id = $1
		ORDER BY executed_at ASC, id ASC
	`
	return db.scanRawTransactions(db.q.Query(query, userID))
}

// GetRawTransactionsForUnderlyings retrieves raw transactions limited to a
// set of underlyings, for incremental reprocessing.
func (db *DB) GetRawTransactionsForUnderlyings(userID string, underlyings []string) ([]models.RawTransaction, error) {
	query := rawTransactionSelect + `
		WHERE user_id = $1 AND underlying_symbol = ANY($2)
		ORDER BY executed_at ASC, id ASC
	`
	return db.scanRawTransactions(db.q.Query(query, userID, pq.Array(underlyings)))
}

const rawTransactionSelect = `
	SELECT id, account_number, order_id, symbol, underlying_symbol,
	       action, instrument_type, transaction_type, transaction_sub_type,
	       description, quantity, price, value, commission, regulatory_fees,
	       clearing_fees, executed_at, created_at
	FROM raw_transactions
`

func (db *DB) scanRawTransactions(rows *sql.Rows, err error) ([]models.RawTransaction, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query raw transactions: %w", err)
	}
	defer rows.Close()

	var out []models.RawTransaction
	for rows.Next() {
		var t models.RawTransaction
		var orderID, action, subType sql.NullString
		var price, value, commission, regFees, clearFees sql.NullString

		err := rows.Scan(
			&t.ID, &t.AccountNumber, &orderID, &t.Symbol, &t.UnderlyingSymbol,
			&action, &t.InstrumentType, &t.TransactionType, &subType,
			&t.Description, &t.Quantity, &price, &value, &commission,
			&regFees, &clearFees, &t.ExecutedAt, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan raw transaction: %w", err)
		}

		t.OrderID = orderID.String
		t.Action = action.String
		t.TransactionSubType = subType.String
		t.Price = scanDecimal(price)
		t.Value = scanDecimal(value)
		t.Commission = scanDecimal(commission)
		t.RegulatoryFees = scanDecimal(regFees)
		t.ClearingFees = scanDecimal(clearFees)

		out = append(out, t)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanDecimal(s sql.NullString) decimal.Decimal {
	if !s.Valid {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.Zero
	}
	return d
}
