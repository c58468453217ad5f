package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sbj175/trade-journal/internal/models"
)

// ReplaceBrokerPositions swaps the broker's live positions snapshot for an
// account. Reconciliation reads this table; the pipeline never does.
func (db *DB) ReplaceBrokerPositions(userID, accountNumber string, positions []models.BrokerPosition) error {
	if _, err := db.q.Exec(
		`DELETE FROM broker_positions WHERE user_id = $1 AND account_number = $2`,
		userID, accountNumber,
	); err != nil {
		return fmt.Errorf("failed to clear broker positions: %w", err)
	}

	query := `
		INSERT INTO broker_positions (
			user_id, account_number, symbol, underlying_symbol, instrument_type,
			quantity, quantity_direction, average_price, synced_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	now := time.Now()
	for i := range positions {
		p := &positions[i]
		_, err := db.q.Exec(query,
			userID, accountNumber, p.Symbol, p.UnderlyingSymbol, p.InstrumentType,
			p.Quantity, p.QuantityDirection, p.AveragePrice, now,
		)
		if err != nil {
			return fmt.Errorf("failed to save broker position %s: %w", p.Symbol, err)
		}
	}
	return nil
}

// GetBrokerPositions retrieves the current broker snapshot for a user.
func (db *DB) GetBrokerPositions(userID string) ([]models.BrokerPosition, error) {
	query := `
		SELECT id, account_number, symbol, underlying_symbol, instrument_type,
		       quantity, quantity_direction, average_price, synced_at
		FROM broker_positions
		WHERE user_id = $1
		ORDER BY account_number, symbol
	`
	rows, err := db.q.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query broker positions: %w", err)
	}
	defer rows.Close()

	var out []models.BrokerPosition
	for rows.Next() {
		var p models.BrokerPosition
		var avgPrice sql.NullString
		err := rows.Scan(
			&p.ID, &p.AccountNumber, &p.Symbol, &p.UnderlyingSymbol, &p.InstrumentType,
			&p.Quantity, &p.QuantityDirection, &avgPrice, &p.SyncedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan broker position: %w", err)
		}
		p.AveragePrice = scanDecimal(avgPrice)
		out = append(out, p)
	}
	return out, rows.Err()
}
