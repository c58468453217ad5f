package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/sbj175/trade-journal/internal/models"
)

// ReplaceChains swaps the cached chain derivation results for fresh ones.
// With underlyings set, only chains of those symbols are cleared and
// rewritten (incremental mode); otherwise the user's whole cache is rebuilt.
func (db *DB) ReplaceChains(userID string, summaries []*models.ChainSummary, positions map[string][]models.ChainOrderPosition, underlyings []string) error {
	if len(underlyings) > 0 {
		if _, err := db.q.Exec(`
			DELETE FROM order_chain_cache
			WHERE user_id = $1 AND chain_id IN (
				SELECT chain_id FROM order_chains WHERE user_id = $1 AND underlying = ANY($2)
			)
		`, userID, pq.Array(underlyings)); err != nil {
			return fmt.Errorf("failed to clear chain cache: %w", err)
		}
		if _, err := db.q.Exec(
			`DELETE FROM order_chains WHERE user_id = $1 AND underlying = ANY($2)`,
			userID, pq.Array(underlyings),
		); err != nil {
			return fmt.Errorf("failed to clear chains: %w", err)
		}
	} else {
		if _, err := db.q.Exec(`DELETE FROM order_chain_cache WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("failed to clear chain cache: %w", err)
		}
		if _, err := db.q.Exec(`DELETE FROM order_chains WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("failed to clear chains: %w", err)
		}
	}

	chainQuery := `
		INSERT INTO order_chains (
			chain_id, user_id, account_number, underlying, strategy_type,
			chain_status, order_count, realized_pnl, unrealized_pnl, total_pnl,
			opening_date, closing_date, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	cacheQuery := `
		INSERT INTO order_chain_cache (chain_id, user_id, positions, updated_at)
		VALUES ($1, $2, $3, $4)
	`
	now := time.Now()

	for _, s := range summaries {
		var closingDate sql.NullTime
		if s.ClosingDate != nil {
			closingDate = sql.NullTime{Time: *s.ClosingDate, Valid: true}
		}

		_, err := db.q.Exec(chainQuery,
			s.ChainID, userID, s.AccountNumber, s.Underlying, s.StrategyLabel,
			s.Status, s.OrderCount, s.RealizedPnl, s.UnrealizedPnl, s.TotalPnl,
			s.OpeningDate, closingDate, now,
		)
		if err != nil {
			return fmt.Errorf("failed to save chain %s: %w", s.ChainID, err)
		}

		blob, err := json.Marshal(positions[s.ChainID])
		if err != nil {
			return fmt.Errorf("failed to marshal chain positions: %w", err)
		}
		if _, err := db.q.Exec(cacheQuery, s.ChainID, userID, string(blob), now); err != nil {
			return fmt.Errorf("failed to save chain cache %s: %w", s.ChainID, err)
		}
	}

	return nil
}

// GetChainSummaries retrieves cached chain summaries, optionally filtered by
// account and underlying.
func (db *DB) GetChainSummaries(userID, accountNumber, underlying string) ([]*models.ChainSummary, error) {
	query := `
		SELECT chain_id, account_number, underlying, strategy_type, chain_status,
		       order_count, realized_pnl, unrealized_pnl, total_pnl,
		       opening_date, closing_date
		FROM order_chains
		WHERE user_id = $1
		  AND ($2 = '' OR account_number = $2)
		  AND ($3 = '' OR underlying = $3)
		ORDER BY opening_date DESC, chain_id
	`
	rows, err := db.q.Query(query, userID, accountNumber, underlying)
	if err != nil {
		return nil, fmt.Errorf("failed to query chains: %w", err)
	}
	defer rows.Close()

	var out []*models.ChainSummary
	for rows.Next() {
		var s models.ChainSummary
		var strategyLabel sql.NullString
		var realized, unrealized, total sql.NullString
		var closingDate sql.NullTime

		err := rows.Scan(
			&s.ChainID, &s.AccountNumber, &s.Underlying, &strategyLabel, &s.Status,
			&s.OrderCount, &realized, &unrealized, &total,
			&s.OpeningDate, &closingDate,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chain: %w", err)
		}

		s.StrategyLabel = strategyLabel.String
		s.RealizedPnl = scanDecimal(realized)
		s.UnrealizedPnl = scanDecimal(unrealized)
		s.TotalPnl = scanDecimal(total)
		if closingDate.Valid {
			t := closingDate.Time
			s.ClosingDate = &t
		}

		out = append(out, &s)
	}
	return out, rows.Err()
}

// GetChainInfo retrieves one cached chain summary, or nil when absent.
func (db *DB) GetChainInfo(userID, chainID string) (*models.ChainSummary, error) {
	query := `
		SELECT chain_id, account_number, underlying, strategy_type, chain_status,
		       order_count, realized_pnl, unrealized_pnl, total_pnl,
		       opening_date, closing_date
		FROM order_chains
		WHERE user_id = $1 AND chain_id = $2
	`
	var s models.ChainSummary
	var strategyLabel sql.NullString
	var realized, unrealized, total sql.NullString
	var closingDate sql.NullTime

	err := db.q.QueryRow(query, userID, chainID).Scan(
		&s.ChainID, &s.AccountNumber, &s.Underlying, &strategyLabel, &s.Status,
		&s.OrderCount, &realized, &unrealized, &total,
		&s.OpeningDate, &closingDate,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chain: %w", err)
	}

	s.StrategyLabel = strategyLabel.String
	s.RealizedPnl = scanDecimal(realized)
	s.UnrealizedPnl = scanDecimal(unrealized)
	s.TotalPnl = scanDecimal(total)
	if closingDate.Valid {
		t := closingDate.Time
		s.ClosingDate = &t
	}
	return &s, nil
}

// GetChainPositions retrieves the per-order drill-down blob for a chain.
func (db *DB) GetChainPositions(userID, chainID string) ([]models.ChainOrderPosition, error) {
	var blob []byte
	err := db.q.QueryRow(
		`SELECT positions FROM order_chain_cache WHERE user_id = $1 AND chain_id = $2`,
		userID, chainID,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chain positions: %w", err)
	}

	var positions []models.ChainOrderPosition
	if err := json.Unmarshal(blob, &positions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chain positions: %w", err)
	}
	return positions, nil
}
