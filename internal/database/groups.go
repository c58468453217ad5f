package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sbj175/trade-journal/internal/models"
)

// SeedPositionGroups seeds position_groups from chains when no groups exist
// yet (first run or full rebuild). Idempotent: chains already seeded are
// skipped. Lots without a chain land in per-(account, underlying)
// "Ungrouped" groups.
func (db *DB) SeedPositionGroups(userID string) (int, error) {
	created := 0

	rows, err := db.q.Query(`
		SELECT DISTINCT chain_id, account_number, underlying
		FROM position_lots
		WHERE user_id = $1 AND chain_id IS NOT NULL
		ORDER BY chain_id
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to query lot chains: %w", err)
	}

	type chainRef struct {
		chainID    string
		account    string
		underlying string
	}
	var refs []chainRef
	for rows.Next() {
		var r chainRef
		if err := rows.Scan(&r.chainID, &r.account, &r.underlying); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan lot chain: %w", err)
		}
		refs = append(refs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, ref := range refs {
		existing, err := db.groupIDBySourceChain(userID, ref.chainID)
		if err != nil {
			return created, err
		}
		if existing != "" {
			continue
		}

		info, err := db.GetChainInfo(userID, ref.chainID)
		if err != nil {
			return created, err
		}

		groupID := uuid.NewString()
		strategyLabel := ""
		var openingDate, closingDate sql.NullTime
		status := models.GroupStatusOpen
		if info != nil {
			strategyLabel = info.StrategyLabel
			openingDate = sql.NullTime{Time: info.OpeningDate, Valid: !info.OpeningDate.IsZero()}
			if info.ClosingDate != nil {
				closingDate = sql.NullTime{Time: *info.ClosingDate, Valid: true}
			}
		}

		var openCount int
		if err := db.q.QueryRow(`
			SELECT COUNT(*) FROM position_lots
			WHERE user_id = $1 AND chain_id = $2
			  AND remaining_quantity != 0 AND status != 'CLOSED'
		`, userID, ref.chainID).Scan(&openCount); err != nil {
			return created, fmt.Errorf("failed to count open lots: %w", err)
		}
		if openCount == 0 {
			status = models.GroupStatusClosed
		}

		_, err = db.q.Exec(`
			INSERT INTO position_groups (
				group_id, user_id, account_number, underlying, strategy_label,
				status, source_chain_id, opening_date, closing_date, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		`, groupID, userID, ref.account, ref.underlying, nullString(strategyLabel),
			status, ref.chainID, openingDate, closingDate)
		if err != nil {
			return created, fmt.Errorf("failed to create group for chain %s: %w", ref.chainID, err)
		}

		if _, err := db.q.Exec(`
			INSERT INTO position_group_lots (group_id, user_id, transaction_id)
			SELECT $1, user_id, transaction_id FROM position_lots
			WHERE user_id = $2 AND chain_id = $3
			ON CONFLICT DO NOTHING
		`, groupID, userID, ref.chainID); err != nil {
			return created, fmt.Errorf("failed to link lots to group: %w", err)
		}

		created++
	}

	n, err := db.seedUngroupedLots(userID)
	if err != nil {
		return created, err
	}
	created += n

	if err := db.RefreshAllGroupStatuses(userID); err != nil {
		return created, err
	}

	log.Printf("Seeded %d position groups", created)
	return created, nil
}

// seedUngroupedLots collects chainless, unlinked lots into per-(account,
// underlying) Ungrouped groups.
func (db *DB) seedUngroupedLots(userID string) (int, error) {
	rows, err := db.q.Query(`
		SELECT pl.transaction_id, pl.account_number, pl.underlying
		FROM position_lots pl
		LEFT JOIN position_group_lots pgl
		  ON pl.transaction_id = pgl.transaction_id AND pl.user_id = pgl.user_id
		WHERE pl.user_id = $1 AND pgl.transaction_id IS NULL AND pl.chain_id IS NULL
		ORDER BY pl.entry_date ASC, pl.id ASC
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to query ungrouped lots: %w", err)
	}

	type bucketKey struct {
		account    string
		underlying string
	}
	buckets := make(map[bucketKey][]string)
	var order []bucketKey
	for rows.Next() {
		var txID string
		var k bucketKey
		if err := rows.Scan(&txID, &k.account, &k.underlying); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan ungrouped lot: %w", err)
		}
		if _, ok := buckets[k]; !ok {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], txID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	created := 0
	for _, k := range order {
		groupID, err := db.findUngroupedGroup(userID, k.account, k.underlying)
		if err != nil {
			return created, err
		}
		if groupID == "" {
			groupID = uuid.NewString()
			_, err = db.q.Exec(`
				INSERT INTO position_groups (
					group_id, user_id, account_number, underlying, strategy_label,
					status, source_chain_id, opening_date, closing_date, created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, 'OPEN', NULL, NULL, NULL, NOW(), NOW())
			`, groupID, userID, k.account, k.underlying, models.UngroupedLabel)
			if err != nil {
				return created, fmt.Errorf("failed to create ungrouped group: %w", err)
			}
			created++
		}

		for _, txID := range buckets[k] {
			if err := db.linkLotToGroup(userID, groupID, txID); err != nil {
				return created, err
			}
		}
	}
	return created, nil
}

// SeedNewLotsIntoGroups assigns lots not yet in any group after a pipeline
// run. A lot with a chain joins its chain's group; failing that, an existing
// OPEN group for the same (account, underlying) — so rolled legs and new
// ACAT rounds stay inside the named strategy group instead of spawning
// duplicates; failing that, a fresh group is created for the chain. Chainless
// lots land in Ungrouped groups.
func (db *DB) SeedNewLotsIntoGroups(userID string) (int, error) {
	var total int
	if err := db.q.QueryRow(
		`SELECT COUNT(*) FROM position_groups WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count groups: %w", err)
	}
	if total == 0 {
		return db.SeedPositionGroups(userID)
	}

	unassigned, err := db.GetUnassignedLots(userID)
	if err != nil {
		return 0, err
	}
	if len(unassigned) == 0 {
		return 0, db.RefreshAllGroupStatuses(userID)
	}

	assigned := 0
	for _, lot := range unassigned {
		if lot.ChainID == "" {
			groupID, err := db.findOrCreateUngrouped(userID, lot.AccountNumber, lot.Underlying)
			if err != nil {
				return assigned, err
			}
			if err := db.linkLotToGroup(userID, groupID, lot.TransactionID); err != nil {
				return assigned, err
			}
			assigned++
			continue
		}

		groupID, err := db.groupIDBySourceChain(userID, lot.ChainID)
		if err != nil {
			return assigned, err
		}

		if groupID == "" {
			// Attach to an existing open group for the same position
			groupID, err = db.findOpenGroup(userID, lot.AccountNumber, lot.Underlying)
			if err != nil {
				return assigned, err
			}
		}

		if groupID == "" {
			info, err := db.GetChainInfo(userID, lot.ChainID)
			if err != nil {
				return assigned, err
			}
			groupID = uuid.NewString()
			strategyLabel := ""
			var openingDate, closingDate sql.NullTime
			if info != nil {
				strategyLabel = info.StrategyLabel
				openingDate = sql.NullTime{Time: info.OpeningDate, Valid: !info.OpeningDate.IsZero()}
				if info.ClosingDate != nil {
					closingDate = sql.NullTime{Time: *info.ClosingDate, Valid: true}
				}
			}
			_, err = db.q.Exec(`
				INSERT INTO position_groups (
					group_id, user_id, account_number, underlying, strategy_label,
					status, source_chain_id, opening_date, closing_date, created_at, updated_at
				) VALUES ($1, $2, $3, $4, $5, 'OPEN', $6, $7, $8, NOW(), NOW())
			`, groupID, userID, lot.AccountNumber, lot.Underlying,
				nullString(strategyLabel), lot.ChainID, openingDate, closingDate)
			if err != nil {
				return assigned, fmt.Errorf("failed to create group for chain %s: %w", lot.ChainID, err)
			}
		}

		if err := db.linkLotToGroup(userID, groupID, lot.TransactionID); err != nil {
			return assigned, err
		}
		assigned++
	}

	if err := db.RefreshAllGroupStatuses(userID); err != nil {
		return assigned, err
	}

	log.Printf("Seeded %d new lots into position groups", assigned)
	return assigned, nil
}

// ReconcileStaleGroups rebinds groups whose source_chain_id no longer exists
// in order_chains (Stage 4 renumbered) to the earliest lot's current chain,
// refreshing label and dates from that chain.
func (db *DB) ReconcileStaleGroups(userID string) (int, error) {
	rows, err := db.q.Query(`
		SELECT pg.group_id, pg.source_chain_id
		FROM position_groups pg
		LEFT JOIN order_chains oc
		  ON pg.source_chain_id = oc.chain_id AND pg.user_id = oc.user_id
		WHERE pg.user_id = $1 AND pg.source_chain_id IS NOT NULL AND oc.chain_id IS NULL
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to query stale groups: %w", err)
	}

	type staleGroup struct {
		groupID    string
		oldChainID string
	}
	var stale []staleGroup
	for rows.Next() {
		var s staleGroup
		if err := rows.Scan(&s.groupID, &s.oldChainID); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan stale group: %w", err)
		}
		stale = append(stale, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	reconciled := 0
	for _, s := range stale {
		var newChainID sql.NullString
		err := db.q.QueryRow(`
			SELECT pl.chain_id
			FROM position_group_lots pgl
			JOIN position_lots pl
			  ON pgl.transaction_id = pl.transaction_id AND pgl.user_id = pl.user_id
			WHERE pgl.user_id = $1 AND pgl.group_id = $2 AND pl.chain_id IS NOT NULL
			ORDER BY pl.entry_date ASC
			LIMIT 1
		`, userID, s.groupID).Scan(&newChainID)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return reconciled, fmt.Errorf("failed to find replacement chain: %w", err)
		}
		if !newChainID.Valid {
			continue
		}

		info, err := db.GetChainInfo(userID, newChainID.String)
		if err != nil {
			return reconciled, err
		}
		if info == nil {
			continue
		}

		var closingDate sql.NullTime
		if info.ClosingDate != nil {
			closingDate = sql.NullTime{Time: *info.ClosingDate, Valid: true}
		}
		_, err = db.q.Exec(`
			UPDATE position_groups
			SET source_chain_id = $3, underlying = $4, strategy_label = $5,
			    opening_date = $6, closing_date = $7, status = $8, updated_at = NOW()
			WHERE user_id = $1 AND group_id = $2
		`, userID, s.groupID, info.ChainID, info.Underlying,
			nullString(info.StrategyLabel), info.OpeningDate, closingDate, info.Status)
		if err != nil {
			return reconciled, fmt.Errorf("failed to rebind group %s: %w", s.groupID, err)
		}

		reconciled++
		log.Printf("Reconciled stale group %s: %s -> %s", s.groupID, s.oldChainID, info.ChainID)
	}

	return reconciled, nil
}

// RefreshGroupStatus recalculates status, opening and closing dates for one
// group. Groups whose lots were all moved elsewhere are deleted.
func (db *DB) RefreshGroupStatus(userID, groupID string) error {
	var total, open int
	if err := db.q.QueryRow(`
		SELECT COUNT(*) FROM position_group_lots WHERE user_id = $1 AND group_id = $2
	`, userID, groupID).Scan(&total); err != nil {
		return fmt.Errorf("failed to count group lots: %w", err)
	}

	if total == 0 {
		if _, err := db.q.Exec(
			`DELETE FROM position_groups WHERE user_id = $1 AND group_id = $2`,
			userID, groupID,
		); err != nil {
			return fmt.Errorf("failed to delete empty group: %w", err)
		}
		return nil
	}

	if err := db.q.QueryRow(`
		SELECT COUNT(*)
		FROM position_group_lots pgl
		JOIN position_lots pl
		  ON pgl.transaction_id = pl.transaction_id AND pgl.user_id = pl.user_id
		WHERE pgl.user_id = $1 AND pgl.group_id = $2
		  AND pl.remaining_quantity != 0 AND pl.status != 'CLOSED'
	`, userID, groupID).Scan(&open); err != nil {
		return fmt.Errorf("failed to count open group lots: %w", err)
	}

	status := models.GroupStatusClosed
	if open > 0 {
		status = models.GroupStatusOpen
	}

	var openingDate sql.NullTime
	if err := db.q.QueryRow(`
		SELECT MIN(pl.entry_date)
		FROM position_group_lots pgl
		JOIN position_lots pl
		  ON pgl.transaction_id = pl.transaction_id AND pgl.user_id = pl.user_id
		WHERE pgl.user_id = $1 AND pgl.group_id = $2
	`, userID, groupID).Scan(&openingDate); err != nil {
		return fmt.Errorf("failed to compute group opening date: %w", err)
	}

	var closingDate sql.NullTime
	if status == models.GroupStatusClosed {
		if err := db.q.QueryRow(`
			SELECT MAX(lc.closing_date)
			FROM lot_closings lc
			JOIN position_lots pl ON lc.lot_id = pl.id
			JOIN position_group_lots pgl
			  ON pl.transaction_id = pgl.transaction_id AND pl.user_id = pgl.user_id
			WHERE pgl.user_id = $1 AND pgl.group_id = $2
		`, userID, groupID).Scan(&closingDate); err != nil {
			return fmt.Errorf("failed to compute group closing date: %w", err)
		}
	}

	if _, err := db.q.Exec(`
		UPDATE position_groups
		SET status = $3, opening_date = $4, closing_date = $5, updated_at = NOW()
		WHERE user_id = $1 AND group_id = $2
	`, userID, groupID, status, openingDate, closingDate); err != nil {
		return fmt.Errorf("failed to refresh group status: %w", err)
	}
	return nil
}

// RefreshAllGroupStatuses recalculates every group for a user.
func (db *DB) RefreshAllGroupStatuses(userID string) error {
	rows, err := db.q.Query(
		`SELECT group_id FROM position_groups WHERE user_id = $1`, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if err := db.RefreshGroupStatus(userID, id); err != nil {
			return err
		}
	}
	return nil
}

// GetGroups retrieves position groups, optionally filtered by account and
// underlying.
func (db *DB) GetGroups(userID, accountNumber, underlying string) ([]*models.PositionGroup, error) {
	query := groupSelect + `
		WHERE user_id = $1
		  AND ($2 = '' OR account_number = $2)
		  AND ($3 = '' OR underlying = $3)
		ORDER BY opening_date DESC NULLS LAST, group_id
	`
	rows, err := db.q.Query(query, userID, accountNumber, underlying)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var out []*models.PositionGroup
	for rows.Next() {
		g, err := scanGroup(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GetGroup retrieves a single position group.
func (db *DB) GetGroup(userID, groupID string) (*models.PositionGroup, error) {
	query := groupSelect + ` WHERE user_id = $1 AND group_id = $2`
	g, err := scanGroup(db.q.QueryRow(query, userID, groupID).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group not found: %s", groupID)
	}
	return g, err
}

// CreateGroup inserts an empty user-created group.
func (db *DB) CreateGroup(userID string, g *models.PositionGroup) error {
	if g.GroupID == "" {
		g.GroupID = uuid.NewString()
	}
	if g.Status == "" {
		g.Status = models.GroupStatusOpen
	}
	now := time.Now()
	_, err := db.q.Exec(`
		INSERT INTO position_groups (
			group_id, user_id, account_number, underlying, strategy_label,
			status, source_chain_id, opening_date, closing_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULL, NULL, NULL, $7, $7)
	`, g.GroupID, userID, g.AccountNumber, g.Underlying,
		nullString(g.StrategyLabel), g.Status, now)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	return nil
}

// DeleteGroup removes a group only when it holds no lots.
func (db *DB) DeleteGroup(userID, groupID string) error {
	var count int
	if err := db.q.QueryRow(`
		SELECT COUNT(*) FROM position_group_lots WHERE user_id = $1 AND group_id = $2
	`, userID, groupID).Scan(&count); err != nil {
		return fmt.Errorf("failed to count group lots: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("group %s is not empty", groupID)
	}

	result, err := db.q.Exec(
		`DELETE FROM position_groups WHERE user_id = $1 AND group_id = $2`,
		userID, groupID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("group not found: %s", groupID)
	}
	return nil
}

// UpdateGroupStrategyLabel sets a user-chosen label. Later pipeline runs keep
// it, except that ReconcileStaleGroups replaces the label of a group whose
// source chain has disappeared with the label of its new source chain.
func (db *DB) UpdateGroupStrategyLabel(userID, groupID, label string) error {
	result, err := db.q.Exec(`
		UPDATE position_groups SET strategy_label = $3, updated_at = NOW()
		WHERE user_id = $1 AND group_id = $2
	`, userID, groupID, label)
	if err != nil {
		return fmt.Errorf("failed to update group label: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("group not found: %s", groupID)
	}
	return nil
}

// MoveLotsToGroup relinks lots (by transaction id) into the target group.
// The target must share (account, underlying) with every lot moved. Source
// and target group statuses are refreshed; emptied groups are deleted.
func (db *DB) MoveLotsToGroup(userID, targetGroupID string, transactionIDs []string) error {
	target, err := db.GetGroup(userID, targetGroupID)
	if err != nil {
		return err
	}

	affectedGroups := map[string]struct{}{targetGroupID: {}}

	for _, txID := range transactionIDs {
		var account, underlying string
		err := db.q.QueryRow(`
			SELECT account_number, underlying FROM position_lots
			WHERE user_id = $1 AND transaction_id = $2
		`, userID, txID).Scan(&account, &underlying)
		if err == sql.ErrNoRows {
			return fmt.Errorf("lot not found: %s", txID)
		}
		if err != nil {
			return fmt.Errorf("failed to look up lot %s: %w", txID, err)
		}
		if account != target.AccountNumber || underlying != target.Underlying {
			return fmt.Errorf("lot %s (%s/%s) does not match target group %s/%s",
				txID, account, underlying, target.AccountNumber, target.Underlying)
		}

		rows, err := db.q.Query(`
			SELECT group_id FROM position_group_lots
			WHERE user_id = $1 AND transaction_id = $2
		`, userID, txID)
		if err != nil {
			return fmt.Errorf("failed to find lot's groups: %w", err)
		}
		for rows.Next() {
			var gid string
			if err := rows.Scan(&gid); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan group id: %w", err)
			}
			affectedGroups[gid] = struct{}{}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := db.q.Exec(`
			DELETE FROM position_group_lots WHERE user_id = $1 AND transaction_id = $2
		`, userID, txID); err != nil {
			return fmt.Errorf("failed to unlink lot %s: %w", txID, err)
		}
		if err := db.linkLotToGroup(userID, targetGroupID, txID); err != nil {
			return err
		}
	}

	for gid := range affectedGroups {
		if err := db.RefreshGroupStatus(userID, gid); err != nil {
			return err
		}
	}
	return nil
}

const groupSelect = `
	SELECT group_id, account_number, underlying, strategy_label, status,
	       source_chain_id, opening_date, closing_date, created_at, updated_at
	FROM position_groups
`

func scanGroup(scan func(dest ...any) error) (*models.PositionGroup, error) {
	var g models.PositionGroup
	var strategyLabel, sourceChainID sql.NullString
	var openingDate, closingDate sql.NullTime

	err := scan(
		&g.GroupID, &g.AccountNumber, &g.Underlying, &strategyLabel, &g.Status,
		&sourceChainID, &openingDate, &closingDate, &g.CreatedAt, &g.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan group: %w", err)
	}

	g.StrategyLabel = strategyLabel.String
	g.SourceChainID = sourceChainID.String
	if openingDate.Valid {
		t := openingDate.Time
		g.OpeningDate = &t
	}
	if closingDate.Valid {
		t := closingDate.Time
		g.ClosingDate = &t
	}
	return &g, nil
}

func (db *DB) groupIDBySourceChain(userID, chainID string) (string, error) {
	var groupID string
	err := db.q.QueryRow(`
		SELECT group_id FROM position_groups
		WHERE user_id = $1 AND source_chain_id = $2
	`, userID, chainID).Scan(&groupID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find group by chain: %w", err)
	}
	return groupID, nil
}

func (db *DB) findOpenGroup(userID, account, underlying string) (string, error) {
	var groupID string
	err := db.q.QueryRow(`
		SELECT group_id FROM position_groups
		WHERE user_id = $1 AND account_number = $2 AND underlying = $3
		  AND status = 'OPEN' AND strategy_label IS DISTINCT FROM $4
		ORDER BY opening_date DESC NULLS LAST
		LIMIT 1
	`, userID, account, underlying, models.UngroupedLabel).Scan(&groupID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find open group: %w", err)
	}
	return groupID, nil
}

func (db *DB) findUngroupedGroup(userID, account, underlying string) (string, error) {
	var groupID string
	err := db.q.QueryRow(`
		SELECT group_id FROM position_groups
		WHERE user_id = $1 AND account_number = $2 AND underlying = $3
		  AND source_chain_id IS NULL AND strategy_label = $4
	`, userID, account, underlying, models.UngroupedLabel).Scan(&groupID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find ungrouped group: %w", err)
	}
	return groupID, nil
}

func (db *DB) findOrCreateUngrouped(userID, account, underlying string) (string, error) {
	groupID, err := db.findUngroupedGroup(userID, account, underlying)
	if err != nil || groupID != "" {
		return groupID, err
	}

	groupID = uuid.NewString()
	_, err = db.q.Exec(`
		INSERT INTO position_groups (
			group_id, user_id, account_number, underlying, strategy_label,
			status, source_chain_id, opening_date, closing_date, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, 'OPEN', NULL, NULL, NULL, NOW(), NOW())
	`, groupID, userID, account, underlying, models.UngroupedLabel)
	if err != nil {
		return "", fmt.Errorf("failed to create ungrouped group: %w", err)
	}
	return groupID, nil
}

func (db *DB) linkLotToGroup(userID, groupID, transactionID string) error {
	_, err := db.q.Exec(`
		INSERT INTO position_group_lots (group_id, user_id, transaction_id)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, groupID, userID, transactionID)
	if err != nil {
		return fmt.Errorf("failed to link lot to group: %w", err)
	}
	return nil
}
