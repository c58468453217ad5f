package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("all tables exist", func(t *testing.T) {
		expectedTables := []string{
			"users",
			"user_credentials",
			"raw_transactions",
			"position_lots",
			"lot_closings",
			"order_chains",
			"order_chain_cache",
			"position_groups",
			"position_group_lots",
			"broker_positions",
		}

		for _, tableName := range expectedTables {
			var exists bool
			err := testDB.GetRawConn().QueryRow(`
				SELECT EXISTS (
					SELECT FROM information_schema.tables
					WHERE table_schema = 'public'
					AND table_name = $1
				)
			`, tableName).Scan(&exists)

			require.NoError(t, err, "failed to check table existence for %s", tableName)
			assert.True(t, exists, "table %s should exist", tableName)
		}
	})

	t.Run("every business table carries user_id", func(t *testing.T) {
		businessTables := []string{
			"raw_transactions",
			"position_lots",
			"lot_closings",
			"order_chains",
			"order_chain_cache",
			"position_groups",
			"position_group_lots",
			"broker_positions",
			"user_credentials",
		}

		for _, tableName := range businessTables {
			var exists bool
			err := testDB.GetRawConn().QueryRow(`
				SELECT EXISTS (
					SELECT FROM information_schema.columns
					WHERE table_name = $1 AND column_name = 'user_id'
				)
			`, tableName).Scan(&exists)

			require.NoError(t, err)
			assert.True(t, exists, "table %s should have a user_id column", tableName)
		}
	})

	t.Run("raw transactions are unique per user", func(t *testing.T) {
		var constraint string
		err := testDB.GetRawConn().QueryRow(`
			SELECT tc.constraint_type
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
			  ON kcu.constraint_name = tc.constraint_name AND kcu.table_name = tc.table_name
			WHERE tc.table_name = 'raw_transactions' AND tc.constraint_type = 'PRIMARY KEY'
			  AND kcu.column_name = 'user_id'
		`).Scan(&constraint)
		require.NoError(t, err)
		assert.Equal(t, "PRIMARY KEY", constraint)
	})
}
