package database

import (
	"database/sql"
	"fmt"

	"github.com/sbj175/trade-journal/internal/models"
)

// UpsertCredential stores an already-encrypted broker secret for a user and
// provider.
func (db *DB) UpsertCredential(userID, provider, encryptedSecret string) error {
	_, err := db.q.Exec(`
		INSERT INTO user_credentials (user_id, provider, encrypted_secret, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, provider)
		DO UPDATE SET encrypted_secret = EXCLUDED.encrypted_secret, updated_at = NOW()
	`, userID, provider, encryptedSecret)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// GetCredential retrieves the encrypted secret for a user and provider.
func (db *DB) GetCredential(userID, provider string) (*models.UserCredential, error) {
	var c models.UserCredential
	err := db.q.QueryRow(`
		SELECT user_id, provider, encrypted_secret, updated_at
		FROM user_credentials
		WHERE user_id = $1 AND provider = $2
	`, userID, provider).Scan(&c.UserID, &c.Provider, &c.EncryptedSecret, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("credential not found for provider %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &c, nil
}
