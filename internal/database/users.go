package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sbj175/trade-journal/internal/models"
)

// EnsureDefaultUser creates the fallback single-user tenant if it does not
// exist. Used when multi-tenant auth is disabled.
func (db *DB) EnsureDefaultUser() error {
	_, err := db.q.Exec(`
		INSERT INTO users (id, display_name, created_at)
		VALUES ($1, 'Default User', NOW())
		ON CONFLICT (id) DO NOTHING
	`, models.DefaultUserID)
	if err != nil {
		return fmt.Errorf("failed to ensure default user: %w", err)
	}
	return nil
}

// CreateUser inserts a new tenant.
func (db *DB) CreateUser(u *models.User) error {
	now := time.Now()
	_, err := db.q.Exec(`
		INSERT INTO users (id, email, display_name, created_at)
		VALUES ($1, $2, $3, $4)
	`, u.ID, nullString(u.Email), nullString(u.DisplayName), now)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	u.CreatedAt = now
	return nil
}

// GetUser retrieves a tenant by id.
func (db *DB) GetUser(id string) (*models.User, error) {
	var u models.User
	var email, displayName sql.NullString
	err := db.q.QueryRow(`
		SELECT id, email, display_name, created_at FROM users WHERE id = $1
	`, id).Scan(&u.ID, &email, &displayName, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.Email = email.String
	u.DisplayName = displayName.String
	return &u, nil
}
