package models

import "time"

// DefaultUserID is used when multi-tenant auth is disabled (single-user
// deployments).
const DefaultUserID = "default"

// User is a tenant. Every business row is scoped by UserID.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserCredential stores a broker secret, symmetrically encrypted at rest.
type UserCredential struct {
	UserID          string    `json:"user_id"`
	Provider        string    `json:"provider"`
	EncryptedSecret string    `json:"-"`
	UpdatedAt       time.Time `json:"updated_at"`
}
