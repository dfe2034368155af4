package auth

import (
	"context"
	"time"
)

const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// User is the locally provisioned account row. Subject is the external
// identity-provider subject; for self-registered accounts it equals ID.
type User struct {
	ID           string    `json:"id"`
	Subject      string    `json:"-"`
	Email        string    `json:"email"`
	Nama         string    `json:"nama"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Identity derives the per-request identity from the stored row.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Email: u.Email, Role: u.Role}
}

// APIKey grants credential-less clients access on behalf of a user.
// Only the SHA-256 hash of the key material is stored.
type APIKey struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Nama      string    `json:"nama"`
	KeyHash   string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserStore persists local user accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindBySubject(ctx context.Context, subject string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]User, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateRole(ctx context.Context, id string, role Role) error
}

// APIKeyStore persists API keys.
type APIKeyStore interface {
	Create(ctx context.Context, key *APIKey) error
	FindByHash(ctx context.Context, keyHash string) (*APIKey, error)
	ListByUser(ctx context.Context, userID string) ([]APIKey, error)
}
