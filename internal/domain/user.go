// Package domain contains the core business entities of the bug tracker.
// These are pure Go structs with no infrastructure dependencies, representing
// users, bug reports and the principal attached to a request.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account.
type User struct {
	// ID is the opaque unique identifier assigned by the store.
	ID uuid.UUID `json:"id"`

	// Username is the unique, case-sensitive login name.
	Username string `json:"username"`

	// PasswordHash is the bcrypt hash of the user's password.
	// This should never be exposed in responses.
	PasswordHash string `json:"-"`

	// IsAdmin indicates whether the user may triage bugs and manage roles.
	IsAdmin bool `json:"is_admin"`

	// CreatedAt is the timestamp when the user registered.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp of the last role change.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new non-admin User.
func NewUser(username, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		Username:     username,
		PasswordHash: passwordHash,
		IsAdmin:      false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Principal returns the authenticated identity derived from this user.
func (u *User) Principal() *Principal {
	return &Principal{
		ID:       u.ID,
		Username: u.Username,
		IsAdmin:  u.IsAdmin,
	}
}

// Principal is the identity attached to a request.
// A nil *Principal means the request is anonymous.
type Principal struct {
	ID       uuid.UUID
	Username string
	IsAdmin  bool
}

// IsAuthenticated reports whether p identifies a user.
func (p *Principal) IsAuthenticated() bool {
	return p != nil && p.ID != uuid.Nil
}
