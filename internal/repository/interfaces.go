// Package repository defines data access interfaces for the bug tracker.
// These interfaces abstract database operations, allowing for different implementations
// (SQLite, PostgreSQL, MySQL, in-memory for testing) while keeping the service layer clean.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/prn-tf/bugtracker/internal/domain"
)

// =============================================================================
// User Repository (Credential Store)
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create inserts a new user and assigns its ID.
	// Returns domain.ErrDuplicateUsername if the username is taken.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	// Returns domain.ErrUserNotFound if no such user exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByUsername retrieves a user by exact, case-sensitive username.
	// Returns domain.ErrUserNotFound if no such user exists.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)

	// UpdateRole sets the admin flag of a user.
	// Returns domain.ErrUserNotFound if no such user exists.
	UpdateRole(ctx context.Context, id uuid.UUID, isAdmin bool) error

	// List returns all users ordered by username.
	List(ctx context.Context) ([]*domain.User, error)
}

// =============================================================================
// Bug Repository (Bug Store)
// =============================================================================

// BugRepository defines the interface for bug data access.
type BugRepository interface {
	// Create inserts a new bug and assigns its ID.
	Create(ctx context.Context, bug *domain.Bug) error

	// GetByID retrieves a bug by ID.
	// Returns domain.ErrBugNotFound if no such bug exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Bug, error)

	// ListAll returns every bug, newest first.
	ListAll(ctx context.Context) ([]*domain.Bug, error)

	// UpdateStatus sets the status of a bug, refreshes UpdatedAt and
	// increments Version. When expectedVersion is non-zero the update only
	// applies if the stored version matches; otherwise domain.ErrStaleBug
	// is returned and nothing changes.
	// Returns domain.ErrBugNotFound if no such bug exists.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BugStatus, expectedVersion int64) (*domain.Bug, error)
}
