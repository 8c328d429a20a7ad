package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/repository"
)

// bugRepository implements repository.BugRepository for SQLite.
type bugRepository struct {
	db *DB
}

var _ repository.BugRepository = (*bugRepository)(nil)

// NewBugRepository creates a new SQLite bug repository.
func NewBugRepository(db *DB) repository.BugRepository {
	return &bugRepository{db: db}
}

const bugColumns = `id, page, description, image_url, status, creator_username, creator_id, version, created_at, updated_at`

// Create creates a new bug.
func (r *bugRepository) Create(ctx context.Context, bug *domain.Bug) error {
	if bug.ID == uuid.Nil {
		bug.ID = uuid.New()
	}
	if bug.Version == 0 {
		bug.Version = 1
	}

	query := `
		INSERT INTO bugs (` + bugColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		bug.ID.String(),
		bug.Page,
		bug.Description,
		bug.ImageURL,
		string(bug.Status),
		bug.CreatorUsername,
		bug.CreatorID.String(),
		bug.Version,
		formatTime(bug.CreatedAt),
		formatTime(bug.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create bug: %w", err)
	}
	return nil
}

// GetByID retrieves a bug by ID.
func (r *bugRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bug, error) {
	query := `SELECT ` + bugColumns + ` FROM bugs WHERE id = ?`

	bug, err := scanBug(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrBugNotFound
		}
		return nil, fmt.Errorf("failed to get bug by ID: %w", err)
	}
	return bug, nil
}

// ListAll returns all bugs, newest first.
func (r *bugRepository) ListAll(ctx context.Context) ([]*domain.Bug, error) {
	query := `SELECT ` + bugColumns + ` FROM bugs ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bugs: %w", err)
	}
	defer rows.Close()

	var bugs []*domain.Bug
	for rows.Next() {
		bug, err := scanBug(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bug: %w", err)
		}
		bugs = append(bugs, bug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bugs: %w", err)
	}
	return bugs, nil
}

// UpdateStatus sets the status of a bug.
func (r *bugRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BugStatus, expectedVersion int64) (*domain.Bug, error) {
	query := `
		UPDATE bugs
		SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND (? = 0 OR version = ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		string(status),
		formatTime(time.Now()),
		id.String(),
		expectedVersion,
		expectedVersion,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update bug status: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		// Distinguish a missing bug from a version conflict.
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrStaleBug
	}

	return r.GetByID(ctx, id)
}

func scanBug(row rowScanner) (*domain.Bug, error) {
	var (
		bug                  domain.Bug
		id, creatorID        string
		status               string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&id,
		&bug.Page,
		&bug.Description,
		&bug.ImageURL,
		&status,
		&bug.CreatorUsername,
		&creatorID,
		&bug.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid bug id %q: %w", id, err)
	}
	bug.ID = parsed
	bug.CreatorID, _ = uuid.Parse(creatorID)
	bug.Status = domain.BugStatus(status)
	bug.CreatedAt = parseTime(createdAt)
	bug.UpdatedAt = parseTime(updatedAt)
	return &bug, nil
}
