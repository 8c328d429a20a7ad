package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/repository"
)

// bugRepository implements repository.BugRepository for PostgreSQL.
type bugRepository struct {
	db *DB
}

var _ repository.BugRepository = (*bugRepository)(nil)

// NewBugRepository creates a new PostgreSQL bug repository.
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		bug.ID,
		bug.Page,
		bug.Description,
		bug.ImageURL,
		string(bug.Status),
		bug.CreatorUsername,
		bug.CreatorID,
		bug.Version,
		bug.CreatedAt,
		bug.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create bug: %w", err)
	}
	return nil
}

// GetByID retrieves a bug by ID.
func (r *bugRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bug, error) {
	query := `SELECT ` + bugColumns + ` FROM bugs WHERE id = $1`

	bug, err := scanBug(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBugNotFound
		}
		return nil, fmt.Errorf("failed to get bug by ID: %w", err)
	}
	return bug, nil
}

// ListAll returns all bugs, newest first.
func (r *bugRepository) ListAll(ctx context.Context) ([]*domain.Bug, error) {
	query := `SELECT ` + bugColumns + ` FROM bugs ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Pool.Query(ctx, query)
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

// UpdateStatus sets the status of a bug in a single statement and returns the new row.
func (r *bugRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BugStatus, expectedVersion int64) (*domain.Bug, error) {
	query := `
		UPDATE bugs
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND ($3::bigint = 0 OR version = $3)
		RETURNING ` + bugColumns

	bug, err := scanBug(r.db.Pool.QueryRow(ctx, query, string(status), id, expectedVersion))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to update bug status: %w", err)
		}
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrStaleBug
	}
	return bug, nil
}

func scanBug(row pgx.Row) (*domain.Bug, error) {
	var (
		bug    domain.Bug
		status string
	)
	err := row.Scan(
		&bug.ID,
		&bug.Page,
		&bug.Description,
		&bug.ImageURL,
		&status,
		&bug.CreatorUsername,
		&bug.CreatorID,
		&bug.Version,
		&bug.CreatedAt,
		&bug.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	bug.Status = domain.BugStatus(status)
	return &bug, nil
}
