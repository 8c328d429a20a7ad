package mysql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/repository"
)

// bugRepository implements repository.BugRepository for MySQL.
type bugRepository struct {
	db *DB
}

var _ repository.BugRepository = (*bugRepository)(nil)

// NewBugRepository creates a new MySQL bug repository.
func NewBugRepository(db *DB) repository.BugRepository {
	return &bugRepository{db: db}
}

// Create creates a new bug.
func (r *bugRepository) Create(ctx context.Context, bug *domain.Bug) error {
	if bug.ID == uuid.Nil {
		bug.ID = uuid.New()
	}
	if bug.Version == 0 {
		bug.Version = 1
	}
	if err := r.db.gorm.WithContext(ctx).Create(bugToRecord(bug)).Error; err != nil {
		return fmt.Errorf("failed to create bug: %w", err)
	}
	return nil
}

// GetByID retrieves a bug by ID.
func (r *bugRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bug, error) {
	var rec bugRecord
	if err := r.db.gorm.WithContext(ctx).Where("id = ?", id.String()).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBugNotFound
		}
		return nil, fmt.Errorf("failed to get bug by ID: %w", err)
	}
	return rec.toDomain(), nil
}

// ListAll returns all bugs, newest first.
func (r *bugRepository) ListAll(ctx context.Context) ([]*domain.Bug, error) {
	var recs []bugRecord
	if err := r.db.gorm.WithContext(ctx).Order("created_at DESC, id DESC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list bugs: %w", err)
	}
	bugs := make([]*domain.Bug, 0, len(recs))
	for i := range recs {
		bugs = append(bugs, recs[i].toDomain())
	}
	return bugs, nil
}

// UpdateStatus sets the status of a bug.
func (r *bugRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.BugStatus, expectedVersion int64) (*domain.Bug, error) {
	tx := r.db.gorm.WithContext(ctx).Model(&bugRecord{}).Where("id = ?", id.String())
	if expectedVersion != 0 {
		tx = tx.Where("version = ?", expectedVersion)
	}

	result := tx.Updates(map[string]any{
		"status":     string(status),
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return nil, fmt.Errorf("failed to update bug status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrStaleBug
	}
	return r.GetByID(ctx, id)
}
