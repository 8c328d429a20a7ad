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

// userRepository implements repository.UserRepository for MySQL.
type userRepository struct {
	db *DB
}

var _ repository.UserRepository = (*userRepository)(nil)

// NewUserRepository creates a new MySQL user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if err := r.db.gorm.WithContext(ctx).Create(userToRecord(user)).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateUsername
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.first(ctx, "id = ?", id.String())
}

// GetByUsername retrieves a user by username.
// BINARY keeps the comparison case-sensitive under MySQL's default collation.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.first(ctx, "username = BINARY ?", username)
}

func (r *userRepository) first(ctx context.Context, cond string, arg any) (*domain.User, error) {
	var rec userRecord
	if err := r.db.gorm.WithContext(ctx).Where(cond, arg).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return rec.toDomain(), nil
}

// UpdateRole sets the admin flag of a user.
func (r *userRepository) UpdateRole(ctx context.Context, id uuid.UUID, isAdmin bool) error {
	result := r.db.gorm.WithContext(ctx).
		Model(&userRecord{}).
		Where("id = ?", id.String()).
		Updates(map[string]any{"is_admin": isAdmin, "updated_at": time.Now().UTC()})
	if result.Error != nil {
		return fmt.Errorf("failed to update user role: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// MySQL reports zero affected rows when values are unchanged.
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// List returns all users ordered by username.
func (r *userRepository) List(ctx context.Context) ([]*domain.User, error) {
	var recs []userRecord
	if err := r.db.gorm.WithContext(ctx).Order("username ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	users := make([]*domain.User, 0, len(recs))
	for i := range recs {
		users = append(users, recs[i].toDomain())
	}
	return users, nil
}
