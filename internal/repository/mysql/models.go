package mysql

import (
	"time"

	"github.com/google/uuid"

	"github.com/prn-tf/bugtracker/internal/domain"
)

// userRecord is the gorm model of the users table.
// Usernames use a binary collation so lookups and the unique index are
// case-sensitive.
type userRecord struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Username     string    `gorm:"type:varchar(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin;uniqueIndex;not null"`
	PasswordHash string    `gorm:"size:255;not null"`
	IsAdmin      bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"precision:6"`
	UpdatedAt    time.Time `gorm:"precision:6"`
}

func (userRecord) TableName() string { return "users" }

// bugRecord is the gorm model of the bugs table.
type bugRecord struct {
	ID              string    `gorm:"primaryKey;size:36"`
	Page            string    `gorm:"size:512;not null"`
	Description     string    `gorm:"type:text;not null"`
	ImageURL        string    `gorm:"size:1024;not null"`
	Status          string    `gorm:"size:16;not null;default:open"`
	CreatorUsername string    `gorm:"type:varchar(191) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin;not null"`
	CreatorID       string    `gorm:"size:36;not null"`
	Version         int64     `gorm:"not null;default:1"`
	CreatedAt       time.Time `gorm:"precision:6;index:idx_bugs_created_at,sort:desc"`
	UpdatedAt       time.Time `gorm:"precision:6"`
}

func (bugRecord) TableName() string { return "bugs" }

func userToRecord(u *domain.User) *userRecord {
	return &userRecord{
		ID:           u.ID.String(),
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		IsAdmin:      u.IsAdmin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (r *userRecord) toDomain() *domain.User {
	id, _ := uuid.Parse(r.ID)
	return &domain.User{
		ID:           id,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		IsAdmin:      r.IsAdmin,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func bugToRecord(b *domain.Bug) *bugRecord {
	return &bugRecord{
		ID:              b.ID.String(),
		Page:            b.Page,
		Description:     b.Description,
		ImageURL:        b.ImageURL,
		Status:          string(b.Status),
		CreatorUsername: b.CreatorUsername,
		CreatorID:       b.CreatorID.String(),
		Version:         b.Version,
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func (r *bugRecord) toDomain() *domain.Bug {
	id, _ := uuid.Parse(r.ID)
	creatorID, _ := uuid.Parse(r.CreatorID)
	return &domain.Bug{
		ID:              id,
		Page:            r.Page,
		Description:     r.Description,
		ImageURL:        r.ImageURL,
		Status:          domain.BugStatus(r.Status),
		CreatorUsername: r.CreatorUsername,
		CreatorID:       creatorID,
		Version:         r.Version,
		CreatedAt:       r.CreatedAt.UTC(),
		UpdatedAt:       r.UpdatedAt.UTC(),
	}
}
