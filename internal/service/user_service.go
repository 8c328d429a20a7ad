package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/metrics"
	"github.com/prn-tf/bugtracker/internal/policy"
	"github.com/prn-tf/bugtracker/internal/repository"
)

// UserService handles user management operations for administrators.
type UserService struct {
	userRepo repository.UserRepository
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewUserService creates a new UserService. m may be nil.
func NewUserService(userRepo repository.UserRepository, m *metrics.Metrics, logger zerolog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		metrics:  m,
		logger:   logger.With().Str("service", "user").Logger(),
	}
}

// List returns all users. Admin only.
func (s *UserService) List(ctx context.Context, p *domain.Principal) ([]*domain.User, error) {
	if err := authorize(s.metrics, p, policy.ActionViewAdminDashboard, policy.Resource{}); err != nil {
		return nil, err
	}
	users, err := s.userRepo.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, storeError(err)
	}
	return users, nil
}

// SetAdmin grants or revokes admin on another user.
// Changing one's own role is always denied.
func (s *UserService) SetAdmin(ctx context.Context, p *domain.Principal, targetID uuid.UUID, isAdmin bool) error {
	res := policy.Resource{TargetUserID: targetID}
	if err := authorize(s.metrics, p, policy.ActionSetUserRole, res); err != nil {
		return err
	}

	if err := s.userRepo.UpdateRole(ctx, targetID, isAdmin); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("user_id", targetID.String()).Msg("failed to update user role")
		return storeError(err)
	}

	s.metrics.RecordRoleChange()
	s.logger.Info().
		Str("user_id", targetID.String()).
		Str("by", p.Username).
		Bool("is_admin", isAdmin).
		Msg("user role updated")

	return nil
}
