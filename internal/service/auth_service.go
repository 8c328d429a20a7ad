package service

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/lock"
	"github.com/prn-tf/bugtracker/internal/metrics"
	"github.com/prn-tf/bugtracker/internal/pkg/crypto"
	"github.com/prn-tf/bugtracker/internal/repository"
)

// AuthService verifies credentials, registers accounts and resolves
// session user ids back into principals.
type AuthService struct {
	userRepo   repository.UserRepository
	locker     lock.Locker
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	bcryptCost int
}

// AuthServiceConfig contains the optional collaborators of AuthService.
type AuthServiceConfig struct {
	// Locker serializes registrations per username. Nil disables locking.
	Locker lock.Locker

	// Metrics may be nil.
	Metrics *metrics.Metrics

	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repository.UserRepository, cfg AuthServiceConfig, logger zerolog.Logger) *AuthService {
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &AuthService{
		userRepo:   userRepo,
		locker:     cfg.Locker,
		metrics:    cfg.Metrics,
		logger:     logger.With().Str("service", "auth").Logger(),
		bcryptCost: cost,
	}
}

// RegisterInput contains the fields of the registration form.
type RegisterInput struct {
	Username  string
	Password  string
	Password2 string
}

// Validate collects every problem with the form, not just the first.
func (in RegisterInput) Validate() error {
	var msgs []string
	if in.Username == "" || in.Password == "" || in.Password2 == "" {
		msgs = append(msgs, MsgFillAllFields)
	}
	if in.Password != in.Password2 {
		msgs = append(msgs, MsgPasswordMismatch)
	}
	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		msgs = append(msgs, MsgPasswordTooShort)
	}
	if len(msgs) > 0 {
		return domain.NewValidationError(msgs...)
	}
	return nil
}

// Register creates a new non-admin user.
//
// Returns a *domain.ValidationError for form problems and for a taken
// username (wrapping domain.ErrDuplicateUsername), or an error matching
// domain.ErrStoreUnavailable when the store fails.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if err := input.Validate(); err != nil {
		s.metrics.RecordRegistration("invalid")
		return nil, err
	}

	hash, err := crypto.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		s.metrics.RecordRegistration("error")
		return nil, storeError(err)
	}
	user := domain.NewUser(input.Username, hash)

	create := func(ctx context.Context) error {
		_, err := s.userRepo.GetByUsername(ctx, input.Username)
		switch {
		case err == nil:
			return domain.ErrDuplicateUsername
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		return s.userRepo.Create(ctx, user)
	}

	if s.locker != nil {
		err = lock.WithLock(ctx, s.locker, lock.Keys.Registration(input.Username), lock.DefaultOptions, create)
		if errors.Is(err, lock.ErrNotAcquired) {
			err = ErrRegistrationBusy
		}
	} else {
		err = create(ctx)
	}

	if err != nil {
		if errors.Is(err, domain.ErrDuplicateUsername) {
			s.metrics.RecordRegistration("duplicate")
			return nil, &domain.ValidationError{
				Messages: []string{MsgUsernameTaken},
				Err:      domain.ErrDuplicateUsername,
			}
		}
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to register user")
		s.metrics.RecordRegistration("error")
		return nil, storeError(err)
	}

	s.metrics.RecordRegistration("success")
	s.logger.Info().
		Str("user_id", user.ID.String()).
		Str("username", user.Username).
		Msg("user registered")

	return user, nil
}

// Authenticate verifies credentials and returns the principal.
// Unknown usernames and wrong passwords both return domain.ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*domain.Principal, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Error().Err(err).Msg("failed to look up user during authentication")
			s.metrics.RecordLogin(false)
			return nil, storeError(err)
		}
		s.logger.Debug().Str("username", username).Msg("authentication failed")
		s.metrics.RecordLogin(false)
		return nil, domain.ErrInvalidCredentials
	}

	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		s.logger.Debug().Str("username", username).Msg("authentication failed")
		s.metrics.RecordLogin(false)
		return nil, domain.ErrInvalidCredentials
	}

	s.metrics.RecordLogin(true)
	s.logger.Info().
		Str("user_id", user.ID.String()).
		Str("username", user.Username).
		Msg("user authenticated")

	return user.Principal(), nil
}

// ResolvePrincipal re-fetches the user bound to a session.
// A user that no longer exists yields (nil, nil): the request is anonymous.
func (s *AuthService) ResolvePrincipal(ctx context.Context, userID uuid.UUID) (*domain.Principal, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		s.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to resolve session user")
		return nil, storeError(err)
	}
	return user.Principal(), nil
}
