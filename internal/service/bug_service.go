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
	"github.com/prn-tf/bugtracker/internal/storage"
)

// BugService handles bug reporting and triage.
type BugService struct {
	bugRepo repository.BugRepository
	uploads storage.Backend
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewBugService creates a new BugService. m may be nil.
func NewBugService(bugRepo repository.BugRepository, uploads storage.Backend, m *metrics.Metrics, logger zerolog.Logger) *BugService {
	return &BugService{
		bugRepo: bugRepo,
		uploads: uploads,
		metrics: m,
		logger:  logger.With().Str("service", "bug").Logger(),
	}
}

// CreateBugInput contains the data of a new report.
type CreateBugInput struct {
	Page        string
	Description string

	// Image is the optional screenshot.
	Image *storage.Attachment
}

// Create stores a new open bug owned by the principal.
// Nothing is inserted when validation or the upload fails.
func (s *BugService) Create(ctx context.Context, p *domain.Principal, input CreateBugInput) (*domain.Bug, error) {
	if err := authorize(s.metrics, p, policy.ActionCreateBug, policy.Resource{}); err != nil {
		return nil, err
	}

	bug := domain.NewBug(input.Page, input.Description, "", p)
	if err := bug.Validate(); err != nil {
		return nil, err
	}

	var stored *storage.Stored
	if input.Image != nil {
		var err error
		stored, err = s.uploads.Save(ctx, input.Image)
		if err != nil {
			if errors.Is(err, domain.ErrUnsupportedUpload) {
				s.metrics.RecordUploadRejected()
				s.logger.Debug().Err(err).Str("filename", input.Image.Filename).Msg("attachment rejected")
				return nil, err
			}
			s.logger.Error().Err(err).Msg("failed to store attachment")
			return nil, storeError(err)
		}
		bug.ImageURL = stored.URL
	}

	if err := s.bugRepo.Create(ctx, bug); err != nil {
		s.logger.Error().Err(err).Str("page", bug.Page).Msg("failed to create bug")
		if stored != nil && stored.Created {
			if rmErr := s.uploads.Remove(context.WithoutCancel(ctx), stored.URL); rmErr != nil {
				s.logger.Warn().Err(rmErr).Str("url", stored.URL).Msg("failed to remove orphaned attachment")
			}
		}
		return nil, storeError(err)
	}

	s.metrics.RecordBugCreated()
	s.logger.Info().
		Str("bug_id", bug.ID.String()).
		Str("creator", bug.CreatorUsername).
		Str("page", bug.Page).
		Msg("bug reported")

	return bug, nil
}

// List returns every bug, newest first.
func (s *BugService) List(ctx context.Context, p *domain.Principal) ([]*domain.Bug, error) {
	if err := authorize(s.metrics, p, policy.ActionViewDashboard, policy.Resource{}); err != nil {
		return nil, err
	}
	bugs, err := s.bugRepo.ListAll(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list bugs")
		return nil, storeError(err)
	}
	return bugs, nil
}

// Get returns a single bug.
func (s *BugService) Get(ctx context.Context, p *domain.Principal, id uuid.UUID) (*domain.Bug, error) {
	if err := authorize(s.metrics, p, policy.ActionViewBug, policy.Resource{}); err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}

func (s *BugService) get(ctx context.Context, id uuid.UUID) (*domain.Bug, error) {
	bug, err := s.bugRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrBugNotFound
		}
		s.logger.Error().Err(err).Str("bug_id", id.String()).Msg("failed to get bug")
		return nil, storeError(err)
	}
	return bug, nil
}

// UpdateStatusInput contains a requested status change.
type UpdateStatusInput struct {
	BugID  uuid.UUID
	Status domain.BugStatus

	// ExpectedVersion guards against concurrent edits. Zero means unconditional.
	ExpectedVersion int64
}

// UpdateStatus moves a bug to a new status.
//
// Returns domain.ErrBugNotFound, domain.ErrPermissionDenied (invalid statuses
// are denied too), domain.ErrStaleBug, or an error matching
// domain.ErrStoreUnavailable. None of these mutate the bug.
func (s *BugService) UpdateStatus(ctx context.Context, p *domain.Principal, input UpdateStatusInput) (*domain.Bug, error) {
	if !p.IsAuthenticated() {
		return nil, domain.ErrPermissionDenied
	}

	bug, err := s.get(ctx, input.BugID)
	if err != nil {
		return nil, err
	}

	res := policy.Resource{Bug: bug, Status: input.Status}
	if err := authorize(s.metrics, p, policy.ActionSetBugStatus, res); err != nil {
		s.logger.Info().
			Str("bug_id", bug.ID.String()).
			Str("username", p.Username).
			Str("status", input.Status.String()).
			Msg("status change denied")
		return nil, err
	}

	updated, err := s.bugRepo.UpdateStatus(ctx, bug.ID, input.Status, input.ExpectedVersion)
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("bug_id", bug.ID.String()).Msg("failed to update bug status")
		return nil, storeError(err)
	}

	s.metrics.RecordStatusChange(input.Status.String())
	s.logger.Info().
		Str("bug_id", updated.ID.String()).
		Str("username", p.Username).
		Str("from", bug.Status.String()).
		Str("to", updated.Status.String()).
		Msg("bug status updated")

	return updated, nil
}
