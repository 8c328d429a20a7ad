package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlaceholderImageURL is recorded when a bug is reported without a screenshot.
const PlaceholderImageURL = "/images/placeholder.png"

// BugStatus represents the triage state of a bug report.
type BugStatus string

const (
	// StatusOpen is the initial state of every report.
	StatusOpen BugStatus = "open"

	// StatusInProgress means someone is working on the report.
	StatusInProgress BugStatus = "in-progress"

	// StatusResolved means the reported problem has been fixed.
	StatusResolved BugStatus = "resolved"

	// StatusCancelled means the report was withdrawn or rejected.
	StatusCancelled BugStatus = "cancelled"
)

// AllStatuses lists every status in display order.
var AllStatuses = []BugStatus{StatusOpen, StatusInProgress, StatusResolved, StatusCancelled}

// statusTransitions is the transition table for BugStatus.
// Every state may move to every other state; who may perform a transition
// is decided by the authorization policy, not by this table.
var statusTransitions = map[BugStatus][]BugStatus{
	StatusOpen:       AllStatuses,
	StatusInProgress: AllStatuses,
	StatusResolved:   AllStatuses,
	StatusCancelled:  AllStatuses,
}

// ParseBugStatus converts s into a BugStatus.
func ParseBugStatus(s string) (BugStatus, error) {
	status := BugStatus(strings.TrimSpace(s))
	if !status.IsValid() {
		return "", NewValidationError("Invalid bug status: " + s)
	}
	return status, nil
}

// IsValid reports whether s is one of the four known statuses.
func (s BugStatus) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransitionTo reports whether the transition table allows s -> next.
func (s BugStatus) CanTransitionTo(next BugStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (s BugStatus) String() string {
	return string(s)
}

// Bug represents a reported defect.
type Bug struct {
	// ID is the opaque unique identifier assigned by the store.
	ID uuid.UUID `json:"id"`

	// Page identifies the reported page or feature.
	Page string `json:"page"`

	// Description is the free-text report body.
	Description string `json:"description"`

	// ImageURL references the attached screenshot, or PlaceholderImageURL.
	ImageURL string `json:"image_url"`

	// Status is the current triage state.
	Status BugStatus `json:"status"`

	// CreatorUsername and CreatorID record who reported the bug.
	// They are a denormalized ownership record, not a live relation.
	CreatorUsername string    `json:"creator"`
	CreatorID       uuid.UUID `json:"creator_id"`

	// Version starts at 1 and is incremented on every mutation.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBug creates an open bug owned by creator.
// An empty imageURL is replaced by PlaceholderImageURL.
func NewBug(page, description, imageURL string, creator *Principal) *Bug {
	if imageURL == "" {
		imageURL = PlaceholderImageURL
	}
	now := time.Now().UTC()
	return &Bug{
		Page:            strings.TrimSpace(page),
		Description:     description,
		ImageURL:        imageURL,
		Status:          StatusOpen,
		CreatorUsername: creator.Username,
		CreatorID:       creator.ID,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Validate checks the required fields of a new report.
func (b *Bug) Validate() error {
	var msgs []string
	if strings.TrimSpace(b.Page) == "" {
		msgs = append(msgs, "Page is required")
	}
	if strings.TrimSpace(b.Description) == "" {
		msgs = append(msgs, "Description is required")
	}
	if len(msgs) > 0 {
		return NewValidationError(msgs...)
	}
	return nil
}

// IsOwnedBy reports whether p is the recorded creator of the bug.
func (b *Bug) IsOwnedBy(p *Principal) bool {
	return p != nil && b.CreatorUsername == p.Username
}
