// Package service provides the business logic of the bug tracker.
package service

import (
	"errors"
	"fmt"

	"github.com/prn-tf/bugtracker/internal/domain"
)

// Registration validation messages.
const (
	MsgFillAllFields    = "Please fill in all fields"
	MsgPasswordMismatch = "Passwords do not match"
	MsgPasswordTooShort = "Password should be at least 6 characters"
	MsgUsernameTaken    = "Username already exists"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// ErrRegistrationBusy indicates another registration for the same username
// held the lock for longer than we were willing to wait.
var ErrRegistrationBusy = errors.New("registration in progress for username")

// storeError wraps an infrastructure failure so callers can match
// domain.ErrStoreUnavailable without seeing driver types.
func storeError(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

// isDomainError reports whether err already belongs to the domain taxonomy
// and should be passed through unchanged.
func isDomainError(err error) bool {
	return errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrDuplicateUsername) ||
		errors.Is(err, domain.ErrStaleBug) ||
		errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrPermissionDenied) ||
		errors.Is(err, domain.ErrUnsupportedUpload)
}
