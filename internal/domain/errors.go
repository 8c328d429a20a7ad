package domain

import (
	"errors"
	"strings"
)

// Domain errors - these represent business rule violations and the
// failure classes the request handlers translate into user-facing messages.
// They are distinct from raw infrastructure errors, which are wrapped with
// ErrStoreUnavailable before leaving the service layer.

var (
	// ===========================================
	// Authentication Errors
	// ===========================================

	// ErrInvalidCredentials indicates authentication failed.
	// Returned both for unknown usernames and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrValidation indicates user input failed validation.
	// Use errors.As with *ValidationError to read the messages.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateUsername indicates the username is already registered.
	ErrDuplicateUsername = errors.New("username already exists")

	// ===========================================
	// Lookup Errors
	// ===========================================

	// ErrNotFound indicates a bug or user id could not be resolved.
	ErrNotFound = errors.New("not found")

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = &notFoundError{entity: "user"}

	// ErrBugNotFound indicates the requested bug does not exist.
	ErrBugNotFound = &notFoundError{entity: "bug"}

	// ===========================================
	// Authorization / Mutation Errors
	// ===========================================

	// ErrPermissionDenied indicates the authorization policy rejected the action.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrStaleBug indicates the bug changed since the caller last read it.
	ErrStaleBug = errors.New("bug was modified concurrently")

	// ===========================================
	// Collaborator Errors
	// ===========================================

	// ErrUnsupportedUpload indicates the attachment was rejected (type or size).
	ErrUnsupportedUpload = errors.New("unsupported upload")

	// ErrStoreUnavailable indicates the backing store failed.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// notFoundError is a per-entity not-found error that matches ErrNotFound.
type notFoundError struct {
	entity string
}

func (e *notFoundError) Error() string {
	return e.entity + " not found"
}

// Is makes errors.Is(err, ErrNotFound) true for every entity.
func (e *notFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ValidationError carries the individual messages of a failed validation.
type ValidationError struct {
	// Messages are shown to the user as-is.
	Messages []string

	// Err optionally refines the failure (e.g. ErrDuplicateUsername).
	Err error
}

// NewValidationError creates a ValidationError from messages.
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Messages: messages}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// Is makes every ValidationError match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Unwrap returns the refining error for errors.Is/errors.As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// UploadError describes why an attachment was rejected.
type UploadError struct {
	Reason string
}

// Error implements the error interface.
func (e *UploadError) Error() string {
	return e.Reason
}

// Unwrap lets errors.Is(err, ErrUnsupportedUpload) match.
func (e *UploadError) Unwrap() error {
	return ErrUnsupportedUpload
}
