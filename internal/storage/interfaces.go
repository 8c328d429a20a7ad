// Package storage persists screenshot attachments for bug reports.
// Attachments are content-addressed: the stored name is the SHA-256 of the
// bytes, so identical screenshots share one stored copy.
package storage

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/prn-tf/bugtracker/internal/domain"
)

// DefaultMaxSize is the largest accepted attachment (5 MiB).
const DefaultMaxSize int64 = 5 * 1024 * 1024

// Rejection messages shown to the reporter.
const (
	MsgUnsupportedType = "Only image files are allowed!"
	MsgTooLarge        = "File too large"
)

// allowedExtensions are matched case-sensitively against the original filename.
var allowedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
}

// Attachment is an uploaded file as received from the client.
type Attachment struct {
	// Filename is the client-supplied name; only its extension is used.
	Filename string

	// Size is the client-declared size, or -1 if unknown.
	Size int64

	// Body streams the file contents.
	Body io.Reader
}

// Stored describes a persisted attachment.
type Stored struct {
	// URL is recorded on the bug as its image URL.
	URL string

	// Created is false when identical content was already stored.
	// Only created attachments may be removed again.
	Created bool
}

// Backend defines the interface for attachment storage backends.
type Backend interface {
	// Save validates and persists an attachment.
	// Returns a *domain.UploadError (matching domain.ErrUnsupportedUpload)
	// if the file type or size is not acceptable.
	Save(ctx context.Context, att *Attachment) (*Stored, error)

	// Remove deletes a stored attachment by the URL Save returned.
	// Removing an unknown URL is not an error.
	Remove(ctx context.Context, url string) error
}

// Extension validates filename and returns its lowercase-only extension.
func Extension(filename string) (string, error) {
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	if !allowedExtensions[ext] {
		return "", &domain.UploadError{Reason: MsgUnsupportedType}
	}
	return ext, nil
}

// checkDeclaredSize rejects attachments whose declared size is already too big.
func checkDeclaredSize(att *Attachment, maxSize int64) error {
	if att.Size > maxSize {
		return &domain.UploadError{Reason: MsgTooLarge}
	}
	return nil
}

// limitBody caps reads at maxSize+1 so oversized bodies can be detected.
func limitBody(att *Attachment, maxSize int64) io.Reader {
	return io.LimitReader(att.Body, maxSize+1)
}
