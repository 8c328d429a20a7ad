package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/pkg/crypto"
)

// FilesystemBackend stores attachments under a local directory that the
// HTTP server exposes at URLPrefix.
type FilesystemBackend struct {
	root      string
	urlPrefix string
	maxSize   int64
	paths     PathConfig
	logger    zerolog.Logger
}

// NewFilesystemBackend creates root if needed and returns a backend serving
// files under urlPrefix (e.g. "/uploads").
func NewFilesystemBackend(root, urlPrefix string, maxSize int64, logger zerolog.Logger) (*FilesystemBackend, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if err := os.MkdirAll(filepath.Join(root, ".tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &FilesystemBackend{
		root:      root,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		maxSize:   maxSize,
		paths:     DefaultPathConfig(),
		logger:    logger.With().Str("backend", "filesystem").Logger(),
	}, nil
}

// Root returns the directory attachments are stored in.
func (b *FilesystemBackend) Root() string {
	return b.root
}

// URLPrefix returns the public path prefix of stored attachments.
func (b *FilesystemBackend) URLPrefix() string {
	return b.urlPrefix
}

// Save streams the attachment to a temp file while hashing it, then moves it
// to its content-addressed location.
func (b *FilesystemBackend) Save(ctx context.Context, att *Attachment) (*Stored, error) {
	ext, err := Extension(att.Filename)
	if err != nil {
		return nil, err
	}
	if err := checkDeclaredSize(att, b.maxSize); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Join(b.root, ".tmp"), "upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	hr := crypto.NewHashReader(limitBody(att, b.maxSize))
	_, copyErr := io.Copy(tmp, hr)
	closeErr := tmp.Close()
	if copyErr != nil {
		return nil, fmt.Errorf("failed to write upload: %w", copyErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to write upload: %w", closeErr)
	}
	if hr.Size() > b.maxSize {
		return nil, &domain.UploadError{Reason: MsgTooLarge}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := ComputeKey(b.paths, hr.SHA256(), ext)
	dest := filepath.Join(b.root, filepath.FromSlash(key))
	stored := &Stored{URL: b.urlPrefix + "/" + key}

	if _, err := os.Stat(dest); err == nil {
		b.logger.Debug().Str("key", key).Msg("attachment already stored")
		return stored, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create shard directory: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	committed = true
	stored.Created = true

	b.logger.Debug().Str("key", key).Int64("size", hr.Size()).Msg("attachment stored")
	return stored, nil
}

// Remove deletes the file behind url.
func (b *FilesystemBackend) Remove(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, b.urlPrefix+"/")
	if !ok {
		return nil
	}
	key = path.Clean(key)
	if strings.HasPrefix(key, "..") || path.IsAbs(key) {
		return nil
	}
	name := path.Base(key)
	if !crypto.ValidateSHA256(strings.TrimSuffix(name, path.Ext(name))) {
		return nil
	}

	err := os.Remove(filepath.Join(b.root, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	return nil
}

// Ensure FilesystemBackend implements Backend.
var _ Backend = (*FilesystemBackend)(nil)
