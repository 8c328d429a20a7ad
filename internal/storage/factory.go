package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prn-tf/bugtracker/internal/config"
)

// New creates the backend selected by cfg.Backend.
func New(ctx context.Context, cfg config.UploadConfig, logger zerolog.Logger) (Backend, error) {
	switch cfg.Backend {
	case config.UploadBackendFilesystem:
		return NewFilesystemBackend(cfg.Dir, cfg.URLPrefix, cfg.MaxSize, logger)
	case config.UploadBackendS3:
		client, err := NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return NewS3Backend(client, cfg.S3.Bucket, cfg.S3.PublicBaseURL, cfg.MaxSize, logger), nil
	default:
		return nil, fmt.Errorf("unsupported upload backend: %q", cfg.Backend)
	}
}
