package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/prn-tf/bugtracker/internal/config"
	"github.com/prn-tf/bugtracker/internal/domain"
	"github.com/prn-tf/bugtracker/internal/pkg/crypto"
)

// keyPrefix namespaces attachments inside the bucket.
const keyPrefix = "uploads/"

// S3API is the subset of the S3 client used by S3Backend.
type S3API interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Backend stores attachments in an S3-compatible bucket.
type S3Backend struct {
	client        S3API
	bucket        string
	publicBaseURL string
	maxSize       int64
	paths         PathConfig
	logger        zerolog.Logger
}

// NewS3Client builds an S3 client from configuration.
// Static credentials are used when configured, otherwise the default AWS chain.
func NewS3Client(ctx context.Context, cfg config.S3UploadConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// NewS3Backend creates an S3 backend. Stored URLs are publicBaseURL + "/" + key.
func NewS3Backend(client S3API, bucket, publicBaseURL string, maxSize int64, logger zerolog.Logger) *S3Backend {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &S3Backend{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		maxSize:       maxSize,
		paths:         DefaultPathConfig(),
		logger:        logger.With().Str("backend", "s3").Str("bucket", bucket).Logger(),
	}
}

// Save buffers the attachment (bounded by maxSize), then uploads it unless
// an object with the same content already exists.
func (b *S3Backend) Save(ctx context.Context, att *Attachment) (*Stored, error) {
	ext, err := Extension(att.Filename)
	if err != nil {
		return nil, err
	}
	if err := checkDeclaredSize(att, b.maxSize); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(limitBody(att, b.maxSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > b.maxSize {
		return nil, &domain.UploadError{Reason: MsgTooLarge}
	}

	key := keyPrefix + ComputeKey(b.paths, crypto.ComputeSHA256(data), ext)
	stored := &Stored{URL: b.publicBaseURL + "/" + key}

	_, err = b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return stored, nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return nil, fmt.Errorf("failed to check upload: %w", err)
	}

	contentType := mime.TypeByExtension("." + ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	stored.Created = true

	b.logger.Debug().Str("key", key).Int("size", len(data)).Msg("attachment stored")
	return stored, nil
}

// Remove deletes the object behind url.
func (b *S3Backend) Remove(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, b.publicBaseURL+"/")
	if !ok || !strings.HasPrefix(key, keyPrefix) {
		return nil
	}

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	return nil
}

// Ensure S3Backend implements Backend.
var _ Backend = (*S3Backend)(nil)
