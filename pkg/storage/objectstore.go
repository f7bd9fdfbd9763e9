// Package storage archives raw fetched payloads in an S3-compatible
// object store so every revision keeps verbatim proof of what was fetched.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/lexwatch/lexwatch-engine/pkg/config"
	"github.com/lexwatch/lexwatch-engine/pkg/fetch"
)

// ObjectStore reads and writes archived payloads.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// StoreError wraps an object-store failure with the operation and key.
type StoreError struct {
	Op    string // "put" or "get"
	Key   string
	Cause error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("object store %s %q: %v", e.Op, e.Key, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// MinioStore is an ObjectStore backed by MinIO (or any S3-compatible
// endpoint).
type MinioStore struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

var _ ObjectStore = (*MinioStore)(nil)

// NewMinioStore creates a MinioStore and ensures the configured bucket
// exists.
func NewMinioStore(ctx context.Context, cfg *config.ArchiveConfig, logger *zap.Logger) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("archive endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	store := &MinioStore{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.Named("storage"),
	}
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %q: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %q: %w", s.bucket, err)
	}
	s.logger.Info("created archive bucket", zap.String("bucket", s.bucket))
	return nil
}

// Put writes data under key with the given content type.
func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return &StoreError{Op: "put", Key: key, Cause: err}
	}
	s.logger.Debug("archived payload",
		zap.String("key", key),
		zap.Int("bytes", len(data)))
	return nil
}

// Get reads the object stored under key.
func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &StoreError{Op: "get", Key: key, Cause: err}
	}
	defer obj.Close()

	// GetObject is lazy: missing keys surface on read, not open.
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, &StoreError{Op: "get", Key: key, Cause: err}
	}
	return data, nil
}

// ArchiveKey builds the object key for one fetched payload. Keys group by
// source and order lexicographically by fetch time.
func ArchiveKey(sourceID uuid.UUID, fetchedAt time.Time, kind fetch.ContentKind) string {
	ext := "bin"
	switch kind {
	case fetch.ContentKindHTML:
		ext = "html"
	case fetch.ContentKindPDF:
		ext = "pdf"
	}
	return fmt.Sprintf("%s/%s.%s", sourceID, fetchedAt.UTC().Format(time.RFC3339), ext)
}
