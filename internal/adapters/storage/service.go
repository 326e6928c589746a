// Package storage provides a domain-agnostic interface for S3-compatible object storage.
// Recording acquisition, playback and retention all go through this adapter.
package storage

import (
	"context"
	"io"
	"time"
)

// PresignedURL contains the URL and metadata for a presigned download operation.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StorageService defines the interface for object storage operations.
type StorageService interface {
	// PutObject stores reader at exactly fileKey, overwriting any previous object.
	// Callers derive keys deterministically so concurrent writers converge on one object.
	PutObject(ctx context.Context, bucket, fileKey, contentType string, reader io.Reader, size int64) error

	// GenerateDownloadURL creates a presigned URL for downloading a file.
	GenerateDownloadURL(ctx context.Context, bucket, fileKey string, ttl time.Duration) (*PresignedURL, error)

	// DownloadFile downloads a file directly from storage.
	// The caller is responsible for closing the returned io.ReadCloser.
	DownloadFile(ctx context.Context, bucket, fileKey string) (io.ReadCloser, error)

	// DeleteObject removes an object from storage.
	DeleteObject(ctx context.Context, bucket, fileKey string) error

	// DeleteObjects removes fileKeys in one batch call and returns the per-key failures.
	// A key absent from the returned map was deleted (or never existed).
	DeleteObjects(ctx context.Context, bucket string, fileKeys []string) (map[string]error, error)

	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error
}

// Config defines the configuration interface for storage.
type Config interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	IsMinIOEnabled() bool
}
