package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	// DefaultPresignedURLTTL is used when callers pass a non-positive ttl.
	DefaultPresignedURLTTL = time.Hour
)

// MinIOService implements StorageService using MinIO.
type MinIOService struct {
	client *minio.Client
}

// NewMinIOService creates a new MinIO storage service.
func NewMinIOService(cfg Config) (*MinIOService, error) {
	if !cfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(cfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetMinIOAccessKey(), cfg.GetMinIOSecretKey(), ""),
		Secure: cfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinIOService{client: client}, nil
}

// EnsureBucketExists creates the bucket if it doesn't exist.
func (s *MinIOService) EnsureBucketExists(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	return nil
}

// PutObject uploads reader to the exact fileKey.
func (s *MinIOService) PutObject(ctx context.Context, bucket, fileKey, contentType string, reader io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, bucket, fileKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload file %s: %w", fileKey, err)
	}
	return nil
}

// GenerateDownloadURL creates a presigned URL for downloading a file.
func (s *MinIOService) GenerateDownloadURL(ctx context.Context, bucket, fileKey string, ttl time.Duration) (*PresignedURL, error) {
	if ttl <= 0 {
		ttl = DefaultPresignedURLTTL
	}
	expiresAt := time.Now().Add(ttl)

	presignedURL, err := s.client.PresignedGetObject(ctx, bucket, fileKey, ttl, make(url.Values))
	if err != nil {
		return nil, fmt.Errorf("failed to generate presigned download URL: %w", err)
	}

	return &PresignedURL{
		URL:       presignedURL.String(),
		FileKey:   fileKey,
		ExpiresAt: expiresAt,
	}, nil
}

// DownloadFile downloads a file directly from storage.
// The caller is responsible for closing the returned io.ReadCloser.
func (s *MinIOService) DownloadFile(ctx context.Context, bucket, fileKey string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, fileKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", fileKey, err)
	}
	return obj, nil
}

// DeleteObject removes an object from storage.
func (s *MinIOService) DeleteObject(ctx context.Context, bucket, fileKey string) error {
	err := s.client.RemoveObject(ctx, bucket, fileKey, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", fileKey, err)
	}
	return nil
}

// DeleteObjects removes fileKeys through the multi-object delete API.
// The returned error is non-nil only when the batch could not be submitted at all.
func (s *MinIOService) DeleteObjects(ctx context.Context, bucket string, fileKeys []string) (map[string]error, error) {
	failures := make(map[string]error)
	if len(fileKeys) == 0 {
		return failures, nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(fileKeys))
	for _, key := range fileKeys {
		objectsCh <- minio.ObjectInfo{Key: key}
	}
	close(objectsCh)

	// The error channel is always drained so minio's forwarding goroutine can exit.
	var batchErr error
	for removeErr := range s.client.RemoveObjects(ctx, bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if removeErr.ObjectName == "" {
			if batchErr == nil {
				batchErr = fmt.Errorf("failed to delete objects: %w", removeErr.Err)
			}
			continue
		}
		failures[removeErr.ObjectName] = removeErr.Err
	}
	if batchErr != nil {
		return nil, batchErr
	}
	if err := ctx.Err(); err != nil {
		return failures, fmt.Errorf("batch delete interrupted: %w", err)
	}

	return failures, nil
}
