package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"musicaldb_backend/platform/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOService implements StorageService using MinIO.
type MinIOService struct {
	client     *minio.Client
	publicBase string
}

// NewMinIOService creates a new MinIO storage service.
func NewMinIOService(cfg config.StorageConfig) (*MinIOService, error) {
	client, err := minio.New(cfg.GetStorageEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.GetStorageAccessKey(), cfg.GetStorageSecretKey(), ""),
		Secure: cfg.GetStorageUseSSL(),
		Region: cfg.GetStorageRegion(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	publicBase := cfg.GetStoragePublicBaseURL()
	if publicBase == "" {
		scheme := "http"
		if cfg.GetStorageUseSSL() {
			scheme = "https"
		}
		publicBase = fmt.Sprintf("%s://%s/%s", scheme, cfg.GetStorageEndpoint(), cfg.GetStorageBucket())
	}

	return &MinIOService{client: client, publicBase: publicBase}, nil
}

// EnsureBucketExists creates the bucket if it doesn't exist.
func (s *MinIOService) EnsureBucketExists(ctx context.Context, bucket string) error {
	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return &Fault{Op: "bucket_exists", Key: bucket, Err: err}
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return &Fault{Op: "make_bucket", Key: bucket, Err: err}
	}
	return nil
}

// PutObject uploads reader under key and returns its public locator.
func (s *MinIOService) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) (string, error) {
	_, err := s.client.PutObject(ctx, bucket, key, reader, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
		UserMetadata: metadata,
	})
	if err != nil {
		return "", &Fault{Op: "put", Key: key, Err: err}
	}
	return joinLocator(s.publicBase, key), nil
}

// DownloadFile streams an object.
func (s *MinIOService) DownloadFile(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, getFault(key, err, isNoSuchKey(err))
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, getFault(key, err, isNoSuchKey(err))
	}
	return obj, nil
}

// DeleteObject removes key; a missing key counts as success.
func (s *MinIOService) DeleteObject(ctx context.Context, bucket, key string) error {
	err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
	if err == nil {
		return nil
	}
	if isNoSuchKey(err) {
		return nil
	}
	return &Fault{Op: "delete", Key: key, Err: err}
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}

var _ StorageService = (*MinIOService)(nil)
