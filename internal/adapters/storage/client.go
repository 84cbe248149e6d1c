// Package storage provides a domain-agnostic object store client with MinIO
// and AWS S3 backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"musicaldb_backend/platform/config"
)

// ErrNotConfigured is returned by New when required settings are missing.
var ErrNotConfigured = errors.New("object storage is not configured")

// ErrObjectNotFound is wrapped by DownloadFile faults when the key does not
// exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// StorageService defines the object store operations used by the upload pipeline.
type StorageService interface {
	// PutObject writes reader under key, overwriting any existing object,
	// and returns the object's public locator. metadata is stored as user
	// metadata on the object.
	PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) (string, error)

	// DeleteObject removes key. A missing key is not an error.
	DeleteObject(ctx context.Context, bucket, key string) error

	// DownloadFile streams an object. The caller closes the reader. A
	// missing key fails with an error that matches ErrObjectNotFound.
	DownloadFile(ctx context.Context, bucket, key string) (io.ReadCloser, error)

	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error
}

// Fault marks an object store failure so callers can tell it apart from
// validation problems.
type Fault struct {
	Op  string
	Key string
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("storage %s %s: %v", f.Op, f.Key, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

func getFault(key string, err error, missing bool) error {
	if missing {
		err = fmt.Errorf("%w: %w", ErrObjectNotFound, err)
	}
	return &Fault{Op: "get", Key: key, Err: err}
}

// New builds the backend selected by cfg.
func New(ctx context.Context, cfg config.StorageConfig) (StorageService, error) {
	if !cfg.IsStorageConfigured() {
		return nil, fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(cfg.MissingStorageSettings(), ", "))
	}

	switch cfg.GetStorageProvider() {
	case config.StorageProviderS3:
		return NewS3Service(ctx, cfg)
	default:
		return NewMinIOService(cfg)
	}
}

// joinLocator appends key to base, escaping nothing: keys are built from
// UUIDs and fixed path segments only.
func joinLocator(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
