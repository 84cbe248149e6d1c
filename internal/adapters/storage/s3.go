package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"musicaldb_backend/platform/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Service implements StorageService on AWS S3. Credentials come from the
// static keys when set, otherwise from the default AWS chain.
type S3Service struct {
	client     *s3.Client
	region     string
	publicBase string
}

// NewS3Service loads AWS configuration and builds the client.
func NewS3Service(ctx context.Context, cfg config.StorageConfig) (*S3Service, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.GetStorageRegion())}
	if cfg.GetStorageAccessKey() != "" && cfg.GetStorageSecretKey() != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.GetStorageAccessKey(), cfg.GetStorageSecretKey(), ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	endpoint := cfg.GetStorageEndpoint()
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	publicBase := cfg.GetStoragePublicBaseURL()
	if publicBase == "" {
		publicBase = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.GetStorageBucket(), cfg.GetStorageRegion())
	}

	return &S3Service{client: client, region: cfg.GetStorageRegion(), publicBase: publicBase}, nil
}

// EnsureBucketExists creates the bucket in the configured region if HeadBucket reports it missing.
func (s *S3Service) EnsureBucketExists(ctx context.Context, bucket string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return &Fault{Op: "head_bucket", Key: bucket, Err: err}
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if s.region != "" && s.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		return &Fault{Op: "create_bucket", Key: bucket, Err: err}
	}
	return nil
}

// PutObject uploads reader under key and returns its public locator.
func (s *S3Service) PutObject(ctx context.Context, bucket, key string, reader io.Reader, size int64, contentType string, metadata map[string]string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          reader,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
		Metadata:      metadata,
	})
	if err != nil {
		return "", &Fault{Op: "put", Key: key, Err: err}
	}
	return joinLocator(s.publicBase, key), nil
}

// DownloadFile streams an object.
func (s *S3Service) DownloadFile(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		var missing *types.NoSuchKey
		return nil, getFault(key, err, errors.As(err, &missing))
	}
	return out.Body, nil
}

// DeleteObject removes key. S3 reports success for missing keys.
func (s *S3Service) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return &Fault{Op: "delete", Key: key, Err: err}
	}
	return nil
}

var _ StorageService = (*S3Service)(nil)
