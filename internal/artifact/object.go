package artifact

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const objectScheme = "s3"

// ObjectStoreOptions configures an S3-compatible artifact archive.
type ObjectStoreOptions struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// ObjectStore archives artifacts in an S3-compatible bucket. Locations are
// s3://bucket/key URLs.
type ObjectStore struct {
	client *minio.Client
	bucket string
	region string
}

// NewObjectStore creates a MinIO/S3 client for the configured bucket.
func NewObjectStore(opts ObjectStoreOptions) (*ObjectStore, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("object store endpoint is required")
	}
	if opts.Bucket == "" {
		return nil, errors.New("object store bucket is required")
	}

	endpoint := opts.Endpoint
	useSSL := opts.UseSSL
	if u, err := url.Parse(opts.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: useSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &ObjectStore{client: client, bucket: opts.Bucket, region: opts.Region}, nil
}

func (s *ObjectStore) Describe() string {
	return fmt.Sprintf("%s://%s (%s)", objectScheme, s.bucket, s.client.EndpointURL().Host)
}

// EnsureBucket creates the archive bucket when it does not exist yet.
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

func (s *ObjectStore) Fetch(ctx context.Context, location, localPath string) error {
	bucket, key, err := s.parseLocation(location)
	if err != nil {
		return err
	}
	if err := s.client.FGetObject(ctx, bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("%w: %s", ErrMissing, location)
		}
		return fmt.Errorf("fetch %s: %w", location, err)
	}
	return nil
}

func (s *ObjectStore) Put(ctx context.Context, localPath, key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("artifact key must be set")
	}
	if _, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	}); err != nil {
		return "", fmt.Errorf("archive %s: %w", localPath, err)
	}
	return fmt.Sprintf("%s://%s/%s", objectScheme, s.bucket, key), nil
}

func (s *ObjectStore) Delete(ctx context.Context, location string) error {
	bucket, key, err := s.parseLocation(location)
	if err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("delete %s: %w", location, err)
	}
	return nil
}

func (s *ObjectStore) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("reach object store: %w", err)
	}
	if !exists {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}
	return nil
}

// parseLocation splits an s3://bucket/key location. Bare keys resolve
// against the configured bucket.
func (s *ObjectStore) parseLocation(location string) (string, string, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return "", "", errors.New("artifact location is empty")
	}
	if !strings.HasPrefix(location, objectScheme+"://") {
		return s.bucket, strings.TrimLeft(location, "/"), nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", "", fmt.Errorf("parse artifact location %q: %w", location, err)
	}
	key := strings.TrimLeft(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("artifact location %q must name a bucket and key", location)
	}
	return u.Host, key, nil
}
