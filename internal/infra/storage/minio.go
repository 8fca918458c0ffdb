package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store keeps analysis images in a MinIO/S3 bucket.
type Store struct {
	client     *minio.Client
	bucketName string
	region     string
	publicURL  string
	logger     *slog.Logger
}

// Options for New.
type Options struct {
	Endpoint   string
	Region     string
	BucketName string
	AccessKey  string
	SecretKey  string
	UseSSL     bool
	// PublicBaseURL overrides the URL prefix handed out for uploaded objects.
	PublicBaseURL string
}

// New connects to MinIO and makes sure the bucket exists.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, opts.BucketName)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, opts.BucketName, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	base := opts.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("%s://%s/%s", cli.EndpointURL().Scheme, cli.EndpointURL().Host, opts.BucketName)
	}
	return &Store{
		client:     cli,
		bucketName: opts.BucketName,
		region:     opts.Region,
		publicURL:  strings.TrimRight(base, "/"),
		logger:     logger,
	}, nil
}

// Upload stores data under key and returns its public URL.
func (s *Store) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return PublicURL(s.publicURL, key), nil
}

// Delete removes key. Failures are logged and reported as false.
func (s *Store) Delete(ctx context.Context, key string) bool {
	if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		s.logger.Warn("storage.delete_failed", "key", key, "error", err)
		return false
	}
	return true
}

// Check implements middleware.HealthChecker.
func (s *Store) Check(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s missing", s.bucketName)
	}
	return nil
}

// PublicURL joins the public base and an object key.
func PublicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
