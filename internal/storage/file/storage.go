package file

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/image-tracker/internal/model"
)

const defaultURLExpiry = 15 * time.Minute

// Options configures a Storage.
type Options struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
	URLExpiry  time.Duration // lifetime of presigned display URLs
}

// objectClient is the part of *minio.Client that handles are built on.
type objectClient interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Storage keeps retrieved variants in an S3-compatible bucket (MinIO).
// Each display handle is an object plus a presigned URL to it; releasing
// the handle removes the object.
type Storage struct {
	client     objectClient
	bucketName string
	expiry     time.Duration
	strategy   retry.Strategy
}

// NewStorage creates a new Storage instance connected to the specified MinIO server.
// If the bucket does not exist, it will be created automatically.
func NewStorage(ctx context.Context, opts Options, strategy retry.Strategy) (*Storage, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, opts.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return newStorage(client, opts.BucketName, opts.URLExpiry, strategy), nil
}

func newStorage(client objectClient, bucketName string, expiry time.Duration, strategy retry.Strategy) *Storage {
	if expiry <= 0 {
		expiry = defaultURLExpiry
	}

	return &Storage{
		client:     client,
		bucketName: bucketName,
		expiry:     expiry,
		strategy:   strategy,
	}
}

// objectName places each handle under its job and variant, e.g.
// "abc123/thumbnail/5f0c...". The random suffix keeps repeated fetches apart.
func objectName(id string, kind model.VariantKind) string {
	return path.Join(id, string(kind), uuid.NewString())
}

// Create uploads payload and returns a handle with a presigned GET URL.
func (s *Storage) Create(ctx context.Context, id string, kind model.VariantKind, payload []byte, contentType string) (model.DisplayHandle, error) {
	name := objectName(id, kind)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	err := retry.Do(func() error {
		_, putErr := s.client.PutObject(ctx, s.bucketName, name, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
			ContentType: contentType,
		})
		return putErr
	}, s.strategy)
	if err != nil {
		return model.DisplayHandle{}, fmt.Errorf("failed to save file: %w", err)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucketName, name, s.expiry, url.Values{})
	if err != nil {
		_ = s.client.RemoveObject(ctx, s.bucketName, name, minio.RemoveObjectOptions{})
		return model.DisplayHandle{}, fmt.Errorf("failed to presign url: %w", err)
	}

	return model.DisplayHandle{Key: name, URL: u.String()}, nil
}

// Release removes the object behind the handle.
// Removing an object that is already gone succeeds.
func (s *Storage) Release(ctx context.Context, h model.DisplayHandle) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, h.Key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove file: %w", err)
	}

	return nil
}
