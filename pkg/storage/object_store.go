package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Multipart part bounds. minio-go buffers one part per upload when the
// length is unknown, so the part size caps memory per Save.
const (
	minUploadPartSize = 5 << 20
	maxUploadPartSize = 16 << 20
)

// MinioConfig locates an S3 compatible bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore implements ReportStore for MinIO/S3 compatible storage.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to MinIO and ensures the bucket exists.
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

// Save streams r as a multipart upload of unknown length in parts sized
// to the upload ceiling.
func (m *MinioStore) Save(ctx context.Context, r io.Reader, limit int64) (Object, error) {
	key := NewKey()
	src := newCapReader(r, limit)
	info, err := m.client.PutObject(ctx, m.bucket, key, src, -1, minio.PutObjectOptions{
		ContentType: PDFContentType,
		PartSize:    uploadPartSize(limit),
	})
	if err != nil || src.exceeded {
		rmCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = m.client.RemoveObject(rmCtx, m.bucket, key, minio.RemoveObjectOptions{})
		cancel()
		if src.exceeded {
			return Object{}, ErrTooLarge
		}
		return Object{}, fmt.Errorf("put object: %w", err)
	}
	return Object{Key: key, Size: info.Size}, nil
}

// Open fetches a stored report.
func (m *MinioStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	return obj, nil
}

// Delete removes an object.
func (m *MinioStore) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// uploadPartSize fits a whole report of at most limit bytes into one part
// while staying inside the S3 part bounds.
func uploadPartSize(limit int64) uint64 {
	size := limit + 1
	if size < minUploadPartSize {
		size = minUploadPartSize
	}
	if size > maxUploadPartSize || limit <= 0 {
		size = maxUploadPartSize
	}
	return uint64(size)
}
