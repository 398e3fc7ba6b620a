package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configures the object storage medium.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioMedium stores each blob as one object in a MinIO/S3 bucket.
type MinioMedium struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinioMedium connects to MinIO and ensures the bucket exists.
func NewMinioMedium(opts S3Options, prefix string) (*MinioMedium, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &MinioMedium{client: client, bucket: opts.Bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// Get downloads the object for key.
func (m *MinioMedium) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, m.mapErr(err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, m.mapErr(err)
	}
	return data, nil
}

// Set uploads the blob, replacing any previous object.
func (m *MinioMedium) Set(ctx context.Context, key string, value []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, m.objectName(key), bytes.NewReader(value), int64(len(value)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// Close is a no-op; the minio client holds no long-lived resources.
func (m *MinioMedium) Close() error {
	return nil
}

func (m *MinioMedium) objectName(key string) string {
	if m.prefix == "" {
		return key + ".json"
	}
	return m.prefix + "/" + key + ".json"
}

func (m *MinioMedium) mapErr(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrNotFound
	}
	return fmt.Errorf("get object: %w", err)
}
