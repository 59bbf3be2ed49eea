package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	cfg "github.com/maheshrc27/crosspost/configs"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIOStore struct {
	client *minio.Client
	bucket string
	base   string
}

func NewMinIOStore(m cfg.MinIO) (*MinIOStore, error) {
	client, err := minio.New(m.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(m.AccessKey, m.SecretKey, ""),
		Secure: m.UseSSL,
		Region: m.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &MinIOStore{client: client, bucket: m.BucketName, base: m.PublicURL}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *MinIOStore) EnsureBucket(ctx context.Context, region string) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", m.bucket, err)
	}
	slog.Info("bucket created", "bucket", m.bucket)
	return nil
}

func (m *MinIOStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType: contentType,
			UserMetadata: map[string]string{
				"uploaded-at": time.Now().Format(time.RFC3339),
			},
		})
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("minio upload failed: %w", err)
	}

	return publicURL(m.base, key), nil
}
