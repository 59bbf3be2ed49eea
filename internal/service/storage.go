package service

import (
	"context"
	"fmt"
	"strings"

	config "github.com/maheshrc27/crosspost/configs"
)

// ImageStore persists an uploaded image under key and returns its public URL.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

func NewImageStore(ctx context.Context, cfg *config.Config) (ImageStore, error) {
	switch strings.ToLower(cfg.StorageDriver) {
	case "minio":
		return NewMinIOStore(cfg.MinIO)
	case "r2", "":
		return NewR2Store(ctx, cfg.R2)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func publicURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
