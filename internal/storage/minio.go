package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioBackend writes artifacts to a MinIO server.
type MinioBackend struct {
	client        *minio.Client
	bucket        string
	baseURL       string
	publicBaseURL string
}

// NewMinio creates a MinIO backend. Endpoint is host[:port], with or without a scheme.
func NewMinio(cfg Config) (*MinioBackend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	host := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	host = strings.TrimRight(host, "/")

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return &MinioBackend{
		client:        client,
		bucket:        cfg.Bucket,
		baseURL:       scheme + "://" + host,
		publicBaseURL: cfg.PublicBaseURL,
	}, nil
}

// Put uploads data under key, overwriting any existing object.
func (b *MinioBackend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func (b *MinioBackend) PublicURL(key string) string {
	if b.publicBaseURL != "" {
		return joinURL(b.publicBaseURL, b.bucket, key)
	}
	return joinURL(b.baseURL, b.bucket, key)
}

func (b *MinioBackend) Name() string { return "minio" }

func (b *MinioBackend) Close() error { return nil }
