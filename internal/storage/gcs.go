package storage

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSBackend writes artifacts to a Google Cloud Storage bucket.
type GCSBackend struct {
	client        *storage.Client
	bucket        string
	publicBaseURL string
}

// NewGCS creates a GCS backend using the credentials file when given,
// application default credentials otherwise.
func NewGCS(ctx context.Context, cfg Config) (*GCSBackend, error) {
	opts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &GCSBackend{client: client, bucket: cfg.Bucket, publicBaseURL: cfg.PublicBaseURL}, nil
}

// Put uploads data under key, overwriting any existing object.
func (b *GCSBackend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (b *GCSBackend) PublicURL(key string) string {
	if b.publicBaseURL != "" {
		return joinURL(b.publicBaseURL, b.bucket, key)
	}
	return joinURL("https://storage.googleapis.com", b.bucket, key)
}

func (b *GCSBackend) Name() string { return "gcs" }

func (b *GCSBackend) Close() error {
	return b.client.Close()
}
