// Package storage uploads rendered report artifacts to object storage.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// ContentTypePDF is the content type of every report artifact.
const ContentTypePDF = "application/pdf"

// DefaultPrefix is the folder report artifacts are written under when none is configured.
const DefaultPrefix = "brand-uploaded"

// Backend writes artifacts and resolves their public URLs.
type Backend interface {
	// Put writes data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// PublicURL returns the externally reachable URL of key.
	PublicURL(key string) string
	Name() string
	Close() error
}

// Config selects and configures a backend.
type Config struct {
	Provider        string // s3, minio, gcs or filesystem
	Bucket          string // bucket name, or the root directory for filesystem
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	PublicBaseURL   string
	CredentialsFile string
}

// New creates the backend named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}
	switch strings.ToLower(cfg.Provider) {
	case "s3", "aws", "":
		return NewS3(ctx, cfg)
	case "minio":
		return NewMinio(cfg)
	case "gcs":
		return NewGCS(ctx, cfg)
	case "filesystem", "local":
		return NewFilesystem(cfg)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}

// ReportKey returns "{prefix}/{brandID}/report-{jobID}.pdf". Brand ids that could
// escape their own folder are rejected.
func ReportKey(prefix, brandID, jobID string) (string, error) {
	if err := checkSegment("brand id", brandID); err != nil {
		return "", err
	}
	if err := checkSegment("job id", jobID); err != nil {
		return "", err
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s/%s/report-%s.pdf", prefix, brandID, jobID), nil
}

func checkSegment(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", name)
	}
	if strings.ContainsAny(value, `/\`) || strings.Contains(value, "..") {
		return fmt.Errorf("%s %q must not contain path separators", name, value)
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return fmt.Errorf("%s must not contain control characters", name)
		}
	}
	return nil
}

// joinURL appends bucket and key to base, escaping each key segment.
func joinURL(base, bucket, key string) string {
	base = strings.TrimRight(base, "/")
	parts := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	if bucket == "" {
		return base + "/" + strings.Join(parts, "/")
	}
	return base + "/" + url.PathEscape(bucket) + "/" + strings.Join(parts, "/")
}
