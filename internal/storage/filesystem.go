package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemBackend writes artifacts under a local root directory.
type FilesystemBackend struct {
	root          string
	publicBaseURL string
}

// NewFilesystem creates a backend rooted at cfg.Bucket.
func NewFilesystem(cfg Config) (*FilesystemBackend, error) {
	root, err := filepath.Abs(cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FilesystemBackend{root: root, publicBaseURL: cfg.PublicBaseURL}, nil
}

// Put writes data to root/key through a temp file so readers never see a partial artifact.
func (b *FilesystemBackend) Put(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := b.path(key)
	if !strings.HasPrefix(path, b.root+string(filepath.Separator)) {
		return fmt.Errorf("key %q resolves outside the storage root", key)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to move %s into place: %w", key, err)
	}
	return nil
}

// PublicURL serves keys relative to the public base URL when set, as file URLs otherwise.
func (b *FilesystemBackend) PublicURL(key string) string {
	if b.publicBaseURL != "" {
		return joinURL(b.publicBaseURL, "", key)
	}
	return "file://" + filepath.ToSlash(b.path(key))
}

func (b *FilesystemBackend) path(key string) string {
	return filepath.Join(b.root, filepath.FromSlash(key))
}

func (b *FilesystemBackend) Name() string { return "filesystem" }

func (b *FilesystemBackend) Close() error { return nil }
