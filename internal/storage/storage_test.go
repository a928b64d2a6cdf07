package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportKey(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		brandID string
		jobID   string
		want    string
		wantErr bool
	}{
		{name: "default prefix", brandID: "brand-1", jobID: "report_1_abc", want: "brand-uploaded/brand-1/report-report_1_abc.pdf"},
		{name: "custom prefix trimmed", prefix: "/reports/", brandID: "b", jobID: "j", want: "reports/b/report-j.pdf"},
		{name: "nested prefix", prefix: "Creatives/brand-uploaded", brandID: "b", jobID: "j", want: "Creatives/brand-uploaded/b/report-j.pdf"},
		{name: "empty brand", brandID: "", jobID: "j", wantErr: true},
		{name: "blank brand", brandID: "  ", jobID: "j", wantErr: true},
		{name: "slash in brand", brandID: "a/b", jobID: "j", wantErr: true},
		{name: "backslash in brand", brandID: `a\b`, jobID: "j", wantErr: true},
		{name: "traversal in brand", brandID: "..", jobID: "j", wantErr: true},
		{name: "control char in brand", brandID: "a\nb", jobID: "j", wantErr: true},
		{name: "slash in job id", brandID: "b", jobID: "../x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReportKey(tt.prefix, tt.brandID, tt.jobID)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t,
		"https://x.supabase.co/storage/v1/object/public/Creatives/brand-uploaded/b%201/report-j.pdf",
		joinURL("https://x.supabase.co/storage/v1/object/public/", "Creatives", "brand-uploaded/b 1/report-j.pdf"))
	assert.Equal(t, "http://cdn.local/a/b.pdf", joinURL("http://cdn.local", "", "/a/b.pdf"))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: "s3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bucket is required")

	_, err = New(context.Background(), Config{Provider: "ftp", Bucket: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage provider")

	_, err = New(context.Background(), Config{Provider: "minio", Bucket: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")
}

func TestFilesystemBackend_PutAndURL(t *testing.T) {
	root := t.TempDir()
	backend, err := New(context.Background(), Config{Provider: "filesystem", Bucket: root})
	require.NoError(t, err)
	assert.Equal(t, "filesystem", backend.Name())

	key, err := ReportKey("", "brand-7", "report_1_abcdefgh")
	require.NoError(t, err)

	require.NoError(t, backend.Put(context.Background(), key, []byte("%PDF-1.4 first"), ContentTypePDF))
	require.NoError(t, backend.Put(context.Background(), key, []byte("%PDF-1.4 second"), ContentTypePDF))

	data, err := os.ReadFile(filepath.Join(root, "brand-uploaded", "brand-7", "report-report_1_abcdefgh.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 second", string(data), "uploads overwrite existing artifacts")

	url := backend.PublicURL(key)
	assert.True(t, strings.HasPrefix(url, "file://"))
	assert.True(t, strings.HasSuffix(url, "/brand-uploaded/brand-7/report-report_1_abcdefgh.pdf"))

	entries, err := os.ReadDir(filepath.Join(root, "brand-uploaded", "brand-7"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
	require.NoError(t, backend.Close())
}

func TestFilesystemBackend_RejectsEscapingKeys(t *testing.T) {
	backend, err := NewFilesystem(Config{Bucket: t.TempDir()})
	require.NoError(t, err)

	err = backend.Put(context.Background(), "../outside.pdf", []byte("x"), ContentTypePDF)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside the storage root")
}

func TestFilesystemBackend_PublicBaseURL(t *testing.T) {
	backend, err := NewFilesystem(Config{Bucket: t.TempDir(), PublicBaseURL: "http://localhost:8080/files"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/brand-uploaded/b/report-j.pdf", backend.PublicURL("brand-uploaded/b/report-j.pdf"))
}

func TestFilesystemBackend_CanceledContext(t *testing.T) {
	backend, err := NewFilesystem(Config{Bucket: t.TempDir()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, backend.Put(ctx, "a/b.pdf", []byte("x"), ContentTypePDF), context.Canceled)
}

func TestS3Backend_PublicURL(t *testing.T) {
	ctx := context.Background()

	aws, err := NewS3(ctx, Config{Bucket: "reports", Region: "eu-west-1", AccessKeyID: "k", SecretAccessKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "https://reports.s3.eu-west-1.amazonaws.com/brand-uploaded/b/report-j.pdf", aws.PublicURL("brand-uploaded/b/report-j.pdf"))

	compat, err := NewS3(ctx, Config{Bucket: "Creatives", Endpoint: "https://x.supabase.co/storage/v1/s3", AccessKeyID: "k", SecretAccessKey: "s",
		PublicBaseURL: "https://x.supabase.co/storage/v1/object/public"})
	require.NoError(t, err)
	assert.Equal(t, "https://x.supabase.co/storage/v1/object/public/Creatives/brand-uploaded/b/report-j.pdf", compat.PublicURL("brand-uploaded/b/report-j.pdf"))
	assert.Equal(t, "s3", compat.Name())
}

func TestMinioBackend_PublicURL(t *testing.T) {
	backend, err := NewMinio(Config{Bucket: "reports", Endpoint: "http://localhost:9000", AccessKeyID: "k", SecretAccessKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/reports/a/b.pdf", backend.PublicURL("a/b.pdf"))
	assert.Equal(t, "minio", backend.Name())
}

func TestGCSBackend_PublicURL(t *testing.T) {
	backend := &GCSBackend{bucket: "reports"}
	assert.Equal(t, "https://storage.googleapis.com/reports/a/b.pdf", backend.PublicURL("a/b.pdf"))
	assert.Equal(t, "gcs", backend.Name())
}
