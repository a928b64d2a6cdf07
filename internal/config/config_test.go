package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Port)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, 10*time.Second, cfg.RetryDelay)
	assert.Equal(t, 120*time.Second, cfg.NavigationTimeout)
	assert.Equal(t, 60*time.Second, cfg.FallbackNavigationTimeout)
	assert.Equal(t, 60*time.Second, cfg.PageReadyTimeout)
	assert.Equal(t, 60*time.Second, cfg.ChartWaitTimeout)
	assert.Equal(t, 180*time.Second, cfg.PDFTimeout)
	assert.Equal(t, 3, cfg.ChartBatchSize)
	assert.Equal(t, 70, cfg.MinChartSuccessPercent)
	assert.Equal(t, 3, cfg.UploadRetries)
	assert.Equal(t, 2*time.Second, cfg.UploadRetryDelay)
	assert.Equal(t, 24, cfg.JobMaxAgeHours)
	assert.Equal(t, "brand-uploaded", cfg.StoragePrefix)
	assert.Equal(t, "/render-chart", cfg.RenderPath)
	assert.Equal(t, "postgres", cfg.DBDriver)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("RETRY_DELAY", "250ms")
	t.Setenv("STORAGE_PROVIDER", "AWS")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("INLINE_REPORT_PARAMS", "true")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, "s3", cfg.StorageProvider, "provider aliases should be normalized")
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.True(t, cfg.InlineReportParams)
}

func TestLoad_ConfigFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 4000\nstorage_bucket: reports\nchart_batch_size: 5\n"), 0o600))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("port", 0, "")
	fs.String("not-a-key", "", "")
	require.NoError(t, fs.Parse([]string{"--port", "5000"}))

	cfg, err := Load(path, fs)
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port, "flags should win over the config file")
	assert.Equal(t, "reports", cfg.StorageBucket)
	assert.Equal(t, 5, cfg.ChartBatchSize)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load("", nil)
	require.NoError(t, err)
	cfg.DatabaseURL = "postgres://localhost/reports"
	cfg.StorageBucket = "reports"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing bucket", mutate: func(c *Config) { c.StorageBucket = "" }, wantErr: true},
		{name: "postgres without url", mutate: func(c *Config) { c.DatabaseURL = "" }, wantErr: true},
		{name: "sqlite without url", mutate: func(c *Config) { c.DBDriver = "sqlite"; c.DatabaseURL = "" }},
		{name: "unknown provider", mutate: func(c *Config) { c.StorageProvider = "ftp" }, wantErr: true},
		{name: "zero retries", mutate: func(c *Config) { c.MaxRetries = 0 }, wantErr: true},
		{name: "threshold above 100", mutate: func(c *Config) { c.MinChartSuccessPercent = 101 }, wantErr: true},
		{name: "fallback longer than primary", mutate: func(c *Config) {
			c.FallbackNavigationTimeout = c.NavigationTimeout + time.Second
		}, wantErr: true},
		{name: "render path without slash", mutate: func(c *Config) { c.RenderPath = "render-chart" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExtraHeaders(t *testing.T) {
	cfg := &Config{BrowserExtraHeaders: "X-Tunnel-Skip=true, bypass-tunnel-reminder = 1,broken,=novalue"}

	headers := cfg.ExtraHeaders()
	assert.Equal(t, map[string]string{
		"X-Tunnel-Skip":          "true",
		"bypass-tunnel-reminder": "1",
	}, headers)

	assert.Empty(t, (&Config{}).ExtraHeaders())
}
