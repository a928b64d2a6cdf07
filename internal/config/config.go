// Package config provides configuration loading and validation for the report renderer.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full service configuration. Every key can come from a config file,
// an environment variable of the same name in upper case, or a bound CLI flag.
type Config struct {
	// Server
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
	LogMode         string        `mapstructure:"log_mode" validate:"omitempty,oneof=development dev production prod"`

	// Job store
	DBDriver    string `mapstructure:"db_driver" validate:"oneof=postgres sqlite"`
	DatabaseURL string `mapstructure:"database_url" validate:"required_if=DBDriver postgres"`
	SQLitePath  string `mapstructure:"sqlite_path" validate:"required_if=DBDriver sqlite"`

	// Browser
	ChromeExecutablePath string        `mapstructure:"chrome_executable_path"`
	ChromeCacheDir       string        `mapstructure:"chrome_cache_dir"`
	BrowserUserAgent     string        `mapstructure:"browser_user_agent"`
	BrowserExtraHeaders  string        `mapstructure:"browser_extra_headers"` // "Key=Value,Key2=Value2"
	BrowserLaunchTimeout time.Duration `mapstructure:"browser_launch_timeout" validate:"min=0"`

	// Object storage
	StorageProvider        string `mapstructure:"storage_provider" validate:"oneof=s3 aws minio gcs filesystem local"`
	StorageBucket          string `mapstructure:"storage_bucket" validate:"required"`
	StorageRegion          string `mapstructure:"storage_region"`
	StorageEndpoint        string `mapstructure:"storage_endpoint"`
	StorageAccessKeyID     string `mapstructure:"storage_access_key_id"`
	StorageSecretAccessKey string `mapstructure:"storage_secret_access_key"`
	StorageUseSSL          bool   `mapstructure:"storage_use_ssl"`
	StoragePublicBaseURL   string `mapstructure:"storage_public_base_url" validate:"omitempty,url"`
	StoragePrefix          string `mapstructure:"storage_prefix"`
	GCSCredentialsFile     string `mapstructure:"gcs_credentials_file"`

	// Generation
	MaxRetries                int           `mapstructure:"max_retries" validate:"min=1"`
	RetryDelay                time.Duration `mapstructure:"retry_delay" validate:"min=0"`
	NavigationTimeout         time.Duration `mapstructure:"navigation_timeout" validate:"gt=0"`
	FallbackNavigationTimeout time.Duration `mapstructure:"fallback_navigation_timeout" validate:"gt=0"`
	PostNavigationDelay       time.Duration `mapstructure:"post_navigation_delay" validate:"min=0"`
	FallbackSettleDelay       time.Duration `mapstructure:"fallback_settle_delay" validate:"min=0"`
	PageReadyTimeout          time.Duration `mapstructure:"page_ready_timeout" validate:"gt=0"`
	ChartWaitTimeout          time.Duration `mapstructure:"chart_wait_timeout" validate:"gt=0"`
	PDFTimeout                time.Duration `mapstructure:"pdf_timeout" validate:"gt=0"`
	ChartBatchSize            int           `mapstructure:"chart_batch_size" validate:"min=1"`
	ChartBatchPause           time.Duration `mapstructure:"chart_batch_pause" validate:"min=0"`
	MinChartSuccessPercent    int           `mapstructure:"min_chart_success_percent" validate:"min=0,max=100"`
	SettleDelay               time.Duration `mapstructure:"settle_delay" validate:"min=0"`
	UploadRetries             int           `mapstructure:"upload_retries" validate:"min=1"`
	UploadRetryDelay          time.Duration `mapstructure:"upload_retry_delay" validate:"min=0"`
	MaxConcurrentJobs         int           `mapstructure:"max_concurrent_jobs" validate:"min=1"`
	InlineReportParams        bool          `mapstructure:"inline_report_params"`
	RenderPath                string        `mapstructure:"render_path" validate:"startswith=/"`

	// Cleanup
	JobMaxAgeHours  int           `mapstructure:"job_max_age_hours" validate:"min=1"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" validate:"min=0"`

	// Auth (optional)
	JWTSecret          string `mapstructure:"jwt_secret"`
	JWTExpirationHours int    `mapstructure:"jwt_expiration_hours" validate:"min=1"`

	// Rate limiting
	RateLimitEnabled       bool          `mapstructure:"rate_limit_enabled"`
	RateLimitDefaultLimit  int           `mapstructure:"rate_limit_default_limit" validate:"min=0"`
	RateLimitDefaultWindow time.Duration `mapstructure:"rate_limit_default_window" validate:"min=0"`
	RateLimitWhitelist     string        `mapstructure:"rate_limit_whitelist"`
	RateLimitBlacklist     string        `mapstructure:"rate_limit_blacklist"`
}

// defaults mirrors the values the service has been running with in production.
var defaults = map[string]any{
	"port":             3001,
	"shutdown_timeout": 10 * time.Minute,
	"log_mode":         "development",

	"db_driver":   "postgres",
	"sqlite_path": "data/report_jobs.db",

	"chrome_executable_path": "",
	"chrome_cache_dir":       "",
	"browser_user_agent":     "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36",
	"browser_extra_headers":  "",
	"browser_launch_timeout": 30 * time.Second,

	"storage_provider":          "s3",
	"storage_bucket":            "",
	"storage_region":            "us-east-1",
	"storage_endpoint":          "",
	"storage_access_key_id":     "",
	"storage_secret_access_key": "",
	"storage_use_ssl":           true,
	"storage_public_base_url":   "",
	"storage_prefix":            "brand-uploaded",
	"gcs_credentials_file":      "",

	"max_retries":                 2,
	"retry_delay":                 10 * time.Second,
	"navigation_timeout":          120 * time.Second,
	"fallback_navigation_timeout": 60 * time.Second,
	"post_navigation_delay":       3 * time.Second,
	"fallback_settle_delay":       10 * time.Second,
	"page_ready_timeout":          60 * time.Second,
	"chart_wait_timeout":          60 * time.Second,
	"pdf_timeout":                 180 * time.Second,
	"chart_batch_size":            3,
	"chart_batch_pause":           time.Second,
	"min_chart_success_percent":   70,
	"settle_delay":                3 * time.Second,
	"upload_retries":              3,
	"upload_retry_delay":          2 * time.Second,
	"max_concurrent_jobs":         2,
	"inline_report_params":        false,
	"render_path":                 "/render-chart",

	"job_max_age_hours": 24,
	"cleanup_interval":  time.Hour,

	"jwt_secret":           "",
	"jwt_expiration_hours": 24,

	"rate_limit_enabled":        true,
	"rate_limit_default_limit":  1000,
	"rate_limit_default_window": time.Minute,
	"rate_limit_whitelist":      "",
	"rate_limit_blacklist":      "",
}

// Load reads configuration from defaults, the optional config file, the environment
// and any flags in fs whose names match a config key (dashes map to underscores).
func Load(configFile string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	if fs != nil {
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, known := defaults[key]; !known || bindErr != nil {
				return
			}
			bindErr = v.BindPFlag(key, f)
		})
		if bindErr != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", bindErr)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.normalize()

	return &cfg, nil
}

// normalize folds provider aliases onto their canonical names.
func (c *Config) normalize() {
	c.StorageProvider = strings.ToLower(strings.TrimSpace(c.StorageProvider))
	switch c.StorageProvider {
	case "aws":
		c.StorageProvider = "s3"
	case "local":
		c.StorageProvider = "filesystem"
	}
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
}

// Validate checks field ranges and cross-field requirements.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.FallbackNavigationTimeout > c.NavigationTimeout {
		return fmt.Errorf("config error: 'fallback_navigation_timeout' must not exceed 'navigation_timeout'")
	}
	return nil
}

// ExtraHeaders parses BrowserExtraHeaders ("Key=Value,Key2=Value2").
func (c *Config) ExtraHeaders() map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(c.BrowserExtraHeaders, ",") {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers
}
