package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/report-renderer/internal/browser"
	"github.com/jonathan/report-renderer/internal/config"
	"github.com/jonathan/report-renderer/internal/db"
	"github.com/jonathan/report-renderer/internal/observability"
	"github.com/jonathan/report-renderer/internal/pipeline"
	"github.com/jonathan/report-renderer/internal/storage"
)

// loadConfig resolves configuration for cmd, binding its flags over env and file values.
func loadConfig(cmd *cobra.Command) (*config.Config, *observability.Logger, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(cfg.LogMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// openStore connects to the configured job store and makes sure its table exists.
func openStore(ctx context.Context, cfg *config.Config, logger *observability.Logger) (db.JobStore, error) {
	opts := []db.Option{db.WithLogger(logger.Component("store"))}

	switch cfg.DBDriver {
	case "sqlite":
		store, err := db.OpenSQLite(ctx, cfg.SQLitePath, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return store, nil
	default:
		store, err := db.Connect(ctx, cfg.DatabaseURL, opts...)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	}
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	backend, err := storage.New(ctx, storage.Config{
		Provider:        cfg.StorageProvider,
		Bucket:          cfg.StorageBucket,
		Region:          cfg.StorageRegion,
		Endpoint:        cfg.StorageEndpoint,
		AccessKeyID:     cfg.StorageAccessKeyID,
		SecretAccessKey: cfg.StorageSecretAccessKey,
		UseSSL:          cfg.StorageUseSSL,
		PublicBaseURL:   cfg.StoragePublicBaseURL,
		CredentialsFile: cfg.GCSCredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}
	return backend, nil
}

func newLauncher(cfg *config.Config, logger *observability.Logger) *browser.Launcher {
	return browser.NewLauncher(browser.Options{
		ExecPath:      cfg.ChromeExecutablePath,
		CacheDir:      cfg.ChromeCacheDir,
		UserAgent:     cfg.BrowserUserAgent,
		ExtraHeaders:  cfg.ExtraHeaders(),
		LaunchTimeout: cfg.BrowserLaunchTimeout,
		Logger:        logger,
	})
}

// generatorOptions maps configuration onto the orchestrator's tunables.
func generatorOptions(cfg *config.Config) pipeline.Options {
	return pipeline.Options{
		MaxRetries:                cfg.MaxRetries,
		RetryDelay:                cfg.RetryDelay,
		NavigationTimeout:         cfg.NavigationTimeout,
		FallbackNavigationTimeout: cfg.FallbackNavigationTimeout,
		PostNavigationDelay:       cfg.PostNavigationDelay,
		FallbackSettleDelay:       cfg.FallbackSettleDelay,
		PageReadyTimeout:          cfg.PageReadyTimeout,
		ChartWaitTimeout:          cfg.ChartWaitTimeout,
		ChartBatchSize:            cfg.ChartBatchSize,
		ChartBatchPause:           cfg.ChartBatchPause,
		MinChartSuccessPercent:    cfg.MinChartSuccessPercent,
		SettleDelay:               cfg.SettleDelay,
		PDFTimeout:                cfg.PDFTimeout,
		UploadRetries:             cfg.UploadRetries,
		UploadRetryDelay:          cfg.UploadRetryDelay,
		MaxConcurrentJobs:         cfg.MaxConcurrentJobs,
		InlineParams:              cfg.InlineReportParams,
		RenderPath:                cfg.RenderPath,
		StoragePrefix:             cfg.StoragePrefix,
	}
}
