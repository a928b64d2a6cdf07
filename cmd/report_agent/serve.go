package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/report-renderer/internal/cleanup"
	"github.com/jonathan/report-renderer/internal/observability"
	"github.com/jonathan/report-renderer/internal/pipeline"
	"github.com/jonathan/report-renderer/internal/server"
	"github.com/jonathan/report-renderer/internal/server/ratelimit"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes /generate-report, /jobs, /diagnose-url, /health and /metrics.
Old jobs are swept on an interval for as long as the server runs.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 3001, "Port to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if err := cfg.Validate(); err != nil {
		return err
	}
	jwtCfg, err := cfg.JWT()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	backend, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	metrics := observability.NewMetrics()
	launcher := newLauncher(cfg, logger)
	generator := pipeline.NewGenerator(
		pipeline.LauncherSessions(launcher),
		backend,
		store,
		generatorOptions(cfg),
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(logger),
	)

	srv, err := server.New(server.Config{
		Port:            cfg.Port,
		ShutdownTimeout: cfg.ShutdownTimeout,
		RateLimit: ratelimit.NewConfig(
			cfg.RateLimitEnabled,
			cfg.RateLimitDefaultLimit,
			cfg.RateLimitDefaultWindow,
			cfg.RateLimitWhitelist,
			cfg.RateLimitBlacklist,
		),
		JWT: jwtCfg,
	}, server.Dependencies{
		Jobs:      store,
		Generator: generator,
		Diagnoser: launcher,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	sweeper := cleanup.NewSweeper(store, cfg.JobMaxAgeHours, cfg.CleanupInterval, logger, metrics)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	logger.Info("report renderer starting",
		"port", cfg.Port,
		"db_driver", cfg.DBDriver,
		"storage", backend.Name(),
		"auth", jwtCfg != nil,
		"max_concurrent_jobs", cfg.MaxConcurrentJobs,
	)
	return srv.Run(ctx)
}
