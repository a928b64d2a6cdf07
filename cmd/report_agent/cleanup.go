package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/report-renderer/internal/cleanup"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete jobs older than the retention window",
	Long:  "Runs one sweep of the job store, deleting every job created more than --job-max-age-hours ago.",
	RunE:  runCleanup,
}

func init() {
	cleanupCmd.Flags().Int("job-max-age-hours", 24, "Delete jobs created more than this many hours ago")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	sweeper := cleanup.NewSweeper(store, cfg.JobMaxAgeHours, cfg.CleanupInterval, logger, nil)
	removed := sweeper.SweepOnce(cmd.Context())

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job(s) older than %d hours\n", removed, cfg.JobMaxAgeHours)
	return nil
}
