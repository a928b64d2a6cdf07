package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/report-renderer/internal/observability"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect report jobs",
}

var jobGetCmd = &cobra.Command{
	Use:   "get <job-id>",
	Short: "Show a job's status and progress",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobGet,
}

var jobGetJSON bool

func init() {
	jobGetCmd.Flags().BoolVar(&jobGetJSON, "json", false, "Print the job as JSON")
	jobCmd.AddCommand(jobGetCmd)
	rootCmd.AddCommand(jobCmd)
}

func runJobGet(cmd *cobra.Command, args []string) error {
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

	job, ok := store.GetJob(cmd.Context(), args[0])
	if !ok {
		return fmt.Errorf("job not found: %s", args[0])
	}

	if jobGetJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintJob(job)
	return nil
}
