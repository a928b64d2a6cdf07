package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/report-renderer/internal/observability"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <url>",
	Short: "Load a URL in a fresh browser and report what happened",
	Args:  cobra.ExactArgs(1),
	RunE:  runDiagnose,
}

func init() {
	rootCmd.AddCommand(diagnoseCmd)
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	result, err := newLauncher(cfg, logger).Diagnose(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintDiagnose(result)
	return nil
}
