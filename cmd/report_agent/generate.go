package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/report-renderer/internal/observability"
	"github.com/jonathan/report-renderer/internal/pipeline"
	"github.com/jonathan/report-renderer/internal/schemas"
	"github.com/jonathan/report-renderer/internal/types"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render one report to PDF and upload it",
	Long: `Runs a single report generation outside the HTTP server. Either point it at an existing
job with --job-id, or pass --create to create the job first from --params and --brand-id.`,
	RunE: runGenerate,
}

var (
	generateJobID     string
	generateCreate    bool
	generateBaseURL   string
	generateBrandID   string
	generateLevel     string
	generateParams    string
	generateSelectors []string
)

func init() {
	generateCmd.Flags().StringVar(&generateJobID, "job-id", "", "Existing job to generate")
	generateCmd.Flags().BoolVar(&generateCreate, "create", false, "Create a new job before generating")
	generateCmd.Flags().StringVar(&generateBaseURL, "base-url", "", "Base URL of the report frontend (required)")
	generateCmd.Flags().StringVar(&generateBrandID, "brand-id", "", "Brand id, overrides the params file")
	generateCmd.Flags().StringVar(&generateLevel, "level", "", "Report level, overrides the params file")
	generateCmd.Flags().StringVarP(&generateParams, "params", "p", "", "Path to a report params JSON file")
	generateCmd.Flags().StringSliceVar(&generateSelectors, "selectors", nil, "Chart titles to wait for (comma separated)")

	if err := generateCmd.MarkFlagRequired("base-url"); err != nil {
		panic(fmt.Sprintf("failed to mark base-url flag as required: %v", err))
	}
	generateCmd.MarkFlagsMutuallyExclusive("job-id", "create")
	generateCmd.MarkFlagsOneRequired("job-id", "create")

	rootCmd.AddCommand(generateCmd)
}

// loadParams reads the params file, if any, and applies the flag overrides.
func loadParams() (types.ReportParams, error) {
	var params types.ReportParams
	if generateParams != "" {
		if err := schemas.ValidateFile(schemas.CreateJob, generateParams); err != nil {
			return params, err
		}
		content, err := os.ReadFile(generateParams)
		if err != nil {
			return params, fmt.Errorf("failed to read params file: %w", err)
		}
		if err := json.Unmarshal(content, &params); err != nil {
			return params, fmt.Errorf("failed to unmarshal params JSON: %w", err)
		}
	}
	if generateBrandID != "" {
		params.BrandID = generateBrandID
	}
	if generateLevel != "" {
		params.Level = types.Level(generateLevel)
	}
	params.Level = params.Level.Normalize()
	return params, nil
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	params, err := loadParams()
	if err != nil {
		return err
	}
	if generateCreate && params.BrandID == "" {
		return fmt.Errorf("--brand-id or a params file with brandId is required with --create")
	}

	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := cmd.Context()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	jobID := generateJobID
	if generateCreate {
		jobID, err = store.CreateJob(ctx, params)
		if err != nil {
			return err
		}
		logger.Info("job created", "job_id", jobID, "brand_id", params.BrandID)
	} else {
		job, ok := store.GetJob(ctx, jobID)
		if !ok {
			return fmt.Errorf("job not found: %s", jobID)
		}
		if !job.Status.CanTransitionTo(types.JobStatusProcessing) {
			return fmt.Errorf("job %s is already %s", jobID, job.Status)
		}
		params.FillMissing(job.ReportParams)
	}

	backend, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	generator := pipeline.NewGenerator(
		pipeline.LauncherSessions(newLauncher(cfg, logger)),
		backend,
		store,
		generatorOptions(cfg),
		pipeline.WithLogger(logger),
	)

	result, err := generator.Generate(ctx, pipeline.Request{
		JobID:     jobID,
		BaseURL:   generateBaseURL,
		Params:    params,
		Selectors: generateSelectors,
	})
	if err != nil {
		return err
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintGenerateResult(jobID, result.URL, result.Attempts, result.FailedCharts)
	return nil
}
