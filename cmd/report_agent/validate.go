package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/report-renderer/internal/schemas"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a request body against an API schema",
	Long:  "Checks a JSON file against one of the request schemas: generate_report, create_job or diagnose_url.",
	RunE:  runValidate,
}

var (
	validateSchema string
	validateJSON   string
)

func init() {
	validateCmd.Flags().StringVar(&validateSchema, "schema", "", "Schema name (required)")
	validateCmd.Flags().StringVar(&validateJSON, "json", "", "Path to the JSON file (required)")
	if err := validateCmd.MarkFlagRequired("schema"); err != nil {
		panic(fmt.Sprintf("failed to mark schema flag as required: %v", err))
	}
	if err := validateCmd.MarkFlagRequired("json"); err != nil {
		panic(fmt.Sprintf("failed to mark json flag as required: %v", err))
	}
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	err := schemas.ValidateFile(validateSchema, validateJSON)
	var verr *schemas.ValidationError
	if errors.As(err, &verr) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s is not a valid %s body:\n", validateJSON, validateSchema)
		for _, fe := range verr.Errors {
			fmt.Fprintf(out, "  • %s: %s\n", fe.Field, fe.Message)
		}
		return fmt.Errorf("validation failed with %d error(s)", len(verr.Errors))
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is a valid %s body\n", validateJSON, validateSchema)
	return nil
}
