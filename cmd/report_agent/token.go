package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/report-renderer/internal/server"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for a calling service",
	Long:  "Signs a service token with JWT_SECRET. The API only checks tokens when JWT_SECRET is set.",
	RunE:  runToken,
}

var tokenService string

func init() {
	tokenCmd.Flags().StringVarP(&tokenService, "service", "s", "", "Name of the calling service (required)")
	if err := tokenCmd.MarkFlagRequired("service"); err != nil {
		panic(fmt.Sprintf("failed to mark service flag as required: %v", err))
	}
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	jwtCfg, err := cfg.RequireJWT()
	if err != nil {
		return err
	}

	token, err := server.NewJWTService(jwtCfg).GenerateToken(tokenService)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
