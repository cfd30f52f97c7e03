package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/lettersync/config"
)

// validateCmd validates a config file without starting anything.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a lettersync configuration file without syncing or serving.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  lettersync validate -c config.yaml
  lettersync validate --config /etc/lettersync/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	storeKind := "memory"
	if cfg.Server.DatabaseURL != "" {
		storeKind = "postgres"
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Page URL:           %s\n", cfg.PageURL())
	fmt.Printf("  Poll interval:      %s\n", cfg.PollInterval.Duration())
	fmt.Printf("  Highlight duration: %s\n", cfg.HighlightDuration.Duration())
	fmt.Printf("  Request timeout:    %s\n", cfg.RequestTimeout.Duration())
	fmt.Printf("  Single flight:      %t\n", cfg.SingleFlightEnabled())
	fmt.Printf("  Server port:        %d\n", cfg.Server.Port)
	fmt.Printf("  Store:              %s\n", storeKind)
	fmt.Printf("  Seed letters:       %d\n", len(cfg.Server.Letters))

	return nil
}
