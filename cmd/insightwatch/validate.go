package main

import (
	"fmt"
	"time"

	"github.com/jpalmerr/insightwatch/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an insightwatch configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields. It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  insightwatch validate -c config.yaml
  insightwatch validate --config /etc/insightwatch/config.yaml`,
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

	title := cfg.Title
	if title == "" {
		title = "(default)"
	}
	extractor := "default"
	if cfg.Extractor.Type == "json" {
		extractor = "json:" + cfg.Extractor.Path
	}
	// the last tick lands max_attempts intervals after the first fetch
	giveUp := time.Duration(cfg.MaxAttempts) * cfg.PollInterval.Duration()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Title:         %s\n", title)
	fmt.Fprintf(out, "  Port:          %d\n", cfg.Port)
	fmt.Fprintf(out, "  Service:       %s\n", cfg.IntelligenceURL)
	fmt.Fprintf(out, "  Extractor:     %s\n", extractor)
	fmt.Fprintf(out, "  Poll interval: %s\n", cfg.PollInterval.Duration())
	fmt.Fprintf(out, "  Max attempts:  %d\n", cfg.MaxAttempts)
	fmt.Fprintf(out, "  Give up after: %s\n", giveUp)
	fmt.Fprintf(out, "  Issues:        %d\n", len(cfg.Issues))

	return nil
}
