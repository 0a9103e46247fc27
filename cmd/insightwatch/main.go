// Package main is the entry point for the insightwatch CLI.
//
// Insightwatch can be run either as a library (SDK) or as a standalone
// binary with YAML configuration. This CLI provides the standalone binary
// approach.
//
// Usage:
//
//	insightwatch serve -c config.yaml     # Start the dashboard
//	insightwatch watch ISSUE -c config.yaml # Follow one issue in the terminal
//	insightwatch validate -c config.yaml  # Validate configuration
//	insightwatch version                  # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command when called without subcommands.
// It just displays help - actual functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "insightwatch",
	Short: "Watch issues until their AI insight is ready",
	Long: `Insightwatch polls an insight service for the AI analysis of issues.

Every issue is fetched immediately, then polled on a fixed interval until
its insight is ready or the attempt budget runs out. Results are shown in
a web dashboard with Server-Sent Events for live updates, or followed in
the terminal.

Quick start:
  1. Create a config file (insightwatch.yaml)
  2. Run: insightwatch serve -c insightwatch.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  intelligence_url: http://localhost:8083
  poll_interval: 5s
  max_attempts: 12
  issues:
    - 8d1f0f7e-8c6b-4c55-9d0e-5f0bcb0f3a11`,
	SilenceUsage: true,
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this insightwatch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "insightwatch %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}
