// Package main is the entry point for the lettersync CLI.
//
// lettersync keeps a letter-status page in sync with the server that owns
// the statuses. It ships the sync client and a reference server.
//
// Usage:
//
//	lettersync sync -c config.yaml         # Keep the configured page in sync
//	lettersync sync -c config.yaml --tui   # ... and show it in the terminal
//	lettersync serve -c config.yaml        # Start the letter-status server
//	lettersync validate -c config.yaml     # Validate configuration
//	lettersync version                     # Show version info
package main

import (
	"fmt"
	"log/slog"
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
	Use:   "lettersync",
	Short: "Keep a letter-status page in sync with its server",
	Long: `lettersync polls the letter-status server for the letters rendered on a
page and applies every status change to the page: the badge is updated, the
row is highlighted for a moment and a notification is emitted.

Quick start:
  1. Create a config file (lettersync.yaml)
  2. Run the server: lettersync serve -c lettersync.yaml
  3. Run the client: lettersync sync -c lettersync.yaml --tui

Example config:
  base_url: http://localhost:8080
  poll_interval: 30s
  server:
    port: 8080
    letters:
      - number: L-100
        status: Pending`,
	// No Run/RunE means this just shows help when called without subcommands
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
	Long:  `Print the version, commit hash, and build date of this lettersync binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lettersync %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Register subcommands with root
	rootCmd.AddCommand(versionCmd)
}

// newLogger creates a JSON logger for CLI use.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}
