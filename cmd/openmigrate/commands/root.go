package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "openmigrate",
		Short: "OpenMigrate - Declarative-to-Imperative Migration Engine",
		Long: `OpenMigrate drives the migration of declaratively provisioned cloud
resources into imperative infrastructure code, step by step, with a
durable state snapshot after every step.

Features:
  - Fixed step pipeline from template scan to resource import
  - Resumable runs: interrupted migrations continue where they stopped
  - Timestamped state backups before every overwrite
  - Checkpoint gates: built-in, rego policy, or interactive approval
  - Dry-run mode that narrates without touching resources
  - Append-only SQLite audit journal`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "openmigrate.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newResumeCommand())
	rootCmd.AddCommand(newRollbackCommand())
	rootCmd.AddCommand(newVerifyCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newBackupsCommand())

	return rootCmd
}
