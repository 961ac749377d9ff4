// =============================================================================
// Receipt Batch Composer - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (composer)
//   ├── composeCmd (composer compose)
//   ├── splitCmd   (composer split)
//   ├── auditCmd   (composer audit record|ack|overdue)
//   ├── layoutCmd  (composer layout init)
//   └── versionCmd (composer version)
//
// The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading the configuration
//   3. Setting up logging
//
// =============================================================================

package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/receipt-batch-composer/internal/config"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file. Empty means built-in
// defaults (plus .env and environment overrides).
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// cfg is the configuration loaded before any subcommand runs.
var cfg *config.Config

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "composer",
	Short: "Receipt Batch Composer - Compose donation receipt print batches",
	Long: `Receipt Batch Composer turns a flat client file of donation records into
a three-tier print batch: one "01" header per receipt package, one "02" line
per donation and "03" OCR scan lines, and reconciles the result against the
control totals the client sent with the file.

Example Usage:
  composer compose client.csv batch.txt             # Compose and reconcile a batch
  composer compose client.csv batch.txt --config c.yaml
  composer split payments.csv header.csv trans.csv  # Split header and payment rows
  composer audit overdue                            # Report missing acknowledgements`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded

		level := parseLevel(cfg.LogLevel)
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))
		slog.SetDefault(logger)
		return nil
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"",
		"Path to the configuration file (default: built-in layout)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
