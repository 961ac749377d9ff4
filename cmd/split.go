// =============================================================================
// Receipt Batch Composer - Split Command
// =============================================================================
//
// COMMAND USAGE:
//   composer split <input> <header-out> <transactions-out> [--report file]
//
// The header rows ("H") of a payment file are written to one file and all
// other rows to a second one, after the document count and check total of
// the first header row reconciled against the payment rows ("P"). One line
// per payment is appended to the weekly report.
//
// =============================================================================

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/receipt-batch-composer/internal/split"
)

var reportFile string

var splitCmd = &cobra.Command{
	Use:   "split <input> <header-out> <transactions-out>",
	Short: "Split header rows from transaction rows and reconcile payments",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := cfg.Split
		if reportFile != "" {
			settings.ReportFile = reportFile
		}

		result, err := split.New(settings, slog.Default()).Run(args[0], args[1], args[2])
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Split %d header and %d transaction rows (%d payments, total %s)\n",
			result.Headers,
			result.Transactions,
			result.Computed.DocumentCount,
			result.Computed.CheckTotal.StringFixed(2),
		)
		return nil
	},
}

func init() {
	splitCmd.Flags().StringVar(&reportFile, "report", "", "Weekly report file to append to (overrides split.report_file)")
	rootCmd.AddCommand(splitCmd)
}
