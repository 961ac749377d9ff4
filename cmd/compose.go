// =============================================================================
// Receipt Batch Composer - Compose Command
// =============================================================================
//
// This file defines the 'compose' command, the main command of the tool.
//
// COMMAND USAGE:
//   composer compose <input> <output> [flags]
//
// FLAGS:
//   --audit-order   : Order number; records the run in the audit database
//   --audit-counter : Run counter appended to the order number
//   --audit-folder  : Working folder stored with the audit row
//
// EXIT STATUS:
//   0 when the batch was written and reconciled, 1 otherwise. A failed run
//   never leaves an output file behind.
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/receipt-batch-composer/internal/audit"
	"github.com/ginjaninja78/receipt-batch-composer/internal/composer"
	"github.com/ginjaninja78/receipt-batch-composer/internal/reconcile"
	"github.com/ginjaninja78/receipt-batch-composer/internal/sanitize"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	auditOrder   string
	auditCounter string
	auditFolder  string
)

// =============================================================================
// COMPOSE COMMAND DEFINITION
// =============================================================================

var composeCmd = &cobra.Command{
	Use:   "compose <input> <output>",
	Short: "Compose a receipt batch and reconcile it against client totals",
	Long: `The compose command reads a delimited client file, groups its donation
records into receipt packages (one per subject id and donation date), and
writes the "01"/"02"/"03" batch.

The client's control rows ("Total Amount", "Receipt Count", "Email Receipt
Count") are compared with the totals of the written batch. Any difference is
a hard failure and no output file is left behind.`,
	Args: cobra.ExactArgs(2),
	RunE: runCompose,
}

func runCompose(cmd *cobra.Command, args []string) error {
	c, err := composer.New(cfg, slog.Default())
	if err != nil {
		return err
	}

	result := c.Run(args[0], args[1])
	if result.Error != nil {
		return result.Error
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Composed %d packages (%d details, %d email) into %s\n",
		result.Stats.Totals.Packages,
		result.Stats.Totals.Details,
		result.Stats.Totals.EmailPackages,
		result.OutputFile,
	)

	if auditOrder != "" {
		return recordRun(cmd.Context(), args[0], result)
	}
	return nil
}

// recordRun stores the run in the audit database.
func recordRun(ctx context.Context, inputPath string, result composer.Result) error {
	store, err := openAuditStore()
	if err != nil {
		return err
	}
	defer store.Close()

	totals := result.Stats.Totals
	folder := auditFolder
	if folder == "" {
		folder = filepath.Dir(inputPath)
	}

	entry := audit.Entry{
		PivotID:     audit.PivotID(auditOrder, auditCounter),
		Folder:      folder,
		OrderNum:    auditOrder,
		FileName:    audit.ProjectCode(inputPath),
		RunID:       result.RunID,
		BillCount:   totals.Packages,
		EbillCount:  totals.EmailPackages,
		MailedCount: totals.Packages - totals.EmailPackages,
		Metadata: sanitize.Map{
			"input":         sanitize.Text(filepath.Base(inputPath)),
			"output":        sanitize.Text(result.OutputFile),
			"details":       sanitize.Number(totals.Details),
			"trailer_lines": sanitize.Number(totals.TrailerLines),
			"total_amount":  sanitize.Text(totals.Amount.StringFixed(2)),
			"client_totals": sanitize.Text(reconcile.Format(result.Client)),
		},
	}

	inserted, err := store.Record(ctx, entry)
	if err != nil {
		return err
	}
	if !inserted {
		slog.Warn("audit entry already exists, left unchanged", "pivot_id", entry.PivotID)
		return nil
	}
	slog.Info("recorded audit entry", "pivot_id", entry.PivotID)
	return nil
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	composeCmd.Flags().StringVar(&auditOrder, "audit-order", "", "Order number to record in the audit database")
	composeCmd.Flags().StringVar(&auditCounter, "audit-counter", "", "Run counter appended to the order number")
	composeCmd.Flags().StringVar(&auditFolder, "audit-folder", "", "Working folder stored with the audit entry (default: input directory)")

	rootCmd.AddCommand(composeCmd)
}
