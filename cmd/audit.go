// =============================================================================
// Receipt Batch Composer - Audit Commands
// =============================================================================
//
// COMMAND USAGE:
//   composer audit record <order> <counter> <folder> <file>
//   composer audit ack <pivot-id> <stage>
//   composer audit overdue
//
// The audit database path comes from audit.db_path or BATCH_AUDIT_DB.
//
// =============================================================================

package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/receipt-batch-composer/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Record batches and track vendor acknowledgements",
}

var auditRecordCmd = &cobra.Command{
	Use:   "record <order> <counter> <folder> <file>",
	Short: "Record a batch handed to the vendor",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openAuditStore()
		if err != nil {
			return err
		}
		defer store.Close()

		entry := audit.Entry{
			PivotID:  audit.PivotID(args[0], args[1]),
			OrderNum: args[0],
			Folder:   args[2],
			FileName: audit.ProjectCode(args[3]),
		}
		inserted, err := store.Record(cmd.Context(), entry)
		if err != nil {
			return err
		}

		if inserted {
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s\n", entry.PivotID)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already recorded\n", entry.PivotID)
		}
		return nil
	},
}

var auditAckCmd = &cobra.Command{
	Use:   "ack <pivot-id> <stage>",
	Short: "Stamp an acknowledgement (hshake1, hshake2, approved, disapproved, cancelled)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		stage, err := audit.ParseStage(args[1])
		if err != nil {
			return err
		}

		store, err := openAuditStore()
		if err != nil {
			return err
		}
		defer store.Close()

		return store.Acknowledge(cmd.Context(), args[0], stage, time.Now())
	},
}

var auditOverdueCmd = &cobra.Command{
	Use:   "overdue",
	Short: "Report batches whose handshake files are missing",
	Long: `Reports every batch whose first handshake is older than
audit.first_ack_minutes, or whose second handshake is older than
audit.second_ack_minutes after the first arrived. Each batch is reported once.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openAuditStore()
		if err != nil {
			return err
		}
		defer store.Close()

		m := &audit.Monitor{
			Store:    store,
			Notifier: &audit.SlogNotifier{Logger: slog.Default()},
			Checks:   audit.Checks(cfg.Audit),
		}
		found, err := m.Run(cmd.Context(), time.Now())
		if err != nil {
			return err
		}

		for _, check := range m.Checks {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d overdue\n", check.Stage, len(found[check.Stage]))
		}
		return nil
	},
}

func openAuditStore() (*audit.Store, error) {
	if cfg.Audit.DBPath == "" {
		return nil, fmt.Errorf("no audit database configured (audit.db_path or BATCH_AUDIT_DB)")
	}
	store, err := audit.Open(cfg.Audit.DBPath, cfg.Audit.FacilityCode)
	if err != nil {
		return nil, err
	}
	slog.Debug("audit store opened", "path", store.Path())
	return store, nil
}

func init() {
	auditCmd.AddCommand(auditRecordCmd, auditAckCmd, auditOverdueCmd)
	rootCmd.AddCommand(auditCmd)
}
