package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/receipt-batch-composer/internal/layout"
	"github.com/ginjaninja78/receipt-batch-composer/pkg/utils"
)

var forceLayout bool

var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Manage layout workbooks",
}

// layoutInitCmd writes a starter workbook listing the configured detail
// fields and every field a compose run reads.
var layoutInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write a starter layout workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if utils.FileExists(args[0]) && !forceLayout {
			return fmt.Errorf("%s already exists (use --force to overwrite)", args[0])
		}

		detail := cfg.Output.DetailFields
		if len(detail) == 0 {
			detail = cfg.Fields.RequiredFields()
		}

		if err := layout.WriteTemplate(args[0], detail, cfg.Fields.RequiredFields()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", args[0])
		return nil
	},
}

func init() {
	layoutInitCmd.Flags().BoolVar(&forceLayout, "force", false, "Overwrite an existing workbook")
	layoutCmd.AddCommand(layoutInitCmd)
	rootCmd.AddCommand(layoutCmd)
}
