// =============================================================================
// Receipt Batch Composer - Main Entry Point
// =============================================================================
//
// USAGE:
//   composer compose <input> <output>   - Compose and reconcile a receipt batch
//   composer split <in> <hdr> <trans>   - Split header and transaction rows
//   composer audit record|ack|overdue   - Audit database maintenance
//   composer layout init <path>         - Write a starter layout workbook
//   composer version                    - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Core business logic
//   - pkg/utils/     : Output staging, archival and run summaries
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/receipt-batch-composer/cmd"
)

func main() {
	cmd.Execute()
}
