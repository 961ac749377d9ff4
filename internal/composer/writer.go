package composer

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/receipt-batch-composer/internal/config"
	"github.com/ginjaninja78/receipt-batch-composer/internal/reconcile"
)

// Tier tags prefixed to every output line.
const (
	TagHeader  = "01"
	TagDetail  = "02"
	TagTrailer = "03"
)

// =============================================================================
// RUNNING TOTALS
// =============================================================================

// Totals are accumulated while a batch is written.
type Totals struct {
	// Details is the number of "02" lines written across all packages.
	Details int

	// Packages is the number of "01" headers written.
	Packages int

	// EmailPackages is the number of packages written with the email flag.
	EmailPackages int

	// Amount is the sum of the amount sums of every package written.
	Amount decimal.Decimal

	// TrailerLines is the number of "03" lines written.
	TrailerLines int
}

// Control returns the figures reconciled against the client totals.
func (t Totals) Control() reconcile.ControlTotals {
	return reconcile.ControlTotals{
		TotalAmount:       t.Amount,
		ReceiptCount:      t.Packages,
		EmailReceiptCount: t.EmailPackages,
	}
}

// =============================================================================
// BATCH WRITER
// =============================================================================

// Writer emits the three record tiers of a batch.
type Writer struct {
	// DetailFields is the destination field list of "02" rows. Fields of
	// the input that are not listed are dropped.
	DetailFields []string

	// Fields names the input columns used for the trailer encoding.
	Fields config.FieldMap

	// Delimiter separates the tier tag and the fields. Default "|".
	Delimiter rune

	Logger *slog.Logger
}

// Write emits every package to out and returns the running totals.
// Packages with an empty subject id are skipped.
func (w *Writer) Write(out io.Writer, packages []Package) (Totals, error) {
	logger := w.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cw := csv.NewWriter(out)
	cw.Comma = w.Delimiter
	if cw.Comma == 0 {
		cw.Comma = '|'
	}

	totals := Totals{Amount: decimal.Zero}

	for i := range packages {
		pkg := &packages[i]
		if pkg.Key.SubjectID == "" {
			logger.Debug("skipping package without subject id", "date", pkg.Key.Date)
			continue
		}

		lines, err := EncodeTrailer(pkg, w.Fields)
		if err != nil {
			return totals, fmt.Errorf("package %s/%s: %w", pkg.Key.SubjectID, pkg.Key.Date, err)
		}

		if err := cw.Write(append([]string{TagHeader}, pkg.HeaderFields()...)); err != nil {
			return totals, fmt.Errorf("failed to write header: %w", err)
		}
		totals.Packages++
		totals.Amount = totals.Amount.Add(pkg.AmountSum)
		if pkg.EmailFlag {
			totals.EmailPackages++
		}

		for _, rec := range pkg.Details {
			row := make([]string, 0, len(w.DetailFields)+1)
			row = append(row, TagDetail)
			for _, name := range w.DetailFields {
				row = append(row, rec.Get(name))
			}
			if err := cw.Write(row); err != nil {
				return totals, fmt.Errorf("failed to write detail at line %d: %w", rec.Line(), err)
			}
			totals.Details++
		}

		for _, line := range lines {
			if err := cw.Write([]string{TagTrailer, line}); err != nil {
				return totals, fmt.Errorf("failed to write trailer: %w", err)
			}
			totals.TrailerLines++
		}

		logger.Debug("package written",
			"subject_id", pkg.Key.SubjectID,
			"date", pkg.Key.Date,
			"details", pkg.DetailCount(),
			"pages", pkg.PageCount,
			"email", pkg.EmailFlag,
		)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return totals, fmt.Errorf("failed to flush batch: %w", err)
	}

	return totals, nil
}
