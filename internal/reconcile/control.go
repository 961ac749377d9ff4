package reconcile

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/receipt-batch-composer/internal/config"
	"github.com/ginjaninja78/receipt-batch-composer/internal/record"
)

// =============================================================================
// COMPOSER CONTROL TOTALS
// =============================================================================

// Figure names used by ControlTotals, in comparison order.
const (
	TotalAmount       = "Total Amount"
	ReceiptCount      = "Receipt Count"
	EmailReceiptCount = "Email Receipt Count"
)

// ControlTotals are the three figures reconciled for a composed batch.
type ControlTotals struct {
	TotalAmount       decimal.Decimal
	ReceiptCount      int
	EmailReceiptCount int
}

// Figures implements Figurer.
func (c ControlTotals) Figures() []Figure {
	return []Figure{
		Amount(TotalAmount, c.TotalAmount),
		Count(ReceiptCount, c.ReceiptCount),
		Count(EmailReceiptCount, c.EmailReceiptCount),
	}
}

// ExtractClientTotals reads the client-declared totals from the control
// rows of a stream. A control row has the trailer type in the record type
// field, the total's label in the label field and the total in the value
// field. A total the client did not send stays zero and is logged; a total
// that is present but not a number is an error.
func ExtractClientTotals(stream *record.Stream, control config.ControlSettings, logger *slog.Logger) (ControlTotals, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var totals ControlTotals
	found := map[string]bool{}

	for _, rec := range stream.Records {
		if rec.Get(control.RecordTypeField) != control.TrailerType {
			continue
		}

		label := rec.Get(control.LabelField)
		value := rec.Get(control.ValueField)

		switch label {
		case control.TotalAmountLabel:
			amount, err := decimal.NewFromString(value)
			if err != nil {
				return totals, fmt.Errorf("control row %q at line %d: invalid amount %q: %w", label, rec.Line(), value, err)
			}
			totals.TotalAmount = amount
		case control.ReceiptCountLabel:
			n, err := strconv.Atoi(value)
			if err != nil {
				return totals, fmt.Errorf("control row %q at line %d: invalid count %q: %w", label, rec.Line(), value, err)
			}
			totals.ReceiptCount = n
		case control.EmailReceiptCountLabel:
			n, err := strconv.Atoi(value)
			if err != nil {
				return totals, fmt.Errorf("control row %q at line %d: invalid count %q: %w", label, rec.Line(), value, err)
			}
			totals.EmailReceiptCount = n
		default:
			logger.Warn("ignoring control row with unknown label", "label", label, "line", rec.Line())
			continue
		}

		found[label] = true
		logger.Debug("control total found", "label", label, "value", value)
	}

	for _, label := range []string{control.TotalAmountLabel, control.ReceiptCountLabel, control.EmailReceiptCountLabel} {
		if !found[label] {
			logger.Warn("control total missing from input, assuming zero", "label", label)
		}
	}

	return totals, nil
}

// =============================================================================
// SPLIT CONTROL TOTALS
// =============================================================================

// Figure names used by SplitTotals.
const (
	DocumentCount = "Document Count"
	CheckTotal    = "Check Total"
)

// SplitTotals are the two figures reconciled by the header/transaction split.
type SplitTotals struct {
	DocumentCount int
	CheckTotal    decimal.Decimal
}

// Figures implements Figurer.
func (s SplitTotals) Figures() []Figure {
	return []Figure{
		Count(DocumentCount, s.DocumentCount),
		Amount(CheckTotal, s.CheckTotal),
	}
}
