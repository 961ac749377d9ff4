// =============================================================================
// Receipt Batch Composer - Reconciliation
// =============================================================================
//
// Reconciliation compares the control figures a client declares in its file
// with the figures computed while processing that file. Every figure must
// match exactly; a single difference fails the run.
//
// Two reconciliations use this package:
//   1. The batch composer: total amount, receipt count, email receipt count
//   2. The header/transaction split: document count and check total
//
// Both are expressed as ordered lists of named Figures and checked by the
// same Compare function.
//
// =============================================================================

package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMismatch is wrapped by every reconciliation failure.
var ErrMismatch = errors.New("reconciliation totals do not match")

// =============================================================================
// FIGURES
// =============================================================================

// Figure is one named control figure.
type Figure struct {
	Name  string
	Value decimal.Decimal
}

// Count builds a Figure from an integer count.
func Count(name string, n int) Figure {
	return Figure{Name: name, Value: decimal.NewFromInt(int64(n))}
}

// Amount builds a Figure from a monetary value.
func Amount(name string, v decimal.Decimal) Figure {
	return Figure{Name: name, Value: v}
}

// Figurer is implemented by any set of control totals.
type Figurer interface {
	Figures() []Figure
}

// =============================================================================
// MISMATCH ERROR
// =============================================================================

// MismatchError reports a failed reconciliation with both sets of figures.
type MismatchError struct {
	Client   []Figure
	Computed []Figure

	// Differences holds the names of the figures that differ.
	Differences []string
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("%v: client %s computed %s (differs: %s)",
		ErrMismatch,
		formatFigures(e.Client),
		formatFigures(e.Computed),
		strings.Join(e.Differences, ", "),
	)
}

// Unwrap lets errors.Is match ErrMismatch.
func (e *MismatchError) Unwrap() error {
	return ErrMismatch
}

// =============================================================================
// COMPARISON
// =============================================================================

// Compare checks client figures against computed figures position by
// position. Figures are equal when their decimal values are equal, so
// "75", "75.0" and "75.00" all match.
//
// RETURNS:
//   - nil if every figure matches.
//   - A *MismatchError otherwise, including when the lists differ in length.
func Compare(client, computed []Figure) error {
	var diffs []string

	n := len(client)
	if len(computed) > n {
		n = len(computed)
	}

	for i := 0; i < n; i++ {
		switch {
		case i >= len(client):
			diffs = append(diffs, computed[i].Name)
		case i >= len(computed):
			diffs = append(diffs, client[i].Name)
		case !client[i].Value.Equal(computed[i].Value):
			diffs = append(diffs, client[i].Name)
		}
	}

	if len(diffs) == 0 {
		return nil
	}

	return &MismatchError{
		Client:      client,
		Computed:    computed,
		Differences: diffs,
	}
}

// Validate compares two sets of control totals.
func Validate(client, computed Figurer) error {
	return Compare(client.Figures(), computed.Figures())
}

// formatFigures renders figures as "(a, b, c)". Values print without
// trailing zeros so counts read as integers.
func formatFigures(figures []Figure) string {
	parts := make([]string, len(figures))
	for i, f := range figures {
		parts[i] = f.Value.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Format renders a figure set for logging, e.g.
// "Total Amount=75 Receipt Count=2 Email Receipt Count=0".
func Format(f Figurer) string {
	figures := f.Figures()
	parts := make([]string, len(figures))
	for i, fig := range figures {
		parts[i] = fig.Name + "=" + fig.Value.String()
	}
	return strings.Join(parts, " ")
}
