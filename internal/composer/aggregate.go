package composer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/receipt-batch-composer/internal/config"
	"github.com/ginjaninja78/receipt-batch-composer/internal/record"
)

// DetailsPerPage is the number of detail lines printed on one receipt page,
// and the number of designation slots on one OCR line.
const DetailsPerPage = 6

// ErrEmptyPackage is returned when a key has no detail records.
var ErrEmptyPackage = errors.New("package has no detail records")

// =============================================================================
// PACKAGE
// =============================================================================

// Package is the aggregate of every detail record sharing one PackageKey.
// Packages are built once by Aggregate and never modified afterwards.
type Package struct {
	Key PackageKey

	// Details are the records of the package in input order.
	Details []record.Record

	// AmountSum is the sum of every numeric amount. Non-numeric amounts
	// are skipped.
	AmountSum decimal.Decimal

	// PageCount is ceil(len(Details) / DetailsPerPage).
	PageCount int

	// EmailFlag is set when any detail has an email marker.
	EmailFlag bool

	// Carried forward from the first detail record.
	DeductAmount    string
	NonDeductAmount string
	DeductYTD       string
	NonDeductYTD    string
	ExemptionCodes  [2]string

	// YTDTotal is DeductYTD + NonDeductYTD with two decimals, or "" when
	// either part is not a number.
	YTDTotal string
}

// DetailCount returns the number of detail records.
func (p *Package) DetailCount() int {
	return len(p.Details)
}

// HeaderFields returns the "01" header record fields: the key followed by
// the derived fields, in the physical layout order of the header record.
func (p *Package) HeaderFields() []string {
	return []string{
		p.Key.SubjectID,
		p.Key.Date,
		p.DeductAmount,
		p.NonDeductAmount,
		p.DeductYTD,
		p.NonDeductYTD,
		p.YTDTotal,
		fmt.Sprintf("%d", p.PageCount),
		p.AmountSum.StringFixed(2),
		p.ExemptionCodes[0],
		p.ExemptionCodes[1],
	}
}

// =============================================================================
// AGGREGATION
// =============================================================================

// Aggregate builds one Package per key, in key order. Each key scans the
// full record list, so details keep their input order.
//
// RETURNS:
//   - The packages.
//   - ErrEmptyPackage (wrapped) if a key matches no record.
func Aggregate(keys []PackageKey, records []record.Record, fields config.FieldMap) ([]Package, error) {
	packages := make([]Package, 0, len(keys))

	for _, key := range keys {
		var details []record.Record
		for _, rec := range records {
			if KeyOf(rec, fields) == key {
				details = append(details, rec)
			}
		}

		pkg, err := newPackage(key, details, fields)
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}

	return packages, nil
}

func newPackage(key PackageKey, details []record.Record, fields config.FieldMap) (Package, error) {
	if len(details) == 0 {
		return Package{}, fmt.Errorf("%w: subject %q date %q", ErrEmptyPackage, key.SubjectID, key.Date)
	}

	first := details[0]
	pkg := Package{
		Key:             key,
		Details:         details,
		AmountSum:       decimal.Zero,
		PageCount:       PageCount(len(details)),
		DeductAmount:    first.Get(fields.DeductAmount),
		NonDeductAmount: first.Get(fields.NonDeductAmount),
		DeductYTD:       first.Get(fields.DeductYTD),
		NonDeductYTD:    first.Get(fields.NonDeductYTD),
	}

	for i := 0; i < len(pkg.ExemptionCodes) && i < len(fields.ExemptionCodes); i++ {
		pkg.ExemptionCodes[i] = first.Get(fields.ExemptionCodes[i])
	}

	if ytd, ok := sumAmounts(pkg.DeductYTD, pkg.NonDeductYTD); ok {
		pkg.YTDTotal = ytd.StringFixed(2)
	}

	for _, rec := range details {
		if amount, ok := parseAmount(rec.Get(fields.Amount)); ok {
			pkg.AmountSum = pkg.AmountSum.Add(amount)
		}
		if hasEmailMarker(rec, fields.EmailMarkers) {
			pkg.EmailFlag = true
		}
	}

	return pkg, nil
}

// PageCount returns the number of receipt pages needed for n details.
func PageCount(n int) int {
	return (n + DetailsPerPage - 1) / DetailsPerPage
}

func hasEmailMarker(rec record.Record, markers []string) bool {
	for _, marker := range markers {
		if rec.Get(marker) != "" {
			return true
		}
	}
	return false
}

// parseAmount parses a monetary value. ok is false for anything that is
// not a plain decimal number ("", "N/A", ...).
func parseAmount(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func sumAmounts(values ...string) (decimal.Decimal, bool) {
	total := decimal.Zero
	for _, v := range values {
		d, ok := parseAmount(v)
		if !ok {
			return decimal.Zero, false
		}
		total = total.Add(d)
	}
	return total, true
}
