// =============================================================================
// Receipt Batch Composer - Header/Transaction Split
// =============================================================================
//
// The split pass separates the header rows of a payment file from its
// transaction rows. The first column of every row carries the row type.
//
// SPLIT PIPELINE:
//   1. Read every row (no field-name row)
//   2. Rows typed as header ("H") go to the header list, all others to the
//      transaction list
//   3. Client figures come from the first header row: document count and
//      check total
//   4. Computed figures: number of payment rows ("P") and the sum of their
//      amount column
//   5. Reconcile; only on a match are the two files written and the weekly
//      report appended
//
// =============================================================================

package split

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/receipt-batch-composer/internal/config"
	"github.com/ginjaninja78/receipt-batch-composer/internal/reconcile"
	"github.com/ginjaninja78/receipt-batch-composer/internal/record"
	"github.com/ginjaninja78/receipt-batch-composer/pkg/utils"
)

// ErrNoHeader is returned when the input has no header row.
var ErrNoHeader = errors.New("input has no header row")

// =============================================================================
// DATA STRUCTURES
// =============================================================================

// Rows is a split input file.
type Rows struct {
	Headers      [][]string
	Transactions [][]string
}

// Payment is one payment row as it appears on the weekly report.
type Payment struct {
	Vendor      string
	CheckNumber string
	Amount      decimal.Decimal
}

// Result represents the outcome of a split run.
type Result struct {
	Client   reconcile.SplitTotals
	Computed reconcile.SplitTotals

	Headers      int
	Transactions int
	Payments     []Payment
}

// =============================================================================
// SPLITTER
// =============================================================================

// Splitter runs the split pass with one set of settings.
type Splitter struct {
	Settings config.SplitSettings
	Logger   *slog.Logger

	// Now stamps report lines. Default time.Now.
	Now func() time.Time
}

// New creates a Splitter.
func New(settings config.SplitSettings, logger *slog.Logger) *Splitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{Settings: settings, Logger: logger, Now: time.Now}
}

// Run splits inputPath into headerPath and transactionPath.
//
// RETURNS:
//   - The split result with both sets of figures.
//   - A *reconcile.MismatchError if the figures do not match; in that case
//     nothing is written.
func (s *Splitter) Run(inputPath, headerPath, transactionPath string) (*Result, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer file.Close()

	rows, err := s.Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", inputPath, err)
	}
	s.Logger.Debug("split input", "headers", len(rows.Headers), "transactions", len(rows.Transactions))

	result, err := s.Reconcile(rows)
	if err != nil {
		return result, err
	}

	header, err := stageRows(headerPath, rows.Headers)
	if err != nil {
		return result, err
	}
	defer header.Discard()

	transactions, err := stageRows(transactionPath, rows.Transactions)
	if err != nil {
		return result, err
	}
	defer transactions.Discard()

	if err := header.Commit(); err != nil {
		return result, err
	}
	if err := transactions.Commit(); err != nil {
		os.Remove(headerPath)
		return result, err
	}
	s.Logger.Info("wrote header file", "path", headerPath, "rows", len(rows.Headers))
	s.Logger.Info("wrote transaction file", "path", transactionPath, "rows", len(rows.Transactions))

	if s.Settings.ReportFile != "" {
		if err := s.appendReport(filepath.Base(inputPath), result.Payments); err != nil {
			return result, err
		}
		s.Logger.Debug("appended weekly report", "path", s.Settings.ReportFile, "lines", len(result.Payments))
	}

	return result, nil
}

// Read separates header rows from transaction rows.
func (s *Splitter) Read(in io.Reader) (*Rows, error) {
	reader := record.NewCSVReader(in, s.Settings.Delimiter)
	rows := &Rows{}

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		if row[0] == s.Settings.HeaderType {
			rows.Headers = append(rows.Headers, row)
		} else {
			rows.Transactions = append(rows.Transactions, row)
		}
	}

	return rows, nil
}

// Reconcile computes both sets of figures and compares them.
func (s *Splitter) Reconcile(rows *Rows) (*Result, error) {
	if len(rows.Headers) == 0 {
		return nil, ErrNoHeader
	}

	result := &Result{
		Headers:      len(rows.Headers),
		Transactions: len(rows.Transactions),
		Computed:     reconcile.SplitTotals{CheckTotal: decimal.Zero},
	}

	header := rows.Headers[0]
	docCount, err := column(header, s.Settings.DocCountColumn)
	if err != nil {
		return nil, fmt.Errorf("header row document count: %w", err)
	}
	result.Client.DocumentCount, err = strconv.Atoi(docCount)
	if err != nil {
		return nil, fmt.Errorf("header row document count %q is not a number", docCount)
	}

	checkTotal, err := column(header, s.Settings.CheckTotalColumn)
	if err != nil {
		return nil, fmt.Errorf("header row check total: %w", err)
	}
	result.Client.CheckTotal, err = decimal.NewFromString(checkTotal)
	if err != nil {
		return nil, fmt.Errorf("header row check total %q is not a number", checkTotal)
	}
	s.Logger.Info("client totals", "totals", reconcile.Format(result.Client))

	for i, row := range rows.Transactions {
		if row[0] != s.Settings.PaymentType {
			continue
		}

		payment, err := s.payment(row)
		if err != nil {
			return nil, fmt.Errorf("transaction row %d: %w", i+1, err)
		}

		result.Computed.DocumentCount++
		result.Computed.CheckTotal = result.Computed.CheckTotal.Add(payment.Amount)
		result.Payments = append(result.Payments, payment)
	}
	s.Logger.Info("computed totals", "totals", reconcile.Format(result.Computed))

	if err := reconcile.Validate(result.Client, result.Computed); err != nil {
		return result, err
	}

	s.Logger.Info("totals matched")
	return result, nil
}

func (s *Splitter) payment(row []string) (Payment, error) {
	amount, err := column(row, s.Settings.AmountColumn)
	if err != nil {
		return Payment{}, fmt.Errorf("amount: %w", err)
	}
	p := Payment{}
	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return Payment{}, fmt.Errorf("amount %q is not a number", amount)
	}
	// Report columns are optional.
	p.Vendor, _ = column(row, s.Settings.VendorColumn)
	p.CheckNumber, _ = column(row, s.Settings.CheckNumberColumn)
	return p, nil
}

// =============================================================================
// OUTPUT
// =============================================================================

// ReportLine formats one weekly report line: file name (50), vendor (50),
// check number (30) and the date.
func ReportLine(fileName string, p Payment, date time.Time) string {
	return fmt.Sprintf("%-50s%-50s%-30s%s\n", fileName, p.Vendor, p.CheckNumber, date.Format("2006-01-02"))
}

func (s *Splitter) appendReport(fileName string, payments []Payment) error {
	if err := config.EnsureDir(filepath.Dir(s.Settings.ReportFile)); err != nil {
		return err
	}

	f, err := os.OpenFile(s.Settings.ReportFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open report file: %w", err)
	}
	defer f.Close()

	now := s.Now()
	for _, p := range payments {
		if _, err := io.WriteString(f, ReportLine(fileName, p, now)); err != nil {
			return fmt.Errorf("failed to write report line: %w", err)
		}
	}
	return nil
}

// stageRows writes rows as comma separated values with minimal quoting to
// a staged file for path. The caller commits or discards it.
func stageRows(path string, rows [][]string) (*utils.StagedFile, error) {
	staged, err := utils.CreateStaged(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(staged)
	if err := w.WriteAll(rows); err != nil {
		staged.Discard()
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return staged, nil
}

func column(row []string, i int) (string, error) {
	if i < 0 || i >= len(row) {
		return "", fmt.Errorf("row has %d columns, need column %d", len(row), i)
	}
	return strings.TrimSpace(row[i]), nil
}
