// =============================================================================
// Receipt Batch Composer - Composer Module
// =============================================================================
//
// This module orchestrates a compose run for a single client file, from the
// delimited input to the reconciled three-tier batch.
//
// COMPOSE PIPELINE:
//   1. Read the client file into a record stream
//   2. Apply transformation rules to every record
//   3. Check that every field the run reads is present
//   4. Extract the client control totals from the trailer rows
//   5. Extract the package keys
//   6. Aggregate the details of every key into a package
//   7. Write the 01/02/03 tiers to a staged output file
//   8. Reconcile client totals against computed totals
//   9. Commit the output (or discard it on any failure)
//  10. Archive the input and write the run summary
//
// The run is sequential and single-pass; every file handle is released on
// every exit path.
//
// =============================================================================

package composer

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ginjaninja78/receipt-batch-composer/internal/config"
	"github.com/ginjaninja78/receipt-batch-composer/internal/layout"
	"github.com/ginjaninja78/receipt-batch-composer/internal/reconcile"
	"github.com/ginjaninja78/receipt-batch-composer/internal/record"
	"github.com/ginjaninja78/receipt-batch-composer/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of one compose run.
type Result struct {
	// RunID identifies the run in logs, summaries and audit rows.
	RunID string

	// InputFile is the client file that was read.
	InputFile string

	// OutputFile is the committed batch file. It is empty if the run failed.
	OutputFile string

	// ArchivePath is where the input was moved, if archival is configured.
	ArchivePath string

	// Client and Computed are the reconciled control totals.
	Client   reconcile.ControlTotals
	Computed reconcile.ControlTotals

	Stats Stats

	// Error is nil if the run succeeded.
	Error error
}

// Stats contains statistics about a compose run.
type Stats struct {
	// Records is the number of data records read (control rows included).
	Records int

	// Totals are the running totals of the batch writer.
	Totals Totals

	// ProcessingTime is the wall time of the run.
	ProcessingTime time.Duration
}

// =============================================================================
// COMPOSER STRUCTURE
// =============================================================================

// Composer composes receipt batches with one configuration.
type Composer struct {
	cfg         *config.Config
	transformer *record.Transformer
	layout      *layout.Layout
	logger      *slog.Logger
}

// New creates a Composer. Transformation rules are compiled and the layout
// workbook (if configured) is parsed once here.
//
// PARAMETERS:
//   - cfg: The run configuration.
//   - logger: The logger; nil means slog.Default().
//
// RETURNS:
//   - A new Composer.
//   - An error if a transformation rule or the layout workbook is invalid.
func New(cfg *config.Config, logger *slog.Logger) (*Composer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	transformer, err := record.NewTransformer(cfg.Transformations)
	if err != nil {
		return nil, fmt.Errorf("failed to compile transformations: %w", err)
	}

	c := &Composer{
		cfg:         cfg,
		transformer: transformer,
		logger:      logger,
	}

	if cfg.Output.LayoutWorkbook != "" {
		l, err := layout.Parse(cfg.Output.LayoutWorkbook)
		if err != nil {
			return nil, err
		}
		c.layout = l
		logger.Debug("using layout workbook", "path", l.SourceFile, "detail_fields", len(l.DetailFields))
	}

	return c, nil
}

// =============================================================================
// MAIN PROCESSING FUNCTIONS
// =============================================================================

// Run composes inputPath into outputPath. The output only appears at
// outputPath when the batch reconciled; a failed run leaves no output.
func (c *Composer) Run(inputPath, outputPath string) (result Result) {
	startTime := time.Now()
	result = Result{
		RunID:     uuid.New().String(),
		InputFile: inputPath,
	}
	logger := c.logger.With("run_id", result.RunID)

	defer func() {
		result.Stats.ProcessingTime = time.Since(startTime)
		c.writeSummary(&result, startTime)
	}()

	logger.Info("composing batch", "input", inputPath, "output", outputPath)

	reader := &record.Reader{Delimiter: c.cfg.Input.Delimiter}
	stream, err := reader.ReadFile(inputPath)
	if err != nil {
		result.Error = fmt.Errorf("failed to read input: %w", err)
		return result
	}

	staged, err := utils.CreateStaged(outputPath)
	if err != nil {
		result.Error = err
		return result
	}
	defer staged.Discard()

	composed, err := c.compose(stream, staged, logger)
	result.Stats = composed.Stats
	result.Client = composed.Client
	result.Computed = composed.Computed
	if err != nil {
		result.Error = err
		return result
	}

	if err := staged.Commit(); err != nil {
		result.Error = err
		return result
	}
	result.OutputFile = outputPath
	logger.Info("wrote batch", "output", outputPath, "packages", result.Stats.Totals.Packages)

	archived, err := utils.ArchiveInput(inputPath, c.cfg.ArchiveDir)
	if err != nil {
		// The batch is already committed; archival failures are reported only.
		logger.Warn("failed to archive input", "error", err)
	} else if archived != inputPath {
		result.ArchivePath = archived
		logger.Debug("archived input", "path", archived)
	}

	return result
}

// Compose writes the batch for an already read stream to out and
// reconciles it. Output is written before reconciliation, so callers that
// need all-or-nothing output must stage out themselves (Run does).
//
// RETURNS:
//   - The run result (Stats, Client and Computed are filled as far as the
//     run got).
//   - A *reconcile.MismatchError if the totals do not match, or any other
//     error that stopped the run.
func (c *Composer) Compose(stream *record.Stream, out io.Writer) (Result, error) {
	return c.compose(stream, out, c.logger)
}

func (c *Composer) compose(stream *record.Stream, out io.Writer, logger *slog.Logger) (Result, error) {
	var result Result
	result.Stats.Records = len(stream.Records)
	fields := c.cfg.Fields
	control := c.cfg.Control

	stream = c.transformer.ApplyStream(stream)

	if err := stream.Schema.Require(c.requiredFields()...); err != nil {
		return result, err
	}

	client, err := reconcile.ExtractClientTotals(stream, control, logger)
	if err != nil {
		return result, fmt.Errorf("failed to read client totals: %w", err)
	}
	result.Client = client
	logger.Info("client totals", "totals", reconcile.Format(client))

	details := stream.Filter(func(r record.Record) bool {
		return r.Get(control.RecordTypeField) != control.TrailerType
	})

	keys := Keys(details, fields)
	logger.Debug("extracted package keys", "keys", len(keys), "records", len(details))

	packages, err := Aggregate(keys, details, fields)
	if err != nil {
		return result, fmt.Errorf("failed to aggregate packages: %w", err)
	}

	w := &Writer{
		DetailFields: c.detailFields(stream.Schema),
		Fields:       fields,
		Delimiter:    record.DelimiterRune(c.cfg.Output.Delimiter),
		Logger:       logger,
	}
	totals, err := w.Write(out, packages)
	result.Stats.Totals = totals
	if err != nil {
		return result, fmt.Errorf("failed to write batch: %w", err)
	}

	result.Computed = totals.Control()
	logger.Info("computed totals", "totals", reconcile.Format(result.Computed), "details", totals.Details)

	if err := reconcile.Validate(client, result.Computed); err != nil {
		logger.Error("reconciliation failed", "error", err)
		return result, err
	}

	logger.Info("totals matched")
	return result, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// requiredFields lists every input column the run reads.
func (c *Composer) requiredFields() []string {
	required := c.cfg.Fields.RequiredFields()
	if c.layout != nil {
		required = append(required, c.layout.RequiredFields...)
	}
	ctl := c.cfg.Control
	return append(required, ctl.RecordTypeField, ctl.LabelField, ctl.ValueField)
}

// detailFields returns the destination field list of "02" rows: the layout
// workbook, then the configured list, then every input field.
func (c *Composer) detailFields(schema *record.Schema) []string {
	switch {
	case c.layout != nil:
		return c.layout.DetailFields
	case len(c.cfg.Output.DetailFields) > 0:
		return c.cfg.Output.DetailFields
	default:
		return schema.Names()
	}
}

func (c *Composer) writeSummary(result *Result, startTime time.Time) {
	if c.cfg.SummaryDir == "" {
		return
	}
	if err := config.EnsureDir(c.cfg.SummaryDir); err != nil {
		c.logger.Warn("failed to write run summary", "error", err)
		return
	}

	totals := result.Stats.Totals
	summary := utils.RunSummary{
		RunID:          result.RunID,
		StartTime:      startTime,
		EndTime:        startTime.Add(result.Stats.ProcessingTime),
		InputFile:      result.InputFile,
		OutputFile:     result.OutputFile,
		ArchivePath:    result.ArchivePath,
		Records:        result.Stats.Records,
		Packages:       totals.Packages,
		Details:        totals.Details,
		EmailPackages:  totals.EmailPackages,
		TrailerLines:   totals.TrailerLines,
		ClientTotals:   reconcile.Format(result.Client),
		ComputedTotals: reconcile.Format(result.Computed),
	}
	if result.Error != nil {
		summary.Error = result.Error.Error()
	}

	path, err := utils.WriteSummaryLog(summary, c.cfg.SummaryDir)
	if err != nil {
		c.logger.Warn("failed to write run summary", "error", err)
		return
	}
	c.logger.Debug("wrote run summary", "path", path)
}
