// =============================================================================
// Receipt Batch Composer - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing the configuration for
// a composer run. A single YAML file describes the physical layout of the
// client file (which column carries the subject id, the donation date, the
// amount, ...), the control rows used for reconciliation, and the output
// settings for the composed batch.
//
// CONFIGURATION SOURCES (later sources win):
//   1. Built-in defaults describing the standard donation receipt file
//   2. The YAML file passed with --config
//   3. A .env file in the working directory (optional)
//   4. Environment variables (BATCH_*)
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// Config holds the configuration for every command of the application.
type Config struct {
	// Input contains settings for reading the client file.
	Input InputSettings `yaml:"input"`

	// Fields maps logical field roles to the physical column names found in
	// the header row of the client file.
	Fields FieldMap `yaml:"fields"`

	// Control describes the trailer rows carrying client control totals.
	Control ControlSettings `yaml:"control"`

	// Output contains settings for the composed batch file.
	Output OutputSettings `yaml:"output"`

	// Transformations are field-level rules applied to every record before
	// grouping. They are applied in the order they are listed.
	Transformations []TransformationRule `yaml:"transformations"`

	// Split contains settings for the header/transaction split pass.
	Split SplitSettings `yaml:"split"`

	// Audit contains settings for the audit metadata store.
	Audit AuditSettings `yaml:"audit"`

	// ArchiveDir is where input files are moved after a successful run.
	// Leave empty to keep input files in place.
	ArchiveDir string `yaml:"archive_dir"`

	// SummaryDir is where run summaries are written. Leave empty to skip.
	SummaryDir string `yaml:"summary_dir"`

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`
}

// InputSettings contains settings for parsing the client file.
type InputSettings struct {
	// Delimiter is the character used to separate fields.
	// Common values: "," (comma), "|" (pipe), "\t" (tab)
	// Default: ","
	Delimiter string `yaml:"delimiter"`
}

// FieldMap names the physical columns that carry each logical field.
type FieldMap struct {
	SubjectID       string `yaml:"subject_id"`
	Date            string `yaml:"date"`
	Amount          string `yaml:"amount"`
	DeductAmount    string `yaml:"deduct_amount"`
	NonDeductAmount string `yaml:"nondeduct_amount"`
	DeductYTD       string `yaml:"deduct_ytd"`
	NonDeductYTD    string `yaml:"nondeduct_ytd"`
	Designation     string `yaml:"designation"`

	// ExemptionCodes are the two exemption code columns carried onto the
	// package header, in header order.
	ExemptionCodes []string `yaml:"exemption_codes"`

	// EmailMarkers are the columns that, when non-empty on any detail,
	// flag the whole package as an email receipt.
	EmailMarkers []string `yaml:"email_markers"`
}

// ControlSettings describes the control rows at the end of the client file.
type ControlSettings struct {
	// RecordTypeField is the column that tags a row as a control row.
	RecordTypeField string `yaml:"record_type_field"`

	// TrailerType is the value of RecordTypeField on control rows.
	// Default: "T"
	TrailerType string `yaml:"trailer_type"`

	// LabelField carries the name of the control total on a control row.
	LabelField string `yaml:"label_field"`

	// ValueField carries the value of the control total on a control row.
	ValueField string `yaml:"value_field"`

	TotalAmountLabel       string `yaml:"total_amount_label"`
	ReceiptCountLabel      string `yaml:"receipt_count_label"`
	EmailReceiptCountLabel string `yaml:"email_receipt_count_label"`
}

// OutputSettings contains settings for the composed batch file.
type OutputSettings struct {
	// Delimiter separates fields inside a record and follows the tier tag.
	// Default: "|"
	Delimiter string `yaml:"delimiter"`

	// DetailFields is the destination field list for "02" detail rows.
	// Input fields not listed are dropped. Empty means every input field,
	// in input order.
	DetailFields []string `yaml:"detail_fields"`

	// LayoutWorkbook is an optional XLSX workbook that supplies the detail
	// field list and the required input fields. It overrides DetailFields.
	LayoutWorkbook string `yaml:"layout_workbook"`
}

// TransformationRule defines transformations to apply to a specific field.
type TransformationRule struct {
	// Field is the column header the rule applies to.
	Field string `yaml:"field"`

	// Actions are applied in order.
	Actions []TransformationAction `yaml:"actions"`
}

// TransformationAction defines a single transformation action.
type TransformationAction struct {
	// Type is the type of transformation to apply.
	// Supported types:
	//   - "trim", "trim_left", "trim_right"
	//   - "uppercase", "lowercase"
	//   - "prepend_string", "append_string"
	//   - "replace", "regex_replace"
	//   - "pad_zeros_to_length"
	//   - "lookup"
	Type string `yaml:"type"`

	// Value is the parameter for the transformation (string to add, target
	// length, replacement, characters to trim).
	Value string `yaml:"value"`

	// Find is the substring or pattern for "replace" and "regex_replace".
	Find string `yaml:"find,omitempty"`

	// LookupTable maps input values to output values for "lookup".
	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// SplitSettings contains settings for the header/transaction split pass.
// Column indexes are 0-based. Column 0 always carries the row type, so a
// zero index means "use the default".
type SplitSettings struct {
	Delimiter         string `yaml:"delimiter"`
	HeaderType        string `yaml:"header_type"`
	PaymentType       string `yaml:"payment_type"`
	DocCountColumn    int    `yaml:"doc_count_column"`
	CheckTotalColumn  int    `yaml:"check_total_column"`
	AmountColumn      int    `yaml:"amount_column"`
	VendorColumn      int    `yaml:"vendor_column"`
	CheckNumberColumn int    `yaml:"check_number_column"`

	// ReportFile receives one fixed-width line per payment. Empty disables
	// the report.
	ReportFile string `yaml:"report_file"`
}

// AuditSettings contains settings for the audit metadata store.
type AuditSettings struct {
	// DBPath is the SQLite database file. Empty disables auditing.
	DBPath string `yaml:"db_path"`

	// FacilityCode is stamped on every audit row.
	// Default: "LGN"
	FacilityCode string `yaml:"facility_code"`

	// FirstAckMinutes and SecondAckMinutes are the waits before a missing
	// acknowledgement is reported.
	FirstAckMinutes  int `yaml:"first_ack_minutes"`
	SecondAckMinutes int `yaml:"second_ack_minutes"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns the configuration for the standard donation receipt file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load loads the configuration from a YAML file, then applies .env and
// environment overrides. An empty path starts from the built-in defaults.
//
// PARAMETERS:
//   - configPath: The path to the configuration file (may be empty).
//
// RETURNS:
//   - A pointer to the Config struct.
//   - An error if the file cannot be read, parsed, or fails validation.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// A missing .env file is not an error.
	_ = godotenv.Load()
	applyEnv(&cfg)

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnv overrides file settings with BATCH_* environment variables.
func applyEnv(cfg *Config) {
	cfg.LogLevel = getEnvOrDefault("BATCH_LOG_LEVEL", cfg.LogLevel)
	cfg.Audit.DBPath = getEnvOrDefault("BATCH_AUDIT_DB", cfg.Audit.DBPath)
	cfg.ArchiveDir = getEnvOrDefault("BATCH_ARCHIVE_DIR", cfg.ArchiveDir)
	cfg.SummaryDir = getEnvOrDefault("BATCH_SUMMARY_DIR", cfg.SummaryDir)
	cfg.Split.ReportFile = getEnvOrDefault("BATCH_REPORT_FILE", cfg.Split.ReportFile)
}

// applyDefaults sets default values for any unset configuration options.
func applyDefaults(cfg *Config) {
	setDefault(&cfg.Input.Delimiter, ",")

	f := &cfg.Fields
	setDefault(&f.SubjectID, "PEOPLE_ID")
	setDefault(&f.Date, "DON_DATE")
	setDefault(&f.Amount, "AMOUNT")
	setDefault(&f.DeductAmount, "DEDUCT_AMT")
	setDefault(&f.NonDeductAmount, "ND_AMT")
	setDefault(&f.DeductYTD, "DEDUCT_YTD")
	setDefault(&f.NonDeductYTD, "NONDEDUCT_YTD")
	setDefault(&f.Designation, "DESIG")
	if len(f.ExemptionCodes) == 0 {
		f.ExemptionCodes = []string{"INT_CODE_EX0003", "INT_CODE_EX0023"}
	}
	if len(f.EmailMarkers) == 0 {
		f.EmailMarkers = []string{"INT_CODE_EX0006", "INT_CODE_EX0028"}
	}

	c := &cfg.Control
	setDefault(&c.RecordTypeField, "RECEIPT_NUMBER")
	setDefault(&c.TrailerType, "T")
	setDefault(&c.LabelField, "LAST_REASON")
	setDefault(&c.ValueField, "JAN_AMT")
	setDefault(&c.TotalAmountLabel, "Total Amount")
	setDefault(&c.ReceiptCountLabel, "Receipt Count")
	setDefault(&c.EmailReceiptCountLabel, "Email Receipt Count")

	setDefault(&cfg.Output.Delimiter, "|")

	s := &cfg.Split
	setDefault(&s.Delimiter, ",")
	setDefault(&s.HeaderType, "H")
	setDefault(&s.PaymentType, "P")
	if s.DocCountColumn == 0 {
		s.DocCountColumn = 6
	}
	if s.CheckTotalColumn == 0 {
		s.CheckTotalColumn = 7
	}
	if s.AmountColumn == 0 {
		s.AmountColumn = 12
	}
	if s.VendorColumn == 0 {
		s.VendorColumn = 2
	}
	if s.CheckNumberColumn == 0 {
		s.CheckNumberColumn = 9
	}

	setDefault(&cfg.Audit.FacilityCode, "LGN")
	if cfg.Audit.FirstAckMinutes == 0 {
		cfg.Audit.FirstAckMinutes = 30
	}
	if cfg.Audit.SecondAckMinutes == 0 {
		cfg.Audit.SecondAckMinutes = 120
	}

	setDefault(&cfg.LogLevel, "info")
}

// Validate checks the configuration for settings that would make a run
// meaningless.
func (c *Config) Validate() error {
	var problems []string

	if len(c.Fields.ExemptionCodes) != 2 {
		problems = append(problems, fmt.Sprintf("fields.exemption_codes must name exactly 2 columns, got %d", len(c.Fields.ExemptionCodes)))
	}
	if len(c.Fields.EmailMarkers) != 2 {
		problems = append(problems, fmt.Sprintf("fields.email_markers must name exactly 2 columns, got %d", len(c.Fields.EmailMarkers)))
	}
	for name, value := range map[string]string{
		"input.delimiter":  c.Input.Delimiter,
		"output.delimiter": c.Output.Delimiter,
		"split.delimiter":  c.Split.Delimiter,
	} {
		if _, ok := DelimiterRune(value); !ok {
			problems = append(problems, fmt.Sprintf("%s must be a single character or tab, pipe, semicolon; got %q", name, value))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	if c.Output.LayoutWorkbook != "" {
		if _, err := os.Stat(c.Output.LayoutWorkbook); err != nil {
			problems = append(problems, fmt.Sprintf("layout workbook %s: %v", c.Output.LayoutWorkbook, err))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// delimiterNames are the named delimiters accepted besides a single character.
var delimiterNames = map[string]rune{
	`\t`:       '\t',
	"tab":       '\t',
	"TAB":       '\t',
	"pipe":      '|',
	"PIPE":      '|',
	"semicolon": ';',
}

// DelimiterRune resolves a delimiter setting. Empty means comma. ok is false
// when the setting is neither a single character nor a known name; r is
// then its first rune.
func DelimiterRune(delimiter string) (r rune, ok bool) {
	if r, ok := delimiterNames[delimiter]; ok {
		return r, true
	}
	runes := []rune(delimiter)
	switch len(runes) {
	case 0:
		return ',', true
	case 1:
		return runes[0], true
	}
	return runes[0], false
}

// RequiredFields returns every input column a compose run reads.
func (f FieldMap) RequiredFields() []string {
	fields := []string{
		f.SubjectID,
		f.Date,
		f.Amount,
		f.DeductAmount,
		f.NonDeductAmount,
		f.DeductYTD,
		f.NonDeductYTD,
		f.Designation,
	}
	fields = append(fields, f.ExemptionCodes...)
	return append(fields, f.EmailMarkers...)
}

// EnsureDir creates dir (and parents) unless it is empty.
func EnsureDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Clean(dir), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
