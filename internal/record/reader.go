// =============================================================================
// Receipt Batch Composer - Record Reader
// =============================================================================
//
// The reader turns a delimited client file into a Stream. The first row is
// the field-name row; every following non-empty row is a record. The whole
// file is read into memory because grouping needs every record at hand.
//
// PARSING RULES:
//   - Delimiter is configurable ("," by default, "tab"/"pipe" aliases)
//   - Rows may have fewer or more fields than the header row
//   - Quotes are parsed leniently
//   - Every value is cleaned (trimmed, control characters dropped)
//
// =============================================================================

package record

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/receipt-batch-composer/internal/config"
	"github.com/ginjaninja78/receipt-batch-composer/internal/sanitize"
)

// Reader reads client files.
type Reader struct {
	// Delimiter separates fields. Aliases "tab", "pipe" and "semicolon" are
	// accepted.
	Delimiter string
}

// ReadFile opens and reads a client file.
func (r *Reader) ReadFile(filePath string) (*Stream, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stream, err := r.Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	stream.SourceFile = filePath
	return stream, nil
}

// Read reads a client file from in.
//
// RETURNS:
//   - The stream with its schema and records.
//   - An error if the input is empty or malformed.
func (r *Reader) Read(in io.Reader) (*Stream, error) {
	csvReader := NewCSVReader(in, r.Delimiter)

	header, err := csvReader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("input is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	schema := NewSchema(cleanHeaders(header))
	stream := &Stream{Schema: schema}

	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}

		if isRowEmpty(row) {
			continue
		}

		line, _ := csvReader.FieldPos(0)
		for i := range row {
			row[i] = sanitize.String(row[i])
		}
		stream.Records = append(stream.Records, New(schema, row, line))
	}

	return stream, nil
}

// NewCSVReader returns a lenient csv.Reader for the given delimiter.
func NewCSVReader(in io.Reader, delimiter string) *csv.Reader {
	reader := csv.NewReader(in)
	reader.Comma = DelimiterRune(delimiter)

	// Allow variable number of fields per row. Control rows are often
	// shorter than detail rows.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	return reader
}

// DelimiterRune resolves a configured delimiter to a single rune. Settings
// rejected by config.DelimiterRune fall back to their first rune.
func DelimiterRune(delimiter string) rune {
	r, _ := config.DelimiterRune(delimiter)
	return r
}

// cleanHeaders cleans header names and strips a UTF-8 byte order mark
// that spreadsheet exports leave on the first column.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		if i == 0 {
			header = strings.TrimPrefix(header, "\ufeff")
		}
		header = sanitize.String(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
