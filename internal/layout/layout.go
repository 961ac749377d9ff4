// =============================================================================
// Receipt Batch Composer - Layout Workbook
// =============================================================================
//
// The composition team maintains the "02" detail record layout in an XLSX
// workbook instead of YAML. Each row of the first sheet names one input
// field and says what the composer does with it.
//
// WORKBOOK LAYOUT (first sheet, row 1 is a header row):
//   Column A: Field   - the input column name
//   Column B: Role    - "detail", "required" or "both"
//   Column C: Order   - position in the detail record (optional)
//
// ROLES:
//   detail   : written on "02" detail rows
//   required : must exist in the input, not written
//   both     : written and required
//
// =============================================================================

package layout

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Role values accepted in column B.
const (
	RoleDetail   = "detail"
	RoleRequired = "required"
	RoleBoth     = "both"
)

// Layout is the parsed workbook.
type Layout struct {
	// SourceFile is the path to the workbook.
	SourceFile string

	// DetailFields are written on "02" rows, in order.
	DetailFields []string

	// RequiredFields must be present in the input header row.
	RequiredFields []string
}

type entry struct {
	field string
	role  string
	order int
	row   int
}

// =============================================================================
// PARSER
// =============================================================================

// Parse reads a layout workbook.
//
// RETURNS:
//   - The layout with detail fields sorted by Order (then by row).
//   - An error if the workbook cannot be read or a row is invalid.
func Parse(path string) (*Layout, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open layout workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("layout workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	var entries []entry
	seen := map[string]int{}

	// Row 1 is the header row.
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isRowEmpty(row) {
			continue
		}

		e, err := parseRow(row, i+1)
		if err != nil {
			return nil, err
		}
		if first, dup := seen[e.field]; dup {
			return nil, fmt.Errorf("row %d: field %s already listed on row %d", e.row, e.field, first)
		}
		seen[e.field] = e.row
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].order < entries[b].order
	})

	l := &Layout{SourceFile: path}
	for _, e := range entries {
		if e.role == RoleDetail || e.role == RoleBoth {
			l.DetailFields = append(l.DetailFields, e.field)
		}
		if e.role == RoleRequired || e.role == RoleBoth {
			l.RequiredFields = append(l.RequiredFields, e.field)
		}
	}

	if len(l.DetailFields) == 0 {
		return nil, fmt.Errorf("layout workbook %s defines no detail fields", path)
	}

	return l, nil
}

// parseRow extracts one entry. Rows without an Order keep workbook order.
func parseRow(row []string, rowNumber int) (entry, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	e := entry{
		field: cell(0),
		role:  strings.ToLower(cell(1)),
		order: rowNumber,
		row:   rowNumber,
	}

	if e.field == "" {
		return e, fmt.Errorf("row %d: field name is empty", rowNumber)
	}

	switch e.role {
	case "":
		e.role = RoleDetail
	case RoleDetail, RoleRequired, RoleBoth:
	default:
		return e, fmt.Errorf("row %d: unknown role %q (want detail, required or both)", rowNumber, e.role)
	}

	if order := cell(2); order != "" {
		n, err := strconv.Atoi(order)
		if err != nil {
			return e, fmt.Errorf("row %d: order %q is not a number", rowNumber, order)
		}
		e.order = n
	}

	return e, nil
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// TEMPLATE WRITER
// =============================================================================

// WriteTemplate writes a starter workbook listing fields as detail fields
// and required as required-only fields.
func WriteTemplate(path string, detail, required []string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"Field", "Role", "Order"}); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	rowNum := 2
	order := 1
	isDetail := map[string]bool{}
	for _, name := range detail {
		isDetail[name] = true
	}
	isRequired := map[string]bool{}
	for _, name := range required {
		isRequired[name] = true
	}

	write := func(values []interface{}) error {
		cellRef, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		rowNum++
		return f.SetSheetRow(sheet, cellRef, &values)
	}

	for _, name := range detail {
		role := RoleDetail
		if isRequired[name] {
			role = RoleBoth
		}
		if err := write([]interface{}{name, role, order}); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", name, err)
		}
		order++
	}
	for _, name := range required {
		if isDetail[name] {
			continue
		}
		if err := write([]interface{}{name, RoleRequired}); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", name, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save layout workbook: %w", err)
	}
	return nil
}
