// =============================================================================
// Receipt Batch Composer - Records
// =============================================================================
//
// A client file is a header row naming the fields followed by one row per
// detail, control or footer record. The header row is turned into a Schema
// once; every following row becomes an immutable Record bound to it.
//
// =============================================================================

package record

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingField is returned when the client file lacks a column the run
// depends on.
var ErrMissingField = errors.New("missing required field")

// =============================================================================
// SCHEMA
// =============================================================================

// Schema is the ordered list of field names taken from the header row.
type Schema struct {
	names []string
	index map[string]int
}

// NewSchema builds a schema from header names. When a name repeats, the
// first column wins.
func NewSchema(names []string) *Schema {
	s := &Schema{
		names: append([]string(nil), names...),
		index: make(map[string]int, len(names)),
	}
	for i, name := range s.names {
		if _, exists := s.index[name]; !exists {
			s.index[name] = i
		}
	}
	return s
}

// Names returns the field names in header order.
func (s *Schema) Names() []string {
	return append([]string(nil), s.names...)
}

// Has reports whether the schema contains a field.
func (s *Schema) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Require checks that every named field exists. The error lists all
// missing fields at once and wraps ErrMissingField.
func (s *Schema) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if name == "" {
			continue
		}
		if !s.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}

// =============================================================================
// RECORD
// =============================================================================

// Record is one data row of the client file. It is never modified after
// construction; transformations produce new records.
type Record struct {
	schema *Schema
	values []string
	line   int
}

// New binds values to a schema. Missing trailing values read as empty and
// extra values beyond the schema are ignored.
func New(schema *Schema, values []string, line int) Record {
	v := make([]string, len(schema.names))
	copy(v, values)
	return Record{schema: schema, values: v, line: line}
}

// Get returns the value of a field, or "" if the field is unknown.
func (r Record) Get(name string) string {
	if r.schema == nil {
		return ""
	}
	i, ok := r.schema.index[name]
	if !ok {
		return ""
	}
	return r.values[i]
}

// Values returns the values in schema order.
func (r Record) Values() []string {
	return append([]string(nil), r.values...)
}

// Fields returns the record as a name -> value map.
func (r Record) Fields() map[string]string {
	fields := make(map[string]string, len(r.values))
	for name, i := range r.schema.index {
		fields[name] = r.values[i]
	}
	return fields
}

// Line is the 1-based physical line of the record in the input.
func (r Record) Line() int {
	return r.line
}

// with returns a copy of the record with one field replaced.
func (r Record) with(name, value string) Record {
	i, ok := r.schema.index[name]
	if !ok {
		return r
	}
	values := r.Values()
	values[i] = value
	return Record{schema: r.schema, values: values, line: r.line}
}

// =============================================================================
// STREAM
// =============================================================================

// Stream is the fully read client file: the schema plus every data record
// in input order.
type Stream struct {
	Schema  *Schema
	Records []Record

	// SourceFile is the path the stream was read from, if any.
	SourceFile string
}

// Filter returns the records for which keep returns true, in input order.
func (s *Stream) Filter(keep func(Record) bool) []Record {
	var out []Record
	for _, r := range s.Records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
