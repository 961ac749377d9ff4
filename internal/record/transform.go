// =============================================================================
// Receipt Batch Composer - Field Transformations
// =============================================================================
//
// Transformations normalise client data before grouping, e.g. trimming
// designation codes, upper-casing exemption flags, or padding subject ids
// that the client exported without leading zeros. Rules come from the
// "transformations" section of the configuration.
//
// =============================================================================

package record

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ginjaninja78/receipt-batch-composer/internal/config"
)

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies configured transformation rules to records.
type Transformer struct {
	rules []compiledRule
}

type compiledRule struct {
	field   string
	actions []action
}

type action func(string) string

// NewTransformer compiles the rules. Unknown action types and invalid
// regular expressions are reported here, before any record is touched.
func NewTransformer(rules []config.TransformationRule) (*Transformer, error) {
	t := &Transformer{}
	for _, rule := range rules {
		compiled := compiledRule{field: rule.Field}
		for _, a := range rule.Actions {
			fn, err := compileAction(a)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", rule.Field, err)
			}
			compiled.actions = append(compiled.actions, fn)
		}
		t.rules = append(t.rules, compiled)
	}
	return t, nil
}

// Apply returns a transformed copy of rec.
func (t *Transformer) Apply(rec Record) Record {
	for _, rule := range t.rules {
		if !rec.schema.Has(rule.field) {
			continue
		}
		value := rec.Get(rule.field)
		for _, fn := range rule.actions {
			value = fn(value)
		}
		rec = rec.with(rule.field, value)
	}
	return rec
}

// ApplyStream returns a new stream with every record transformed.
func (t *Transformer) ApplyStream(s *Stream) *Stream {
	if len(t.rules) == 0 {
		return s
	}
	out := &Stream{
		Schema:     s.Schema,
		Records:    make([]Record, len(s.Records)),
		SourceFile: s.SourceFile,
	}
	for i, rec := range s.Records {
		out.Records[i] = t.Apply(rec)
	}
	return out
}

// =============================================================================
// ACTIONS
// =============================================================================

// compileAction turns a configured action into a function.
//
// SUPPORTED TRANSFORMATIONS:
//   - trim / trim_left / trim_right (Value = characters, default whitespace)
//   - uppercase / lowercase
//   - prepend_string / append_string
//   - replace / regex_replace (Find -> Value)
//   - pad_zeros_to_length (Value = target length)
//   - lookup (LookupTable, unmatched values pass through)
func compileAction(a config.TransformationAction) (action, error) {
	switch a.Type {
	case "trim":
		if a.Value != "" {
			return func(v string) string { return strings.Trim(v, a.Value) }, nil
		}
		return strings.TrimSpace, nil

	case "trim_left":
		cutset := a.Value
		if cutset == "" {
			cutset = " \t\n\r"
		}
		return func(v string) string { return strings.TrimLeft(v, cutset) }, nil

	case "trim_right":
		cutset := a.Value
		if cutset == "" {
			cutset = " \t\n\r"
		}
		return func(v string) string { return strings.TrimRight(v, cutset) }, nil

	case "uppercase":
		return strings.ToUpper, nil

	case "lowercase":
		return strings.ToLower, nil

	case "prepend_string":
		return func(v string) string { return a.Value + v }, nil

	case "append_string":
		return func(v string) string { return v + a.Value }, nil

	case "replace":
		if a.Find == "" {
			return identity, nil
		}
		return func(v string) string { return strings.ReplaceAll(v, a.Find, a.Value) }, nil

	case "regex_replace":
		if a.Find == "" {
			return identity, nil
		}
		re, err := regexp.Compile(a.Find)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern: %w", err)
		}
		return func(v string) string { return re.ReplaceAllString(v, a.Value) }, nil

	case "pad_zeros_to_length":
		length, err := strconv.Atoi(a.Value)
		if err != nil || length <= 0 {
			return nil, fmt.Errorf("pad_zeros_to_length needs a positive length, got %q", a.Value)
		}
		return func(v string) string {
			if v == "" {
				return v
			}
			return PadLeft(v, length, '0')
		}, nil

	case "lookup":
		table := a.LookupTable
		return func(v string) string {
			if replacement, ok := table[v]; ok {
				return replacement
			}
			return v
		}, nil

	default:
		return nil, fmt.Errorf("unknown transformation type: %s", a.Type)
	}
}

func identity(v string) string { return v }

// PadLeft pads a string with a character on the left to reach the target length.
// Longer strings are returned unchanged.
func PadLeft(s string, length int, padChar rune) string {
	n := len([]rune(s))
	if n >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-n) + s
}
