// Package sanitize cleans the values that flow in from client files and
// audit metadata. A Value is one of four shapes (Number, Text, Map, List);
// each shape carries its own cleaning rule so Clean never inspects types at
// run time.
package sanitize

import (
	"strings"
	"unicode"
)

// Value is a closed set of value shapes. Only the types in this package
// implement it.
type Value interface {
	clean() Value
}

// Number is a numeric value. Numbers are already clean.
type Number float64

// Text is a string value.
type Text string

// Map is a string-keyed collection of values.
type Map map[string]Value

// List is an ordered collection of values.
type List []Value

// Clean returns a cleaned copy of v. Nested maps and lists are cleaned
// recursively; the input is never modified.
func Clean(v Value) Value {
	if v == nil {
		return nil
	}
	return v.clean()
}

// String cleans a single string.
func String(s string) string {
	return string(Text(s).clean().(Text))
}

func (n Number) clean() Value { return n }

// clean trims surrounding whitespace and drops control characters.
func (t Text) clean() Value {
	s := strings.TrimSpace(string(t))
	if strings.IndexFunc(s, unicode.IsControl) < 0 {
		return Text(s)
	}
	return Text(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}

func (m Map) clean() Value {
	out := make(Map, len(m))
	for k, v := range m {
		out[String(k)] = Clean(v)
	}
	return out
}

func (l List) clean() Value {
	out := make(List, len(l))
	for i, v := range l {
		out[i] = Clean(v)
	}
	return out
}
