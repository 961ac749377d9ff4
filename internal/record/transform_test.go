package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/receipt-batch-composer/internal/config"
)

func TestTransformer_Actions(t *testing.T) {
	tests := []struct {
		name     string
		action   config.TransformationAction
		input    string
		expected string
	}{
		{"trim", config.TransformationAction{Type: "trim"}, "  77 ", "77"},
		{"trim cutset", config.TransformationAction{Type: "trim", Value: "*"}, "**77*", "77"},
		{"trim left", config.TransformationAction{Type: "trim_left", Value: "0"}, "00077", "77"},
		{"trim right", config.TransformationAction{Type: "trim_right"}, "77  ", "77"},
		{"uppercase", config.TransformationAction{Type: "uppercase"}, "y", "Y"},
		{"lowercase", config.TransformationAction{Type: "lowercase"}, "Y", "y"},
		{"prepend", config.TransformationAction{Type: "prepend_string", Value: "D"}, "77", "D77"},
		{"append", config.TransformationAction{Type: "append_string", Value: "-0"}, "77", "77-0"},
		{"replace", config.TransformationAction{Type: "replace", Find: "/", Value: "-"}, "2020/01/01", "2020-01-01"},
		{"regex", config.TransformationAction{Type: "regex_replace", Find: "[^0-9]", Value: ""}, "D-77", "77"},
		{"pad", config.TransformationAction{Type: "pad_zeros_to_length", Value: "5"}, "77", "00077"},
		{"pad empty stays empty", config.TransformationAction{Type: "pad_zeros_to_length", Value: "5"}, "", ""},
		{"lookup hit", config.TransformationAction{Type: "lookup", LookupTable: map[string]string{"Y": "1"}}, "Y", "1"},
		{"lookup miss", config.TransformationAction{Type: "lookup", LookupTable: map[string]string{"Y": "1"}}, "N", "N"},
	}

	schema := NewSchema([]string{"F", "OTHER"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTransformer([]config.TransformationRule{
				{Field: "F", Actions: []config.TransformationAction{tt.action}},
			})
			require.NoError(t, err)

			rec := New(schema, []string{tt.input, "keep"}, 2)
			out := tr.Apply(rec)

			assert.Equal(t, tt.expected, out.Get("F"))
			assert.Equal(t, "keep", out.Get("OTHER"))
			assert.Equal(t, tt.input, rec.Get("F"), "source record unchanged")
		})
	}
}

func TestTransformer_ChainedActions(t *testing.T) {
	tr, err := NewTransformer([]config.TransformationRule{
		{Field: "DESIG", Actions: []config.TransformationAction{
			{Type: "trim_left", Value: "D"},
			{Type: "pad_zeros_to_length", Value: "4"},
		}},
	})
	require.NoError(t, err)

	stream := &Stream{Schema: NewSchema([]string{"DESIG"})}
	stream.Records = []Record{New(stream.Schema, []string{"D12"}, 2)}

	out := tr.ApplyStream(stream)
	assert.Equal(t, "0012", out.Records[0].Get("DESIG"))
	assert.Equal(t, "D12", stream.Records[0].Get("DESIG"))
}

func TestTransformer_UnknownFieldIgnored(t *testing.T) {
	tr, err := NewTransformer([]config.TransformationRule{
		{Field: "NOPE", Actions: []config.TransformationAction{{Type: "uppercase"}}},
	})
	require.NoError(t, err)

	rec := New(NewSchema([]string{"A"}), []string{"x"}, 2)
	assert.Equal(t, "x", tr.Apply(rec).Get("A"))
}

func TestNewTransformer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		action config.TransformationAction
	}{
		{"unknown", config.TransformationAction{Type: "explode"}},
		{"bad regex", config.TransformationAction{Type: "regex_replace", Find: "("}},
		{"bad pad length", config.TransformationAction{Type: "pad_zeros_to_length", Value: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTransformer([]config.TransformationRule{
				{Field: "F", Actions: []config.TransformationAction{tt.action}},
			})
			assert.Error(t, err)
		})
	}
}

func TestPadLeft(t *testing.T) {
	assert.Equal(t, "0000012345", PadLeft("12345", 10, '0'))
	assert.Equal(t, "12345", PadLeft("12345", 3, '0'))
}
