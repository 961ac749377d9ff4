package record

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_Require(t *testing.T) {
	schema := NewSchema([]string{"PEOPLE_ID", "DON_DATE", "AMOUNT"})

	assert.NoError(t, schema.Require("PEOPLE_ID", "AMOUNT"))
	assert.NoError(t, schema.Require(""), "empty names are not required")

	err := schema.Require("PEOPLE_ID", "DESIG", "DEDUCT_AMT")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingField))
	assert.Contains(t, err.Error(), "DESIG, DEDUCT_AMT")
}

func TestRecord_Get(t *testing.T) {
	schema := NewSchema([]string{"A", "B", "C"})
	rec := New(schema, []string{"1", "2"}, 7)

	assert.Equal(t, "1", rec.Get("A"))
	assert.Equal(t, "", rec.Get("C"), "short rows read as empty")
	assert.Equal(t, "", rec.Get("Z"), "unknown fields read as empty")
	assert.Equal(t, 7, rec.Line())
	assert.Equal(t, map[string]string{"A": "1", "B": "2", "C": ""}, rec.Fields())

	values := rec.Values()
	values[0] = "changed"
	assert.Equal(t, "1", rec.Get("A"), "records are immutable")
}

func TestReader_Read(t *testing.T) {
	input := "\ufeffPEOPLE_ID,DON_DATE,AMOUNT,DESIG\n" +
		"12345,2020-01-01, 10.00 ,77\n" +
		",,,\n" +
		"\n" +
		"67890,2020-01-02,\"5.00\"\n"

	r := &Reader{Delimiter: ","}
	stream, err := r.Read(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"PEOPLE_ID", "DON_DATE", "AMOUNT", "DESIG"}, stream.Schema.Names())
	require.Len(t, stream.Records, 2, "blank rows are skipped")

	assert.Equal(t, "10.00", stream.Records[0].Get("AMOUNT"))
	assert.Equal(t, 2, stream.Records[0].Line())
	assert.Equal(t, "5.00", stream.Records[1].Get("AMOUNT"))
	assert.Equal(t, "", stream.Records[1].Get("DESIG"))
}

func TestReader_PipeDelimiter(t *testing.T) {
	r := &Reader{Delimiter: "pipe"}
	stream, err := r.Read(strings.NewReader("A|B\nx|y\n"))
	require.NoError(t, err)
	require.Len(t, stream.Records, 1)
	assert.Equal(t, "y", stream.Records[0].Get("B"))
}

func TestReader_Empty(t *testing.T) {
	r := &Reader{}
	_, err := r.Read(strings.NewReader(""))
	assert.Error(t, err)
}

func TestReader_ReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte("A,B\n1,2\n"), 0644))

	r := &Reader{}
	stream, err := r.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, stream.SourceFile)

	_, err = r.ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestDelimiterRune(t *testing.T) {
	tests := []struct {
		input    string
		expected rune
	}{
		{"", ','},
		{",", ','},
		{"|", '|'},
		{"tab", '\t'},
		{"\\t", '\t'},
		{"pipe", '|'},
		{";", ';'},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, DelimiterRune(tt.input))
		})
	}
}
