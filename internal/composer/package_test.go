package composer

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/receipt-batch-composer/internal/config"
	"github.com/ginjaninja78/receipt-batch-composer/internal/record"
)

var inputHeader = []string{
	"PEOPLE_ID", "DON_DATE", "AMOUNT", "DEDUCT_AMT", "ND_AMT", "DEDUCT_YTD", "NONDEDUCT_YTD",
	"DESIG", "INT_CODE_EX0003", "INT_CODE_EX0023", "INT_CODE_EX0006", "INT_CODE_EX0028",
	"RECEIPT_NUMBER", "LAST_REASON", "JAN_AMT", "MEMO",
}

type row map[string]string

func detail(id, date, amount, desig string) row {
	return row{
		"PEOPLE_ID":     id,
		"DON_DATE":      date,
		"AMOUNT":        amount,
		"DEDUCT_AMT":    "60.00",
		"ND_AMT":        "10.00",
		"DEDUCT_YTD":    "100.00",
		"NONDEDUCT_YTD": "20.00",
		"DESIG":         desig,
		"MEMO":          "dropped",
	}
}

func control(label, value string) row {
	return row{"RECEIPT_NUMBER": "T", "LAST_REASON": label, "JAN_AMT": value}
}

func (r row) with(field, value string) row {
	out := row{}
	for k, v := range r {
		out[k] = v
	}
	out[field] = value
	return out
}

func buildInput(rows ...row) string {
	var b strings.Builder
	b.WriteString(strings.Join(inputHeader, ",") + "\n")
	for _, r := range rows {
		values := make([]string, len(inputHeader))
		for i, name := range inputHeader {
			values[i] = r[name]
		}
		b.WriteString(strings.Join(values, ",") + "\n")
	}
	return b.String()
}

func readStream(t *testing.T, rows ...row) *record.Stream {
	t.Helper()
	reader := &record.Reader{Delimiter: ","}
	stream, err := reader.Read(strings.NewReader(buildInput(rows...)))
	require.NoError(t, err)
	return stream
}

func repeat(n int, r row) []row {
	rows := make([]row, n)
	for i := range rows {
		rows[i] = r
	}
	return rows
}

// =============================================================================
// KEYS
// =============================================================================

func TestKeys(t *testing.T) {
	fields := config.Default().Fields
	stream := readStream(t,
		detail("200", "2024-01-05", "1", "1"),
		detail("100", "2024-01-05", "1", "1"),
		detail("200", "2024-01-05", "1", "1"),
		detail("200", "2024-02-01", "1", "1"),
		detail("", "", "1", "1"),
		detail("300", "", "1", "1"),
	)

	keys := Keys(stream.Records, fields)

	assert.Equal(t, []PackageKey{
		{SubjectID: "200", Date: "2024-01-05"},
		{SubjectID: "100", Date: "2024-01-05"},
		{SubjectID: "200", Date: "2024-02-01"},
		{SubjectID: "300", Date: ""},
	}, keys)
}

func TestKeys_Empty(t *testing.T) {
	assert.Empty(t, Keys(nil, config.Default().Fields))
}

// =============================================================================
// AGGREGATION
// =============================================================================

func TestPageCount(t *testing.T) {
	tests := []struct {
		details int
		want    int
	}{
		{0, 0},
		{1, 1},
		{6, 1},
		{7, 2},
		{12, 2},
		{13, 3},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, PageCount(tt.details), "details=%d", tt.details)
	}
}

func TestAggregate(t *testing.T) {
	fields := config.Default().Fields
	a := detail("100", "2024-01-05", "10.00", "101")
	stream := readStream(t,
		a.with("INT_CODE_EX0003", "Y"),
		detail("200", "2024-01-05", "3.00", "5"),
		a.with("AMOUNT", "N/A"),
		a.with("AMOUNT", "2.50").with("INT_CODE_EX0028", "E").with("DEDUCT_AMT", "999"),
	)

	packages, err := Aggregate(Keys(stream.Records, fields), stream.Records, fields)
	require.NoError(t, err)
	require.Len(t, packages, 2)

	pkg := packages[0]
	assert.Equal(t, PackageKey{SubjectID: "100", Date: "2024-01-05"}, pkg.Key)
	assert.Equal(t, 3, pkg.DetailCount())
	assert.True(t, decimal.RequireFromString("12.50").Equal(pkg.AmountSum))
	assert.Equal(t, 1, pkg.PageCount)
	assert.True(t, pkg.EmailFlag)
	assert.Equal(t, "60.00", pkg.DeductAmount, "carried from the first detail")
	assert.Equal(t, [2]string{"Y", ""}, pkg.ExemptionCodes)
	assert.Equal(t, "120.00", pkg.YTDTotal)

	assert.Equal(t, []string{
		"100", "2024-01-05", "60.00", "10.00", "100.00", "20.00", "120.00", "1", "12.50", "Y", "",
	}, pkg.HeaderFields())

	assert.False(t, packages[1].EmailFlag)
	assert.Equal(t, 1, packages[1].DetailCount())
}

func TestAggregate_DetailsKeepInputOrder(t *testing.T) {
	fields := config.Default().Fields
	stream := readStream(t,
		detail("100", "d", "1", "3"),
		detail("200", "d", "1", "9"),
		detail("100", "d", "1", "1"),
		detail("100", "d", "1", "2"),
	)

	packages, err := Aggregate(Keys(stream.Records, fields), stream.Records, fields)
	require.NoError(t, err)

	var desigs []string
	for _, rec := range packages[0].Details {
		desigs = append(desigs, rec.Get("DESIG"))
	}
	assert.Equal(t, []string{"3", "1", "2"}, desigs)
}

func TestAggregate_NonNumericYTD(t *testing.T) {
	fields := config.Default().Fields
	stream := readStream(t, detail("100", "d", "1", "1").with("NONDEDUCT_YTD", "N/A"))

	packages, err := Aggregate(Keys(stream.Records, fields), stream.Records, fields)
	require.NoError(t, err)
	assert.Equal(t, "", packages[0].YTDTotal)
}

func TestAggregate_EmptyPackage(t *testing.T) {
	fields := config.Default().Fields
	stream := readStream(t, detail("100", "d", "1", "1"))

	_, err := Aggregate([]PackageKey{{SubjectID: "999", Date: "d"}}, stream.Records, fields)
	assert.ErrorIs(t, err, ErrEmptyPackage)
}

// =============================================================================
// OCR TRAILER
// =============================================================================

func TestEncodeTrailer(t *testing.T) {
	fields := config.Default().Fields
	rows := repeat(7, detail("12345", "d", "10.00", "101"))
	rows[6] = rows[6].with("DESIG", "7")
	stream := readStream(t, rows...)

	packages, err := Aggregate(Keys(stream.Records, fields), stream.Records, fields)
	require.NoError(t, err)

	lines, err := EncodeTrailer(&packages[0], fields)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	assert.Equal(t, "0000012345 "+strings.Repeat("000000101 ", 6), lines[0])
	assert.Equal(t, "0000012345 000000007 "+strings.Repeat(PlaceholderSlot, 5), lines[1])
	for _, line := range lines {
		assert.Len(t, line, LineWidth)
	}

	subject, codes, err := DecodeTrailer(lines)
	require.NoError(t, err)
	assert.Equal(t, "0000012345", subject)
	assert.Len(t, codes, 12)
	assert.Equal(t, "000000007", codes[6])
	assert.Equal(t, "000000000", codes[11])
}

func TestEncodeTrailer_RoundTrip(t *testing.T) {
	fields := config.Default().Fields

	for _, n := range []int{1, 6, 7, 13} {
		t.Run(fmt.Sprintf("%d details", n), func(t *testing.T) {
			rows := make([]row, n)
			want := make([]string, n)
			for i := range rows {
				desig := fmt.Sprintf("%d", 300+i)
				rows[i] = detail("777", "d", "1.00", desig)
				want[i] = "000000" + desig
			}
			stream := readStream(t, rows...)

			packages, err := Aggregate(Keys(stream.Records, fields), stream.Records, fields)
			require.NoError(t, err)
			lines, err := EncodeTrailer(&packages[0], fields)
			require.NoError(t, err)

			subject, codes, err := DecodeTrailer(lines)
			require.NoError(t, err)
			assert.Equal(t, "0000000777", subject)
			require.Len(t, codes, PageCount(n)*DetailsPerPage)
			assert.Equal(t, want, codes[:n])
			for _, code := range codes[n:] {
				assert.Equal(t, strings.TrimSpace(PlaceholderSlot), code)
			}
		})
	}
}

func TestEncodeTrailer_LineCount(t *testing.T) {
	fields := config.Default().Fields

	for _, n := range []int{1, 5, 6, 7, 12, 13} {
		stream := readStream(t, repeat(n, detail("1", "d", "1", "1"))...)
		packages, err := Aggregate(Keys(stream.Records, fields), stream.Records, fields)
		require.NoError(t, err)

		lines, err := EncodeTrailer(&packages[0], fields)
		require.NoError(t, err)
		assert.Len(t, lines, PageCount(n), "details=%d", n)
	}
}

func TestEncodeTrailer_NoDetails(t *testing.T) {
	pkg := &Package{Key: PackageKey{SubjectID: "42"}}

	lines, err := EncodeTrailer(pkg, config.Default().Fields)
	require.NoError(t, err)
	assert.Equal(t, []string{"0000000042 " + strings.Repeat(PlaceholderSlot, 6)}, lines)
}

func TestEncodeTrailer_TooWide(t *testing.T) {
	fields := config.Default().Fields

	tests := []struct {
		name string
		row  row
	}{
		{"subject id", detail("12345678901", "d", "1", "1")},
		{"designation", detail("1", "d", "1", "1234567890")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream := readStream(t, tt.row)
			packages, err := Aggregate(Keys(stream.Records, fields), stream.Records, fields)
			require.NoError(t, err)

			_, err = EncodeTrailer(&packages[0], fields)
			assert.ErrorIs(t, err, ErrFieldTooWide)
		})
	}
}

func TestDecodeTrailer_Errors(t *testing.T) {
	_, _, err := DecodeTrailer([]string{"short"})
	assert.Error(t, err)

	a := "0000000001 " + strings.Repeat(PlaceholderSlot, 6)
	b := "0000000002 " + strings.Repeat(PlaceholderSlot, 6)
	_, _, err = DecodeTrailer([]string{a, b})
	assert.Error(t, err)
}

// =============================================================================
// WRITER
// =============================================================================

func TestWriter_Write(t *testing.T) {
	fields := config.Default().Fields
	stream := readStream(t,
		detail("12345", "2024-01-05", "10.00", "101").with("INT_CODE_EX0023", "X1"),
		detail("12345", "2024-01-05", "5.50", "7"),
		detail("", "2024-01-05", "1.00", "1"),
	)
	packages, err := Aggregate(Keys(stream.Records, fields), stream.Records, fields)
	require.NoError(t, err)
	require.Len(t, packages, 2)

	var out bytes.Buffer
	w := &Writer{
		DetailFields: []string{"PEOPLE_ID", "AMOUNT", "DESIG"},
		Fields:       fields,
		Delimiter:    '|',
	}
	totals, err := w.Write(&out, packages)
	require.NoError(t, err)

	want := strings.Join([]string{
		"01|12345|2024-01-05|60.00|10.00|100.00|20.00|120.00|1|15.50||X1",
		"02|12345|10.00|101",
		"02|12345|5.50|7",
		"03|0000012345 000000101 000000007 " + strings.Repeat(PlaceholderSlot, 4),
	}, "\n") + "\n"
	assert.Equal(t, want, out.String())
	assert.NotContains(t, out.String(), "dropped")

	assert.Equal(t, 1, totals.Packages)
	assert.Equal(t, 2, totals.Details)
	assert.Equal(t, 1, totals.TrailerLines)
	assert.Equal(t, 0, totals.EmailPackages)
	assert.True(t, decimal.RequireFromString("15.50").Equal(totals.Amount))

	ctl := totals.Control()
	assert.Equal(t, 1, ctl.ReceiptCount)
	assert.True(t, totals.Amount.Equal(ctl.TotalAmount))
}

func TestWriter_Empty(t *testing.T) {
	var out bytes.Buffer
	totals, err := (&Writer{Fields: config.Default().Fields}).Write(&out, nil)
	require.NoError(t, err)
	assert.Empty(t, out.String())
	assert.Zero(t, totals.Packages)
	assert.True(t, totals.Amount.IsZero())
}

func TestWriter_TooWideFails(t *testing.T) {
	fields := config.Default().Fields
	stream := readStream(t, detail("12345678901", "d", "1", "1"))
	packages, err := Aggregate(Keys(stream.Records, fields), stream.Records, fields)
	require.NoError(t, err)

	_, err = (&Writer{Fields: fields}).Write(&bytes.Buffer{}, packages)
	assert.ErrorIs(t, err, ErrFieldTooWide)
}
