package composer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ginjaninja78/receipt-batch-composer/internal/config"
)

// OCR line geometry: an 11-character prefix (10-digit subject id and a
// space) followed by six 10-character slots (9-digit designation and a space).
const (
	SubjectIDWidth   = 10
	DesignationWidth = 9
	SlotWidth        = DesignationWidth + 1
	PrefixWidth      = SubjectIDWidth + 1
	BodyWidth        = SlotWidth * DetailsPerPage
	LineWidth        = PrefixWidth + BodyWidth
)

// PlaceholderSlot fills unused slots on the last line of a package.
const PlaceholderSlot = "000000000 "

// ErrFieldTooWide is returned when a subject id or designation code does
// not fit its fixed-width slot.
var ErrFieldTooWide = errors.New("value does not fit OCR field")

// EncodeTrailer returns the OCR lines of a package (without the tier tag).
// Each line repeats the subject id prefix and carries up to six designation
// codes; the last line is padded with placeholder slots. A package without
// details yields one line of placeholders.
func EncodeTrailer(pkg *Package, fields config.FieldMap) ([]string, error) {
	prefix, err := zeroPad(pkg.Key.SubjectID, SubjectIDWidth)
	if err != nil {
		return nil, fmt.Errorf("subject id: %w", err)
	}
	prefix += " "

	slots := make([]string, 0, len(pkg.Details))
	for _, rec := range pkg.Details {
		code, err := zeroPad(rec.Get(fields.Designation), DesignationWidth)
		if err != nil {
			return nil, fmt.Errorf("designation at line %d: %w", rec.Line(), err)
		}
		slots = append(slots, code+" ")
	}

	var lines []string
	for start := 0; start < len(slots) || start == 0; start += DetailsPerPage {
		end := start + DetailsPerPage
		if end > len(slots) {
			end = len(slots)
		}

		var body strings.Builder
		body.Grow(BodyWidth)
		for _, slot := range slots[start:end] {
			body.WriteString(slot)
		}
		for i := end - start; i < DetailsPerPage; i++ {
			body.WriteString(PlaceholderSlot)
		}

		lines = append(lines, prefix+body.String())
	}

	return lines, nil
}

// DecodeTrailer splits OCR lines back into the subject id prefix and the
// designation codes of every slot, placeholders included.
func DecodeTrailer(lines []string) (subjectID string, codes []string, err error) {
	for i, line := range lines {
		if len(line) != LineWidth {
			return "", nil, fmt.Errorf("line %d: width %d, want %d", i+1, len(line), LineWidth)
		}
		prefix := line[:SubjectIDWidth]
		if i == 0 {
			subjectID = prefix
		} else if prefix != subjectID {
			return "", nil, fmt.Errorf("line %d: prefix %q differs from %q", i+1, prefix, subjectID)
		}
		body := line[PrefixWidth:]
		for s := 0; s < DetailsPerPage; s++ {
			codes = append(codes, body[s*SlotWidth:s*SlotWidth+DesignationWidth])
		}
	}
	return subjectID, codes, nil
}

// zeroPad right-justifies s in a zero-filled field of width characters.
func zeroPad(s string, width int) (string, error) {
	if len(s) > width {
		return "", fmt.Errorf("%w: %q is longer than %d characters", ErrFieldTooWide, s, width)
	}
	return strings.Repeat("0", width-len(s)) + s, nil
}
