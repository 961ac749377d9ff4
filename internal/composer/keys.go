package composer

import (
	"github.com/ginjaninja78/receipt-batch-composer/internal/config"
	"github.com/ginjaninja78/receipt-batch-composer/internal/record"
)

// PackageKey identifies one receipt package: a subject and a donation date.
type PackageKey struct {
	SubjectID string
	Date      string
}

// IsBlank reports whether both key fields are empty. Footer and control
// rows produce blank keys.
func (k PackageKey) IsBlank() bool {
	return k.SubjectID == "" && k.Date == ""
}

// KeyOf returns the package key of a record.
func KeyOf(rec record.Record, fields config.FieldMap) PackageKey {
	return PackageKey{
		SubjectID: rec.Get(fields.SubjectID),
		Date:      rec.Get(fields.Date),
	}
}

// Keys returns the distinct package keys of records in first-seen order.
// Records with a blank key are ignored.
func Keys(records []record.Record, fields config.FieldMap) []PackageKey {
	seen := make(map[PackageKey]bool)
	var keys []PackageKey

	for _, rec := range records {
		key := KeyOf(rec, fields)
		if key.IsBlank() || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}

	return keys
}
