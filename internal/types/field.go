package types

// Field is one of the per-instrument price columns.
type Field string

const (
	FieldOpen          Field = "open"
	FieldHigh          Field = "high"
	FieldLow           Field = "low"
	FieldClose         Field = "close"
	FieldVolume        Field = "volume"
	FieldAdjustedClose Field = "adjusted_close"
)

// OHLCVFields are the fields every canonicalized series must carry.
var OHLCVFields = []Field{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume}

// CanonicalFields is the ordered field set of the canonical dataset.
var CanonicalFields = []Field{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume, FieldAdjustedClose}

// ParseField converts a column name into a Field.
func ParseField(name string) (Field, bool) {
	for _, f := range CanonicalFields {
		if string(f) == name {
			return f, true
		}
	}

	return "", false
}

// String returns the column name of the field.
func (f Field) String() string {
	return string(f)
}

// OrderFields returns the distinct fields of the input in canonical order.
// Unknown fields are dropped.
func OrderFields(fields []Field) []Field {
	seen := make(map[Field]bool, len(fields))
	for _, f := range fields {
		seen[f] = true
	}

	ordered := make([]Field, 0, len(seen))

	for _, f := range CanonicalFields {
		if seen[f] {
			ordered = append(ordered, f)
		}
	}

	return ordered
}

// UnionFields returns the canonical-ordered union of two field sets.
func UnionFields(a, b []Field) []Field {
	all := make([]Field, 0, len(a)+len(b))
	all = append(all, a...)
	all = append(all, b...)

	return OrderFields(all)
}
