package model

// Record is a single entry fetched from a remote source.
// It is a value type: replace it, never edit it in place.
type Record struct {
	ID      int    `yaml:"id" json:"id"`           // Identifier, unique within one fetch batch.
	Content string `yaml:"content" json:"content"` // Text payload.
}

// Clone returns an independent copy of records. A nil input yields an
// empty, non-nil slice so that consumers can always range and encode it.
func Clone(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// Equal reports whether a and b hold the same records in the same order.
// A nil slice equals an empty one.
func Equal(a, b []Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
