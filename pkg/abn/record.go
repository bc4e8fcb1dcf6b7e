// CLAUDE:SUMMARY Lookup record types and the display transform that adds the grouped "NN NNN NNN NNN" ABN.
package abn

import (
	"maps"
	"slices"
	"strings"
)

// Record is a business entry as returned by a lookup backend.
type Record struct {
	ABN           string            `json:"abn"`
	Name          string            `json:"name"`
	Status        string            `json:"status,omitempty"`
	EntityType    string            `json:"entity_type,omitempty"`
	State         string            `json:"state,omitempty"`
	Postcode      string            `json:"postcode,omitempty"`
	GST           string            `json:"gst,omitempty"`
	BusinessNames []string          `json:"business_names,omitempty"`
	Score         int               `json:"score,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
}

// DisplayRecord is a Record prepared for presentation.
type DisplayRecord struct {
	Record
	FormattedABN  string `json:"formatted_abn"`
	ChecksumValid bool   `json:"checksum_valid"`
}

// FormatABN groups an 11-digit ABN as "12 345 678 901". Whitespace is
// removed first; anything that is not 11 digits afterwards is returned
// stripped but otherwise unchanged.
func FormatABN(id string) string {
	clean := StripSpace(id)
	if !isDigits(clean, ABNLength) {
		return clean
	}
	var b strings.Builder
	b.Grow(ABNLength + 3)
	b.WriteString(clean[0:2])
	b.WriteByte(' ')
	b.WriteString(clean[2:5])
	b.WriteByte(' ')
	b.WriteString(clean[5:8])
	b.WriteByte(' ')
	b.WriteString(clean[8:11])
	return b.String()
}

// Transform copies r and adds the display fields.
func Transform(r Record) DisplayRecord {
	r.BusinessNames = slices.Clone(r.BusinessNames)
	r.Attributes = maps.Clone(r.Attributes)
	return DisplayRecord{
		Record:        r,
		FormattedABN:  FormatABN(r.ABN),
		ChecksumValid: ValidChecksum(r.ABN),
	}
}

// TransformAll maps records through Transform, preserving order.
// The result is never nil.
func TransformAll(rs []Record) []DisplayRecord {
	out := make([]DisplayRecord, 0, len(rs))
	for _, r := range rs {
		out = append(out, Transform(r))
	}
	return out
}
