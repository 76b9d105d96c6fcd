package domain

import (
	"fmt"
	"regexp"
	"strconv"
)

// MatchPolicy selects how records from both sides are paired.
type MatchPolicy string

const (
	MatchByKey      MatchPolicy = "key"
	MatchPositional MatchPolicy = "positional"
)

// RetentionPolicy selects which columns survive normalization.
type RetentionPolicy string

const (
	RetainPrune       RetentionPolicy = "prune"
	RetainPassthrough RetentionPolicy = "passthrough"
)

// MatchedPair is one owner/custodian pairing. Either side may be nil for an
// orphan. Ordinal is assigned once by the matcher and is the join key for
// every downstream artifact.
type MatchedPair struct {
	Ordinal   int     `json:"ordinal"`
	Owner     *Record `json:"owner,omitempty"`
	Custodian *Record `json:"custodian,omitempty"`
}

// Orphan reports whether one side of the pair is missing.
func (p MatchedPair) Orphan() bool {
	return p.Owner == nil || p.Custodian == nil
}

// Side returns the record for the given side.
func (p MatchedPair) Side(s Side) *Record {
	if s == SideOwner {
		return p.Owner
	}
	return p.Custodian
}

// FormatOrdinal zero-pads an ordinal to at least three digits.
func FormatOrdinal(n int) string {
	return fmt.Sprintf("%03d", n)
}

// DisplayID is the id used in the nested view and by severity records.
func DisplayID(n int) string {
	return "#" + FormatOrdinal(n)
}

// ColumnName is the matrix column for one side of a pair, e.g. NBIM#001.
func ColumnName(label string, n int) string {
	return label + DisplayID(n)
}

var displayIDRe = regexp.MustCompile(`^(?:#|No\.)(\d{3,})$`)

// ValidDisplayID reports whether s looks like "#001" or "No.001".
func ValidDisplayID(s string) bool {
	return displayIDRe.MatchString(s)
}

// ParseDisplayID extracts the ordinal from "#001" or "No.001".
func ParseDisplayID(s string) (int, error) {
	m := displayIDRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid pair id %q", s)
	}
	return strconv.Atoi(m[1])
}
