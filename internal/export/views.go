// Package export renders matched pairs as the two interchangeable views
// consumed downstream: a transposed matrix (fields as rows, one column per
// pair side) and a nested document ({"pairs": [...]}).
package export

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"github.com/wakala/divrecon/internal/domain"
)

// FieldHeader labels the first matrix column.
const FieldHeader = "Field"

// Labels name the two sides in column headers and nested keys.
type Labels struct {
	Owner     string
	Custodian string
}

// DefaultLabels are the labels used by the booking files this tool targets.
var DefaultLabels = Labels{Owner: "NBIM", Custodian: "CUSTODY"}

// Matrix is the transposed view. Header[0] is FieldHeader; every row starts
// with its field name and has len(Header) cells.
type Matrix struct {
	Header []string
	Rows   [][]string
}

// Fields returns the row labels in order.
func (m Matrix) Fields() []string {
	out := make([]string, len(m.Rows))
	for i, r := range m.Rows {
		out[i] = r[0]
	}
	return out
}

// SideValues is an ordered field -> value mapping.
type SideValues struct {
	Keys   []string
	Values map[string]string
}

// NestedPair is one element of the nested view.
type NestedPair struct {
	ID        string
	Owner     SideValues
	Custodian SideValues
}

// Nested is the {"pairs": [...]} view.
type Nested struct {
	Labels Labels
	Pairs  []NestedPair
}

// Views bundles both renderings of one pair sequence.
type Views struct {
	Matrix Matrix
	Nested Nested
}

// Export builds both views from pairs. Rows cover the union of all record
// fields in first-seen order; with no records the canonical field set is used.
func Export(pairs []domain.MatchedPair, labels Labels) Views {
	fields := collectFields(pairs)
	return Views{
		Matrix: buildMatrix(pairs, fields, labels),
		Nested: buildNested(pairs, fields, labels),
	}
}

func collectFields(pairs []domain.MatchedPair) []string {
	seen := make(map[string]bool)
	var fields []string
	for _, p := range pairs {
		for _, r := range []*domain.Record{p.Owner, p.Custodian} {
			if r == nil {
				continue
			}
			for _, f := range r.Fields {
				if !seen[f] {
					seen[f] = true
					fields = append(fields, f)
				}
			}
		}
	}
	if len(fields) == 0 {
		fields = append(fields, domain.CanonicalFields...)
	}
	return fields
}

func buildMatrix(pairs []domain.MatchedPair, fields []string, labels Labels) Matrix {
	header := make([]string, 0, 1+2*len(pairs))
	header = append(header, FieldHeader)
	for _, p := range pairs {
		header = append(header,
			domain.ColumnName(labels.Owner, p.Ordinal),
			domain.ColumnName(labels.Custodian, p.Ordinal))
	}

	rows := make([][]string, len(fields))
	for i, f := range fields {
		row := make([]string, 0, len(header))
		row = append(row, f)
		for _, p := range pairs {
			row = append(row, p.Owner.Get(f), p.Custodian.Get(f))
		}
		rows[i] = row
	}
	return Matrix{Header: header, Rows: rows}
}

func buildNested(pairs []domain.MatchedPair, fields []string, labels Labels) Nested {
	n := Nested{Labels: labels, Pairs: make([]NestedPair, 0, len(pairs))}
	for _, p := range pairs {
		n.Pairs = append(n.Pairs, NestedPair{
			ID:        domain.DisplayID(p.Ordinal),
			Owner:     sideValues(p.Owner, fields),
			Custodian: sideValues(p.Custodian, fields),
		})
	}
	return n
}

func sideValues(r *domain.Record, fields []string) SideValues {
	sv := SideValues{Keys: append([]string(nil), fields...), Values: make(map[string]string, len(fields))}
	for _, f := range fields {
		sv.Values[f] = r.Get(f)
	}
	return sv
}

// ToPairs reconstructs matched pairs from the nested view. A side whose values
// are all blank becomes nil.
func (n Nested) ToPairs() ([]domain.MatchedPair, error) {
	pairs := make([]domain.MatchedPair, 0, len(n.Pairs))
	for _, np := range n.Pairs {
		ord, err := domain.ParseDisplayID(np.ID)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, domain.MatchedPair{
			Ordinal:   ord,
			Owner:     toRecord(np.Owner, domain.SideOwner),
			Custodian: toRecord(np.Custodian, domain.SideCustodian),
		})
	}
	return pairs, nil
}

// IDs lists the display ids of every pair in order.
func (n Nested) IDs() []string {
	ids := make([]string, len(n.Pairs))
	for i, p := range n.Pairs {
		ids[i] = p.ID
	}
	return ids
}

func toRecord(sv SideValues, side domain.Side) *domain.Record {
	blank := true
	for _, v := range sv.Values {
		if v != "" {
			blank = false
			break
		}
	}
	if blank {
		return nil
	}
	r := &domain.Record{
		Side:   side,
		Fields: append([]string(nil), sv.Keys...),
		Values: make(map[string]string, len(sv.Keys)),
	}
	for _, k := range sv.Keys {
		r.Values[k] = sv.Values[k]
	}
	return r
}

var columnRe = regexp.MustCompile(`^(.+)#(\d{3,})$`)

// MatrixToNested converts the matrix view into the nested view.
func MatrixToNested(m Matrix, labels Labels) (Nested, error) {
	if len(m.Header) == 0 {
		return Nested{}, fmt.Errorf("matrix has no header")
	}
	type cols struct{ owner, custodian int }
	byOrdinal := make(map[int]*cols)
	for i, h := range m.Header[1:] {
		match := columnRe.FindStringSubmatch(h)
		if match == nil {
			return Nested{}, fmt.Errorf("unrecognised matrix column %q", h)
		}
		ord, _ := strconv.Atoi(match[2])
		c := byOrdinal[ord]
		if c == nil {
			c = &cols{owner: -1, custodian: -1}
			byOrdinal[ord] = c
		}
		switch match[1] {
		case labels.Owner:
			c.owner = i + 1
		case labels.Custodian:
			c.custodian = i + 1
		default:
			return Nested{}, fmt.Errorf("matrix column %q has unknown side %q", h, match[1])
		}
	}

	ordinals := make([]int, 0, len(byOrdinal))
	for o := range byOrdinal {
		ordinals = append(ordinals, o)
	}
	sort.Ints(ordinals)

	fields := m.Fields()
	n := Nested{Labels: labels, Pairs: make([]NestedPair, 0, len(ordinals))}
	for _, o := range ordinals {
		c := byOrdinal[o]
		n.Pairs = append(n.Pairs, NestedPair{
			ID:        domain.DisplayID(o),
			Owner:     columnValues(m, fields, c.owner),
			Custodian: columnValues(m, fields, c.custodian),
		})
	}
	return n, nil
}

func columnValues(m Matrix, fields []string, col int) SideValues {
	sv := SideValues{Keys: append([]string(nil), fields...), Values: make(map[string]string, len(fields))}
	for i, f := range fields {
		v := ""
		if col > 0 && col < len(m.Rows[i]) {
			v = m.Rows[i][col]
		}
		sv.Values[f] = v
	}
	return sv
}

// NestedToMatrix converts the nested view into the matrix view.
func NestedToMatrix(n Nested, labels Labels) (Matrix, error) {
	pairs := make([]domain.MatchedPair, 0, len(n.Pairs))
	var fields []string
	seen := make(map[string]bool)
	for _, np := range n.Pairs {
		ord, err := domain.ParseDisplayID(np.ID)
		if err != nil {
			return Matrix{}, err
		}
		for _, sv := range []SideValues{np.Owner, np.Custodian} {
			for _, k := range sv.Keys {
				if !seen[k] {
					seen[k] = true
					fields = append(fields, k)
				}
			}
		}
		pairs = append(pairs, domain.MatchedPair{
			Ordinal:   ord,
			Owner:     valuesRecord(np.Owner),
			Custodian: valuesRecord(np.Custodian),
		})
	}
	if len(fields) == 0 {
		fields = append(fields, domain.CanonicalFields...)
	}
	return buildMatrix(pairs, fields, labels), nil
}

// valuesRecord keeps blank sides as records so NestedToMatrix is lossless.
func valuesRecord(sv SideValues) *domain.Record {
	return &domain.Record{Fields: sv.Keys, Values: sv.Values}
}
