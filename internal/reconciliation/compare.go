package reconciliation

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wakala/divrecon/internal/amount"
	"github.com/wakala/divrecon/internal/domain"
)

var dateFields = map[string]bool{
	domain.FieldExDate:      true,
	domain.FieldPaymentDate: true,
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02.01.2006",
	"02/01/2006",
	"2006/01/02",
	"20060102",
}

// Comparator finds field-level differences inside a pair.
type Comparator struct {
	Tolerance decimal.Decimal
}

// NewComparator uses amount.DefaultTolerance when tol is zero or negative.
func NewComparator(tol decimal.Decimal) Comparator {
	if !tol.IsPositive() {
		tol = amount.DefaultTolerance
	}
	return Comparator{Tolerance: tol}
}

// Compare lists every field on which the two sides disagree. Orphans produce
// a single orphan diff.
func (c Comparator) Compare(p domain.MatchedPair) []domain.FieldDiff {
	id := domain.DisplayID(p.Ordinal)
	if p.Orphan() {
		d := domain.FieldDiff{PairID: id, Kind: domain.DiffOrphan}
		if p.Owner != nil {
			d.Owner = "present"
		}
		if p.Custodian != nil {
			d.Custodian = "present"
		}
		return []domain.FieldDiff{d}
	}

	var diffs []domain.FieldDiff
	for _, field := range unionFields(p.Owner, p.Custodian) {
		o := strings.TrimSpace(p.Owner.Get(field))
		cv := strings.TrimSpace(p.Custodian.Get(field))
		if o == "" && cv == "" {
			continue
		}
		d := domain.FieldDiff{PairID: id, Field: field, Owner: o, Custodian: cv}

		switch {
		case o == "" || cv == "":
			d.Kind = domain.DiffMissing
		case domain.NumericFields[field]:
			equal, numeric, delta := amount.Compare(o, cv, c.Tolerance)
			if numeric {
				if equal {
					continue
				}
				d.Kind = domain.DiffNumeric
				d.Delta = delta.String()
			} else {
				if strings.EqualFold(o, cv) {
					continue
				}
				d.Kind = domain.DiffText
			}
		case dateFields[field]:
			if sameDate(o, cv) {
				continue
			}
			d.Kind = domain.DiffText
		default:
			if strings.EqualFold(o, cv) {
				continue
			}
			d.Kind = domain.DiffText
		}
		diffs = append(diffs, d)
	}
	return diffs
}

// CompareAll runs Compare over every pair.
func (c Comparator) CompareAll(pairs []domain.MatchedPair) []domain.FieldDiff {
	var all []domain.FieldDiff
	for _, p := range pairs {
		all = append(all, c.Compare(p)...)
	}
	return all
}

func unionFields(a, b *domain.Record) []string {
	seen := make(map[string]bool, len(a.Fields)+len(b.Fields))
	var out []string
	for _, rec := range []*domain.Record{a, b} {
		for _, f := range rec.Fields {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}

func sameDate(a, b string) bool {
	if strings.EqualFold(a, b) {
		return true
	}
	ta, okA := parseDate(a)
	tb, okB := parseDate(b)
	return okA && okB && ta.Equal(tb)
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
