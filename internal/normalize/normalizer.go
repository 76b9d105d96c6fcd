// Package normalize maps the raw rows of either booking source onto the
// canonical field set and applies the per-row derivations.
package normalize

import (
	"strings"

	"github.com/wakala/divrecon/internal/amount"
	"github.com/wakala/divrecon/internal/currency"
	"github.com/wakala/divrecon/internal/domain"
	"github.com/wakala/divrecon/internal/logging"
)

// Provenance markers for values that did not come straight from a column.
const (
	DerivedCurrencies = "derived:currencies"
	DerivedCrossFlag  = "derived:cross_currency"
	DerivedTax        = "derived:gross_minus_net"
	DerivedHolding    = "derived:holding_plus_loan"
)

// Normalizer turns raw rows into canonical records.
type Normalizer struct {
	schema    *Schema
	retention domain.RetentionPolicy
}

// New creates a Normalizer. A nil schema selects the embedded default and an
// empty retention policy selects prune.
func New(schema *Schema, retention domain.RetentionPolicy) *Normalizer {
	if schema == nil {
		schema = DefaultSchema()
	}
	if retention == "" {
		retention = domain.RetainPrune
	}
	return &Normalizer{schema: schema, retention: retention}
}

// Retention reports the field retention policy in use.
func (n *Normalizer) Retention() domain.RetentionPolicy { return n.retention }

// Normalize converts every row. Rows never fail: values that cannot be read
// are left as found and noted on the record's soft failure list.
func (n *Normalizer) Normalize(rows []domain.RawRow, side domain.Side) []*domain.Record {
	ss := n.schema.For(side)
	consumed := ss.consumed()

	records := make([]*domain.Record, 0, len(rows))
	soft := 0
	for _, row := range rows {
		rec := n.normalizeRow(row, side, ss, consumed)
		soft += len(rec.Soft)
		records = append(records, rec)
	}

	log := logging.Component("normalize")
	log.Info().
		Str("side", string(side)).
		Int("records", len(records)).
		Int("soft_failures", soft).
		Msg("Normalized records")
	return records
}

func (n *Normalizer) normalizeRow(row domain.RawRow, side domain.Side, ss SideSchema, consumed map[string]bool) *domain.Record {
	rec := &domain.Record{
		Side:       side,
		Line:       row.Line,
		Fields:     append([]string(nil), domain.CanonicalFields...),
		Values:     make(map[string]string, len(domain.CanonicalFields)),
		Provenance: make(map[string]string),
	}

	for _, field := range domain.CanonicalFields {
		col, val := firstNonBlank(row, ss.Aliases[field])
		rec.Values[field] = val
		if col != "" {
			rec.Provenance[field] = col
		}
	}

	if side == domain.SideCustodian {
		deriveHolding(rec, row, ss.LoanQuantity)
	}
	deriveCurrencies(rec)
	deriveTax(rec)
	checkNumeric(rec)
	checkIdentity(rec)

	if n.retention == domain.RetainPassthrough {
		for _, col := range row.Columns {
			if consumed[strings.ToUpper(col)] || col == "" {
				continue
			}
			if _, clash := rec.Values[col]; clash {
				continue
			}
			rec.Fields = append(rec.Fields, col)
			rec.Values[col] = strings.TrimSpace(row.Get(col))
			rec.Provenance[col] = col
		}
	}

	return rec
}

// firstNonBlank returns the first alias column holding a non-blank value.
// Aliases match header names case-insensitively; col is the header as read.
func firstNonBlank(row domain.RawRow, aliases []string) (col, val string) {
	for _, a := range aliases {
		c, v, ok := row.Lookup(a)
		if !ok {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			return c, v
		}
	}
	return "", ""
}

// deriveHolding sums holding and loan quantity. A missing holding counts as
// zero; a holding that is present but not numeric is left as read so the
// numeric check reports it.
func deriveHolding(rec *domain.Record, row domain.RawRow, loanAliases []string) {
	if len(loanAliases) == 0 {
		return
	}
	loanCol, loan := firstNonBlank(row, loanAliases)
	if loanCol == "" {
		return
	}
	holding := rec.Values[domain.FieldHoldingQuantity]
	if holding != "" && !amount.IsNumeric(holding) {
		return
	}
	total, ok := amount.Sum(holding, loan)
	if !ok {
		return
	}
	rec.Values[domain.FieldHoldingQuantity] = amount.Format(total)
	rec.Provenance[domain.FieldHoldingQuantity] = DerivedHolding
}

// deriveCurrencies fills the currency marker and cross-currency flag when the
// source did not provide them.
func deriveCurrencies(rec *domain.Record) {
	if rec.Values[domain.FieldCurrencies] == "" {
		marker := currency.Combine(rec.Values[domain.FieldQuoteCurrency], rec.Values[domain.FieldSettleCurrency])
		if marker != "" {
			rec.Values[domain.FieldCurrencies] = marker
			rec.Provenance[domain.FieldCurrencies] = DerivedCurrencies
		}
	}
	if rec.Values[domain.FieldCrossCurrency] == "" && rec.Values[domain.FieldCurrencies] != "" {
		rec.Values[domain.FieldCrossCurrency] = currency.FormatFlag(currency.IsCrossCurrency(rec.Values[domain.FieldCurrencies]))
		rec.Provenance[domain.FieldCrossCurrency] = DerivedCrossFlag
	}
}

// deriveTax back-computes tax as gross minus net in quotation currency when
// no numeric tax was given.
func deriveTax(rec *domain.Record) {
	if amount.IsNumeric(rec.Values[domain.FieldTax]) {
		return
	}
	gross, okG := amount.Parse(rec.Values[domain.FieldGrossQuote])
	net, okN := amount.Parse(rec.Values[domain.FieldNetQuote])
	if !okG || !okN {
		return
	}
	if raw := rec.Values[domain.FieldTax]; raw != "" {
		rec.Soft = append(rec.Soft, domain.SoftFailure{
			Field:  domain.FieldTax,
			Value:  raw,
			Reason: "not numeric, replaced by gross minus net",
		})
	}
	rec.Values[domain.FieldTax] = amount.Format(gross.Sub(net))
	rec.Provenance[domain.FieldTax] = DerivedTax
}

func checkNumeric(rec *domain.Record) {
	for _, field := range domain.CanonicalFields {
		if !domain.NumericFields[field] {
			continue
		}
		v := rec.Values[field]
		if v != "" && !amount.IsNumeric(v) {
			rec.Soft = append(rec.Soft, domain.SoftFailure{Field: field, Value: v, Reason: "not numeric"})
		}
	}
}

func checkIdentity(rec *domain.Record) {
	for _, field := range []string{domain.FieldEventKey, domain.FieldISIN} {
		if rec.Values[field] == "" {
			rec.Soft = append(rec.Soft, domain.SoftFailure{Field: field, Reason: "missing identity field"})
		}
	}
}
