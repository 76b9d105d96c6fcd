package domain

import "strings"

// Side identifies which booking source a record came from.
type Side string

const (
	SideOwner     Side = "owner"
	SideCustodian Side = "custodian"
)

// Canonical field names shared by both sides.
const (
	FieldEventKey         = "COAC_EVENT_KEY"
	FieldISIN             = "ISIN"
	FieldSEDOL            = "SEDOL"
	FieldTicker           = "TICKER"
	FieldOrganisationName = "ORGANISATION_NAME"
	FieldDividendPerShare = "DIVIDENDS_PER_SHARE"
	FieldExDate           = "EX_DATE"
	FieldPaymentDate      = "PAYMENT_DATE"
	FieldQuoteCurrency    = "QUOTATION_CURRENCY"
	FieldSettleCurrency   = "SETTLED_CURRENCY"
	FieldCurrencies       = "CURRENCIES"
	FieldCrossCurrency    = "IS_CROSS_CURRENCY_REVERSAL"
	FieldHoldingQuantity  = "HOLDING_QUANTITY"
	FieldGrossQuote       = "GROSS_AMOUNT_QUOTATION"
	FieldNetQuote         = "NET_AMOUNT_QUOTATION"
	FieldNetSettle        = "NET_AMOUNT_SETTLEMENT"
	FieldTaxRate          = "TAX_RATE"
	FieldTax              = "TAX"
	FieldBankAccount      = "BANK_ACCOUNT"
	FieldCustodian        = "CUSTODIAN"
)

// CanonicalFields lists every canonical field in emission order.
var CanonicalFields = []string{
	FieldEventKey,
	FieldISIN,
	FieldSEDOL,
	FieldTicker,
	FieldOrganisationName,
	FieldDividendPerShare,
	FieldExDate,
	FieldPaymentDate,
	FieldQuoteCurrency,
	FieldSettleCurrency,
	FieldCurrencies,
	FieldCrossCurrency,
	FieldHoldingQuantity,
	FieldGrossQuote,
	FieldNetQuote,
	FieldNetSettle,
	FieldTaxRate,
	FieldTax,
	FieldBankAccount,
	FieldCustodian,
}

// NumericFields are compared with the amount tolerance instead of as text.
var NumericFields = map[string]bool{
	FieldDividendPerShare: true,
	FieldHoldingQuantity:  true,
	FieldGrossQuote:       true,
	FieldNetQuote:         true,
	FieldNetSettle:        true,
	FieldTaxRate:          true,
	FieldTax:              true,
}

// RawRow is one data row of a source file. Columns keeps header order.
type RawRow struct {
	Line    int               `json:"line"`
	Columns []string          `json:"columns"`
	Values  map[string]string `json:"values"`
}

// Get returns the raw value of a column, or "" when the column is absent.
func (r RawRow) Get(col string) string {
	return r.Values[col]
}

// Lookup finds a column by name ignoring case and returns the name as it
// appears in the source header. An exact match wins over a case-folded one.
func (r RawRow) Lookup(name string) (col, val string, ok bool) {
	if v, found := r.Values[name]; found {
		return name, v, true
	}
	for _, c := range r.Columns {
		if strings.EqualFold(c, name) {
			return c, r.Values[c], true
		}
	}
	return "", "", false
}

// SoftFailure records a value that could not be interpreted during
// normalization. It travels with the record instead of aborting the batch.
type SoftFailure struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// Record is one normalized booking from one side. Every name in Fields has
// an entry in Values, possibly empty. Records are not modified after
// normalization; enrichment works on copies.
type Record struct {
	Side       Side              `json:"side"`
	Line       int               `json:"line"`
	Fields     []string          `json:"fields"`
	Values     map[string]string `json:"values"`
	Provenance map[string]string `json:"provenance,omitempty"`
	Soft       []SoftFailure     `json:"soft_failures,omitempty"`
}

// Get returns the value of a field, or "" when the record is nil.
func (r *Record) Get(field string) string {
	if r == nil {
		return ""
	}
	return r.Values[field]
}

// Blank reports whether every field of the record is empty.
func (r *Record) Blank() bool {
	if r == nil {
		return true
	}
	for _, v := range r.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := &Record{
		Side:       r.Side,
		Line:       r.Line,
		Fields:     append([]string(nil), r.Fields...),
		Values:     make(map[string]string, len(r.Values)),
		Provenance: make(map[string]string, len(r.Provenance)),
		Soft:       append([]SoftFailure(nil), r.Soft...),
	}
	for k, v := range r.Values {
		c.Values[k] = v
	}
	for k, v := range r.Provenance {
		c.Provenance[k] = v
	}
	return c
}
