package reconciliation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakala/divrecon/internal/domain"
)

func TestBackfill(t *testing.T) {
	owner := rec(domain.SideOwner, 2, domain.FieldOrganisationName, "Acme Corp", domain.FieldTicker, "ACME")
	cust := rec(domain.SideCustodian, 2, domain.FieldTicker, "ACM")
	orphan := rec(domain.SideCustodian, 3)

	in := []domain.MatchedPair{
		{Ordinal: 1, Owner: owner, Custodian: cust},
		{Ordinal: 2, Custodian: orphan},
	}
	out := Backfill(in)

	require.Len(t, out, 2)
	assert.Equal(t, "Acme Corp", out[0].Custodian.Get(domain.FieldOrganisationName))
	assert.Equal(t, BackfillProvenance, out[0].Custodian.Provenance[domain.FieldOrganisationName])
	assert.Equal(t, "ACM", out[0].Custodian.Get(domain.FieldTicker), "non-blank custodian values are kept")

	assert.Equal(t, "", cust.Get(domain.FieldOrganisationName), "input records are untouched")
	assert.Same(t, orphan, out[1].Custodian)
	assert.Equal(t, 1, out[0].Ordinal)
}

func TestCompare(t *testing.T) {
	c := NewComparator(decimal.Zero)
	owner := rec(domain.SideOwner, 2,
		domain.FieldEventKey, "E1",
		domain.FieldISIN, "US1",
		domain.FieldGrossQuote, "1,000.00",
		domain.FieldNetQuote, "850",
		domain.FieldTax, "150",
		domain.FieldCustodian, "JPMORGAN_CHASE",
		domain.FieldPaymentDate, "2024-05-02",
		domain.FieldCrossCurrency, "False",
		domain.FieldTicker, "ACME",
	)
	cust := rec(domain.SideCustodian, 2,
		domain.FieldEventKey, "e1",
		domain.FieldISIN, "US1",
		domain.FieldGrossQuote, "1000.9",
		domain.FieldNetQuote, "848.9999",
		domain.FieldTax, "",
		domain.FieldCustodian, "CUST/JPMORGANUS",
		domain.FieldPaymentDate, "02.05.2024",
		domain.FieldCrossCurrency, "FALSE",
	)

	diffs := c.Compare(domain.MatchedPair{Ordinal: 7, Owner: owner, Custodian: cust})
	byField := map[string]domain.FieldDiff{}
	for _, d := range diffs {
		assert.Equal(t, "#007", d.PairID)
		byField[d.Field] = d
	}

	assert.NotContains(t, byField, domain.FieldEventKey)
	assert.NotContains(t, byField, domain.FieldGrossQuote, "0.9 is within tolerance")
	assert.NotContains(t, byField, domain.FieldPaymentDate, "same date in another layout")
	assert.NotContains(t, byField, domain.FieldCrossCurrency)

	require.Contains(t, byField, domain.FieldNetQuote)
	assert.Equal(t, domain.DiffNumeric, byField[domain.FieldNetQuote].Kind)
	assert.Equal(t, "1.0001", byField[domain.FieldNetQuote].Delta)

	assert.Equal(t, domain.DiffMissing, byField[domain.FieldTax].Kind)
	assert.Equal(t, domain.DiffMissing, byField[domain.FieldTicker].Kind)
	assert.Equal(t, domain.DiffText, byField[domain.FieldCustodian].Kind)
	assert.Len(t, diffs, 4)
}

func TestCompareOrphan(t *testing.T) {
	c := NewComparator(decimal.NewFromInt(1))
	diffs := c.Compare(domain.MatchedPair{Ordinal: 3, Owner: rec(domain.SideOwner, 2)})
	require.Len(t, diffs, 1)
	assert.Equal(t, domain.DiffOrphan, diffs[0].Kind)
	assert.Equal(t, "present", diffs[0].Owner)
	assert.Equal(t, "", diffs[0].Custodian)
}
