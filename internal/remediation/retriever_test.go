package remediation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakala/divrecon/internal/domain"
)

var kb = []domain.Remediation{
	{Type: "CUSTODIAN mismatch", Pattern: []string{"custodian name differs"}, Remediation: "Map the custodian alias to the legal entity name."},
	{Type: "TAX_RATE mismatch", Pattern: []string{"tax rate differs", "withholding"}, Remediation: "Apply the treaty withholding tax rate and rebook tax."},
	{Type: "PAYMENT_DATE mismatch", Pattern: []string{"payment date differs"}, Remediation: "Use the custodian payment date."},
	{Type: "HOLDING_QUANTITY mismatch", Pattern: []string{"quantity differs", "securities lending"}, Remediation: "Add loaned quantity to the holding."},
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"custodian", "mismatch", "jpmorgan", "chase", "vs", "cust", "jpmorganus"},
		Tokenize("custodian mismatch: JPMORGAN_CHASE vs CUST/JPMORGANUS"))
	assert.Empty(t, Tokenize(" -- "))
}

func TestSuggestRanksRelevantFirst(t *testing.T) {
	r := NewRetriever(kb)
	require.Equal(t, 4, r.Len())

	got := r.Suggest("withholding tax rate differs: 15% vs 30%", 0)
	require.NotEmpty(t, got)
	assert.Equal(t, "TAX_RATE mismatch", got[0].Type)
	assert.LessOrEqual(t, len(got), DefaultK)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}

	got = r.Suggest("Custodian mismatch: JPMORGAN_CHASE vs CUST/JPMORGANUS", 1)
	require.Len(t, got, 1)
	assert.Equal(t, "CUSTODIAN mismatch", got[0].Type)
}

func TestSuggestNoMatch(t *testing.T) {
	r := NewRetriever(kb)
	assert.Empty(t, r.Suggest("zebra", 3))
	assert.Empty(t, r.Suggest("", 3))
	assert.Empty(t, NewRetriever(nil).Suggest("tax", 3))
}

func TestLoadKnowledgeBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kb.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"type": "FX", "pattern": ["settlement currency differs"], "remediation": "Rebook in settlement currency."}
	]`), 0o644))

	r, err := LoadKnowledgeBase(path)
	require.NoError(t, err)
	got := r.Suggest("settlement currency", 3)
	require.Len(t, got, 1)
	assert.Equal(t, "FX", got[0].Type)

	r, err = LoadKnowledgeBase(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Zero(t, r.Len())
}
