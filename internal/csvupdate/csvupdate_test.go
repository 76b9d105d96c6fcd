package csvupdate

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakala/divrecon/internal/domain"
	"github.com/wakala/divrecon/internal/export"
	"github.com/wakala/divrecon/internal/store"
)

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "TAX_RATE", NormalizeName("  tax   rate "))
	assert.Equal(t, "ISIN", NormalizeName("isin"))
}

func TestResolve(t *testing.T) {
	available := []string{"ISIN", "TAX_RATE", "TAX", "PAYMENT_DATE", "EX_DATE"}

	tests := []struct {
		in   string
		want string
	}{
		{"TAX", "TAX"},
		{"tax rate", "TAX_RATE"},
		{"taxrate", "TAX_RATE"},
		{"paymnt date", "PAYMENT_DATE"},
		{" isin ", "ISIN"},
	}
	for _, tc := range tests {
		got, err := Resolve(tc.in, EligibleRows, available)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestResolveAmbiguous(t *testing.T) {
	_, err := Resolve("AB", []string{"AB2", "AB1"}, []string{"AB1", "AB2"})
	var amb *domain.AmbiguityError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, []string{"AB1", "AB2"}, amb.Candidates)
	assert.True(t, errors.Is(err, domain.ErrAmbiguous))
}

func TestResolveNothingClose(t *testing.T) {
	_, err := Resolve("zzzz", EligibleRows, []string{"TAX"})
	var amb *domain.AmbiguityError
	require.ErrorAs(t, err, &amb)
	assert.Empty(t, amb.Candidates)
}

func TestCleanID(t *testing.T) {
	for in, want := range map[string]string{
		"001":         "001",
		"#001":        "001",
		"No.001":      "001",
		"nbim#7":      "007",
		"CUSTODY#012": "012",
		"1234":        "1234",
	} {
		got, err := CleanID(in, "NBIM", "CUSTODY")
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := CleanID("OTHER#001", "NBIM", "CUSTODY")
	assert.Error(t, err)
	_, err = CleanID("abc", "NBIM", "CUSTODY")
	assert.Error(t, err)
}

func sampleMatrix() export.Matrix {
	return export.Matrix{
		Header: []string{"Field", "NBIM#001", "CUSTODY#001", "NBIM#002", "CUSTODY#002"},
		Rows: [][]string{
			{"ISIN", "US1", "US1", "US2", ""},
			{"TAX_RATE", "15", "30", "15", ""},
		},
	}
}

func TestApply(t *testing.T) {
	m := sampleMatrix()
	got, res := Apply(m, export.DefaultLabels, "CUSTODY#001", "tax rate", "15")
	require.True(t, res.OK, res.Message)
	assert.Equal(t, "TAX_RATE", res.Row)
	assert.Equal(t, []string{"NBIM#001", "CUSTODY#001"}, res.Columns)
	assert.Equal(t, []string{"TAX_RATE", "15", "15", "15", ""}, got.Rows[1])
	assert.Equal(t, "30", m.Rows[1][2], "input matrix is untouched")
}

func TestApplyFailures(t *testing.T) {
	m := sampleMatrix()

	_, res := Apply(m, export.DefaultLabels, "#009", "TAX_RATE", "1")
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "NBIM#009")

	_, res = Apply(m, export.DefaultLabels, "#001", "qqqq", "1")
	assert.False(t, res.OK)
	assert.Contains(t, res.Message, "matches nothing")

	_, res = Apply(m, export.DefaultLabels, "x1y", "TAX_RATE", "1")
	assert.False(t, res.OK)

	_, res = Apply(export.Matrix{}, export.DefaultLabels, "#001", "TAX", "1")
	assert.False(t, res.OK)
}

func TestUpdateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairs.csv")
	data, err := sampleMatrix().CSV()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	res := UpdateFile(path, export.DefaultLabels, "2", "ISIN", "US9")
	require.True(t, res.OK, res.Message)

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(out), "ISIN,US1,US1,US9,US9\n")

	res = UpdateFile(filepath.Join(t.TempDir(), "missing.csv"), export.DefaultLabels, "1", "ISIN", "x")
	assert.False(t, res.OK)
}

func TestUpdaterKeepsViewsInStep(t *testing.T) {
	dir := t.TempDir()
	s := store.NewRecordStore(filepath.Join(dir, "pairs.csv"), filepath.Join(dir, "pairs.json"), export.DefaultLabels)
	n, err := export.MatrixToNested(sampleMatrix(), export.DefaultLabels)
	require.NoError(t, err)
	require.NoError(t, s.Save(export.Views{Matrix: sampleMatrix(), Nested: n}))

	res := NewUpdater(s).Update("No.001", "TAX_RATE", "15")
	require.True(t, res.OK, res.Message)

	p, err := s.Pair("#001")
	require.NoError(t, err)
	assert.Equal(t, "15", p.Owner.Values["TAX_RATE"])
	assert.Equal(t, "15", p.Custodian.Values["TAX_RATE"])
}

func TestUpdaterConcurrentUpdates(t *testing.T) {
	dir := t.TempDir()
	s := store.NewRecordStore(filepath.Join(dir, "pairs.csv"), filepath.Join(dir, "pairs.json"), export.DefaultLabels)

	rows := []string{
		domain.FieldISIN, domain.FieldSEDOL, domain.FieldTicker, domain.FieldOrganisationName,
		domain.FieldExDate, domain.FieldPaymentDate, domain.FieldTax, domain.FieldBankAccount,
	}
	m := export.Matrix{Header: []string{"Field", "NBIM#001", "CUSTODY#001"}}
	for _, r := range rows {
		m.Rows = append(m.Rows, []string{r, "old", "old"})
	}
	n, err := export.MatrixToNested(m, export.DefaultLabels)
	require.NoError(t, err)
	require.NoError(t, s.Save(export.Views{Matrix: m, Nested: n}))

	u := NewUpdater(s)
	var wg sync.WaitGroup
	results := make([]UpdateResult, len(rows))
	for i, r := range rows {
		wg.Add(1)
		go func(i int, r string) {
			defer wg.Done()
			results[i] = u.Update("001", r, "new-"+r)
		}(i, r)
	}
	wg.Wait()

	for _, res := range results {
		require.True(t, res.OK, res.Message)
	}
	p, err := s.Pair("#001")
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, "new-"+r, p.Owner.Values[r], r)
		assert.Equal(t, "new-"+r, p.Custodian.Values[r], r)
	}

	got, err := s.Matrix()
	require.NoError(t, err)
	onDisk, err := os.ReadFile(s.MatrixPath)
	require.NoError(t, err)
	want, err := got.CSV()
	require.NoError(t, err)
	assert.Equal(t, string(want), string(onDisk), "matrix file agrees with the nested view")
}
