package export

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/wakala/divrecon/internal/domain"
)

func record(side domain.Side, kv ...string) *domain.Record {
	r := &domain.Record{Side: side, Values: map[string]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		r.Fields = append(r.Fields, kv[i])
		r.Values[kv[i]] = kv[i+1]
	}
	return r
}

func samplePairs() []domain.MatchedPair {
	return []domain.MatchedPair{
		{
			Ordinal:   1,
			Owner:     record(domain.SideOwner, "ISIN", "US1", "TAX", "15", "CUSTODIAN", "JPM, N.A."),
			Custodian: record(domain.SideCustodian, "ISIN", "US1", "TAX", "14", "CUSTODIAN", "CUST/JPM"),
		},
		{
			Ordinal: 2,
			Owner:   record(domain.SideOwner, "ISIN", "US2", "TAX", "", "CUSTODIAN", "\"quoted\""),
		},
		{
			Ordinal:   3,
			Custodian: record(domain.SideCustodian, "ISIN", "US3", "TAX", "7", "CUSTODIAN", "BNY"),
		},
	}
}

func TestExportMatrix(t *testing.T) {
	v := Export(samplePairs(), DefaultLabels)

	assert.Equal(t, []string{
		"Field",
		"NBIM#001", "CUSTODY#001",
		"NBIM#002", "CUSTODY#002",
		"NBIM#003", "CUSTODY#003",
	}, v.Matrix.Header)
	assert.Equal(t, []string{"ISIN", "TAX", "CUSTODIAN"}, v.Matrix.Fields())
	assert.Equal(t, []string{"TAX", "15", "14", "", "", "", "7"}, v.Matrix.Rows[1])
}

func TestExportNested(t *testing.T) {
	v := Export(samplePairs(), DefaultLabels)
	require.Len(t, v.Nested.Pairs, 3)
	assert.Equal(t, []string{"#001", "#002", "#003"}, v.Nested.IDs())

	orphan := v.Nested.Pairs[1]
	assert.Equal(t, []string{"ISIN", "TAX", "CUSTODIAN"}, orphan.Custodian.Keys, "missing sides still list every field")
	assert.Equal(t, "", orphan.Custodian.Values["ISIN"])

	data, err := v.Nested.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id": "#001"`)
	assert.Contains(t, string(data), `"NBIM": {`)
	assert.Contains(t, string(data), `"CUSTODY": {`)
	assert.Less(t, bytes.Index(data, []byte(`"ISIN"`)), bytes.Index(data, []byte(`"TAX"`)), "field order is kept")
}

func TestExportIdempotent(t *testing.T) {
	pairs := samplePairs()
	a, b := Export(pairs, DefaultLabels), Export(pairs, DefaultLabels)

	csvA, err := a.Matrix.CSV()
	require.NoError(t, err)
	csvB, err := b.Matrix.CSV()
	require.NoError(t, err)
	assert.Equal(t, csvA, csvB)

	jsonA, err := a.Nested.JSON()
	require.NoError(t, err)
	jsonB, err := b.Nested.JSON()
	require.NoError(t, err)
	assert.Equal(t, jsonA, jsonB)
}

func TestRoundTrip(t *testing.T) {
	v := Export(samplePairs(), DefaultLabels)

	t.Run("matrix", func(t *testing.T) {
		n, err := MatrixToNested(v.Matrix, DefaultLabels)
		require.NoError(t, err)
		m, err := NestedToMatrix(n, DefaultLabels)
		require.NoError(t, err)
		if diff := cmp.Diff(v.Matrix, m); diff != "" {
			t.Errorf("matrix round trip mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("nested", func(t *testing.T) {
		m, err := NestedToMatrix(v.Nested, DefaultLabels)
		require.NoError(t, err)
		n, err := MatrixToNested(m, DefaultLabels)
		require.NoError(t, err)
		if diff := cmp.Diff(v.Nested, n); diff != "" {
			t.Errorf("nested round trip mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("through encodings", func(t *testing.T) {
		csvData, err := v.Matrix.CSV()
		require.NoError(t, err)
		m, err := ReadMatrixCSV(bytes.NewReader(csvData))
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(v.Matrix, m))

		jsonData, err := v.Nested.JSON()
		require.NoError(t, err)
		n, err := DecodeNested(jsonData, DefaultLabels)
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(v.Nested, n))
	})
}

func TestToPairs(t *testing.T) {
	v := Export(samplePairs(), DefaultLabels)
	pairs, err := v.Nested.ToPairs()
	require.NoError(t, err)
	require.Len(t, pairs, 3)

	assert.Nil(t, pairs[1].Custodian)
	assert.Nil(t, pairs[2].Owner)
	assert.Equal(t, 3, pairs[2].Ordinal)
	assert.Equal(t, "CUST/JPM", pairs[0].Custodian.Get("CUSTODIAN"))

	again := Export(pairs, DefaultLabels)
	assert.Empty(t, cmp.Diff(v.Matrix, again.Matrix))
}

func TestExportEmpty(t *testing.T) {
	v := Export(nil, DefaultLabels)
	assert.Equal(t, []string{"Field"}, v.Matrix.Header)
	assert.Equal(t, domain.CanonicalFields, v.Matrix.Fields())
	assert.Empty(t, v.Nested.Pairs)

	data, err := v.Nested.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"pairs": []}`, string(data))

	n, err := DecodeNested(data, DefaultLabels)
	require.NoError(t, err)
	m, err := NestedToMatrix(n, DefaultLabels)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(v.Matrix, m))
}

func TestMatrixErrors(t *testing.T) {
	_, err := ReadMatrixCSV(bytes.NewReader([]byte("Name,NBIM#001\n")))
	assert.Error(t, err)

	_, err = MatrixToNested(Matrix{Header: []string{"Field", "OTHER#001"}}, DefaultLabels)
	assert.ErrorContains(t, err, "unknown side")

	_, err = MatrixToNested(Matrix{Header: []string{"Field", "NBIM-1"}}, DefaultLabels)
	assert.ErrorContains(t, err, "unrecognised")

	_, err = DecodeNested([]byte(`{"rows": []}`), DefaultLabels)
	assert.Error(t, err)
}

func TestWriteXLSX(t *testing.T) {
	v := Export(samplePairs(), DefaultLabels)
	var buf bytes.Buffer
	require.NoError(t, v.Matrix.WriteXLSX(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetCellValue("Pairs", "C1")
	require.NoError(t, err)
	assert.Equal(t, "CUSTODY#001", got)

	got, err = f.GetCellValue("Pairs", "B4")
	require.NoError(t, err)
	assert.Equal(t, "JPM, N.A.", got)
}

func TestPairJSON(t *testing.T) {
	v := Export(samplePairs(), DefaultLabels)
	got := PairJSON(v.Nested.Pairs[0], DefaultLabels)
	assert.JSONEq(t, `{"id": "#001",
		"NBIM": {"ISIN": "US1", "TAX": "15", "CUSTODIAN": "JPM, N.A."},
		"CUSTODY": {"ISIN": "US1", "TAX": "14", "CUSTODIAN": "CUST/JPM"}}`, string(got))
}
