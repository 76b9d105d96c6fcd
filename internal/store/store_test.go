package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wakala/divrecon/internal/domain"
	"github.com/wakala/divrecon/internal/export"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	require.NoError(t, WriteFileAtomic(path, []byte("one"), 0o644))
	require.NoError(t, WriteFileAtomic(path, []byte("two"), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func testViews() export.Views {
	owner := &domain.Record{Side: domain.SideOwner, Fields: []string{"ISIN", "TAX"}, Values: map[string]string{"ISIN": "US1", "TAX": "15"}}
	cust := &domain.Record{Side: domain.SideCustodian, Fields: []string{"ISIN", "TAX"}, Values: map[string]string{"ISIN": "US1", "TAX": "14"}}
	return export.Export([]domain.MatchedPair{
		{Ordinal: 1, Owner: owner, Custodian: cust},
		{Ordinal: 2, Owner: owner},
	}, export.DefaultLabels)
}

func TestRecordStore(t *testing.T) {
	dir := t.TempDir()
	s := NewRecordStore(filepath.Join(dir, "pairs.csv"), filepath.Join(dir, "pairs.json"), export.DefaultLabels)

	_, err := s.Nested()
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	v := testViews()
	require.NoError(t, s.Save(v))

	n, err := s.Nested()
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(v.Nested, n))

	m, err := s.Matrix()
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(v.Matrix, m))

	ids, err := s.IDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"#001", "#002"}, ids)

	p, err := s.Pair("No.002")
	require.NoError(t, err)
	assert.Equal(t, "#002", p.ID)
	assert.Equal(t, "", p.Custodian.Values["ISIN"])

	_, err = s.Pair("#009")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestParseSeverity(t *testing.T) {
	valid := `[
		{"id": "#001", "severity": "high", "explanation": "tax differs", "comment": "check", "confidence": 0.9},
		{"id": "No.002", "severity": "none", "explanation": ""}
	]`
	res, err := ParseSeverity([]byte(valid), []string{"#001", "#002"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, domain.SeverityHigh, res[0].Severity)
	assert.Equal(t, "check", res[0].Comment)
	assert.Equal(t, 0.9, res[0].Extra["confidence"])

	cases := []struct {
		name  string
		input string
		field string
	}{
		{"not a list", `{"id": "#001"}`, ""},
		{"not an object", `["x"]`, ""},
		{"missing severity", `[{"id": "#001", "explanation": "x"}]`, "severity"},
		{"missing explanation", `[{"id": "#001", "severity": "low"}]`, "explanation"},
		{"bad id", `[{"id": "1", "severity": "low", "explanation": "x"}]`, "id"},
		{"bad severity", `[{"id": "#001", "severity": "critical", "explanation": "x"}]`, "severity"},
		{"numeric explanation", `[{"id": "#001", "severity": "low", "explanation": 3}]`, "explanation"},
		{"numeric comment", `[{"id": "#001", "severity": "low", "explanation": "x", "comment": 1}]`, "comment"},
		{"duplicate", `[{"id": "#001", "severity": "low", "explanation": "x"}, {"id": "No.001", "severity": "low", "explanation": "y"}]`, "id"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSeverity([]byte(tc.input), nil)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
			assert.True(t, errors.Is(err, domain.ErrValidation))
		})
	}
}

func TestParseSeverityCoverage(t *testing.T) {
	one := `[{"id": "#001", "severity": "low", "explanation": "x"}]`

	_, err := ParseSeverity([]byte(one), []string{"#001", "#002"})
	assert.ErrorContains(t, err, "missing ids #002")

	_, err = ParseSeverity([]byte(one), []string{})
	assert.ErrorContains(t, err, "unknown ids #001")

	_, err = ParseSeverity([]byte(one), nil)
	assert.NoError(t, err)
}

func TestSeverityStoreRejectionKeepsPriorFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "severity.json")
	s := NewSeverityStore(path)

	_, err := s.Ingest([]byte(`[{"id": "#001", "severity": "low", "explanation": "ok"}]`), []string{"#001"})
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = s.Ingest([]byte(`[{"id": "#001", "explanation": "no severity"}]`), []string{"#001"})
	require.Error(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "ok", loaded[0].Explanation)
}

func TestSeverityStoreRejectionWithoutPriorFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "severity.json")
	s := NewSeverityStore(path)

	_, err := s.Ingest([]byte(`[{"id": "#001", "severity": "urgent", "explanation": "x"}]`), nil)
	require.Error(t, err)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestRemediationList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "approved.json")
	l := NewRemediationList(path)

	got, err := l.Append(domain.Remediation{
		Type:        " tax ",
		Pattern:     []string{"withholding tax mismatch", "  "},
		Remediation: "Reapply treaty rate",
	})
	require.NoError(t, err)
	assert.Equal(t, "tax", got.Type)
	assert.Equal(t, []string{"withholding tax mismatch"}, got.Pattern)

	_, err = l.Append(domain.Remediation{Type: "fx", Pattern: []string{"rate"}, Remediation: "Use settlement rate"})
	require.NoError(t, err)

	_, err = l.Append(domain.Remediation{Type: "fx", Pattern: []string{" "}, Remediation: "x"})
	assert.True(t, errors.Is(err, domain.ErrValidation))
	_, err = l.Append(domain.Remediation{Type: "", Pattern: []string{"a"}, Remediation: "x"})
	assert.True(t, errors.Is(err, domain.ErrValidation))

	list, err := l.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "fx", list[1].Type)
}

func TestReadRemediationsMissing(t *testing.T) {
	list, err := ReadRemediations(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRecordStoreMatrixFollowsNested(t *testing.T) {
	dir := t.TempDir()
	s := NewRecordStore(filepath.Join(dir, "pairs.csv"), filepath.Join(dir, "pairs.json"), export.DefaultLabels)
	v := testViews()
	require.NoError(t, s.Save(v))

	// A matrix file left behind by an interrupted save does not leak into reads.
	require.NoError(t, os.WriteFile(s.MatrixPath, []byte("Field,NBIM#001\nISIN,torn\n"), 0o644))
	m, err := s.Matrix()
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(v.Matrix, m))
}

func TestRecordStoreFailedNestedWriteRestoresMatrix(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "pairs.json")
	require.NoError(t, os.Mkdir(nested, 0o755))
	matrix := filepath.Join(dir, "pairs.csv")
	require.NoError(t, os.WriteFile(matrix, []byte("PRIOR"), 0o644))

	s := NewRecordStore(matrix, nested, export.DefaultLabels)
	require.Error(t, s.Save(testViews()))

	data, err := os.ReadFile(matrix)
	require.NoError(t, err)
	assert.Equal(t, "PRIOR", string(data))
}

func TestRecordStoreUpdate(t *testing.T) {
	dir := t.TempDir()
	s := NewRecordStore(filepath.Join(dir, "pairs.csv"), filepath.Join(dir, "pairs.json"), export.DefaultLabels)

	err := s.Update(func(m export.Matrix) (export.Views, error) { return export.Views{}, nil })
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	require.NoError(t, s.Save(testViews()))
	before, err := os.ReadFile(s.NestedPath)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.Update(func(m export.Matrix) (export.Views, error) { return export.Views{}, boom })
	assert.ErrorIs(t, err, boom)
	after, err := os.ReadFile(s.NestedPath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}
