package csvupdate

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/wakala/divrecon/internal/domain"
	"github.com/wakala/divrecon/internal/export"
	"github.com/wakala/divrecon/internal/logging"
	"github.com/wakala/divrecon/internal/store"
)

// EligibleRows are the fields an update may target. CURRENCIES is derived
// from the two currency fields and is never edited directly.
var EligibleRows = eligibleRows()

func eligibleRows() []string {
	out := make([]string, 0, len(domain.CanonicalFields))
	for _, f := range domain.CanonicalFields {
		if f != domain.FieldCurrencies {
			out = append(out, f)
		}
	}
	return out
}

// UpdateResult reports the outcome of one update. Failures are described in
// Message rather than returned as errors.
type UpdateResult struct {
	OK         bool     `json:"ok"`
	Message    string   `json:"message"`
	Row        string   `json:"row,omitempty"`
	Columns    []string `json:"columns,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
}

func failure(err error) UpdateResult {
	res := UpdateResult{Message: err.Error()}
	var amb *domain.AmbiguityError
	if errors.As(err, &amb) {
		res.Candidates = amb.Candidates
	}
	return res
}

// Apply writes value into both side columns of pair id at the resolved row.
// m is not modified; the updated matrix is returned.
func Apply(m export.Matrix, labels export.Labels, id, row, value string) (export.Matrix, UpdateResult) {
	if len(m.Header) == 0 || len(m.Rows) == 0 {
		return m, UpdateResult{Message: "matrix is empty"}
	}

	resolved, err := Resolve(row, EligibleRows, m.Fields())
	if err != nil {
		return m, failure(err)
	}
	digits, err := CleanID(id, labels.Owner, labels.Custodian)
	if err != nil {
		return m, failure(err)
	}

	cols := make(map[string]int, len(m.Header))
	for i, h := range m.Header[1:] {
		cols[NormalizeName(h)] = i + 1
	}
	var idx []int
	var names, missing []string
	for _, label := range []string{labels.Owner, labels.Custodian} {
		name := label + "#" + digits
		if c, ok := cols[NormalizeName(name)]; ok {
			idx = append(idx, c)
			names = append(names, m.Header[c])
		} else {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return m, UpdateResult{Message: "column(s) not found: " + strings.Join(missing, ", ")}
	}

	out := export.Matrix{Header: m.Header, Rows: make([][]string, len(m.Rows))}
	for i, r := range m.Rows {
		if r[0] == resolved {
			r = append([]string(nil), r...)
			for _, c := range idx {
				r[c] = value
			}
		}
		out.Rows[i] = r
	}
	return out, UpdateResult{
		OK:      true,
		Message: fmt.Sprintf("updated row %s for %s", resolved, strings.Join(names, " and ")),
		Row:     resolved,
		Columns: names,
	}
}

// UpdateFile applies an update to a standalone matrix CSV and rewrites it
// atomically.
func UpdateFile(path string, labels export.Labels, id, row, value string) UpdateResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return UpdateResult{Message: fmt.Sprintf("matrix not found at %s", path)}
	}
	m, err := export.ReadMatrixCSV(bytes.NewReader(data))
	if err != nil {
		return failure(err)
	}
	updated, res := Apply(m, labels, id, row, value)
	if !res.OK {
		return res
	}
	out, err := updated.CSV()
	if err != nil {
		return failure(err)
	}
	if err := store.WriteFileAtomic(path, out, 0o644); err != nil {
		return failure(err)
	}
	return res
}

// Updater edits the record store, keeping both views in step.
type Updater struct {
	Store *store.RecordStore
}

// NewUpdater creates an updater over s.
func NewUpdater(s *store.RecordStore) *Updater {
	return &Updater{Store: s}
}

// Update applies one cell update and saves both views. The read, edit and
// save happen under the store's lock.
func (u *Updater) Update(id, row, value string) UpdateResult {
	log := logging.Component("csvupdate")

	var res UpdateResult
	err := u.Store.Update(func(m export.Matrix) (export.Views, error) {
		var updated export.Matrix
		updated, res = Apply(m, u.Store.Labels, id, row, value)
		if !res.OK {
			return export.Views{}, errRejected
		}
		nested, err := export.MatrixToNested(updated, u.Store.Labels)
		if err != nil {
			return export.Views{}, err
		}
		return export.Views{Matrix: updated, Nested: nested}, nil
	})
	switch {
	case errors.Is(err, errRejected):
		log.Warn().Str("id", id).Str("row", row).Str("reason", res.Message).Msg("Update rejected")
		return res
	case err != nil:
		return failure(err)
	}
	log.Info().Str("row", res.Row).Strs("columns", res.Columns).Msg("Updated matrix cell")
	return res
}

// errRejected aborts a store update whose result is already described in
// an UpdateResult.
var errRejected = errors.New("update rejected")
