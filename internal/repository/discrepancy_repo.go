package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/wakala/divrecon/internal/domain"
)

type DiscrepancyRepo struct {
	db *sql.DB
}

func NewDiscrepancyRepo(db *sql.DB) *DiscrepancyRepo {
	return &DiscrepancyRepo{db: db}
}

// BulkInsert stores the diffs of one run in comparison order.
func (r *DiscrepancyRepo) BulkInsert(runID string, diffs []domain.FieldDiff) (int, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	inserted, err := r.BulkInsertTx(tx, runID, diffs)
	if err != nil {
		return inserted, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// BulkInsertTx stores the diffs of one run inside tx. The caller commits.
func (r *DiscrepancyRepo) BulkInsertTx(tx *sql.Tx, runID string, diffs []domain.FieldDiff) (int, error) {
	stmt, err := tx.Prepare(
		`INSERT INTO field_discrepancies
		(run_id, pair_id, field, kind, owner_value, custodian_value, delta, seq)
		VALUES (?,?,?,?,?,?,?,?)`,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for i := range diffs {
		d := &diffs[i]
		res, err := stmt.Exec(runID, d.PairID, d.Field, string(d.Kind), d.Owner, d.Custodian, d.Delta, i)
		if err != nil {
			return inserted, fmt.Errorf("insert %d: %w", i, err)
		}
		ra, _ := res.RowsAffected()
		inserted += int(ra)
	}
	return inserted, nil
}

type DiscrepancyFilter struct {
	RunID  string
	PairID string
	Field  string
	Kind   string
	Page   int
	Limit  int
}

func (r *DiscrepancyRepo) List(f DiscrepancyFilter) ([]domain.FieldDiff, int, error) {
	where, args := buildDiscrepancyWhere(f)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM field_discrepancies"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := paginate(f.Page, f.Limit)
	q := `SELECT run_id, pair_id, field, kind, owner_value, custodian_value, delta
		FROM field_discrepancies` + where + " ORDER BY run_id, seq LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.db.Query(q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	diffs, err := scanDiscrepancies(rows)
	return diffs, total, err
}

type DiscrepancySummary struct {
	TotalCount int            `json:"total_count"`
	ByKind     map[string]int `json:"by_kind"`
	ByField    map[string]int `json:"by_field"`
}

// GetSummary counts the diffs of one run by kind and by field.
func (r *DiscrepancyRepo) GetSummary(runID string) (*DiscrepancySummary, error) {
	s := &DiscrepancySummary{
		ByKind:  make(map[string]int),
		ByField: make(map[string]int),
	}

	if err := r.db.QueryRow(
		"SELECT COUNT(*) FROM field_discrepancies WHERE run_id = ?", runID,
	).Scan(&s.TotalCount); err != nil {
		return nil, err
	}
	if err := scanGroupCount(r.db, runID, "kind", s.ByKind); err != nil {
		return nil, err
	}
	if err := scanGroupCount(r.db, runID, "field", s.ByField); err != nil {
		return nil, err
	}
	return s, nil
}

// --- helpers ---

func buildDiscrepancyWhere(f DiscrepancyFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.RunID != "" {
		clauses = append(clauses, "run_id = ?")
		args = append(args, f.RunID)
	}
	if f.PairID != "" {
		clauses = append(clauses, "pair_id = ?")
		args = append(args, f.PairID)
	}
	if f.Field != "" {
		clauses = append(clauses, "field = ? COLLATE NOCASE")
		args = append(args, f.Field)
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, f.Kind)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanGroupCount(db *sql.DB, runID, col string, m map[string]int) error {
	rows, err := db.Query(
		"SELECT "+col+", COUNT(*) FROM field_discrepancies WHERE run_id = ? GROUP BY "+col, runID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var v int
		if err := rows.Scan(&k, &v); err != nil {
			return err
		}
		m[k] = v
	}
	return rows.Err()
}

func scanDiscrepancies(rows *sql.Rows) ([]domain.FieldDiff, error) {
	diffs := []domain.FieldDiff{}
	for rows.Next() {
		var d domain.FieldDiff
		var kind string
		if err := rows.Scan(&d.RunID, &d.PairID, &d.Field, &kind, &d.Owner, &d.Custodian, &d.Delta); err != nil {
			return nil, err
		}
		d.Kind = domain.DiffKind(kind)
		diffs = append(diffs, d)
	}
	return diffs, rows.Err()
}
