package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/wakala/divrecon/internal/domain"
)

// SeverityRepo mirrors the validated severity file for querying.
type SeverityRepo struct {
	db *sql.DB
}

func NewSeverityRepo(db *sql.DB) *SeverityRepo {
	return &SeverityRepo{db: db}
}

// ReplaceAll swaps the stored results for results in one transaction.
func (r *SeverityRepo) ReplaceAll(results []domain.SeverityResult) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM severity_results"); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO severity_results (pair_id, ordinal, severity, explanation, comment, ingested_at)
		VALUES (?,?,?,?,?,?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for i, res := range results {
		ord, err := domain.ParseDisplayID(res.ID)
		if err != nil {
			return fmt.Errorf("result %d: %w", i, err)
		}
		if _, err := stmt.Exec(domain.DisplayID(ord), ord, string(res.Severity), res.Explanation, res.Comment, now); err != nil {
			return fmt.Errorf("insert %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// List returns results in pair order, optionally filtered by severity.
func (r *SeverityRepo) List(severity string) ([]domain.SeverityResult, error) {
	q := "SELECT pair_id, severity, explanation, comment FROM severity_results"
	var args []any
	if severity != "" {
		q += " WHERE severity = ?"
		args = append(args, severity)
	}
	rows, err := r.db.Query(q+" ORDER BY ordinal", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.SeverityResult{}
	for rows.Next() {
		var res domain.SeverityResult
		var sev string
		if err := rows.Scan(&res.ID, &sev, &res.Explanation, &res.Comment); err != nil {
			return nil, err
		}
		res.Severity = domain.Severity(sev)
		out = append(out, res)
	}
	return out, rows.Err()
}

func (r *SeverityRepo) CountBySeverity() (map[string]int, error) {
	rows, err := r.db.Query("SELECT severity, COUNT(*) FROM severity_results GROUP BY severity")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	m := make(map[string]int)
	for rows.Next() {
		var k string
		var v int
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		m[k] = v
	}
	return m, rows.Err()
}
