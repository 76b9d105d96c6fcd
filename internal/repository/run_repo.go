package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/wakala/divrecon/internal/domain"
)

type RunRepo struct {
	db *sql.DB
}

func NewRunRepo(db *sql.DB) *RunRepo {
	return &RunRepo{db: db}
}

const runColumns = `id, started_at, finished_at, owner_path, owner_hash, custodian_path,
	custodian_hash, match_policy, retention, owner_records, custodian_records, pairs,
	owner_orphans, custodian_orphans, diffs, soft_failures, rerun_of`

// Begin starts a transaction on the ledger database. Runs and their
// discrepancies are written through the same transaction.
func (r *RunRepo) Begin() (*sql.Tx, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return tx, nil
}

func (r *RunRepo) Insert(run *domain.Run) error {
	return insertRun(r.db, run)
}

// InsertTx inserts run inside tx.
func (r *RunRepo) InsertTx(tx *sql.Tx, run *domain.Run) error {
	return insertRun(tx, run)
}

func insertRun(db execer, run *domain.Run) error {
	var rerunOf any
	if run.RerunOf != "" {
		rerunOf = run.RerunOf
	}
	_, err := db.Exec(
		`INSERT INTO runs (`+runColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.StartedAt.UTC().Format(timeLayout), run.FinishedAt.UTC().Format(timeLayout),
		run.OwnerPath, run.OwnerHash, run.CustodianPath, run.CustodianHash,
		string(run.MatchPolicy), string(run.Retention),
		run.OwnerRecords, run.CustodianRecords, run.Pairs,
		run.OwnerOrphans, run.CustodianOrphans, run.Diffs, run.SoftFailures, rerunOf,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FindByInputs returns the earliest run over the same input hashes and
// policies, or nil when the combination has not been seen.
func (r *RunRepo) FindByInputs(ownerHash, custodianHash string, policy domain.MatchPolicy, retention domain.RetentionPolicy) (*domain.Run, error) {
	row := r.db.QueryRow(
		`SELECT `+runColumns+` FROM runs
		WHERE owner_hash = ? AND custodian_hash = ? AND match_policy = ? AND retention = ?
		ORDER BY started_at ASC LIMIT 1`,
		ownerHash, custodianHash, string(policy), string(retention),
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

func (r *RunRepo) GetByID(id string) (*domain.Run, error) {
	run, err := scanRun(r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "run", ID: id}
	}
	return run, err
}

// Latest returns the most recently started run.
func (r *RunRepo) Latest() (*domain.Run, error) {
	run, err := scanRun(r.db.QueryRow(`SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Resource: "run", ID: "latest"}
	}
	return run, err
}

func (r *RunRepo) List(page, limit int) ([]domain.Run, int, error) {
	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := paginate(page, limit)
	rows, err := r.db.Query(
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	runs := []domain.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	return runs, total, rows.Err()
}

// --- helpers ---

// timeLayout is fixed width so started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type rowScanner interface {
	Scan(dest ...any) error
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	var startedAt, finishedAt, policy, retention string
	var rerunOf sql.NullString

	err := row.Scan(
		&run.ID, &startedAt, &finishedAt, &run.OwnerPath, &run.OwnerHash,
		&run.CustodianPath, &run.CustodianHash, &policy, &retention,
		&run.OwnerRecords, &run.CustodianRecords, &run.Pairs,
		&run.OwnerOrphans, &run.CustodianOrphans, &run.Diffs, &run.SoftFailures, &rerunOf,
	)
	if err != nil {
		return nil, err
	}

	run.StartedAt, _ = time.Parse(timeLayout, startedAt)
	run.FinishedAt, _ = time.Parse(timeLayout, finishedAt)
	run.MatchPolicy = domain.MatchPolicy(policy)
	run.Retention = domain.RetentionPolicy(retention)
	if rerunOf.Valid {
		run.RerunOf = rerunOf.String
	}
	return &run, nil
}

func paginate(page, limit int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}
