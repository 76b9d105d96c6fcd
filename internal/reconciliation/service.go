package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wakala/divrecon/internal/domain"
	"github.com/wakala/divrecon/internal/export"
	"github.com/wakala/divrecon/internal/ingestion"
	"github.com/wakala/divrecon/internal/logging"
	"github.com/wakala/divrecon/internal/normalize"
	"github.com/wakala/divrecon/internal/repository"
	"github.com/wakala/divrecon/internal/store"
)

// RunResult summarises one pairing run.
type RunResult struct {
	Run   domain.Run           `json:"run"`
	Pairs []domain.MatchedPair `json:"-"`
	Views export.Views         `json:"-"`
	Diffs []domain.FieldDiff   `json:"-"`
}

// Options configure the pipeline stages.
type Options struct {
	Normalizer *normalize.Normalizer
	Matcher    Matcher
	Comparator Comparator
	Labels     export.Labels
	Parallel   bool
}

// Service runs the load, normalize, match, export and compare pipeline and
// persists its artifacts. The ledger repos may be nil.
type Service struct {
	opts     Options
	records  *store.RecordStore
	severity *store.SeverityStore
	runRepo  *repository.RunRepo
	discRepo *repository.DiscrepancyRepo
	sevRepo  *repository.SeverityRepo
	now      func() time.Time
}

// NewService creates a new reconciliation service.
func NewService(
	opts Options,
	records *store.RecordStore,
	severity *store.SeverityStore,
	runRepo *repository.RunRepo,
	discRepo *repository.DiscrepancyRepo,
	sevRepo *repository.SeverityRepo,
) *Service {
	if opts.Normalizer == nil {
		opts.Normalizer = normalize.New(nil, domain.RetainPrune)
	}
	if opts.Matcher == nil {
		opts.Matcher = KeyMatcher{}
	}
	if opts.Comparator.Tolerance.IsZero() {
		opts.Comparator = NewComparator(opts.Comparator.Tolerance)
	}
	if opts.Labels == (export.Labels{}) {
		opts.Labels = export.DefaultLabels
	}
	return &Service{
		opts:     opts,
		records:  records,
		severity: severity,
		runRepo:  runRepo,
		discRepo: discRepo,
		sevRepo:  sevRepo,
		now:      time.Now,
	}
}

// Pair normalizes both row sets, matches them and applies the post-pairing
// backfill. It touches no files.
func (s *Service) Pair(ownerRows, custodianRows []domain.RawRow) []domain.MatchedPair {
	owner := s.opts.Normalizer.Normalize(ownerRows, domain.SideOwner)
	custodian := s.opts.Normalizer.Normalize(custodianRows, domain.SideCustodian)
	return Backfill(s.opts.Matcher.Match(owner, custodian))
}

type loadedSide struct {
	src     *ingestion.Source
	records []*domain.Record
}

func (s *Service) loadSide(ctx context.Context, path string, side domain.Side) (loadedSide, error) {
	if err := ctx.Err(); err != nil {
		return loadedSide{}, err
	}
	src, err := ingestion.LoadSource(path)
	if err != nil {
		return loadedSide{}, err
	}
	if err := ctx.Err(); err != nil {
		return loadedSide{}, err
	}
	return loadedSide{src: src, records: s.opts.Normalizer.Normalize(src.Rows, side)}, nil
}

// Run executes the full pipeline over two files. A SourceReadError on either
// file aborts the run before anything is written.
func (s *Service) Run(ctx context.Context, ownerPath, custodianPath string) (*RunResult, error) {
	log := logging.Component("reconciliation")
	started := s.now()

	var owner, custodian loadedSide
	if s.opts.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			owner, err = s.loadSide(gctx, ownerPath, domain.SideOwner)
			return err
		})
		g.Go(func() error {
			var err error
			custodian, err = s.loadSide(gctx, custodianPath, domain.SideCustodian)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		var err error
		if owner, err = s.loadSide(ctx, ownerPath, domain.SideOwner); err != nil {
			return nil, err
		}
		if custodian, err = s.loadSide(ctx, custodianPath, domain.SideCustodian); err != nil {
			return nil, err
		}
	}

	pairs := Backfill(s.opts.Matcher.Match(owner.records, custodian.records))
	views := export.Export(pairs, s.opts.Labels)

	run := domain.Run{
		ID:               uuid.NewString(),
		StartedAt:        started,
		OwnerPath:        ownerPath,
		OwnerHash:        owner.src.Digest,
		CustodianPath:    custodianPath,
		CustodianHash:    custodian.src.Digest,
		MatchPolicy:      s.opts.Matcher.Policy(),
		Retention:        s.opts.Normalizer.Retention(),
		OwnerRecords:     len(owner.records),
		CustodianRecords: len(custodian.records),
		Pairs:            len(pairs),
	}
	for _, p := range pairs {
		switch {
		case p.Custodian == nil:
			run.OwnerOrphans++
		case p.Owner == nil:
			run.CustodianOrphans++
		}
	}
	for _, side := range [][]*domain.Record{owner.records, custodian.records} {
		for _, r := range side {
			run.SoftFailures += len(r.Soft)
		}
	}

	diffs := s.opts.Comparator.CompareAll(pairs)
	for i := range diffs {
		diffs[i].RunID = run.ID
	}
	run.Diffs = len(diffs)
	run.FinishedAt = s.now()

	save := func() error {
		if s.records == nil {
			return nil
		}
		if err := s.records.Save(views); err != nil {
			return fmt.Errorf("save record store: %w", err)
		}
		return nil
	}
	if err := s.recordRun(&run, diffs, save); err != nil {
		return nil, err
	}

	ev := log.Info().
		Str("run_id", run.ID).
		Str("match_policy", string(run.MatchPolicy)).
		Int("pairs", run.Pairs).
		Int("owner_orphans", run.OwnerOrphans).
		Int("custodian_orphans", run.CustodianOrphans).
		Int("diffs", run.Diffs)
	if run.RerunOf != "" {
		ev = ev.Str("rerun_of", run.RerunOf)
	}
	ev.Msg("Pairing run complete")

	return &RunResult{Run: run, Pairs: pairs, Views: views, Diffs: diffs}, nil
}

// recordRun writes the run and its diffs in one ledger transaction and calls
// save before committing. Any failure up to the save leaves both the ledger
// and the record store as they were.
func (s *Service) recordRun(run *domain.Run, diffs []domain.FieldDiff, save func() error) error {
	if s.runRepo == nil {
		return save()
	}
	prev, err := s.runRepo.FindByInputs(run.OwnerHash, run.CustodianHash, run.MatchPolicy, run.Retention)
	if err != nil {
		return fmt.Errorf("look up previous run: %w", err)
	}
	if prev != nil {
		run.RerunOf = prev.ID
	}

	tx, err := s.runRepo.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.runRepo.InsertTx(tx, run); err != nil {
		return err
	}
	if s.discRepo != nil {
		if _, err := s.discRepo.BulkInsertTx(tx, run.ID, diffs); err != nil {
			return fmt.Errorf("store discrepancies: %w", err)
		}
	}
	if err := save(); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// IngestSeverity validates a severity batch against the pair ids of the
// record store and persists it. When no record store exists yet, only the
// per-item checks apply.
func (s *Service) IngestSeverity(data []byte) ([]domain.SeverityResult, error) {
	if s.severity == nil {
		return nil, fmt.Errorf("severity store not configured")
	}
	var expected []string
	if s.records != nil {
		ids, err := s.records.IDs()
		switch {
		case err == nil:
			expected = ids
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	results, err := s.severity.Ingest(data, expected)
	if err != nil {
		return nil, err
	}
	if s.sevRepo != nil {
		if err := s.sevRepo.ReplaceAll(results); err != nil {
			log := logging.Component("reconciliation")
			log.Warn().Err(err).Msg("Severity results stored but not mirrored to the ledger")
		}
	}
	return results, nil
}
