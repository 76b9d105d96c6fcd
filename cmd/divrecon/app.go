package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wakala/divrecon/internal/config"
	"github.com/wakala/divrecon/internal/csvupdate"
	"github.com/wakala/divrecon/internal/normalize"
	"github.com/wakala/divrecon/internal/reconciliation"
	"github.com/wakala/divrecon/internal/remediation"
	"github.com/wakala/divrecon/internal/repository"
	"github.com/wakala/divrecon/internal/store"
)

// app is the wired set of stores, repos and services for one configuration.
type app struct {
	cfg          *config.Config
	db           *sql.DB
	records      *store.RecordStore
	severity     *store.SeverityStore
	remediations *store.RemediationList
	runs         *repository.RunRepo
	discs        *repository.DiscrepancyRepo
	sevRepo      *repository.SeverityRepo
	service      *reconciliation.Service
}

func openApp(cfg *config.Config) (*app, error) {
	var schema *normalize.Schema
	if cfg.SchemaFile != "" {
		s, err := normalize.LoadSchema(cfg.SchemaFile)
		if err != nil {
			return nil, err
		}
		schema = s
	}
	matcher, err := reconciliation.NewMatcher(cfg.MatchPolicy)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:          cfg,
		db:           db,
		records:      store.NewRecordStore(cfg.MatrixFile, cfg.NestedFile, cfg.Labels),
		severity:     store.NewSeverityStore(cfg.SeverityFile),
		remediations: store.NewRemediationList(cfg.RemediationFile),
		runs:         repository.NewRunRepo(db),
		discs:        repository.NewDiscrepancyRepo(db),
		sevRepo:      repository.NewSeverityRepo(db),
	}
	a.service = reconciliation.NewService(reconciliation.Options{
		Normalizer: normalize.New(schema, cfg.Retention),
		Matcher:    matcher,
		Comparator: reconciliation.NewComparator(cfg.Tolerance),
		Labels:     cfg.Labels,
		Parallel:   cfg.Parallel,
	}, a.records, a.severity, a.runs, a.discs, a.sevRepo)
	return a, nil
}

func (a *app) updater() *csvupdate.Updater {
	return csvupdate.NewUpdater(a.records)
}

func (a *app) retriever() (*remediation.Retriever, error) {
	return remediation.LoadKnowledgeBase(a.cfg.KnowledgeBaseFile)
}

func (a *app) Close() error {
	return a.db.Close()
}
