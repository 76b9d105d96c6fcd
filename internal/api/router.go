package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/wakala/divrecon/internal/csvupdate"
	"github.com/wakala/divrecon/internal/reconciliation"
	"github.com/wakala/divrecon/internal/remediation"
	"github.com/wakala/divrecon/internal/repository"
	"github.com/wakala/divrecon/internal/store"
)

// Deps are the collaborators the handlers read and write. Ledger repos may be
// nil when no database is configured.
type Deps struct {
	Service       *reconciliation.Service
	Records       *store.RecordStore
	Severity      *store.SeverityStore
	Remediations  *store.RemediationList
	Retriever     *remediation.Retriever
	Updater       *csvupdate.Updater
	Runs          *repository.RunRepo
	Discrepancies *repository.DiscrepancyRepo
	SeverityRepo  *repository.SeverityRepo
	OwnerFile     string
	CustodianFile string

	// Limiter throttles every request when set.
	Limiter *rate.Limiter
}

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(d Deps) http.Handler {
	h := &Handlers{
		d:           d,
		suggestions: cache.New(15*time.Minute, 30*time.Minute),
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if d.Limiter != nil {
		r.Use(rateLimit(d.Limiter))
	}
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		// Record store.
		r.Get("/pairs", h.ListPairs)
		r.Get("/pairs/{id}", h.GetPair)
		r.Get("/matrix", h.GetMatrix)
		r.Post("/matrix/cells", h.UpdateCell)

		// Run ledger.
		r.Post("/runs", h.StartRun)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{id}", h.GetRun)
		r.Get("/runs/{id}/discrepancies", h.ListDiscrepancies)

		// Severity.
		r.Get("/severity", h.ListSeverity)
		r.Post("/severity", h.IngestSeverity)

		// Remediations.
		r.Get("/remediations", h.ListRemediations)
		r.Post("/remediations", h.ApproveRemediation)
		r.Get("/remediations/suggest", h.SuggestRemediations)
	})

	return r
}
