package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"

	"github.com/wakala/divrecon/internal/csvupdate"
	"github.com/wakala/divrecon/internal/domain"
	"github.com/wakala/divrecon/internal/export"
	"github.com/wakala/divrecon/internal/logging"
	"github.com/wakala/divrecon/internal/remediation"
	"github.com/wakala/divrecon/internal/repository"
)

const maxBody = 8 << 20

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	d Deps

	// suggestions memoizes ranked results per (k, query). The knowledge base
	// is read once at startup so entries never go stale.
	suggestions *cache.Cache
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log := logging.Component("api")
		log.Error().Err(err).Msg("encode error")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr maps the domain error taxonomy onto status codes.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrSourceRead):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrAmbiguous):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return nil, false
	}
	return data, true
}

// pairID accepts 001, #001, No.001 or a side-prefixed column name.
func (h *Handlers) pairID(raw string) (string, bool) {
	digits, err := csvupdate.CleanID(raw, h.d.Records.Labels.Owner, h.d.Records.Labels.Custodian)
	if err != nil {
		return "", false
	}
	return "#" + digits, true
}

// --- ListPairs ---

func (h *Handlers) ListPairs(w http.ResponseWriter, r *http.Request) {
	nested, err := h.d.Records.Nested()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nested)
}

// --- GetPair ---

func (h *Handlers) GetPair(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pairID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid pair id")
		return
	}

	pair, err := h.d.Records.Pair(id)
	if err != nil {
		writeErr(w, err)
		return
	}

	resp := map[string]any{
		"pair": json.RawMessage(export.PairJSON(pair, h.d.Records.Labels)),
	}
	if h.d.Runs != nil && h.d.Discrepancies != nil {
		if run, err := h.d.Runs.Latest(); err == nil {
			diffs, _, err := h.d.Discrepancies.List(repository.DiscrepancyFilter{RunID: run.ID, PairID: id, Limit: 1000})
			if err != nil {
				writeErr(w, err)
				return
			}
			resp["discrepancies"] = diffs
		}
	}
	if h.d.Severity != nil {
		results, err := h.d.Severity.Load()
		if err == nil {
			for _, res := range results {
				if ord, err := domain.ParseDisplayID(res.ID); err == nil && domain.DisplayID(ord) == id {
					resp["severity"] = res
					break
				}
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- GetMatrix ---

func (h *Handlers) GetMatrix(w http.ResponseWriter, r *http.Request) {
	m, err := h.d.Records.Matrix()
	if err != nil {
		writeErr(w, err)
		return
	}

	if r.URL.Query().Get("format") == "xlsx" {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="pairs.xlsx"`)
		if err := m.WriteXLSX(w); err != nil {
			log := logging.Component("api")
			log.Error().Err(err).Msg("write xlsx")
		}
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	if err := m.WriteCSV(w); err != nil {
		log := logging.Component("api")
		log.Error().Err(err).Msg("write csv")
	}
}

// --- UpdateCell ---

type cellUpdate struct {
	ID    string `json:"id"`
	Row   string `json:"row"`
	Value string `json:"value"`
}

func (h *Handlers) UpdateCell(w http.ResponseWriter, r *http.Request) {
	if h.d.Updater == nil {
		writeError(w, http.StatusNotImplemented, "matrix updates are not configured")
		return
	}
	var req cellUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.ID == "" || req.Row == "" {
		writeError(w, http.StatusBadRequest, "id and row are required")
		return
	}

	res := h.d.Updater.Update(req.ID, req.Row, req.Value)
	if !res.OK {
		writeJSON(w, http.StatusUnprocessableEntity, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- StartRun ---

func (h *Handlers) StartRun(w http.ResponseWriter, r *http.Request) {
	if h.d.Service == nil {
		writeError(w, http.StatusNotImplemented, "pairing is not configured")
		return
	}
	res, err := h.d.Service.Run(r.Context(), h.d.OwnerFile, h.d.CustodianFile)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// --- ListRuns ---

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.d.Runs == nil {
		writeError(w, http.StatusNotImplemented, "run ledger is not configured")
		return
	}
	q := r.URL.Query()
	page := parseIntDefault(q.Get("page"), 1)
	limit := parseIntDefault(q.Get("limit"), 50)

	runs, total, err := h.d.Runs.List(page, limit)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (h *Handlers) lookupRun(id string) (*domain.Run, error) {
	if id == "latest" {
		return h.d.Runs.Latest()
	}
	return h.d.Runs.GetByID(id)
}

// --- GetRun ---

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.d.Runs == nil || h.d.Discrepancies == nil {
		writeError(w, http.StatusNotImplemented, "run ledger is not configured")
		return
	}
	run, err := h.lookupRun(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	summary, err := h.d.Discrepancies.GetSummary(run.ID)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run":     run,
		"summary": summary,
	})
}

// --- ListDiscrepancies ---

func (h *Handlers) ListDiscrepancies(w http.ResponseWriter, r *http.Request) {
	if h.d.Runs == nil || h.d.Discrepancies == nil {
		writeError(w, http.StatusNotImplemented, "run ledger is not configured")
		return
	}
	run, err := h.lookupRun(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}

	q := r.URL.Query()
	filter := repository.DiscrepancyFilter{
		RunID: run.ID,
		Field: q.Get("field"),
		Kind:  q.Get("kind"),
		Page:  parseIntDefault(q.Get("page"), 1),
		Limit: parseIntDefault(q.Get("limit"), 50),
	}
	if p := q.Get("pair"); p != "" {
		id, ok := h.pairID(p)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid pair id")
			return
		}
		filter.PairID = id
	}

	diffs, total, err := h.d.Discrepancies.List(filter)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":        run.ID,
		"discrepancies": diffs,
		"total":         total,
		"page":          filter.Page,
		"limit":         filter.Limit,
	})
}

// --- ListSeverity ---

func (h *Handlers) ListSeverity(w http.ResponseWriter, r *http.Request) {
	sev := r.URL.Query().Get("severity")
	if sev != "" && !domain.ValidSeverity(sev) {
		writeError(w, http.StatusBadRequest, "severity must be one of none, low, medium, high")
		return
	}

	if h.d.SeverityRepo != nil {
		results, err := h.d.SeverityRepo.List(sev)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results, "total": len(results)})
		return
	}

	all, err := h.d.Severity.Load()
	if err != nil {
		writeErr(w, err)
		return
	}
	results := make([]domain.SeverityResult, 0, len(all))
	for _, res := range all {
		if sev == "" || string(res.Severity) == sev {
			results = append(results, res)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "total": len(results)})
}

// --- IngestSeverity ---

func (h *Handlers) IngestSeverity(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	results, err := h.d.Service.IngestSeverity(data)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stored": len(results)})
}

// --- ListRemediations ---

func (h *Handlers) ListRemediations(w http.ResponseWriter, r *http.Request) {
	list, err := h.d.Remediations.List()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"remediations": list, "total": len(list)})
}

// --- ApproveRemediation ---

// remediationRequest accepts pattern as a string or a list of strings.
type remediationRequest struct {
	Type        string          `json:"type"`
	Pattern     json.RawMessage `json:"pattern"`
	Remediation string          `json:"remediation"`
}

func (req remediationRequest) toDomain() (domain.Remediation, error) {
	rem := domain.Remediation{Type: req.Type, Remediation: req.Remediation}
	if len(req.Pattern) == 0 {
		return rem, nil
	}
	var one string
	if err := json.Unmarshal(req.Pattern, &one); err == nil {
		rem.Pattern = []string{one}
		return rem, nil
	}
	if err := json.Unmarshal(req.Pattern, &rem.Pattern); err != nil {
		return rem, domain.NewValidationError(-1, "pattern", "must be a string or a list of strings")
	}
	return rem, nil
}

func (h *Handlers) ApproveRemediation(w http.ResponseWriter, r *http.Request) {
	var req remediationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	rem, err := req.toDomain()
	if err != nil {
		writeErr(w, err)
		return
	}

	stored, err := h.d.Remediations.Append(rem)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// --- SuggestRemediations ---

func (h *Handlers) SuggestRemediations(w http.ResponseWriter, r *http.Request) {
	if h.d.Retriever == nil {
		writeError(w, http.StatusNotImplemented, "knowledge base is not configured")
		return
	}
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	k := parseIntDefault(q.Get("k"), remediation.DefaultK)

	key := strconv.Itoa(k) + "|" + query
	suggestions, found := h.suggestions.Get(key)
	if !found {
		suggestions = h.d.Retriever.Suggest(query, k)
		h.suggestions.Set(key, suggestions, cache.DefaultExpiration)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":       query,
		"suggestions": suggestions,
	})
}
