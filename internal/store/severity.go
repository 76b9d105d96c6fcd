package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/wakala/divrecon/internal/domain"
	"github.com/wakala/divrecon/internal/logging"
)

var severityKeys = map[string]bool{"id": true, "severity": true, "explanation": true, "comment": true}

// SeverityStore persists classification results after validating them.
type SeverityStore struct {
	Path string

	mu sync.Mutex
}

// NewSeverityStore creates a severity store backed by path.
func NewSeverityStore(path string) *SeverityStore {
	return &SeverityStore{Path: path}
}

// ParseSeverity validates a JSON list of severity records. When expected is
// non-nil every expected id must appear exactly once and no other id may
// appear. The first violation is returned as a *domain.ValidationError.
func ParseSeverity(data []byte, expected []string) ([]domain.SeverityResult, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, domain.NewValidationError(-1, "", "expected a JSON list of objects")
	}

	results := make([]domain.SeverityResult, 0, len(items))
	seen := make(map[int]string, len(items))
	for i, raw := range items {
		var obj map[string]any
		if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
			return nil, domain.NewValidationError(i, "", "not an object")
		}

		res, err := severityFromObject(i, obj)
		if err != nil {
			return nil, err
		}
		ord, _ := domain.ParseDisplayID(res.ID)
		if prev, dup := seen[ord]; dup {
			return nil, domain.NewValidationError(i, "id", fmt.Sprintf("duplicate id %s (already seen as %s)", res.ID, prev))
		}
		seen[ord] = res.ID
		results = append(results, res)
	}

	if expected != nil {
		if err := checkCoverage(seen, expected); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func severityFromObject(i int, obj map[string]any) (domain.SeverityResult, error) {
	var res domain.SeverityResult
	for _, key := range []string{"id", "severity", "explanation"} {
		if _, ok := obj[key]; !ok {
			return res, domain.NewValidationError(i, key, "required key missing")
		}
	}

	id, ok := obj["id"].(string)
	if !ok || !domain.ValidDisplayID(id) {
		return res, domain.NewValidationError(i, "id", fmt.Sprintf("id %v must look like #001 or No.001", obj["id"]))
	}
	sev, ok := obj["severity"].(string)
	if !ok || !domain.ValidSeverity(sev) {
		return res, domain.NewValidationError(i, "severity", fmt.Sprintf("severity %v must be one of none, low, medium, high", obj["severity"]))
	}
	expl, ok := obj["explanation"].(string)
	if !ok {
		return res, domain.NewValidationError(i, "explanation", "must be a string")
	}
	res = domain.SeverityResult{ID: id, Severity: domain.Severity(sev), Explanation: expl}

	if c, present := obj["comment"]; present && c != nil {
		comment, ok := c.(string)
		if !ok {
			return res, domain.NewValidationError(i, "comment", "must be a string")
		}
		res.Comment = comment
	}
	for k, v := range obj {
		if severityKeys[k] {
			continue
		}
		if res.Extra == nil {
			res.Extra = make(map[string]any)
		}
		res.Extra[k] = v
	}
	return res, nil
}

func checkCoverage(seen map[int]string, expected []string) error {
	want := make(map[int]bool, len(expected))
	for _, id := range expected {
		ord, err := domain.ParseDisplayID(id)
		if err != nil {
			return domain.NewValidationError(-1, "id", fmt.Sprintf("expected id %q is malformed", id))
		}
		want[ord] = true
	}

	var missing, unknown []int
	for ord := range want {
		if _, ok := seen[ord]; !ok {
			missing = append(missing, ord)
		}
	}
	for ord := range seen {
		if !want[ord] {
			unknown = append(unknown, ord)
		}
	}
	if len(missing) > 0 {
		sort.Ints(missing)
		return domain.NewValidationError(-1, "id", "missing ids "+joinIDs(missing))
	}
	if len(unknown) > 0 {
		sort.Ints(unknown)
		return domain.NewValidationError(-1, "id", "unknown ids "+joinIDs(unknown))
	}
	return nil
}

func joinIDs(ords []int) string {
	var b bytes.Buffer
	for i, o := range ords {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(domain.DisplayID(o))
	}
	return b.String()
}

// MarshalSeverity renders results as an indented JSON list, merging Extra keys
// into each object.
func MarshalSeverity(results []domain.SeverityResult) ([]byte, error) {
	out := make([]map[string]any, len(results))
	for i, r := range results {
		obj := make(map[string]any, 4+len(r.Extra))
		for k, v := range r.Extra {
			obj[k] = v
		}
		obj["id"] = r.ID
		obj["severity"] = string(r.Severity)
		obj["explanation"] = r.Explanation
		if r.Comment != "" {
			obj["comment"] = r.Comment
		}
		out[i] = obj
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Ingest validates data and, only if the whole batch is valid, replaces the
// stored results.
func (s *SeverityStore) Ingest(data []byte, expected []string) ([]domain.SeverityResult, error) {
	log := logging.Component("store")

	results, err := ParseSeverity(data, expected)
	if err != nil {
		log.Warn().Err(err).Str("path", s.Path).Msg("Rejected severity batch")
		return nil, err
	}
	out, err := MarshalSeverity(results)
	if err != nil {
		return nil, fmt.Errorf("render severity: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := WriteFileAtomic(s.Path, out, 0o644); err != nil {
		return nil, err
	}
	log.Info().Int("results", len(results)).Str("path", s.Path).Msg("Stored severity results")
	return results, nil
}

// Load reads the stored results. A missing file yields an empty list.
func (s *SeverityStore) Load() ([]domain.SeverityResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.SeverityResult{}, nil
		}
		return nil, fmt.Errorf("read severity: %w", err)
	}
	return ParseSeverity(data, nil)
}
