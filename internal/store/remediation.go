package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/wakala/divrecon/internal/domain"
	"github.com/wakala/divrecon/internal/logging"
)

// RemediationList is the append-only list of approved remediations.
type RemediationList struct {
	Path string

	mu sync.Mutex
}

// NewRemediationList creates a list backed by path. The file is created on
// the first Append.
func NewRemediationList(path string) *RemediationList {
	return &RemediationList{Path: path}
}

// CleanRemediation trims every field and drops blank patterns. It fails if
// type or remediation is blank or no pattern is left.
func CleanRemediation(r domain.Remediation) (domain.Remediation, error) {
	out := domain.Remediation{
		Type:        strings.TrimSpace(r.Type),
		Remediation: strings.TrimSpace(r.Remediation),
	}
	for _, p := range r.Pattern {
		if p = strings.TrimSpace(p); p != "" {
			out.Pattern = append(out.Pattern, p)
		}
	}
	switch {
	case out.Type == "":
		return out, domain.NewValidationError(-1, "type", "must not be blank")
	case out.Remediation == "":
		return out, domain.NewValidationError(-1, "remediation", "must not be blank")
	case len(out.Pattern) == 0:
		return out, domain.NewValidationError(-1, "pattern", "needs at least one non-blank entry")
	}
	return out, nil
}

// Append validates r and rewrites the list with r at the end.
func (l *RemediationList) Append(r domain.Remediation) (domain.Remediation, error) {
	clean, err := CleanRemediation(r)
	if err != nil {
		return clean, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	list, err := ReadRemediations(l.Path)
	if err != nil {
		return clean, err
	}
	list = append(list, clean)

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return clean, fmt.Errorf("render remediations: %w", err)
	}
	if err := WriteFileAtomic(l.Path, append(data, '\n'), 0o644); err != nil {
		return clean, err
	}

	log := logging.Component("store")
	log.Info().Str("type", clean.Type).Int("total", len(list)).Msg("Approved remediation")
	return clean, nil
}

// List returns every approved remediation.
func (l *RemediationList) List() ([]domain.Remediation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ReadRemediations(l.Path)
}

// ReadRemediations reads a JSON list of remediations. A missing file is an
// empty list. Knowledge base files share the format.
func ReadRemediations(path string) ([]domain.Remediation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.Remediation{}, nil
		}
		return nil, fmt.Errorf("read remediations: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []domain.Remediation{}, nil
	}
	var list []domain.Remediation
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse remediations %s: %w", path, err)
	}
	if list == nil {
		list = []domain.Remediation{}
	}
	return list, nil
}
