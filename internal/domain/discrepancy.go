package domain

// DiffKind classifies a field-level difference between the two sides.
type DiffKind string

const (
	DiffNumeric DiffKind = "numeric"
	DiffText    DiffKind = "text"
	DiffMissing DiffKind = "missing"
	DiffOrphan  DiffKind = "orphan"
)

// Severity is assigned by the classification collaborator, never by the engine.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ValidSeverity reports whether s is one of the four accepted levels.
func ValidSeverity(s string) bool {
	switch Severity(s) {
	case SeverityNone, SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// FieldDiff is one disagreement between the owner and custodian values of a
// pair. Delta is set for numeric diffs only.
type FieldDiff struct {
	RunID     string   `json:"run_id,omitempty"`
	PairID    string   `json:"pair_id"`
	Field     string   `json:"field"`
	Kind      DiffKind `json:"kind"`
	Owner     string   `json:"owner"`
	Custodian string   `json:"custodian"`
	Delta     string   `json:"delta,omitempty"`
}

// SeverityResult is one validated record from the classification collaborator.
// Extra holds any optional keys beyond id, severity, explanation and comment.
type SeverityResult struct {
	ID          string         `json:"id"`
	Severity    Severity       `json:"severity"`
	Explanation string         `json:"explanation"`
	Comment     string         `json:"comment,omitempty"`
	Extra       map[string]any `json:"-"`
}

// Remediation is an approved fix pattern, also the knowledge base entry shape.
type Remediation struct {
	Type        string   `json:"type"`
	Pattern     []string `json:"pattern"`
	Remediation string   `json:"remediation"`
}
