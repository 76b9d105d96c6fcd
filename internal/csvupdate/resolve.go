// Package csvupdate edits single cells of the matrix view, addressing them by
// pair id and a loosely spelled field name.
package csvupdate

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/wakala/divrecon/internal/domain"
)

// MinSimilarity is the lowest similarity ratio accepted as a fuzzy match.
const MinSimilarity = 0.6

// NormalizeName trims, upper-cases and replaces runs of whitespace with "_".
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), "_")
}

// Similarity returns a ratio in [0,1] derived from the Levenshtein distance
// of the normalized names.
func Similarity(a, b string) float64 {
	ra, rb := []rune(NormalizeName(a)), []rune(NormalizeName(b))
	if len(ra)+len(rb) == 0 {
		return 1
	}
	return levenshtein.RatioForStrings(ra, rb, levenshtein.DefaultOptions)
}

// Resolve maps candidate to an exact name from available. The candidate is
// first snapped onto the allowed set (when allowed is non-empty), then onto
// available. Each step tries an exact normalized match and falls back to the
// nearest name with Similarity >= MinSimilarity. A tie at the best score, or
// no acceptable name, returns *domain.AmbiguityError.
func Resolve(candidate string, allowed, available []string) (string, error) {
	chosen := candidate
	if len(allowed) > 0 {
		name, err := nearest("field", candidate, allowed)
		if err != nil {
			return "", err
		}
		chosen = name
	}
	return nearest("row", chosen, available)
}

func nearest(kind, candidate string, names []string) (string, error) {
	for _, n := range names {
		if n == candidate {
			return n, nil
		}
	}
	target := NormalizeName(candidate)
	for _, n := range names {
		if NormalizeName(n) == target {
			return n, nil
		}
	}

	best := -1.0
	var ties []string
	for _, n := range names {
		score := Similarity(target, n)
		if score < MinSimilarity {
			continue
		}
		switch {
		case score > best:
			best = score
			ties = []string{n}
		case score == best:
			ties = append(ties, n)
		}
	}
	switch len(ties) {
	case 1:
		return ties[0], nil
	case 0:
		return "", &domain.AmbiguityError{Kind: kind, Input: candidate}
	default:
		sort.Strings(ties)
		return "", &domain.AmbiguityError{Kind: kind, Input: candidate, Candidates: ties}
	}
}

var idDigitsRe = regexp.MustCompile(`^\d+$`)

// CleanID reduces "001", "#001", "No.001", "NBIM#001" or "CUSTODY#001" to the
// zero-padded ordinal digits. Side prefixes must be one of labels.
func CleanID(id string, labels ...string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(id))
	for _, l := range labels {
		if p := strings.ToUpper(l) + "#"; strings.HasPrefix(s, p) {
			s = s[len(p):]
			break
		}
	}
	s = strings.TrimPrefix(s, "NO.")
	s = strings.TrimPrefix(s, "#")
	if !idDigitsRe.MatchString(s) {
		return "", fmt.Errorf("unrecognised id %q, expected forms like 001, #001, No.001 or %s#001", id, firstOr(labels, "NBIM"))
	}
	if len(s) < 3 {
		s = strings.Repeat("0", 3-len(s)) + s
	}
	return s, nil
}

func firstOr(s []string, def string) string {
	if len(s) > 0 {
		return s[0]
	}
	return def
}
