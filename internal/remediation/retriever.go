// Package remediation ranks knowledge base remediations against a
// discrepancy explanation with Okapi BM25.
package remediation

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/wakala/divrecon/internal/domain"
	"github.com/wakala/divrecon/internal/logging"
	"github.com/wakala/divrecon/internal/store"
)

// BM25 parameters and the default number of suggestions.
const (
	K1       = 1.5
	B        = 0.75
	DefaultK = 3
)

// Suggestion is a ranked knowledge base entry.
type Suggestion struct {
	domain.Remediation
	Score float64 `json:"score"`
}

type document struct {
	entry domain.Remediation
	tf    map[string]int
	len   int
}

// Retriever is an immutable BM25 index. It is safe for concurrent use.
type Retriever struct {
	docs  []document
	df    map[string]int
	avgdl float64
}

// Tokenize case-folds s and splits it on anything that is not a letter or digit.
func Tokenize(s string) []string {
	return strings.FieldsFunc(cases.Fold().String(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// NewRetriever indexes entries. Each entry is searchable by its remediation
// text, patterns and type.
func NewRetriever(entries []domain.Remediation) *Retriever {
	r := &Retriever{df: make(map[string]int)}
	total := 0
	for _, e := range entries {
		text := e.Remediation + " " + strings.Join(e.Pattern, " ") + " " + e.Type
		tokens := Tokenize(text)
		d := document{entry: e, tf: make(map[string]int), len: len(tokens)}
		for _, t := range tokens {
			d.tf[t]++
		}
		for t := range d.tf {
			r.df[t]++
		}
		total += d.len
		r.docs = append(r.docs, d)
	}
	if len(r.docs) > 0 {
		r.avgdl = float64(total) / float64(len(r.docs))
	}
	return r
}

// LoadKnowledgeBase reads a JSON list of remediations and indexes it. A
// missing file gives an empty index.
func LoadKnowledgeBase(path string) (*Retriever, error) {
	entries, err := store.ReadRemediations(path)
	if err != nil {
		return nil, err
	}
	log := logging.Component("remediation")
	log.Debug().Str("path", path).Int("entries", len(entries)).Msg("Indexed knowledge base")
	return NewRetriever(entries), nil
}

// Len returns the number of indexed entries.
func (r *Retriever) Len() int { return len(r.docs) }

func (r *Retriever) idf(term string) float64 {
	n := float64(r.df[term])
	N := float64(len(r.docs))
	return math.Log(1 + (N-n+0.5)/(n+0.5))
}

// Suggest returns up to k entries with a positive score, best first. Ties
// keep knowledge base order. k <= 0 means DefaultK.
func (r *Retriever) Suggest(query string, k int) []Suggestion {
	if k <= 0 {
		k = DefaultK
	}
	terms := Tokenize(query)
	if len(terms) == 0 || len(r.docs) == 0 {
		return []Suggestion{}
	}

	out := make([]Suggestion, 0, len(r.docs))
	for _, d := range r.docs {
		score := 0.0
		for _, t := range terms {
			tf := float64(d.tf[t])
			if tf == 0 {
				continue
			}
			norm := 1 - B + B*float64(d.len)/r.avgdl
			score += r.idf(t) * tf * (K1 + 1) / (tf + K1*norm)
		}
		if score > 0 {
			out = append(out, Suggestion{Remediation: d.entry, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out
}
