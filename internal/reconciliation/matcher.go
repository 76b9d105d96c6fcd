package reconciliation

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/wakala/divrecon/internal/domain"
)

// Matcher pairs owner and custodian records and assigns ordinals from 1.
type Matcher interface {
	Match(owner, custodian []*domain.Record) []domain.MatchedPair
	Policy() domain.MatchPolicy
}

// NewMatcher returns the matcher for a policy. Key matching is the default.
func NewMatcher(policy domain.MatchPolicy) (Matcher, error) {
	switch policy {
	case "", domain.MatchByKey:
		return KeyMatcher{}, nil
	case domain.MatchPositional:
		return PositionalMatcher{}, nil
	default:
		return nil, fmt.Errorf("unknown match policy %q", policy)
	}
}

// NormalizeKeyPart removes all whitespace and lower-cases s.
func NormalizeKeyPart(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// PairKey builds "event|isin|account", or "event|isin" when the record has no
// account. ok is false when the event key or ISIN is blank; such records are
// never grouped with anything.
func PairKey(rec *domain.Record) (key string, ok bool) {
	ek := NormalizeKeyPart(rec.Get(domain.FieldEventKey))
	isin := NormalizeKeyPart(rec.Get(domain.FieldISIN))
	acct := NormalizeKeyPart(rec.Get(domain.FieldBankAccount))
	if ek == "" || isin == "" {
		return "", false
	}
	if acct == "" {
		return ek + "|" + isin, true
	}
	return ek + "|" + isin + "|" + acct, true
}

// KeyMatcher groups records by PairKey and pairs them positionally inside
// each group. Groups are emitted in lexicographic key order; records without
// a usable key follow as orphans, owner side first, in file order.
type KeyMatcher struct{}

func (KeyMatcher) Policy() domain.MatchPolicy { return domain.MatchByKey }

type keyed struct {
	key string
	rec *domain.Record
}

func (KeyMatcher) Match(owner, custodian []*domain.Record) []domain.MatchedPair {
	ownerGroups, ownerLoose := group(owner)
	custGroups, custLoose := group(custodian)

	keySet := make(map[string]struct{}, len(ownerGroups)+len(custGroups))
	for k := range ownerGroups {
		keySet[k] = struct{}{}
	}
	for k := range custGroups {
		keySet[k] = struct{}{}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pairs []domain.MatchedPair
	for _, k := range keys {
		o, c := ownerGroups[k], custGroups[k]
		n := max(len(o), len(c))
		for i := 0; i < n; i++ {
			p := domain.MatchedPair{}
			if i < len(o) {
				p.Owner = o[i]
			}
			if i < len(c) {
				p.Custodian = c[i]
			}
			pairs = append(pairs, p)
		}
	}
	for _, r := range ownerLoose {
		pairs = append(pairs, domain.MatchedPair{Owner: r})
	}
	for _, r := range custLoose {
		pairs = append(pairs, domain.MatchedPair{Custodian: r})
	}

	return number(pairs)
}

// group sorts records by key, event key, ISIN and account (stable, so file
// order breaks remaining ties) and buckets them.
func group(recs []*domain.Record) (map[string][]*domain.Record, []*domain.Record) {
	var entries []keyed
	var loose []*domain.Record
	for _, r := range recs {
		if r == nil {
			continue
		}
		k, ok := PairKey(r)
		if !ok {
			loose = append(loose, r)
			continue
		}
		entries = append(entries, keyed{key: k, rec: r})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.key != b.key {
			return a.key < b.key
		}
		for _, f := range []string{domain.FieldEventKey, domain.FieldISIN, domain.FieldBankAccount} {
			if av, bv := a.rec.Get(f), b.rec.Get(f); av != bv {
				return av < bv
			}
		}
		return false
	})

	groups := make(map[string][]*domain.Record)
	for _, e := range entries {
		groups[e.key] = append(groups[e.key], e.rec)
	}
	return groups, loose
}

// PositionalMatcher pairs the i-th owner row with the i-th custodian row.
type PositionalMatcher struct{}

func (PositionalMatcher) Policy() domain.MatchPolicy { return domain.MatchPositional }

func (PositionalMatcher) Match(owner, custodian []*domain.Record) []domain.MatchedPair {
	n := max(len(owner), len(custodian))
	pairs := make([]domain.MatchedPair, n)
	for i := 0; i < n; i++ {
		if i < len(owner) {
			pairs[i].Owner = owner[i]
		}
		if i < len(custodian) {
			pairs[i].Custodian = custodian[i]
		}
	}
	return number(pairs)
}

func number(pairs []domain.MatchedPair) []domain.MatchedPair {
	for i := range pairs {
		pairs[i].Ordinal = i + 1
	}
	return pairs
}
