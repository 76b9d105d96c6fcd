package reconciliation

import "github.com/wakala/divrecon/internal/domain"

// BackfillProvenance marks custodian values copied from the paired owner record.
const BackfillProvenance = "backfill:owner"

// backfillFields are copied from owner to custodian when the custodian is blank.
var backfillFields = []string{domain.FieldOrganisationName, domain.FieldTicker}

// Backfill fills blank custodian organisation names and tickers from the owner
// record of the same pair. It runs after matching because the copy source is
// only known once pairs exist. Input pairs are not modified; enriched
// custodian records are copies.
func Backfill(pairs []domain.MatchedPair) []domain.MatchedPair {
	out := make([]domain.MatchedPair, len(pairs))
	for i, p := range pairs {
		out[i] = p
		if p.Owner == nil || p.Custodian == nil {
			continue
		}

		var enriched *domain.Record
		for _, f := range backfillFields {
			if p.Custodian.Get(f) != "" || p.Owner.Get(f) == "" {
				continue
			}
			if enriched == nil {
				enriched = p.Custodian.Clone()
			}
			enriched.Values[f] = p.Owner.Get(f)
			enriched.Provenance[f] = BackfillProvenance
		}
		if enriched != nil {
			out[i].Custodian = enriched
		}
	}
	return out
}
