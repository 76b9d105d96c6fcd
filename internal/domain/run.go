package domain

import "time"

// Run is one entry of the run ledger: a pairing of two input files under a
// given policy. RerunOf names the earliest run with identical inputs and
// policies, if any.
type Run struct {
	ID               string          `json:"id"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	OwnerPath        string          `json:"owner_path"`
	OwnerHash        string          `json:"owner_sha256"`
	CustodianPath    string          `json:"custodian_path"`
	CustodianHash    string          `json:"custodian_sha256"`
	MatchPolicy      MatchPolicy     `json:"match_policy"`
	Retention        RetentionPolicy `json:"retention"`
	OwnerRecords     int             `json:"owner_records"`
	CustodianRecords int             `json:"custodian_records"`
	Pairs            int             `json:"pairs"`
	OwnerOrphans     int             `json:"owner_orphans"`
	CustodianOrphans int             `json:"custodian_orphans"`
	Diffs            int             `json:"diffs"`
	SoftFailures     int             `json:"soft_failures"`
	RerunOf          string          `json:"rerun_of,omitempty"`
}
