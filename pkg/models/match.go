package models

import "time"

// MatchDecision is one append-only audit row recording how a single
// candidate was handled for a signal. Immutable once written.
type MatchDecision struct {
	ID                 int64     `json:"id"`
	SignalID           string    `json:"signal_id"`
	EntityType         string    `json:"entity_type"` // 'company' or 'contact'
	EntityID           string    `json:"entity_id"`
	Similarity         float64   `json:"similarity"`
	AssociationCreated bool      `json:"association_created"`
	CreatedAt          time.Time `json:"created_at"`
}

// CandidateResult is the in-memory outcome for one evaluated candidate.
type CandidateResult struct {
	Match              EntityMatch `json:"match"`
	AssociationCreated bool        `json:"association_created"`
	Skipped            bool        `json:"skipped"` // already associated
	Error              string      `json:"error,omitempty"`
}

// MatchOutcome summarizes one matching invocation for a signal.
type MatchOutcome struct {
	SignalID            string            `json:"signal_id"`
	SignalType          string            `json:"signal_type"`
	Companies           []CandidateResult `json:"company_matches"`
	Contacts            []CandidateResult `json:"contact_matches"`
	AssociationsCreated int               `json:"associations_created"`
	DryRun              bool              `json:"dry_run,omitempty"`
}

// TotalCandidates returns the number of candidates evaluated across both
// collections.
func (o *MatchOutcome) TotalCandidates() int {
	return len(o.Companies) + len(o.Contacts)
}
