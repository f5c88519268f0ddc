package model

import (
	"strings"
	"time"
)

// Verdict is the classification assigned to a claim after adjudication
type Verdict string

const (
	VerdictVerified     Verdict = "Verified"     // Evidence corroborates the asserted value
	VerdictInaccurate   Verdict = "Inaccurate"   // Outdated or a minor deviation from current figures
	VerdictFalse        Verdict = "False"        // Contradicted, or unsupported despite evidence existing
	VerdictUnverifiable Verdict = "Unverifiable" // No evidence or no usable model judgment
)

// Verdicts lists every verdict in display order
var Verdicts = []Verdict{VerdictVerified, VerdictInaccurate, VerdictFalse, VerdictUnverifiable}

// ParseVerdict matches a verdict label case-insensitively
func ParseVerdict(raw string) (Verdict, bool) {
	for _, v := range Verdicts {
		if strings.EqualFold(strings.TrimSpace(raw), string(v)) {
			return v, true
		}
	}
	return "", false
}

// ExplanationNoEvidence is the explanation used when retrieval yields nothing
const ExplanationNoEvidence = "no evidence found"

// VerificationResult is the outcome of verifying one claim
type VerificationResult struct {
	ClaimID      int         `json:"claim_id"`
	Verdict      Verdict     `json:"verdict"`
	Explanation  string      `json:"explanation"`
	CitedSources []string    `json:"cited_sources"`          // Ordered URLs; empty only when Unverifiable
	Sources      []SourceRef `json:"sources,omitempty"`      // Detail for each cited URL
	CorrectInfo  string      `json:"correct_info,omitempty"` // Corrected figure for Inaccurate/False
	Confidence   *float64    `json:"confidence,omitempty"`   // 0.0-1.0 when the adjudicator reported one
	Queries      []string    `json:"queries,omitempty"`      // Search queries actually issued
}

// Unverifiable builds an Unverifiable result with the given explanation
func Unverifiable(claimID int, explanation string) VerificationResult {
	return VerificationResult{
		ClaimID:      claimID,
		Verdict:      VerdictUnverifiable,
		Explanation:  explanation,
		CitedSources: []string{},
	}
}

// ExtractionWarning records a non-fatal problem with one chunk
type ExtractionWarning struct {
	Chunk   int    `json:"chunk"` // 0-based chunk index
	Message string `json:"message"`
}

// Summary holds per-verdict counts and the derived accuracy index
type Summary struct {
	Total        int     `json:"total"`
	Verified     int     `json:"verified"`
	Inaccurate   int     `json:"inaccurate"`
	False        int     `json:"false"`
	Unverifiable int     `json:"unverifiable"`
	Index        int     `json:"index"`      // 0-100 accuracy index over adjudicated claims
	Confidence   string  `json:"confidence"` // "low", "medium", "high"
	Coverage     float64 `json:"coverage"`   // Share of claims that were adjudicated
}

// Count returns the number of results with the given verdict
func (s Summary) Count(v Verdict) int {
	switch v {
	case VerdictVerified:
		return s.Verified
	case VerdictInaccurate:
		return s.Inaccurate
	case VerdictFalse:
		return s.False
	case VerdictUnverifiable:
		return s.Unverifiable
	}
	return 0
}

// Report is the terminal artifact of a pipeline run
type Report struct {
	RunID      string    `json:"run_id"`
	Source     string    `json:"source,omitempty"` // File path or URL the text came from
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Claims   []Claim              `json:"claims"`
	Results  []VerificationResult `json:"results"` // Ordered by ClaimID
	Summary  Summary              `json:"summary"`
	Warnings []ExtractionWarning  `json:"warnings,omitempty"`

	Cancelled bool  `json:"cancelled,omitempty"`
	Pending   []int `json:"pending,omitempty"` // Claim IDs never verified because the run was cancelled
}

// Result returns the verification result for a claim ID
func (r *Report) Result(claimID int) (VerificationResult, bool) {
	for _, res := range r.Results {
		if res.ClaimID == claimID {
			return res, true
		}
	}
	return VerificationResult{}, false
}

// Claim returns the claim with the given ID
func (r *Report) Claim(id int) (Claim, bool) {
	for _, c := range r.Claims {
		if c.ID == id {
			return c, true
		}
	}
	return Claim{}, false
}
