package score

import (
	"math"

	"github.com/ppiankov/claimcheck/internal/model"
)

// Verdict weights for the accuracy index. Unverifiable results are excluded
// from the index and lower coverage instead.
const (
	weightVerified   = 1.0
	weightInaccurate = 0.5
	weightFalse      = 0.0
)

// Summarize counts verdicts and derives the accuracy index
func Summarize(results []model.VerificationResult) model.Summary {
	s := model.Summary{Total: len(results)}

	for _, r := range results {
		switch r.Verdict {
		case model.VerdictVerified:
			s.Verified++
		case model.VerdictInaccurate:
			s.Inaccurate++
		case model.VerdictFalse:
			s.False++
		default:
			s.Unverifiable++
		}
	}

	adjudicated := s.Verified + s.Inaccurate + s.False
	if s.Total > 0 {
		s.Coverage = float64(adjudicated) / float64(s.Total)
	}

	s.Index = accuracyIndex(s.Verified, s.Inaccurate, s.False)
	s.Confidence = determineConfidence(adjudicated, s.Coverage, meanConfidence(results))

	return s
}

// accuracyIndex returns round(100 * weighted verdicts / adjudicated), 0 when nothing was adjudicated
func accuracyIndex(verified, inaccurate, falseCount int) int {
	adjudicated := verified + inaccurate + falseCount
	if adjudicated == 0 {
		return 0
	}

	weighted := float64(verified)*weightVerified +
		float64(inaccurate)*weightInaccurate +
		float64(falseCount)*weightFalse

	return int(math.Round(weighted / float64(adjudicated) * 100))
}

// meanConfidence averages the adjudicator's confidence over results that report one.
// It returns -1 when none do.
func meanConfidence(results []model.VerificationResult) float64 {
	sum, n := 0.0, 0
	for _, r := range results {
		if r.Confidence != nil && r.Verdict != model.VerdictUnverifiable {
			sum += *r.Confidence
			n++
		}
	}
	if n == 0 {
		return -1
	}
	return sum / float64(n)
}

// determineConfidence grades how much weight the index can bear
func determineConfidence(adjudicated int, coverage, meanConf float64) string {
	if adjudicated < 3 {
		return "low"
	}

	level := "low"
	if coverage >= 0.8 {
		level = "high"
	} else if coverage >= 0.5 {
		level = "medium"
	}

	// A hesitant adjudicator caps the grade
	if meanConf >= 0 && meanConf < 0.5 && level == "high" {
		level = "medium"
	}

	return level
}
