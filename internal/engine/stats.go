package engine

import (
	"math"

	"adventure-server/internal/domain"
)

// UpdateStats is the pure per-turn stat update. priorOutcomes is the outcome
// history before this turn; the just-resolved outcome is passed separately
// and counts toward the recomputed success rate. The input stats value is
// never mutated.
func UpdateStats(stats domain.PlayerStats, opt domain.Option, outcome domain.Outcome, priorOutcomes []domain.Outcome) domain.PlayerStats {
	next := stats

	switch opt.Risk {
	case domain.RiskHigh:
		next.RiskScore += 8
	case domain.RiskMedium:
		next.RiskScore += 5
	default:
		next.RiskScore -= 5
	}
	next.RiskScore = clamp(next.RiskScore, 0, 100)

	switch opt.Alignment {
	case domain.AlignmentMoral:
		next.MoralScore += 10
	case domain.AlignmentImmoral:
		next.MoralScore -= 10
	}
	next.MoralScore = clamp(next.MoralScore, -100, 100)

	if opt.TraitAlignment != "" {
		next.TraitConsistency += 5
	} else {
		next.TraitConsistency -= 3
	}
	next.TraitConsistency = clamp(next.TraitConsistency, 0, 100)

	// Success rate is recomputed from scratch over the whole history;
	// partial outcomes count toward neither side.
	var successes, failures int
	for _, o := range priorOutcomes {
		switch o {
		case domain.OutcomeSuccess:
			successes++
		case domain.OutcomeFailure:
			failures++
		}
	}
	switch outcome {
	case domain.OutcomeSuccess:
		successes++
	case domain.OutcomeFailure:
		failures++
	}
	if successes+failures > 0 {
		next.SuccessRate = int(math.Round(100 * float64(successes) / float64(successes+failures)))
	} else {
		next.SuccessRate = 0
	}

	// Creativity rewards a risky bet that paid off, nothing else.
	if opt.Risk == domain.RiskHigh && outcome == domain.OutcomeSuccess {
		next.Creativity = clamp(next.Creativity+8, 0, 100)
	}

	return next
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
