package engine

import (
	"math/rand"
	"sync"

	"adventure-server/internal/domain"
)

// recentWindow is how many trailing turns count as "recent" history.
const recentWindow = 5

// Tunables are the probability knobs of the selector. The zero value is not
// usable; start from DefaultTunables.
type Tunables struct {
	// Late-game forced drama window (inclusive turn bounds).
	LateGameStart int
	LateGameEnd   int
	// Chance the forced late-game beat is a betrayal rather than a challenge.
	LateBetrayalChance float64

	ConsequenceChance float64 // moralScore < -50
	ChallengeChance   float64 // riskScore > 70
	CompanionChance   float64 // early game
	MoralChoiceChance float64 // balanced morality
	TrendChance       float64 // moral/immoral trailing trends
	DilemmaChance     float64

	// Failure model.
	FailureByRisk    map[domain.RiskLevel]float64
	TensionCap       float64 // dramatic-tension ceiling reached by TensionTurns
	TensionTurns     int
	StreakPenalty    float64 // added after 3 consecutive successes
	ForcedFailChance float64 // applied when the last 5 outcomes all succeeded
	MinFailureChance float64
	PartialBandWidth float64
}

// DefaultTunables returns the production probability set.
func DefaultTunables() Tunables {
	return Tunables{
		LateGameStart:      15,
		LateGameEnd:        18,
		LateBetrayalChance: 0.6,
		ConsequenceChance:  0.7,
		ChallengeChance:    0.7,
		CompanionChance:    0.5,
		MoralChoiceChance:  0.6,
		TrendChance:        0.6,
		DilemmaChance:      0.3,
		FailureByRisk: map[domain.RiskLevel]float64{
			domain.RiskHigh:   0.4,
			domain.RiskMedium: 0.25,
			domain.RiskLow:    0.1,
		},
		TensionCap:       0.15,
		TensionTurns:     30,
		StreakPenalty:    0.2,
		ForcedFailChance: 0.7,
		MinFailureChance: 0.05,
		PartialBandWidth: 0.3,
	}
}

// Selector picks the next scenario type and resolves turn outcomes. It is
// safe for concurrent use; the mutex guards the random source, which
// *rand.Rand does not do itself.
type Selector struct {
	mu  sync.Mutex
	rng *rand.Rand
	tun Tunables
}

// NewSelector builds a Selector around the given random source.
func NewSelector(rng *rand.Rand, tun Tunables) *Selector {
	return &Selector{rng: rng, tun: tun}
}

func (s *Selector) float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *Selector) intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

// SelectorInput is the history a scenario decision is based on.
type SelectorInput struct {
	History      []domain.ScenarioType
	MoralChoices []domain.MoralAlignment
	Outcomes     []domain.Outcome
	Turn         int
	Stats        domain.PlayerStats
}

// NextScenario picks the scenario type for the upcoming turn. The rules are
// priority-ordered and probabilistic; the only hard guarantee is that the
// returned type never matches either of the two preceding turns.
func (s *Selector) NextScenario(in SelectorInput) domain.ScenarioType {
	recent := tail(in.History, recentWindow)
	recentSet := make(map[domain.ScenarioType]bool, len(recent))
	for _, t := range recent {
		recentSet[t] = true
	}

	var last, secondLast domain.ScenarioType
	if len(recent) >= 1 {
		last = recent[len(recent)-1]
	}
	if len(recent) >= 2 {
		secondLast = recent[len(recent)-2]
	}

	moralRecent := tail(in.MoralChoices, recentWindow)
	var moralCount, immoralCount int
	for _, a := range moralRecent {
		switch a {
		case domain.AlignmentMoral:
			moralCount++
		case domain.AlignmentImmoral:
			immoralCount++
		}
	}
	moralTrend := float64(moralCount) / recentWindow
	immoralTrend := float64(immoralCount) / recentWindow

	// Late game: if neither of the dramatic beats happened recently, force one.
	if in.Turn >= s.tun.LateGameStart && in.Turn <= s.tun.LateGameEnd &&
		!recentSet[domain.ScenarioChallenge] && !recentSet[domain.ScenarioBetrayal] {
		if s.float64() < s.tun.LateBetrayalChance {
			return domain.ScenarioBetrayal
		}
		return domain.ScenarioChallenge
	}

	// Consequences catch up with very immoral players.
	if in.Stats.MoralScore < -50 && !recentSet[domain.ScenarioConsequence] &&
		s.float64() < s.tun.ConsequenceChance {
		return domain.ScenarioConsequence
	}

	// Risk-takers get challenged.
	if in.Stats.RiskScore > 70 && !recentSet[domain.ScenarioChallenge] &&
		s.float64() < s.tun.ChallengeChance {
		return domain.ScenarioChallenge
	}

	// Introduce companions early.
	if in.Turn < 5 && !recentSet[domain.ScenarioCompanion] &&
		s.float64() < s.tun.CompanionChance {
		return domain.ScenarioCompanion
	}

	// Balanced morality invites a clear moral choice.
	if abs(in.Stats.MoralScore) < 30 && !recentSet[domain.ScenarioMoralChoice] &&
		s.float64() < s.tun.MoralChoiceChance {
		return domain.ScenarioMoralChoice
	}

	// Consistently moral players get betrayed; consistently immoral ones face
	// consequences.
	if moralTrend > 0.7 && !recentSet[domain.ScenarioBetrayal] &&
		s.float64() < s.tun.TrendChance {
		return domain.ScenarioBetrayal
	}
	if immoralTrend > 0.7 && !recentSet[domain.ScenarioConsequence] &&
		s.float64() < s.tun.TrendChance {
		return domain.ScenarioConsequence
	}

	if !recentSet[domain.ScenarioDilemma] && s.float64() < s.tun.DilemmaChance {
		return domain.ScenarioDilemma
	}

	// Standard beats become rarer as the story grows; floor at 0.1.
	standardProb := 0.4 - float64(in.Turn)/40
	if standardProb < 0.1 {
		standardProb = 0.1
	}

	available := make([]domain.ScenarioType, 0, len(domain.AllScenarioTypes))
	for _, t := range domain.AllScenarioTypes {
		if t != last && t != secondLast && t != domain.ScenarioStandard {
			available = append(available, t)
		}
	}

	if last != domain.ScenarioStandard && secondLast != domain.ScenarioStandard &&
		s.float64() < standardProb {
		return domain.ScenarioStandard
	}
	return available[s.intn(len(available))]
}

// OutcomeInput is what outcome resolution is based on.
type OutcomeInput struct {
	Risk     domain.RiskLevel
	Stats    domain.PlayerStats
	Turn     int
	Outcomes []domain.Outcome
}

// ResolveOutcome classifies the result of the just-submitted choice.
func (s *Selector) ResolveOutcome(in OutcomeInput) domain.Outcome {
	riskFactor, ok := s.tun.FailureByRisk[in.Risk]
	if !ok {
		riskFactor = s.tun.FailureByRisk[domain.RiskMedium]
	}

	consistencyBonus := float64(in.Stats.TraitConsistency) / 200

	turnRatio := float64(in.Turn) / float64(s.tun.TensionTurns)
	if turnRatio > 1 {
		turnRatio = 1
	}
	tension := turnRatio * s.tun.TensionCap

	streak := 0.0
	if successStreak(in.Outcomes, 3) {
		streak = s.tun.StreakPenalty
	}

	failureChance := riskFactor - consistencyBonus + tension + streak
	if failureChance < s.tun.MinFailureChance {
		failureChance = s.tun.MinFailureChance
	}

	// Five wins in a row invites a dramatic stumble.
	if successStreak(in.Outcomes, recentWindow) && s.float64() < s.tun.ForcedFailChance {
		return domain.OutcomeFailure
	}

	r := s.float64()
	switch {
	case r < failureChance:
		return domain.OutcomeFailure
	case r < failureChance+s.tun.PartialBandWidth:
		return domain.OutcomePartial
	default:
		return domain.OutcomeSuccess
	}
}

// successStreak reports whether the trailing n outcomes exist and were all
// successes.
func successStreak(outcomes []domain.Outcome, n int) bool {
	if len(outcomes) < n {
		return false
	}
	for _, o := range outcomes[len(outcomes)-n:] {
		if o != domain.OutcomeSuccess {
			return false
		}
	}
	return true
}

func tail[T any](s []T, n int) []T {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
