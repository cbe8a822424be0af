package domain

import "time"

// RiskLevel categorizes how dangerous a choice is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Valid reports whether the value is one of the canonical risk levels.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// MoralAlignment is the ethical classification of an option.
type MoralAlignment string

const (
	AlignmentMoral   MoralAlignment = "moral"
	AlignmentImmoral MoralAlignment = "immoral"
	AlignmentNeutral MoralAlignment = "neutral"
)

func (a MoralAlignment) Valid() bool {
	switch a {
	case AlignmentMoral, AlignmentImmoral, AlignmentNeutral:
		return true
	}
	return false
}

// ScenarioType is the categorical label of the narrative beat generated for
// a turn.
type ScenarioType string

const (
	ScenarioStandard    ScenarioType = "standard"
	ScenarioDilemma     ScenarioType = "dilemma"
	ScenarioConsequence ScenarioType = "consequence"
	ScenarioChallenge   ScenarioType = "challenge"
	ScenarioCompanion   ScenarioType = "companion"
	ScenarioBetrayal    ScenarioType = "betrayal"
	ScenarioMoralChoice ScenarioType = "moral_choice"
)

// AllScenarioTypes lists every scenario type in a stable order.
var AllScenarioTypes = []ScenarioType{
	ScenarioStandard,
	ScenarioDilemma,
	ScenarioConsequence,
	ScenarioChallenge,
	ScenarioCompanion,
	ScenarioBetrayal,
	ScenarioMoralChoice,
}

func (s ScenarioType) Valid() bool {
	for _, t := range AllScenarioTypes {
		if s == t {
			return true
		}
	}
	return false
}

// Outcome classifies the result of the player's chosen action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomePartial Outcome = "partial"
	OutcomeFailure Outcome = "failure"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomePartial, OutcomeFailure:
		return true
	}
	return false
}

// Option is a single player choice produced by the generation service for a
// turn, after normalization.
type Option struct {
	Text           string         `json:"text"`
	Risk           RiskLevel      `json:"risk"`
	Alignment      MoralAlignment `json:"alignment"`
	TraitAlignment string         `json:"traitAlignment,omitempty"`
}

// PlayerStats tracks how the player has been playing. Every field stays
// within its documented bounds after each update.
type PlayerStats struct {
	MoralScore       int `json:"moralScore"`       // -100 (immoral) .. 100 (moral)
	RiskScore        int `json:"riskScore"`        // 0 .. 100
	TraitConsistency int `json:"traitConsistency"` // 0 .. 100
	Creativity       int `json:"creativity"`       // 0 .. 100
	SuccessRate      int `json:"successRate"`      // 0 .. 100
}

// SessionStatus is the orchestrator state of a story session.
type SessionStatus string

const (
	StatusAwaitingChoice SessionStatus = "awaiting_choice"
	StatusGenerating     SessionStatus = "generating"
	StatusEnded          SessionStatus = "ended"
)

// ScoreBreakdown is the per-axis rating of a finished playthrough, each
// value in [1,100].
type ScoreBreakdown struct {
	Decisions   int `json:"decisions"`
	Consistency int `json:"consistency"`
	Creativity  int `json:"creativity"`
	Morality    int `json:"morality"`
}

// EndingSummary is the narrative and numeric wrap-up generated once a
// session reaches its terminal turn. Wire keys match the generation
// service's response fields.
type EndingSummary struct {
	WrapUpParagraph         string         `json:"wrapUpParagraph"`
	BigMoment               string         `json:"bigMoment"`
	FrequentActivity        string         `json:"frequentActivity"`
	CharacterTraitHighlight string         `json:"characterTraitHighlight"`
	ThemeExploration        string         `json:"themeExploration"`
	OverallScore            int            `json:"overallScore"`
	ScoreBreakdown          ScoreBreakdown `json:"scoreBreakdown"`
	EndingType              string         `json:"endingType"`
}

// CharacterSetup describes the protagonist chosen at game start.
type CharacterSetup struct {
	Genre     string   `json:"genre"`
	Character string   `json:"character"`
	Gender    string   `json:"gender"`
	Traits    []string `json:"traits"`
	Bio       string   `json:"bio"`
	ImageURL  string   `json:"imageUrl,omitempty"`
}

// StorySession is the aggregate state of one playthrough. IDs are monotonic
// per owner; the owner is the lowercase wallet address of the player.
//
// Invariant: len(ScenarioHistory) == len(MoralChoices) == len(Outcomes) == Turn.
type StorySession struct {
	ID    int64  `json:"id"`
	Owner string `json:"owner"`

	Setup CharacterSetup `json:"setup"`

	Turn          int               `json:"turn"`
	Log           []string          `json:"log"`     // story paragraphs and chosen option texts, in order
	Summary       []string          `json:"summary"` // rolling per-turn summaries fed back into prompts
	LastParagraph string            `json:"lastParagraph"`
	Options       map[string]Option `json:"options"`

	Stats           PlayerStats      `json:"stats"`
	ScenarioHistory []ScenarioType   `json:"scenarioHistory"`
	MoralChoices    []MoralAlignment `json:"moralChoices"`
	Outcomes        []Outcome        `json:"outcomes"`

	Status SessionStatus  `json:"status"`
	Ending *EndingSummary `json:"ending,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Ended reports whether the session reached its terminal turn.
func (s *StorySession) Ended() bool {
	return s.Status == StatusEnded
}

// GameResult is one leaderboard entry for a finished session.
type GameResult struct {
	ID         int64          `json:"id"`
	Owner      string         `json:"owner"`
	Character  string         `json:"character"`
	EndingType string         `json:"endingType"`
	Score      int            `json:"score"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
	CreatedAt  time.Time      `json:"createdAt"`
}
