package ai

import "adventure-server/internal/domain"

// Payload types mirror the JSON shapes the generation service is prompted
// to produce. Field names match the wire keys exactly; loose values (risk,
// alignment) are normalized after decoding.

// StartPayload is the opening scene of a new story.
type StartPayload struct {
	StoryStart string                   `json:"storyStart"`
	Options    map[string]domain.Option `json:"options"`
}

// TurnPayload is a continuing story beat. Outcome and ScenarioType are
// echoes of what the request dictated; the authoritative values are chosen
// before the request is sent, so both are optional on the wire.
type TurnPayload struct {
	StorySegment string                   `json:"storySegment"`
	Options      map[string]domain.Option `json:"options"`
	Outcome      string                   `json:"outcome,omitempty"`
	ScenarioType string                   `json:"scenarioType,omitempty"`
}

// EndingPayload is a late-game beat. IsFinal reports whether the service
// chose to conclude the story with this segment.
type EndingPayload struct {
	StorySegment string                   `json:"storySegment"`
	Options      map[string]domain.Option `json:"options"`
	IsFinal      bool                     `json:"isFinal"`
}

// SummaryPayload is the short recap of one finished turn.
type SummaryPayload struct {
	StorySummary string `json:"storySummary"`
}

// WrapUpPayload is the Story-Wrapped summary of a whole playthrough.
type WrapUpPayload = domain.EndingSummary

// CharacterPayload is a generated protagonist sketch.
type CharacterPayload struct {
	CharacterQuirks []string `json:"characterQuirks"`
	CharacterGender string   `json:"characterGender"`
	CharacterBio    string   `json:"characterBio"`
}
