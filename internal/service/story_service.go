// Package service contains the story progression orchestrator. It owns the
// turn lifecycle: serializing turns per session, driving generation and
// parsing, applying engine results atomically and persisting the outcome.
package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"go.uber.org/zap"

	"adventure-server/internal/domain"
	"adventure-server/internal/engine"
	"adventure-server/internal/prompt"
	"adventure-server/internal/repository"
	"adventure-server/pkg/ai"
)

// endingTurn is the turn from which story advancement goes through the
// ending flow, letting the generation service decide when to conclude.
const endingTurn = 7

// resultSaveTimeout bounds the background write of a finished playthrough.
const resultSaveTimeout = 10 * time.Second

// StoryService orchestrates story sessions end to end.
type StoryService struct {
	sessions repository.SessionRepository
	results  repository.ResultRepository
	gen      ai.Generator
	prompts  *prompt.Builder
	selector *engine.Selector
	logger   *zap.Logger

	maxParseRetries int
}

// NewStoryService wires the orchestrator together. maxParseRetries bounds
// how many times a turn regenerates after an unparsable reply.
func NewStoryService(
	sessions repository.SessionRepository,
	results repository.ResultRepository,
	gen ai.Generator,
	prompts *prompt.Builder,
	selector *engine.Selector,
	maxParseRetries int,
	logger *zap.Logger,
) *StoryService {
	if maxParseRetries <= 0 {
		maxParseRetries = 3
	}
	return &StoryService{
		sessions:        sessions,
		results:         results,
		gen:             gen,
		prompts:         prompts,
		selector:        selector,
		logger:          logger.Named("StoryService"),
		maxParseRetries: maxParseRetries,
	}
}

// generateInto runs one generation call and decodes the reply into v,
// regenerating on parse failures up to the retry budget. Transport errors
// are not retried here; the client already absorbs rate limits.
func (s *StoryService) generateInto(ctx context.Context, promptText string, v interface{}, validate func() error) error {
	// v is zeroed before every decode. json.Unmarshal leaves absent fields
	// alone, so without this a rejected attempt could bleed fields into the
	// next one and a turn could be assembled from two different replies.
	target := reflect.ValueOf(v).Elem()
	blank := reflect.Zero(target.Type())

	var lastErr error
	for attempt := 1; attempt <= s.maxParseRetries; attempt++ {
		raw, err := s.gen.Generate(ctx, promptText)
		if err != nil {
			return err
		}
		target.Set(blank)
		if err := ai.Decode(raw, v); err != nil {
			lastErr = err
			s.logger.Warn("Failed to parse generation response",
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}
		if validate != nil {
			if err := validate(); err != nil {
				lastErr = err
				s.logger.Warn("Generation response failed validation",
					zap.Int("attempt", attempt),
					zap.Error(err))
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("%w: %v", domain.ErrGenerationFailed, lastErr)
}

func (s *StoryService) generateSummary(ctx context.Context, segment string) (string, error) {
	var payload ai.SummaryPayload
	err := s.generateInto(ctx, s.prompts.TurnSummary(segment), &payload, func() error {
		if payload.StorySummary == "" {
			return errors.New("empty storySummary")
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return payload.StorySummary, nil
}

// StartStory creates a new session for the owner and generates its opening
// scene. The returned session is persisted and awaiting the first choice.
func (s *StoryService) StartStory(ctx context.Context, owner string, setup domain.CharacterSetup) (*domain.StorySession, error) {
	owner = strings.ToLower(owner)

	id, err := s.sessions.NextID(ctx, owner)
	if err != nil {
		return nil, err
	}

	var payload ai.StartPayload
	err = s.generateInto(ctx, s.prompts.Start(setup), &payload, func() error {
		if payload.StoryStart == "" {
			return errors.New("empty storyStart")
		}
		if len(payload.Options) == 0 {
			return errors.New("no options")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary, err := s.generateSummary(ctx, payload.StoryStart)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	session := &domain.StorySession{
		ID:            id,
		Owner:         owner,
		Setup:         setup,
		Turn:          0,
		Log:           []string{payload.StoryStart},
		Summary:       []string{summary},
		LastParagraph: payload.StoryStart,
		Options:       ai.NormalizeOptions(payload.Options),
		Status:        domain.StatusAwaitingChoice,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("Started new story",
		zap.String("owner", owner),
		zap.Int64("sessionID", id),
		zap.String("genre", setup.Genre),
		zap.String("character", setup.Character))
	return session, nil
}

// turnResult carries everything a turn computed before it is applied.
type turnResult struct {
	segment      string
	summary      string
	options      map[string]domain.Option
	outcome      domain.Outcome
	scenarioType domain.ScenarioType
	isFinal      bool
	ending       *domain.EndingSummary
}

// AdvanceStory plays one turn of the session: it resolves the chosen
// option, generates the next segment and applies the resulting state as a
// single unit. Nothing is mutated before every generation step succeeded.
func (s *StoryService) AdvanceStory(ctx context.Context, owner string, sessionID int64, optionKey string) (*domain.StorySession, error) {
	owner = strings.ToLower(owner)

	session, err := s.sessions.GetByID(ctx, owner, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == domain.StatusGenerating {
		return nil, domain.ErrTurnInProgress
	}
	if session.Ended() {
		return nil, domain.ErrStoryEnded
	}
	chosen, ok := session.Options[optionKey]
	if !ok {
		return nil, domain.ErrUnknownOption
	}

	// Persist the generating state so concurrent requests for the same
	// session are rejected instead of racing each other.
	baseTurn := session.Turn
	session.Status = domain.StatusGenerating
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	result, err := s.playTurn(ctx, session, chosen)
	if err != nil {
		s.releaseSession(session)
		return nil, err
	}

	// Stale guard: another writer may have touched the session while we
	// were generating. If the turn moved, this result no longer applies.
	stored, err := s.sessions.GetByID(ctx, owner, sessionID)
	if err != nil {
		s.releaseSession(session)
		return nil, err
	}
	if stored.Turn != baseTurn {
		s.logger.Warn("Dropping stale turn result",
			zap.String("owner", owner),
			zap.Int64("sessionID", sessionID),
			zap.Int("expectedTurn", baseTurn),
			zap.Int("storedTurn", stored.Turn))
		return nil, domain.ErrStaleTurn
	}

	s.applyTurn(session, chosen, result)

	if err := s.sessions.Save(ctx, session); err != nil {
		// The computed state is still returned to the player; only the
		// write failed.
		s.logger.Error("Failed to persist session after turn",
			zap.String("owner", owner),
			zap.Int64("sessionID", sessionID),
			zap.Error(err))
	}

	if result.isFinal {
		s.persistResultAsync(session)
	}
	return session, nil
}

// playTurn runs the generation pipeline for one turn without touching the
// session.
func (s *StoryService) playTurn(ctx context.Context, session *domain.StorySession, chosen domain.Option) (*turnResult, error) {
	result := &turnResult{
		outcome:      domain.OutcomeSuccess,
		scenarioType: domain.ScenarioStandard,
	}

	if session.Turn >= endingTurn {
		var payload struct {
			ai.EndingPayload
			Outcome string `json:"outcome,omitempty"`
		}
		err := s.generateInto(ctx, s.prompts.Ending(prompt.EndingInput{
			Setup:      session.Setup,
			Summary:    session.Summary,
			ChoiceText: chosen.Text,
			Stats:      session.Stats,
		}), &payload, func() error {
			if payload.StorySegment == "" {
				return errors.New("empty storySegment")
			}
			if !payload.IsFinal && len(payload.Options) == 0 {
				return errors.New("continuing segment without options")
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		result.segment = payload.StorySegment
		result.options = payload.Options
		result.isFinal = payload.IsFinal
		if out := domain.Outcome(payload.Outcome); out.Valid() {
			result.outcome = out
		}
	} else {
		result.outcome = s.selector.ResolveOutcome(engine.OutcomeInput{
			Risk:     chosen.Risk,
			Stats:    session.Stats,
			Turn:     session.Turn,
			Outcomes: session.Outcomes,
		})
		result.scenarioType = s.selector.NextScenario(engine.SelectorInput{
			History:      session.ScenarioHistory,
			MoralChoices: session.MoralChoices,
			Outcomes:     session.Outcomes,
			Turn:         session.Turn,
			Stats:        session.Stats,
		})

		var payload ai.TurnPayload
		err := s.generateInto(ctx, s.prompts.Turn(prompt.TurnInput{
			Setup:             session.Setup,
			Summary:           session.Summary,
			PreviousParagraph: session.LastParagraph,
			ChoiceText:        chosen.Text,
			Stats:             session.Stats,
			Outcome:           result.outcome,
			ScenarioType:      result.scenarioType,
			Turn:              session.Turn,
		}), &payload, func() error {
			if payload.StorySegment == "" {
				return errors.New("empty storySegment")
			}
			if len(payload.Options) == 0 {
				return errors.New("no options")
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		result.segment = payload.StorySegment
		result.options = payload.Options
	}

	summary, err := s.generateSummary(ctx, result.segment)
	if err != nil {
		return nil, err
	}
	result.summary = summary

	if result.isFinal {
		var wrapUp ai.WrapUpPayload
		err := s.generateInto(ctx, s.prompts.WrapUp(session.Summary, session.Stats), &wrapUp, func() error {
			if wrapUp.WrapUpParagraph == "" {
				return errors.New("empty wrapUpParagraph")
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		result.ending = &wrapUp
	}

	return result, nil
}

// applyTurn commits a computed turn to the session in one step.
func (s *StoryService) applyTurn(session *domain.StorySession, chosen domain.Option, result *turnResult) {
	session.Stats = engine.UpdateStats(session.Stats, chosen, result.outcome, session.Outcomes)
	session.ScenarioHistory = append(session.ScenarioHistory, result.scenarioType)
	session.MoralChoices = append(session.MoralChoices, chosen.Alignment)
	session.Outcomes = append(session.Outcomes, result.outcome)

	session.Log = append(session.Log, chosen.Text, result.segment)
	session.Summary = append(session.Summary,
		" :USERS CHOICE: "+chosen.Text+" : "+result.summary)
	session.LastParagraph = result.segment
	session.Turn++
	session.UpdatedAt = time.Now()

	if result.isFinal {
		session.Options = nil
		session.Ending = result.ending
		session.Status = domain.StatusEnded
	} else {
		session.Options = ai.NormalizeOptions(result.options)
		session.Status = domain.StatusAwaitingChoice
	}
}

// releaseSession returns a session stuck in generating back to
// awaiting_choice after a failed turn.
func (s *StoryService) releaseSession(session *domain.StorySession) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	session.Status = domain.StatusAwaitingChoice
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Error("Failed to release session after turn failure",
			zap.String("owner", session.Owner),
			zap.Int64("sessionID", session.ID),
			zap.Error(err))
	}
}

// persistResultAsync writes the finished playthrough to the result store in
// the background. The turn response never waits on it.
func (s *StoryService) persistResultAsync(session *domain.StorySession) {
	ending := session.Ending
	result := &domain.GameResult{
		Owner:      session.Owner,
		Character:  session.Setup.Character,
		EndingType: ending.EndingType,
		Score:      ending.OverallScore,
		Breakdown:  ending.ScoreBreakdown,
		CreatedAt:  time.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), resultSaveTimeout)
		defer cancel()

		err := s.results.SaveResult(ctx, result)
		switch {
		case errors.Is(err, domain.ErrDuplicateResult):
			s.logger.Warn("Skipping duplicate game result",
				zap.String("owner", result.Owner),
				zap.String("character", result.Character))
		case err != nil:
			s.logger.Error("Failed to save game result",
				zap.String("owner", result.Owner),
				zap.Error(err))
		default:
			s.logger.Info("Saved game result",
				zap.String("owner", result.Owner),
				zap.Int("score", result.Score),
				zap.String("endingType", result.EndingType))
		}
	}()
}

// GetStory returns one of the owner's sessions.
func (s *StoryService) GetStory(ctx context.Context, owner string, sessionID int64) (*domain.StorySession, error) {
	return s.sessions.GetByID(ctx, strings.ToLower(owner), sessionID)
}

// ListStories returns all of the owner's sessions, newest first.
func (s *StoryService) ListStories(ctx context.Context, owner string) ([]*domain.StorySession, error) {
	return s.sessions.ListByOwner(ctx, strings.ToLower(owner))
}

// DeleteStory removes one of the owner's sessions.
func (s *StoryService) DeleteStory(ctx context.Context, owner string, sessionID int64) error {
	return s.sessions.Delete(ctx, strings.ToLower(owner), sessionID)
}

// Leaderboard returns the top finished playthroughs.
func (s *StoryService) Leaderboard(ctx context.Context, limit int) ([]*domain.GameResult, error) {
	return s.results.Leaderboard(ctx, limit)
}

// ResultsForOwner returns the owner's finished playthroughs.
func (s *StoryService) ResultsForOwner(ctx context.Context, owner string) ([]*domain.GameResult, error) {
	return s.results.ResultsByOwner(ctx, strings.ToLower(owner))
}
