package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"adventure-server/internal/domain"
	"adventure-server/internal/engine"
	"adventure-server/internal/prompt"
)

// --- Mocks ---

type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) NextID(ctx context.Context, owner string) (int64, error) {
	args := m.Called(ctx, owner)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessionRepo) Save(ctx context.Context, session *domain.StorySession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockSessionRepo) GetByID(ctx context.Context, owner string, id int64) (*domain.StorySession, error) {
	args := m.Called(ctx, owner, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StorySession), args.Error(1)
}

func (m *mockSessionRepo) ListByOwner(ctx context.Context, owner string) ([]*domain.StorySession, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.StorySession), args.Error(1)
}

func (m *mockSessionRepo) Delete(ctx context.Context, owner string, id int64) error {
	args := m.Called(ctx, owner, id)
	return args.Error(0)
}

type mockResultRepo struct {
	mock.Mock
}

func (m *mockResultRepo) SaveResult(ctx context.Context, result *domain.GameResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *mockResultRepo) Leaderboard(ctx context.Context, limit int) ([]*domain.GameResult, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.GameResult), args.Error(1)
}

func (m *mockResultRepo) ResultsByOwner(ctx context.Context, owner string) ([]*domain.GameResult, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.GameResult), args.Error(1)
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// --- Fixtures ---

const startReply = `{
	"storyStart": "You wake beneath a sky of slow green auroras, the wreck of your survey ship smoking on the ridge behind you.",
	"options": {
		"option1": {"text": "Search the wreck for supplies", "risk": "low", "alignment": "neutral"},
		"option2": {"text": "Follow the lights over the ridge", "risk": "high", "alignment": "neutral"},
		"option3": {"text": "Signal for help on the emergency band", "risk": "medium", "alignment": "moral"}
	}
}`

const turnReply = `{
	"storySegment": "The corridor splits around a flooded stairwell, and something below answers your footsteps with three slow knocks.",
	"options": {
		"option1": {"text": "Descend into the flooded stairwell", "risk": "high", "alignment": "neutral"},
		"option2": {"text": "Seal the hatch and move on", "risk": "low", "alignment": "immoral"},
		"option3": {"text": "Call out and offer help", "risk": "medium", "alignment": "moral"}
	}
}`

const summaryReply = `{"storySummary": "The explorer advanced deeper, hearing knocks from the flooded stairwell below."}`

const finalReply = `{
	"storySegment": "You step into the light with the relic held high, and the long night over the valley finally breaks.",
	"options": {},
	"isFinal": true
}`

const wrapUpReply = `{
	"wrapUpParagraph": "A ruin-diver who bargained with ghosts and walked out with the dawn.",
	"bigMoment": "Facing the flooded stairwell alone",
	"frequentActivity": "Offering help to things that knock",
	"characterTraitHighlight": "Stubborn curiosity",
	"themeExploration": "A slow song about light returning",
	"overallScore": 84,
	"scoreBreakdown": {"decisions": 80, "consistency": 90, "creativity": 75, "morality": 88},
	"endingType": "Heroic Victory"
}`

func testService(t *testing.T, sessions *mockSessionRepo, results *mockResultRepo, gen *mockGenerator) *StoryService {
	t.Helper()
	builder, err := prompt.NewBuilder(3000)
	require.NoError(t, err)
	selector := engine.NewSelector(engine.NewRand(42), engine.DefaultTunables())
	return NewStoryService(sessions, results, gen, builder, selector, 3, zap.NewNop())
}

func activeSession() *domain.StorySession {
	return &domain.StorySession{
		ID:    7,
		Owner: "0xabc",
		Setup: domain.CharacterSetup{
			Genre:     "SciFi",
			Character: "Juno",
			Gender:    "female",
			Traits:    []string{"curious", "blunt", "loyal"},
			Bio:       "A salvage pilot who hears machines dreaming.",
		},
		Turn:          1,
		Log:           []string{"opening", "choice", "segment"},
		Summary:       []string{"opening summary", " :USERS CHOICE: choice : turn summary"},
		LastParagraph: "The hangar doors groan open onto darkness.",
		Options: map[string]domain.Option{
			"option1": {Text: "Enter the hangar", Risk: domain.RiskHigh, Alignment: domain.AlignmentNeutral},
			"option2": {Text: "Circle around outside", Risk: domain.RiskLow, Alignment: domain.AlignmentNeutral},
		},
		Stats:           domain.PlayerStats{RiskScore: 50, TraitConsistency: 40},
		ScenarioHistory: []domain.ScenarioType{domain.ScenarioStandard},
		MoralChoices:    []domain.MoralAlignment{domain.AlignmentNeutral},
		Outcomes:        []domain.Outcome{domain.OutcomeSuccess},
		Status:          domain.StatusAwaitingChoice,
	}
}

// --- StartStory ---

func TestStartStory_Success(t *testing.T) {
	sessions := new(mockSessionRepo)
	results := new(mockResultRepo)
	gen := new(mockGenerator)
	svc := testService(t, sessions, results, gen)

	sessions.On("NextID", mock.Anything, "0xabc").Return(int64(1), nil)
	gen.On("Generate", mock.Anything, mock.Anything).Return(startReply, nil).Once()
	gen.On("Generate", mock.Anything, mock.Anything).Return(summaryReply, nil).Once()
	sessions.On("Save", mock.Anything, mock.AnythingOfType("*domain.StorySession")).Return(nil)

	setup := domain.CharacterSetup{
		Genre: "SciFi", Character: "Juno", Gender: "female",
		Traits: []string{"curious"}, Bio: "bio",
	}
	session, err := svc.StartStory(context.Background(), "0xABC", setup)
	require.NoError(t, err)

	assert.Equal(t, int64(1), session.ID)
	assert.Equal(t, "0xabc", session.Owner)
	assert.Equal(t, 0, session.Turn)
	assert.Equal(t, domain.StatusAwaitingChoice, session.Status)
	assert.Len(t, session.Log, 1)
	assert.Len(t, session.Summary, 1)
	assert.Len(t, session.Options, 3)
	assert.GreaterOrEqual(t, len(session.LastParagraph), 20)
	for _, opt := range session.Options {
		assert.True(t, opt.Risk.Valid())
		assert.True(t, opt.Alignment.Valid())
	}

	sessions.AssertExpectations(t)
	gen.AssertExpectations(t)
}

func TestStartStory_AllRepliesUnparsable(t *testing.T) {
	sessions := new(mockSessionRepo)
	gen := new(mockGenerator)
	svc := testService(t, sessions, new(mockResultRepo), gen)

	sessions.On("NextID", mock.Anything, "0xabc").Return(int64(1), nil)
	gen.On("Generate", mock.Anything, mock.Anything).Return("no json here at all", nil).Times(3)

	_, err := svc.StartStory(context.Background(), "0xabc", domain.CharacterSetup{Genre: "Fantasy", Character: "x"})
	assert.ErrorIs(t, err, domain.ErrGenerationFailed)
	sessions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// --- AdvanceStory ---

func TestAdvanceStory_HappyTurn(t *testing.T) {
	sessions := new(mockSessionRepo)
	gen := new(mockGenerator)
	svc := testService(t, sessions, new(mockResultRepo), gen)

	session := activeSession()
	sessions.On("GetByID", mock.Anything, "0xabc", int64(7)).Return(session, nil).Once()
	sessions.On("Save", mock.Anything, session).Return(nil)
	gen.On("Generate", mock.Anything, mock.Anything).Return(turnReply, nil).Once()
	gen.On("Generate", mock.Anything, mock.Anything).Return(summaryReply, nil).Once()
	// Stale guard re-read sees the unchanged turn.
	stored := activeSession()
	sessions.On("GetByID", mock.Anything, "0xabc", int64(7)).Return(stored, nil).Once()

	got, err := svc.AdvanceStory(context.Background(), "0xABC", 7, "option1")
	require.NoError(t, err)

	assert.Equal(t, 2, got.Turn)
	assert.Equal(t, domain.StatusAwaitingChoice, got.Status)
	assert.Len(t, got.ScenarioHistory, 2)
	assert.Len(t, got.MoralChoices, 2)
	assert.Len(t, got.Outcomes, 2)
	assert.Len(t, got.Log, 5) // +choice text, +segment
	require.Len(t, got.Summary, 3)
	assert.Contains(t, got.Summary[2], " :USERS CHOICE: Enter the hangar : ")
	assert.Contains(t, got.LastParagraph, "corridor splits")
	assert.Len(t, got.Options, 3)

	// The consumed high-risk option moved the risk score up or the stats
	// otherwise changed within bounds.
	assert.GreaterOrEqual(t, got.Stats.RiskScore, 0)
	assert.LessOrEqual(t, got.Stats.RiskScore, 100)

	sessions.AssertExpectations(t)
	gen.AssertExpectations(t)
}

func TestAdvanceStory_TurnInProgress(t *testing.T) {
	sessions := new(mockSessionRepo)
	svc := testService(t, sessions, new(mockResultRepo), new(mockGenerator))

	session := activeSession()
	session.Status = domain.StatusGenerating
	sessions.On("GetByID", mock.Anything, "0xabc", int64(7)).Return(session, nil)

	_, err := svc.AdvanceStory(context.Background(), "0xabc", 7, "option1")
	assert.ErrorIs(t, err, domain.ErrTurnInProgress)
}

func TestAdvanceStory_StoryEnded(t *testing.T) {
	sessions := new(mockSessionRepo)
	svc := testService(t, sessions, new(mockResultRepo), new(mockGenerator))

	session := activeSession()
	session.Status = domain.StatusEnded
	sessions.On("GetByID", mock.Anything, "0xabc", int64(7)).Return(session, nil)

	_, err := svc.AdvanceStory(context.Background(), "0xabc", 7, "option1")
	assert.ErrorIs(t, err, domain.ErrStoryEnded)
}

func TestAdvanceStory_UnknownOption(t *testing.T) {
	sessions := new(mockSessionRepo)
	svc := testService(t, sessions, new(mockResultRepo), new(mockGenerator))

	sessions.On("GetByID", mock.Anything, "0xabc", int64(7)).Return(activeSession(), nil)

	_, err := svc.AdvanceStory(context.Background(), "0xabc", 7, "option9")
	assert.ErrorIs(t, err, domain.ErrUnknownOption)
}

func TestAdvanceStory_ParseFailureLeavesStateUntouched(t *testing.T) {
	sessions := new(mockSessionRepo)
	gen := new(mockGenerator)
	svc := testService(t, sessions, new(mockResultRepo), gen)

	session := activeSession()
	sessions.On("GetByID", mock.Anything, "0xabc", int64(7)).Return(session, nil)
	sessions.On("Save", mock.Anything, session).Return(nil)
	gen.On("Generate", mock.Anything, mock.Anything).Return("still not json", nil).Times(3)

	_, err := svc.AdvanceStory(context.Background(), "0xabc", 7, "option1")
	require.ErrorIs(t, err, domain.ErrGenerationFailed)

	// The session was released back to awaiting_choice with no turn state
	// applied.
	assert.Equal(t, domain.StatusAwaitingChoice, session.Status)
	assert.Equal(t, 1, session.Turn)
	assert.Len(t, session.Outcomes, 1)
	assert.Len(t, session.Log, 3)
	assert.Len(t, session.Options, 2)
}

func TestAdvanceStory_RejectedAttemptDoesNotBleedIntoNext(t *testing.T) {
	sessions := new(mockSessionRepo)
	gen := new(mockGenerator)
	svc := testService(t, sessions, new(mockResultRepo), gen)

	session := activeSession()
	sessions.On("GetByID", mock.Anything, "0xabc", int64(7)).Return(session, nil)
	sessions.On("Save", mock.Anything, session).Return(nil)

	// The first reply carries a segment but no options; the later ones carry
	// options but no segment. Each attempt must be judged on its own reply,
	// so none of them is acceptable and no patchwork turn gets applied.
	segmentOnly := `{"storySegment": "A lantern gutters out somewhere far above you.", "options": {}}`
	optionsOnly := `{
		"storySegment": "",
		"options": {"option1": {"text": "Climb toward the dark", "risk": "high", "alignment": "neutral"}}
	}`
	gen.On("Generate", mock.Anything, mock.Anything).Return(segmentOnly, nil).Once()
	gen.On("Generate", mock.Anything, mock.Anything).Return(optionsOnly, nil).Times(2)

	_, err := svc.AdvanceStory(context.Background(), "0xabc", 7, "option1")
	require.ErrorIs(t, err, domain.ErrGenerationFailed)

	assert.Equal(t, domain.StatusAwaitingChoice, session.Status)
	assert.Equal(t, 1, session.Turn)
	assert.NotContains(t, session.LastParagraph, "lantern")
	gen.AssertExpectations(t)
}

func TestAdvanceStory_StaleTurnDropped(t *testing.T) {
	sessions := new(mockSessionRepo)
	gen := new(mockGenerator)
	svc := testService(t, sessions, new(mockResultRepo), gen)

	session := activeSession()
	sessions.On("GetByID", mock.Anything, "0xabc", int64(7)).Return(session, nil).Once()
	sessions.On("Save", mock.Anything, session).Return(nil)
	gen.On("Generate", mock.Anything, mock.Anything).Return(turnReply, nil).Once()
	gen.On("Generate", mock.Anything, mock.Anything).Return(summaryReply, nil).Once()

	moved := activeSession()
	moved.Turn = 2
	sessions.On("GetByID", mock.Anything, "0xabc", int64(7)).Return(moved, nil).Once()

	_, err := svc.AdvanceStory(context.Background(), "0xabc", 7, "option1")
	assert.ErrorIs(t, err, domain.ErrStaleTurn)
	assert.Equal(t, 1, session.Turn)
}

func TestAdvanceStory_EndingFlow(t *testing.T) {
	sessions := new(mockSessionRepo)
	results := new(mockResultRepo)
	gen := new(mockGenerator)
	svc := testService(t, sessions, results, gen)

	session := activeSession()
	session.Turn = 8
	sessions.On("GetByID", mock.Anything, "0xabc", int64(7)).Return(session, nil).Once()
	sessions.On("Save", mock.Anything, session).Return(nil)
	gen.On("Generate", mock.Anything, mock.Anything).Return(finalReply, nil).Once()
	gen.On("Generate", mock.Anything, mock.Anything).Return(summaryReply, nil).Once()
	gen.On("Generate", mock.Anything, mock.Anything).Return(wrapUpReply, nil).Once()

	stored := activeSession()
	stored.Turn = 8
	sessions.On("GetByID", mock.Anything, "0xabc", int64(7)).Return(stored, nil).Once()

	saved := make(chan *domain.GameResult, 1)
	results.On("SaveResult", mock.Anything, mock.AnythingOfType("*domain.GameResult")).
		Run(func(args mock.Arguments) {
			saved <- args.Get(1).(*domain.GameResult)
		}).Return(nil)

	got, err := svc.AdvanceStory(context.Background(), "0xabc", 7, "option1")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusEnded, got.Status)
	assert.Empty(t, got.Options)
	require.NotNil(t, got.Ending)
	assert.Equal(t, 84, got.Ending.OverallScore)
	assert.Equal(t, "Heroic Victory", got.Ending.EndingType)

	select {
	case result := <-saved:
		assert.Equal(t, "0xabc", result.Owner)
		assert.Equal(t, "Juno", result.Character)
		assert.Equal(t, 84, result.Score)
		assert.Equal(t, "Heroic Victory", result.EndingType)
	case <-time.After(2 * time.Second):
		t.Fatal("game result was never persisted")
	}
}

func TestAdvanceStory_GeneratorErrorPropagates(t *testing.T) {
	sessions := new(mockSessionRepo)
	gen := new(mockGenerator)
	svc := testService(t, sessions, new(mockResultRepo), gen)

	session := activeSession()
	sessions.On("GetByID", mock.Anything, "0xabc", int64(7)).Return(session, nil)
	sessions.On("Save", mock.Anything, session).Return(nil)
	transportErr := errors.New("connection reset")
	gen.On("Generate", mock.Anything, mock.Anything).Return("", transportErr)

	_, err := svc.AdvanceStory(context.Background(), "0xabc", 7, "option1")
	assert.ErrorIs(t, err, transportErr)
	assert.Equal(t, domain.StatusAwaitingChoice, session.Status)
}

// --- Catalog ---

func TestGenres(t *testing.T) {
	svc := testService(t, new(mockSessionRepo), new(mockResultRepo), new(mockGenerator))
	got := svc.Genres()
	assert.Equal(t, []string{"Fantasy", "Horror", "SciFi", "Mystery"}, got)
}

func TestGenerateCharacter(t *testing.T) {
	gen := new(mockGenerator)
	svc := testService(t, new(mockSessionRepo), new(mockResultRepo), gen)

	const reply = `{
		"characterQuirks": ["curious", "blunt", "loyal", "restless", "superstitious"],
		"characterGender": "female",
		"characterBio": "A salvage pilot who hears machines dreaming."
	}`
	gen.On("Generate", mock.Anything, mock.Anything).Return(reply, nil).Once()

	setup, err := svc.GenerateCharacter(context.Background(), "SciFi", "Juno")
	require.NoError(t, err)
	assert.Len(t, setup.Traits, 5)
	assert.Equal(t, "female", setup.Gender)
	assert.Equal(t, "/images/characters/scifi_female.png", setup.ImageURL)
}

func TestGenerateCharacter_RetriesOnWrongQuirkCount(t *testing.T) {
	gen := new(mockGenerator)
	svc := testService(t, new(mockSessionRepo), new(mockResultRepo), gen)

	short := `{"characterQuirks": ["only one"], "characterGender": "male", "characterBio": "bio"}`
	full := `{"characterQuirks": ["a","b","c","d","e"], "characterGender": "male", "characterBio": "bio"}`
	gen.On("Generate", mock.Anything, mock.Anything).Return(short, nil).Once()
	gen.On("Generate", mock.Anything, mock.Anything).Return(full, nil).Once()

	setup, err := svc.GenerateCharacter(context.Background(), "Horror", "Keeper")
	require.NoError(t, err)
	assert.Len(t, setup.Traits, 5)
}

func TestGenerateCharacter_MissingInput(t *testing.T) {
	svc := testService(t, new(mockSessionRepo), new(mockResultRepo), new(mockGenerator))
	_, err := svc.GenerateCharacter(context.Background(), "", "Juno")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
