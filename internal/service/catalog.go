package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"adventure-server/internal/domain"
	"adventure-server/pkg/ai"
)

// genres is the static catalog offered at game start.
var genres = []string{"Fantasy", "Horror", "SciFi", "Mystery"}

// Genres returns the selectable story genres.
func (s *StoryService) Genres() []string {
	out := make([]string, len(genres))
	copy(out, genres)
	return out
}

// GenerateCharacter asks the generation service for a character profile:
// five personality traits, a gender and a short bio for the chosen
// character and genre. The portrait is a static image picked by genre and
// gender.
func (s *StoryService) GenerateCharacter(ctx context.Context, genre, character string) (*domain.CharacterSetup, error) {
	if genre == "" || character == "" {
		return nil, domain.ErrInvalidInput
	}

	var payload ai.CharacterPayload
	err := s.generateInto(ctx, s.prompts.Character(genre, character), &payload, func() error {
		if len(payload.CharacterQuirks) != 5 {
			return fmt.Errorf("expected 5 quirks, got %d", len(payload.CharacterQuirks))
		}
		if payload.CharacterGender == "" || payload.CharacterBio == "" {
			return errors.New("missing gender or bio")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	setup := &domain.CharacterSetup{
		Genre:     genre,
		Character: character,
		Gender:    payload.CharacterGender,
		Traits:    payload.CharacterQuirks,
		Bio:       payload.CharacterBio,
		ImageURL:  characterImage(genre, payload.CharacterGender),
	}

	s.logger.Info("Generated character profile",
		zap.String("genre", genre),
		zap.String("character", character),
		zap.String("gender", setup.Gender))
	return setup, nil
}

// characterImage maps genre and gender onto a predefined portrait path.
func characterImage(genre, gender string) string {
	g := strings.ToLower(genre)
	switch g {
	case "fantasy", "horror", "scifi", "mystery":
	default:
		g = "default"
	}
	sex := strings.ToLower(gender)
	if sex != "male" && sex != "female" {
		sex = "other"
	}
	return fmt.Sprintf("/images/characters/%s_%s.png", g, sex)
}
