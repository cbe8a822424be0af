// Package repository defines the persistence interfaces and their Redis and
// Postgres implementations.
package repository

import (
	"context"

	"adventure-server/internal/domain"
)

// SessionRepository stores story sessions. Writes are last-writer-wins; the
// service layer serializes turns before calling Save.
type SessionRepository interface {
	NextID(ctx context.Context, owner string) (int64, error)
	Save(ctx context.Context, session *domain.StorySession) error
	GetByID(ctx context.Context, owner string, id int64) (*domain.StorySession, error)
	ListByOwner(ctx context.Context, owner string) ([]*domain.StorySession, error)
	Delete(ctx context.Context, owner string, id int64) error
}

// ResultRepository stores finished playthrough results for the leaderboard
// and player profiles.
type ResultRepository interface {
	SaveResult(ctx context.Context, result *domain.GameResult) error
	Leaderboard(ctx context.Context, limit int) ([]*domain.GameResult, error)
	ResultsByOwner(ctx context.Context, owner string) ([]*domain.GameResult, error)
}
