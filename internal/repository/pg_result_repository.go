package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"adventure-server/internal/domain"
)

// duplicateWindow is how far back an identical result blocks a new insert.
const duplicateWindow = 24 * time.Hour

const defaultLeaderboardLimit = 50

var _ ResultRepository = (*pgResultRepository)(nil)

type pgResultRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgResultRepository creates a Postgres-backed ResultRepository.
func NewPgResultRepository(pool *pgxpool.Pool, logger *zap.Logger) ResultRepository {
	return &pgResultRepository{
		pool:   pool,
		logger: logger.Named("PgResultRepo"),
	}
}

// SaveResult inserts a finished playthrough. A result with the same owner,
// character, ending type and score within the last 24 hours is treated as a
// duplicate submission and rejected.
func (r *pgResultRepository) SaveResult(ctx context.Context, result *domain.GameResult) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM game_results
			WHERE owner = $1 AND character_name = $2 AND ending_type = $3
			  AND score = $4 AND created_at > $5
		)`,
		result.Owner, result.Character, result.EndingType, result.Score,
		time.Now().Add(-duplicateWindow),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for duplicate result: %w", err)
	}
	if exists {
		return domain.ErrDuplicateResult
	}

	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO game_results
			(owner, character_name, ending_type, score,
			 score_decisions, score_consistency, score_creativity, score_morality,
			 created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		result.Owner, result.Character, result.EndingType, result.Score,
		result.Breakdown.Decisions, result.Breakdown.Consistency,
		result.Breakdown.Creativity, result.Breakdown.Morality,
		result.CreatedAt,
	).Scan(&result.ID)
	if err != nil {
		return fmt.Errorf("failed to insert result: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit result: %w", err)
	}
	return nil
}

const resultColumns = `id, owner, character_name, ending_type, score,
	score_decisions, score_consistency, score_creativity, score_morality, created_at`

func scanResults(rows pgx.Rows) ([]*domain.GameResult, error) {
	defer rows.Close()
	var results []*domain.GameResult
	for rows.Next() {
		var res domain.GameResult
		if err := rows.Scan(
			&res.ID, &res.Owner, &res.Character, &res.EndingType, &res.Score,
			&res.Breakdown.Decisions, &res.Breakdown.Consistency,
			&res.Breakdown.Creativity, &res.Breakdown.Morality,
			&res.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		results = append(results, &res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("result rows error: %w", err)
	}
	return results, nil
}

func (r *pgResultRepository) Leaderboard(ctx context.Context, limit int) ([]*domain.GameResult, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM game_results
		ORDER BY score DESC, created_at ASC
		LIMIT $1`, resultColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	return scanResults(rows)
}

func (r *pgResultRepository) ResultsByOwner(ctx context.Context, owner string) ([]*domain.GameResult, error) {
	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM game_results
		WHERE owner = $1
		ORDER BY created_at DESC`, resultColumns), owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query results for owner: %w", err)
	}
	return scanResults(rows)
}
