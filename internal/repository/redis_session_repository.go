package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"adventure-server/internal/domain"
)

// minLastParagraphLen guards against persisting sessions whose narrative
// was cut off mid-generation.
const minLastParagraphLen = 20

var _ SessionRepository = (*redisSessionRepository)(nil)

// redisSessionRepository keeps each owner's sessions in a hash keyed by
// session ID, with a separate INCR counter producing monotonic IDs.
type redisSessionRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisSessionRepository creates a Redis-backed SessionRepository.
func NewRedisSessionRepository(client *redis.Client, logger *zap.Logger) SessionRepository {
	return &redisSessionRepository{
		client: client,
		logger: logger.Named("RedisSessionRepo"),
	}
}

func sessionsKey(owner string) string {
	return fmt.Sprintf("stories:%s", strings.ToLower(owner))
}

func counterKey(owner string) string {
	return fmt.Sprintf("stories:%s:next_id", strings.ToLower(owner))
}

func (r *redisSessionRepository) NextID(ctx context.Context, owner string) (int64, error) {
	id, err := r.client.Incr(ctx, counterKey(owner)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate session id: %w", err)
	}
	return id, nil
}

// validateSession rejects sessions with missing or truncated narrative
// state. Sessions that already ended carry their full text in the ending
// summary instead of the options map.
func validateSession(s *domain.StorySession) error {
	if s.Owner == "" || s.ID == 0 {
		return domain.ErrIncompleteSession
	}
	if len(s.LastParagraph) < minLastParagraphLen {
		return domain.ErrIncompleteSession
	}
	if len(s.Log) == 0 || len(s.Summary) == 0 {
		return domain.ErrIncompleteSession
	}
	if !s.Ended() && len(s.Options) == 0 {
		return domain.ErrIncompleteSession
	}
	return nil
}

func (r *redisSessionRepository) Save(ctx context.Context, session *domain.StorySession) error {
	if err := validateSession(session); err != nil {
		r.logger.Warn("Refusing to save incomplete session",
			zap.String("owner", session.Owner),
			zap.Int64("sessionID", session.ID))
		return err
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	field := strconv.FormatInt(session.ID, 10)
	if err := r.client.HSet(ctx, sessionsKey(session.Owner), field, data).Err(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (r *redisSessionRepository) GetByID(ctx context.Context, owner string, id int64) (*domain.StorySession, error) {
	field := strconv.FormatInt(id, 10)
	data, err := r.client.HGet(ctx, sessionsKey(owner), field).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrStoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var session domain.StorySession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %d: %w", id, err)
	}
	return &session, nil
}

func (r *redisSessionRepository) ListByOwner(ctx context.Context, owner string) ([]*domain.StorySession, error) {
	entries, err := r.client.HGetAll(ctx, sessionsKey(owner)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]*domain.StorySession, 0, len(entries))
	for field, data := range entries {
		var session domain.StorySession
		if err := json.Unmarshal([]byte(data), &session); err != nil {
			// A corrupt entry must not hide the rest of the list.
			r.logger.Error("Skipping corrupt session entry",
				zap.String("owner", owner),
				zap.String("field", field),
				zap.Error(err))
			continue
		}
		sessions = append(sessions, &session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ID > sessions[j].ID
	})
	return sessions, nil
}

func (r *redisSessionRepository) Delete(ctx context.Context, owner string, id int64) error {
	field := strconv.FormatInt(id, 10)
	removed, err := r.client.HDel(ctx, sessionsKey(owner), field).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if removed == 0 {
		return domain.ErrStoryNotFound
	}
	return nil
}
