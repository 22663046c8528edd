package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"flomentum/domain/core"
	"flomentum/domain/scoring"
	"flomentum/ports"
)

// scoreTTL bounds cache residence; the freshness invariant is enforced by
// the scoring service, not by expiry.
const scoreTTL = 48 * time.Hour

// ScoreCacheImpl implements ScoreCache on Redis
type ScoreCacheImpl struct {
	rdb *redis.Client
}

// NewScoreCache creates a Redis-backed score cache
func NewScoreCache(rdb *redis.Client) ports.ScoreCache {
	return &ScoreCacheImpl{rdb: rdb}
}

func scoreKey(userID core.UserID, kind scoring.Kind, date core.LocalDate) string {
	return fmt.Sprintf("score:%s:%s:%s", userID, kind, date)
}

// GetScore returns the cached score for (user, kind, date), nil on miss
func (c *ScoreCacheImpl) GetScore(ctx context.Context, userID core.UserID, kind scoring.Kind, date core.LocalDate) (*scoring.Score, error) {
	raw, err := c.rdb.Get(ctx, scoreKey(userID, kind, date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrExternalStore, err)
	}
	var score scoring.Score
	if err := json.Unmarshal(raw, &score); err != nil {
		return nil, fmt.Errorf("unmarshal cached score: %w", err)
	}
	return &score, nil
}

// PutScore stores a computed score
func (c *ScoreCacheImpl) PutScore(ctx context.Context, userID core.UserID, score *scoring.Score) error {
	payload, err := json.Marshal(score)
	if err != nil {
		return err
	}
	err = c.rdb.Set(ctx, scoreKey(userID, score.Kind, score.LocalDate), payload, scoreTTL).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrExternalStore, err)
	}
	return nil
}

// InvalidateDay drops every cached score for one local date
func (c *ScoreCacheImpl) InvalidateDay(ctx context.Context, userID core.UserID, date core.LocalDate) error {
	keys := make([]string, 0, len(scoring.Kinds))
	for _, kind := range scoring.Kinds {
		keys = append(keys, scoreKey(userID, kind, date))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrExternalStore, err)
	}
	return nil
}
