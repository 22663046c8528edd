package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"flomentum/domain/core"
	"flomentum/domain/insight"
	"flomentum/ports"
)

// staleRetention keeps expired entries retrievable for the labelled
// stale fallback before Redis drops them for good.
const staleRetention = 30 * 24 * time.Hour

// InsightCacheImpl implements InsightCache on Redis. Two keys per entry:
// an exact fingerprint key and a "latest" pointer per (user, biomarker)
// that survives fingerprint changes for the stale fallback.
type InsightCacheImpl struct {
	rdb *redis.Client
}

// NewInsightCache creates a Redis-backed insight cache
func NewInsightCache(rdb *redis.Client) ports.InsightCache {
	return &InsightCacheImpl{rdb: rdb}
}

func insightKey(userID core.UserID, biomarkerID core.BiomarkerID, fingerprint string) string {
	return fmt.Sprintf("insight:%s:%s:%s", userID, biomarkerID, fingerprint)
}

func latestKey(userID core.UserID, biomarkerID core.BiomarkerID) string {
	return fmt.Sprintf("insight:%s:%s:latest", userID, biomarkerID)
}

// Get returns the entry for an exact fingerprint, nil on miss or expiry
func (c *InsightCacheImpl) Get(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID, fingerprint string) (*insight.CacheEntry, error) {
	entry, err := c.load(ctx, insightKey(userID, biomarkerID, fingerprint))
	if err != nil || entry == nil {
		return nil, err
	}
	if entry.Expired(time.Now().UTC()) {
		return nil, nil
	}
	return entry, nil
}

// GetAny returns the most recent entry regardless of fingerprint or expiry
func (c *InsightCacheImpl) GetAny(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID) (*insight.CacheEntry, error) {
	return c.load(ctx, latestKey(userID, biomarkerID))
}

// Put stores the entry under both its fingerprint key and the latest pointer
func (c *InsightCacheImpl) Put(ctx context.Context, entry *insight.CacheEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	key := insightKey(entry.UserID, entry.BiomarkerID, entry.Fingerprint)

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, key, payload, staleRetention)
	pipe.Set(ctx, latestKey(entry.UserID, entry.BiomarkerID), payload, staleRetention)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrExternalStore, err)
	}
	return nil
}

func (c *InsightCacheImpl) load(ctx context.Context, key string) (*insight.CacheEntry, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrExternalStore, err)
	}
	var entry insight.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal cached insight %s: %w", key, err)
	}
	return &entry, nil
}
