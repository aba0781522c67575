package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache keeps a portfolio's serialized snapshot list in redis so
// repeated history reads skip the database. Saving a new snapshot must
// invalidate the portfolio's entry.
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSnapshotCache(rdb *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{rdb: rdb, ttl: ttl}
}

func snapshotKey(portfolioID string) string { return "snapshots:" + portfolioID }

// Get returns the cached list, or ok=false on miss or redis trouble; a cache
// problem is never an error the caller should surface.
func (c *SnapshotCache) Get(ctx context.Context, portfolioID string, dest any) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	b, err := c.rdb.Get(ctx, snapshotKey(portfolioID)).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(b, dest) == nil
}

func (c *SnapshotCache) Set(ctx context.Context, portfolioID string, v any) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, snapshotKey(portfolioID), b, c.ttl).Err()
}

func (c *SnapshotCache) Invalidate(ctx context.Context, portfolioID string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	err := c.rdb.Del(ctx, snapshotKey(portfolioID)).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
