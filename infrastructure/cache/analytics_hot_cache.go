package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"insight-hub/domain/dto"
	"insight-hub/domain/model"
	"insight-hub/domain/repository"
	"insight-hub/infrastructure/logger"
)

// RedisCommands is the slice of the go-redis client the hot layer uses.
type RedisCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AnalyticsHotCache fronts the durable cache store with a short-lived redis
// layer for exact-range "all" lookups, the hottest read on the dashboard.
// The database row stays authoritative: callers re-validate created-at and
// expiry on whatever comes back, so a briefly stale redis copy is harmless.
type AnalyticsHotCache struct {
	inner  repository.IAnalyticsCache
	client RedisCommands
	ttl    time.Duration

	mu   sync.Mutex
	keys map[int64]string // entry id -> hot key, for eviction on delete
}

func NewAnalyticsHotCache(inner repository.IAnalyticsCache, client RedisCommands, ttl time.Duration) *AnalyticsHotCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &AnalyticsHotCache{inner: inner, client: client, ttl: ttl, keys: map[int64]string{}}
}

func hotKey(companyID int64, rng *dto.DateRange) string {
	return fmt.Sprintf("analytics:%d:all:%s:%s",
		companyID, rng.Start.Format("2006-01-02"), rng.End.Format("2006-01-02"))
}

func (c *AnalyticsHotCache) Get(ctx context.Context, companyID int64, dataType string, rng *dto.DateRange) (*model.AnalyticsCacheEntry, error) {
	if c.client != nil && dataType == model.CacheTypeAll && rng != nil {
		if raw, err := c.client.Get(ctx, hotKey(companyID, rng)).Bytes(); err == nil {
			entry := &model.AnalyticsCacheEntry{}
			if json.Unmarshal(raw, entry) == nil {
				return entry, nil
			}
		} else if err != redis.Nil {
			logger.GetLogger().WithField("error", err).Debug("hot cache read failed")
		}
	}
	entry, err := c.inner.Get(ctx, companyID, dataType, rng)
	if err != nil || entry == nil {
		return entry, err
	}
	c.store(ctx, entry, rng)
	return entry, nil
}

func (c *AnalyticsHotCache) LatestContaining(ctx context.Context, companyID int64, platform model.Platform, since time.Time) (*model.AnalyticsCacheEntry, error) {
	return c.inner.LatestContaining(ctx, companyID, platform, since)
}

func (c *AnalyticsHotCache) Put(ctx context.Context, companyID int64, dataType string, rng *dto.DateRange, payload json.RawMessage, ttl time.Duration) error {
	if err := c.inner.Put(ctx, companyID, dataType, rng, payload, ttl); err != nil {
		return err
	}
	if entry, err := c.inner.Get(ctx, companyID, dataType, rng); err == nil && entry != nil {
		c.store(ctx, entry, rng)
	}
	return nil
}

// Delete removes the durable row and evicts the redis copy, so the next Get
// does not re-serve an already-deleted entry for the rest of the hot TTL.
func (c *AnalyticsHotCache) Delete(ctx context.Context, id int64) error {
	if err := c.inner.Delete(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	key, ok := c.keys[id]
	delete(c.keys, id)
	c.mu.Unlock()
	if ok && c.client != nil {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			logger.GetLogger().WithField("error", err).Debug("hot cache evict failed")
		}
	}
	return nil
}

func (c *AnalyticsHotCache) store(ctx context.Context, entry *model.AnalyticsCacheEntry, rng *dto.DateRange) {
	if c.client == nil || entry.DataType != model.CacheTypeAll || rng == nil {
		return
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	key := hotKey(entry.CompanyID, rng)
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		logger.GetLogger().WithField("error", err).Debug("hot cache write failed")
		return
	}
	c.mu.Lock()
	c.keys[entry.ID] = key
	c.mu.Unlock()
}
