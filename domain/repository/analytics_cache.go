package repository

import (
	"context"
	"encoding/json"
	"time"

	"insight-hub/domain/dto"
	"insight-hub/domain/model"
)

// IAnalyticsCache is the cache-entry store shared by the daily snapshot job
// and the orchestrator's on-demand tier.
type IAnalyticsCache interface {
	// Get returns the entry for (company, dataType) and, for "all" entries,
	// the exact date range. Returns (nil, nil) on miss.
	Get(ctx context.Context, companyID int64, dataType string, rng *dto.DateRange) (*model.AnalyticsCacheEntry, error)
	// LatestContaining returns the newest "all" entry since the lookback
	// bound whose payload carries data for the given platform, however old.
	LatestContaining(ctx context.Context, companyID int64, platform model.Platform, since time.Time) (*model.AnalyticsCacheEntry, error)
	// Put overwrites the entry for (company, dataType, range) with a TTL.
	Put(ctx context.Context, companyID int64, dataType string, rng *dto.DateRange, payload json.RawMessage, ttl time.Duration) error
	// Delete eagerly removes a stale entry.
	Delete(ctx context.Context, id int64) error
}
