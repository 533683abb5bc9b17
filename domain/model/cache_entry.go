package model

import (
	"encoding/json"
	"time"
)

// Cache entry data-type discriminators.
const (
	CacheTypeDailySnapshot = "daily_snapshot"
	CacheTypeAll           = "all"
)

// AnalyticsCacheEntry is one cached aggregation result.
// daily_snapshot rows are written by the out-of-band snapshot job;
// "all" rows are written by the orchestrator after a live fetch.
type AnalyticsCacheEntry struct {
	ID         int64           `json:"id"`
	CompanyID  int64           `json:"company_id"`
	DataType   string          `json:"data_type"`
	RangeStart *time.Time      `json:"range_start,omitempty"`
	RangeEnd   *time.Time      `json:"range_end,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

// CreatedToday reports whether the row was created on the current calendar
// date. Entries whose creation date differs from today are invalid regardless
// of expires_at.
func (e *AnalyticsCacheEntry) CreatedToday(now time.Time) bool {
	cy, cm, cd := e.CreatedAt.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	return cy == ny && cm == nm && cd == nd
}

// Expired reports whether the row is past its expires_at.
func (e *AnalyticsCacheEntry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}
