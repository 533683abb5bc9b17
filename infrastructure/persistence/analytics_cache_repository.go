package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"insight-hub/domain/dto"
	"insight-hub/domain/model"
)

// AnalyticsCacheRepository stores aggregation results as JSONB rows shared by
// the daily snapshot job and the orchestrator's on-demand tier.
type AnalyticsCacheRepository struct{ db *sql.DB }

func NewAnalyticsCacheRepository(db *sql.DB) *AnalyticsCacheRepository {
	return &AnalyticsCacheRepository{db: db}
}

const cacheColumns = `id, company_id, data_type, range_start, range_end, payload, created_at, expires_at`

// Get returns the entry for (company, dataType) and, for "all" entries, the
// exact range. Returns (nil, nil) on miss. Expiry and same-day checks are the
// caller's concern; the orchestrator deletes stale rows eagerly.
func (r *AnalyticsCacheRepository) Get(ctx context.Context, companyID int64, dataType string, rng *dto.DateRange) (*model.AnalyticsCacheEntry, error) {
	var row *sql.Row
	if rng != nil {
		row = r.db.QueryRowContext(ctx,
			`SELECT `+cacheColumns+` FROM analytics_cache WHERE company_id=$1 AND data_type=$2 AND range_start=$3 AND range_end=$4`,
			companyID, dataType, rng.Start, rng.End)
	} else {
		row = r.db.QueryRowContext(ctx,
			`SELECT `+cacheColumns+` FROM analytics_cache WHERE company_id=$1 AND data_type=$2 ORDER BY created_at DESC LIMIT 1`,
			companyID, dataType)
	}
	return scanCacheEntry(row)
}

// LatestContaining returns the newest "all" entry since the lookback bound
// whose payload carries a block for the platform, however old within the
// bound. Used to backfill a single failed or never-synced platform.
func (r *AnalyticsCacheRepository) LatestContaining(ctx context.Context, companyID int64, platform model.Platform, since time.Time) (*model.AnalyticsCacheEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+cacheColumns+` FROM analytics_cache
		 WHERE company_id=$1 AND data_type=$2 AND created_at >= $3 AND jsonb_exists(payload, $4)
		 ORDER BY created_at DESC LIMIT 1`,
		companyID, model.CacheTypeAll, since, platform.JSONKey())
	return scanCacheEntry(row)
}

// Put overwrites the entry for (company, dataType, range) with a TTL from now.
func (r *AnalyticsCacheRepository) Put(ctx context.Context, companyID int64, dataType string, rng *dto.DateRange, payload json.RawMessage, ttl time.Duration) error {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	var start, end interface{}
	if rng != nil {
		start, end = rng.Start, rng.End
	}
	q := `INSERT INTO analytics_cache (company_id, data_type, range_start, range_end, payload, created_at, expires_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7)
		  ON CONFLICT (company_id, data_type, COALESCE(range_start, '0001-01-01'::date), COALESCE(range_end, '0001-01-01'::date)) DO UPDATE SET
			payload=EXCLUDED.payload,
			created_at=EXCLUDED.created_at,
			expires_at=EXCLUDED.expires_at`
	_, err := r.db.ExecContext(ctx, q, companyID, dataType, start, end, []byte(payload), now, exp)
	return err
}

// Delete eagerly removes a stale row.
func (r *AnalyticsCacheRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM analytics_cache WHERE id=$1`, id)
	return err
}

func scanCacheEntry(row *sql.Row) (*model.AnalyticsCacheEntry, error) {
	e := &model.AnalyticsCacheEntry{}
	var start, end sql.NullTime
	var raw []byte
	err := row.Scan(&e.ID, &e.CompanyID, &e.DataType, &start, &end, &raw, &e.CreatedAt, &e.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if start.Valid {
		t := start.Time
		e.RangeStart = &t
	}
	if end.Valid {
		t := end.Time
		e.RangeEnd = &t
	}
	e.Payload = json.RawMessage(raw)
	return e, nil
}
