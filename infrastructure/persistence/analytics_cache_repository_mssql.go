package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"insight-hub/domain/dto"
	"insight-hub/domain/model"
)

// AnalyticsCacheRepositoryMSSQL is the Azure SQL variant used in production.
// Payloads live in NVARCHAR(MAX); platform containment uses JSON path checks.
type AnalyticsCacheRepositoryMSSQL struct{ db *sql.DB }

func NewAnalyticsCacheRepositoryMSSQL(db *sql.DB) *AnalyticsCacheRepositoryMSSQL {
	return &AnalyticsCacheRepositoryMSSQL{db: db}
}

// EnsureAnalyticsCacheSchemaMSSQL creates the analytics_cache table for SQL Server if it does not exist.
func EnsureAnalyticsCacheSchemaMSSQL(db *sql.DB) error {
	ddl := `IF NOT EXISTS (SELECT * FROM sys.objects WHERE object_id = OBJECT_ID(N'dbo.analytics_cache') AND type in (N'U'))
BEGIN
    CREATE TABLE dbo.[analytics_cache] (
        id BIGINT IDENTITY(1,1) PRIMARY KEY,
        company_id BIGINT NOT NULL,
        data_type NVARCHAR(32) NOT NULL,
        range_start DATE NULL,
        range_end DATE NULL,
        payload NVARCHAR(MAX) NOT NULL,
        created_at DATETIME2 NOT NULL,
        expires_at DATETIME2 NOT NULL
    );
    CREATE INDEX IX_analytics_cache_expires_at ON dbo.[analytics_cache](expires_at);
END`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("create analytics_cache (mssql): %w", err)
	}
	return nil
}

func (r *AnalyticsCacheRepositoryMSSQL) Get(ctx context.Context, companyID int64, dataType string, rng *dto.DateRange) (*model.AnalyticsCacheEntry, error) {
	var row *sql.Row
	if rng != nil {
		row = r.db.QueryRowContext(ctx,
			`SELECT TOP 1 `+cacheColumns+` FROM analytics_cache WHERE company_id=@p1 AND data_type=@p2 AND range_start=@p3 AND range_end=@p4`,
			companyID, dataType, rng.Start, rng.End)
	} else {
		row = r.db.QueryRowContext(ctx,
			`SELECT TOP 1 `+cacheColumns+` FROM analytics_cache WHERE company_id=@p1 AND data_type=@p2 ORDER BY created_at DESC`,
			companyID, dataType)
	}
	return scanCacheEntry(row)
}

func (r *AnalyticsCacheRepositoryMSSQL) LatestContaining(ctx context.Context, companyID int64, platform model.Platform, since time.Time) (*model.AnalyticsCacheEntry, error) {
	path := fmt.Sprintf("$.%s", platform.JSONKey())
	row := r.db.QueryRowContext(ctx,
		`SELECT TOP 1 `+cacheColumns+` FROM analytics_cache
		 WHERE company_id=@p1 AND data_type=@p2 AND created_at >= @p3 AND JSON_QUERY(payload, @p4) IS NOT NULL
		 ORDER BY created_at DESC`,
		companyID, model.CacheTypeAll, since, path)
	return scanCacheEntry(row)
}

func (r *AnalyticsCacheRepositoryMSSQL) Put(ctx context.Context, companyID int64, dataType string, rng *dto.DateRange, payload json.RawMessage, ttl time.Duration) error {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	var start, end interface{}
	if rng != nil {
		start, end = rng.Start, rng.End
	}
	q := `MERGE dbo.[analytics_cache] AS t
USING (SELECT @p1 AS company_id, @p2 AS data_type, @p3 AS range_start, @p4 AS range_end) AS s
ON t.company_id = s.company_id AND t.data_type = s.data_type
   AND ISNULL(t.range_start,'00010101') = ISNULL(s.range_start,'00010101')
   AND ISNULL(t.range_end,'00010101') = ISNULL(s.range_end,'00010101')
WHEN MATCHED THEN UPDATE SET payload=@p5, created_at=@p6, expires_at=@p7
WHEN NOT MATCHED THEN INSERT (company_id, data_type, range_start, range_end, payload, created_at, expires_at)
    VALUES (@p1, @p2, @p3, @p4, @p5, @p6, @p7);`
	_, err := r.db.ExecContext(ctx, q, companyID, dataType, start, end, string(payload), now, exp)
	return err
}

func (r *AnalyticsCacheRepositoryMSSQL) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM analytics_cache WHERE id=@p1`, id)
	return err
}
