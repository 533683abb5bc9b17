package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"insight-hub/infrastructure/logger"
)

// SchemaCapabilities describes which optional columns the backing store
// supports. Decided once at startup; repositories branch on it instead of
// probing per call.
type SchemaCapabilities struct {
	HasIdentityColumn bool
}

// EnsureAnalyticsSchema creates the credential and cache tables if missing.
// Safe to call at startup.
func EnsureAnalyticsSchema(db *sql.DB) error {
	ddls := []string{
		`CREATE TABLE IF NOT EXISTS oauth_credentials (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			identity_ref TEXT,
			identity_name TEXT,
			access_token TEXT NOT NULL,
			refresh_token TEXT,
			expires_at TIMESTAMPTZ,
			scopes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_oauth_credentials_user_platform_identity
			ON oauth_credentials(user_id, platform, COALESCE(identity_ref, ''))`,
		`CREATE TABLE IF NOT EXISTS analytics_cache (
			id BIGSERIAL PRIMARY KEY,
			company_id BIGINT NOT NULL,
			data_type TEXT NOT NULL,
			range_start DATE,
			range_end DATE,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_analytics_cache_company_type_range
			ON analytics_cache(company_id, data_type, COALESCE(range_start, '0001-01-01'::date), COALESCE(range_end, '0001-01-01'::date))`,
	}
	for _, ddl := range ddls {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("ensure analytics schema: %w", err)
		}
	}

	// Helpful index to purge or check expiry
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_analytics_cache_expires_at ON analytics_cache(expires_at)`); err != nil {
		logger.GetLogger().WithField("error", err).Warn("failed creating idx_analytics_cache_expires_at")
	}
	return nil
}

// EnsureAnalyticsSchemaMSSQL creates the credential and cache tables on SQL
// Server. The MSSQL DDL always carries the identity column, so no capability
// probe is needed on this vendor.
func EnsureAnalyticsSchemaMSSQL(db *sql.DB) error {
	if err := EnsureCredentialSchemaMSSQL(db); err != nil {
		return err
	}
	return EnsureAnalyticsCacheSchemaMSSQL(db)
}

// DetectSchemaCapabilities probes optional columns once. Older deployments
// predate the identity_ref column; writes fall back to the base upsert there.
func DetectSchemaCapabilities(db *sql.DB) SchemaCapabilities {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	caps := SchemaCapabilities{}
	exists, err := columnExists(ctx, db, "oauth_credentials", "identity_ref")
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("identity_ref capability probe failed; assuming absent")
		return caps
	}
	caps.HasIdentityColumn = exists
	return caps
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	row := db.QueryRowContext(ctx, `SELECT 1 FROM information_schema.columns WHERE table_name=$1 AND column_name=$2`, table, column)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
