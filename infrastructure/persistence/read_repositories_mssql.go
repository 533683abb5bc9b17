package persistence

import (
	"context"
	"database/sql"

	"insight-hub/domain/dto"
	"insight-hub/domain/model"
)

// Azure SQL variants of the read-side repositories. Same row shapes as the
// Postgres versions; only placeholders and vendor syntax differ.

type CompanyRepositoryMSSQL struct{ db *sql.DB }

func NewCompanyRepositoryMSSQL(db *sql.DB) *CompanyRepositoryMSSQL {
	return &CompanyRepositoryMSSQL{db: db}
}

// GetByID returns (nil, nil) when the company does not exist.
func (r *CompanyRepositoryMSSQL) GetByID(ctx context.Context, id int64) (*model.Company, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, owner_user_id, active, created_at, updated_at FROM companies WHERE id=@p1`, id)
	c := &model.Company{}
	err := row.Scan(&c.ID, &c.Name, &c.OwnerUserID, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CompanyRepositoryMSSQL) UserHasAccess(ctx context.Context, userID string, companyID int64) (bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM companies c
		 LEFT JOIN company_users cu ON cu.company_id = c.id AND cu.user_id = @p1
		 WHERE c.id = @p2 AND (c.owner_user_id = @p1 OR cu.user_id IS NOT NULL)`,
		userID, companyID)
	var one int
	if err := row.Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *CompanyRepositoryMSSQL) ListActive(ctx context.Context) ([]model.Company, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, owner_user_id, active, created_at, updated_at FROM companies WHERE active=1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c := model.Company{}
		if err := rows.Scan(&c.ID, &c.Name, &c.OwnerUserID, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type AccountMappingRepositoryMSSQL struct{ db *sql.DB }

func NewAccountMappingRepositoryMSSQL(db *sql.DB) *AccountMappingRepositoryMSSQL {
	return &AccountMappingRepositoryMSSQL{db: db}
}

// Get returns (nil, nil) when the platform has no mapping configured.
func (r *AccountMappingRepositoryMSSQL) Get(ctx context.Context, companyID int64, platform model.Platform) (*model.AccountMapping, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, company_id, platform, account_id, account_name, created_at
		 FROM account_mappings WHERE company_id=@p1 AND platform=@p2`,
		companyID, string(platform))
	m := &model.AccountMapping{}
	var name sql.NullString
	err := row.Scan(&m.ID, &m.CompanyID, &m.Platform, &m.AccountID, &name, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if name.Valid {
		m.AccountName = name.String
	}
	return m, nil
}

func (r *AccountMappingRepositoryMSSQL) ListForCompany(ctx context.Context, companyID int64) ([]model.AccountMapping, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, company_id, platform, account_id, account_name, created_at
		 FROM account_mappings WHERE company_id=@p1 ORDER BY platform`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AccountMapping
	for rows.Next() {
		m := model.AccountMapping{}
		var name sql.NullString
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.Platform, &m.AccountID, &name, &m.CreatedAt); err != nil {
			return nil, err
		}
		if name.Valid {
			m.AccountName = name.String
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type NormalizedMetricsRepositoryMSSQL struct{ db *sql.DB }

func NewNormalizedMetricsRepositoryMSSQL(db *sql.DB) *NormalizedMetricsRepositoryMSSQL {
	return &NormalizedMetricsRepositoryMSSQL{db: db}
}

func (r *NormalizedMetricsRepositoryMSSQL) GetRange(ctx context.Context, companyID int64, rng, prev dto.DateRange) (map[model.Platform]*model.PlatformMetrics, error) {
	out := map[model.Platform]*model.PlatformMetrics{}

	if err := r.sumInto(ctx, companyID, rng, out, false); err != nil {
		return nil, err
	}
	if err := r.sumInto(ctx, companyID, prev, out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *NormalizedMetricsRepositoryMSSQL) sumInto(ctx context.Context, companyID int64, rng dto.DateRange, out map[model.Platform]*model.PlatformMetrics, previous bool) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT platform, metric, SUM(value)
		 FROM daily_platform_metrics
		 WHERE company_id=@p1 AND date >= @p2 AND date <= @p3
		 GROUP BY platform, metric`,
		companyID, rng.Start, rng.End)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var platform, metric string
		var value float64
		if err := rows.Scan(&platform, &metric, &value); err != nil {
			return err
		}
		p := model.Platform(platform)
		// The comparison window must not create platform keys the current
		// window does not have.
		block, ok := out[p]
		if !ok {
			if previous {
				continue
			}
			block = &model.PlatformMetrics{Summary: map[string]float64{}, Previous: map[string]float64{}}
			out[p] = block
		}
		if previous {
			block.Previous[metric] = value
		} else {
			block.Summary[metric] = value
		}
	}
	return rows.Err()
}

type SyncStatusRepositoryMSSQL struct{ db *sql.DB }

func NewSyncStatusRepositoryMSSQL(db *sql.DB) *SyncStatusRepositoryMSSQL {
	return &SyncStatusRepositoryMSSQL{db: db}
}

func (r *SyncStatusRepositoryMSSQL) List(ctx context.Context, companyID int64) ([]model.SyncStatus, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT company_id, platform, state, last_success_at, data_end_date, consecutive_failures
		 FROM platform_sync_status WHERE company_id=@p1`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SyncStatus
	for rows.Next() {
		s := model.SyncStatus{}
		var lastSuccess, dataEnd sql.NullTime
		if err := rows.Scan(&s.CompanyID, &s.Platform, &s.State, &lastSuccess, &dataEnd, &s.ConsecutiveFailures); err != nil {
			return nil, err
		}
		if lastSuccess.Valid {
			t := lastSuccess.Time
			s.LastSuccessAt = &t
		}
		if dataEnd.Valid {
			t := dataEnd.Time
			s.DataEndDate = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type UserRepositoryMSSQL struct{ db *sql.DB }

func NewUserRepositoryMSSQL(db *sql.DB) *UserRepositoryMSSQL {
	return &UserRepositoryMSSQL{db: db}
}

func (r *UserRepositoryMSSQL) GetByUserName(ctx context.Context, userName string) (model.User, error) {
	var user model.User
	row := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.name, u.user_name, u.created_at, u.updated_at
		 FROM dbo.[user] AS u WHERE u.user_name = @p1`, userName)
	err := row.Scan(&user.ID, &user.Name, &user.UserName, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return user, err
	}
	return user, nil
}
