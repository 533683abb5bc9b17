package persistence

import (
	"context"
	"database/sql"

	"insight-hub/domain/model"
)

// AccountMappingRepository resolves company → provider account links.
type AccountMappingRepository struct{ db *sql.DB }

func NewAccountMappingRepository(db *sql.DB) *AccountMappingRepository {
	return &AccountMappingRepository{db: db}
}

// Get returns (nil, nil) when the platform has no mapping configured.
func (r *AccountMappingRepository) Get(ctx context.Context, companyID int64, platform model.Platform) (*model.AccountMapping, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, company_id, platform, account_id, account_name, created_at
		 FROM account_mappings WHERE company_id=$1 AND platform=$2`,
		companyID, platform)
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

func (r *AccountMappingRepository) ListForCompany(ctx context.Context, companyID int64) ([]model.AccountMapping, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, company_id, platform, account_id, account_name, created_at
		 FROM account_mappings WHERE company_id=$1 ORDER BY platform`, companyID)
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
