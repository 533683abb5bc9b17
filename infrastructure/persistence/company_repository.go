package persistence

import (
	"context"
	"database/sql"

	"insight-hub/domain/model"
)

// CompanyRepository reads company rows and owner access.
type CompanyRepository struct{ db *sql.DB }

func NewCompanyRepository(db *sql.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// GetByID returns (nil, nil) when the company does not exist.
func (r *CompanyRepository) GetByID(ctx context.Context, id int64) (*model.Company, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, owner_user_id, active, created_at, updated_at FROM companies WHERE id=$1`, id)
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

// UserHasAccess checks ownership or an explicit grant row.
func (r *CompanyRepository) UserHasAccess(ctx context.Context, userID string, companyID int64) (bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM companies c
		 LEFT JOIN company_users cu ON cu.company_id = c.id AND cu.user_id = $1
		 WHERE c.id = $2 AND (c.owner_user_id = $1 OR cu.user_id IS NOT NULL)`,
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

func (r *CompanyRepository) ListActive(ctx context.Context) ([]model.Company, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, owner_user_id, active, created_at, updated_at FROM companies WHERE active ORDER BY id`)
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
