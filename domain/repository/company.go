package repository

import (
	"context"

	"insight-hub/domain/model"
)

// ICompany reads company rows and owner access.
type ICompany interface {
	GetByID(ctx context.Context, id int64) (*model.Company, error)
	UserHasAccess(ctx context.Context, userID string, companyID int64) (bool, error)
	ListActive(ctx context.Context) ([]model.Company, error)
}
