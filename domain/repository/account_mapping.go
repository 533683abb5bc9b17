package repository

import (
	"context"

	"insight-hub/domain/model"
)

// IAccountMapping resolves which provider account a company maps to.
type IAccountMapping interface {
	// Get returns (nil, nil) when no mapping is configured for the platform.
	Get(ctx context.Context, companyID int64, platform model.Platform) (*model.AccountMapping, error)
	ListForCompany(ctx context.Context, companyID int64) ([]model.AccountMapping, error)
}
