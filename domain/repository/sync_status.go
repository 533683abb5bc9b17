package repository

import (
	"context"

	"insight-hub/domain/model"
)

// ISyncStatus reads the per-platform sync records maintained out-of-band.
type ISyncStatus interface {
	List(ctx context.Context, companyID int64) ([]model.SyncStatus, error)
}
