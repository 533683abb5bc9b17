package persistence

import (
	"context"
	"database/sql"

	"insight-hub/domain/model"
)

// SyncStatusRepository reads the per-platform sync records maintained by the
// normalization job.
type SyncStatusRepository struct{ db *sql.DB }

func NewSyncStatusRepository(db *sql.DB) *SyncStatusRepository {
	return &SyncStatusRepository{db: db}
}

func (r *SyncStatusRepository) List(ctx context.Context, companyID int64) ([]model.SyncStatus, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT company_id, platform, state, last_success_at, data_end_date, consecutive_failures
		 FROM platform_sync_status WHERE company_id=$1`, companyID)
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
