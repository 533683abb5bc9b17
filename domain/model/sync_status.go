package model

import "time"

// Sync states written by the out-of-band normalization job.
const (
	SyncStateOK      = "ok"
	SyncStateFailed  = "failed"
	SyncStatePending = "pending"
)

// SyncStatus is the per-platform record of the out-of-band sync job.
// LastSuccessAt == nil means the platform has never synced successfully.
type SyncStatus struct {
	CompanyID           int64      `json:"company_id"`
	Platform            Platform   `json:"platform"`
	State               string     `json:"state"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	DataEndDate         *time.Time `json:"data_end_date,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
}

// HasSynced reports whether this platform ever completed a sync.
func (s *SyncStatus) HasSynced() bool {
	return s != nil && s.LastSuccessAt != nil
}
