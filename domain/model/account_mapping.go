package model

import "time"

// AccountMapping links a company to one provider account
// (GA property, GSC site, YouTube channel, LinkedIn organization).
type AccountMapping struct {
	ID          int64     `json:"id"`
	CompanyID   int64     `json:"company_id"`
	Platform    Platform  `json:"platform"`
	AccountID   string    `json:"account_id"`
	AccountName string    `json:"account_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
