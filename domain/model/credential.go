package model

import "time"

// Credential is one stored OAuth grant for (user, platform, identity).
// Token fields hold plaintext in memory; the repository encrypts at rest.
type Credential struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"user_id"`
	Platform     Platform   `json:"platform"`
	IdentityRef  *string    `json:"identity_ref,omitempty"`
	IdentityName *string    `json:"identity_name,omitempty"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Scopes       string     `json:"scopes"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TokenPair carries tokens coming back from an OAuth callback or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
	Scopes       string
}
