package repository

import (
	"context"

	"insight-hub/domain/model"
)

// ITokenManager is the OAuth token lifecycle contract the orchestrator and
// the platform fetch clients consume. Refresh failures come back as typed
// *usecase.RefreshError values, never panics.
type ITokenManager interface {
	GetCredential(ctx context.Context, userID string, platform model.Platform, identity *string) (*model.Credential, error)
	// Refresh returns a usable access token, refreshing against the provider
	// only when the stored token is within the pre-expiry buffer.
	Refresh(ctx context.Context, userID string, platform model.Platform, identity *string) (string, error)
	Save(ctx context.Context, userID string, platform model.Platform, pair model.TokenPair, identity *string) error
	Disconnect(ctx context.Context, userID string, platform model.Platform, identity *string) error
}
