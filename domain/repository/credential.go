package repository

import (
	"context"

	"insight-hub/domain/model"
)

// ICredential is the durable, encrypted-at-rest credential store.
// Implementations decrypt on read and must surface decryption failures as
// model-level errors, not panics.
type ICredential interface {
	// Get resolves the credential for (user, platform, identity). When
	// identity is non-nil the explicitly linked row wins; otherwise any
	// credential the user holds for the platform is returned.
	Get(ctx context.Context, userID string, platform model.Platform, identity *string) (*model.Credential, error)
	// Upsert inserts or replaces the row keyed by (user, platform) with
	// identity as tiebreak when the schema supports it.
	Upsert(ctx context.Context, cred *model.Credential) error
	// UpdateTokens replaces the access token (and refresh token when the
	// provider rotated it) in place after a successful refresh.
	UpdateTokens(ctx context.Context, id int64, pair model.TokenPair) error
	// Delete removes the grant on explicit disconnect.
	Delete(ctx context.Context, userID string, platform model.Platform, identity *string) error
	// ListForUser returns all credentials a user holds, for the status view.
	ListForUser(ctx context.Context, userID string) ([]model.Credential, error)
}
