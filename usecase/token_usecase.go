package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"insight-hub/domain/model"
	"insight-hub/domain/repository"
	"insight-hub/infrastructure/crypto"
	"insight-hub/infrastructure/logger"
)

// Refresh failure kinds. Callers branch on these to decide between an
// auth-required UI state and a plain retry-later failure.
const (
	RefreshKindNoTokens         = "NO_TOKENS"
	RefreshKindRefreshFailed    = "REFRESH_FAILED"
	RefreshKindDecryptionFailed = "DECRYPTION_FAILED"
	RefreshKindDBError          = "DB_ERROR"
)

// RefreshError is the typed result of a failed token resolution. It is
// always returned, never panicked, so report-building code can pick a
// fallback path.
type RefreshError struct {
	Kind     string
	Platform model.Platform
	// Revoked marks a REFRESH_FAILED where the provider rejected the grant
	// itself; the user must re-authenticate rather than retry.
	Revoked bool
	Err     error
}

func (e *RefreshError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Platform)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Platform, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// AuthRequired reports whether the failure means the user has to go through
// the OAuth flow again.
func (e *RefreshError) AuthRequired() bool {
	return e.Kind == RefreshKindNoTokens || (e.Kind == RefreshKindRefreshFailed && e.Revoked)
}

// IProviderRefresher exchanges a refresh token against one provider's token
// endpoint.
type IProviderRefresher interface {
	RefreshToken(ctx context.Context, platform model.Platform, refreshToken string) (*model.TokenPair, error)
}

// OAuthRefresher implements IProviderRefresher over per-platform oauth2
// endpoint configs.
type OAuthRefresher struct {
	configs map[model.Platform]*oauth2.Config
}

func NewOAuthRefresher(configs map[model.Platform]*oauth2.Config) *OAuthRefresher {
	return &OAuthRefresher{configs: configs}
}

func (r *OAuthRefresher) RefreshToken(ctx context.Context, platform model.Platform, refreshToken string) (*model.TokenPair, error) {
	cfg, ok := r.configs[platform]
	if ok && cfg != nil {
		token, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
		if err != nil {
			return nil, err
		}
		pair := &model.TokenPair{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
		}
		if !token.Expiry.IsZero() {
			expiry := token.Expiry
			pair.ExpiresAt = &expiry
		}
		return pair, nil
	}
	return nil, fmt.Errorf("no oauth config for platform %s", platform)
}

type ITokenUsecase interface {
	repository.ITokenManager
	List(ctx context.Context, userID string) ([]model.Credential, error)
}

type tokenUsecase struct {
	creds     repository.ICredential
	refresher IProviderRefresher
	buffer    time.Duration
	now       func() time.Time
}

// NewTokenUsecase builds the token lifecycle manager. The pre-expiry buffer
// keeps a token that is about to lapse from being handed to an in-flight
// request.
func NewTokenUsecase(creds repository.ICredential, refresher IProviderRefresher) ITokenUsecase {
	return &tokenUsecase{
		creds:     creds,
		refresher: refresher,
		buffer:    5 * time.Minute,
		now:       time.Now,
	}
}

// GetCredential resolves the stored grant. A row whose tokens cannot be
// decrypted is treated the same as no row at all, logged distinctly so key
// rotations are visible.
func (u *tokenUsecase) GetCredential(ctx context.Context, userID string, platform model.Platform, identity *string) (*model.Credential, error) {
	cred, err := u.creds.Get(ctx, userID, platform, identity)
	if err != nil {
		if errors.Is(err, crypto.ErrDecrypt) {
			logger.GetLogger().
				WithField("user_id", userID).
				WithField("platform", platform).
				Warn("Credential decryption failed - treating as absent")
			return nil, nil
		}
		return nil, err
	}
	return cred, nil
}

func (u *tokenUsecase) Refresh(ctx context.Context, userID string, platform model.Platform, identity *string) (string, error) {
	cred, err := u.creds.Get(ctx, userID, platform, identity)
	if err != nil {
		if errors.Is(err, crypto.ErrDecrypt) {
			return "", &RefreshError{Kind: RefreshKindDecryptionFailed, Platform: platform, Err: err}
		}
		return "", &RefreshError{Kind: RefreshKindDBError, Platform: platform, Err: err}
	}
	if cred == nil {
		return "", &RefreshError{Kind: RefreshKindNoTokens, Platform: platform}
	}

	now := u.now()
	if cred.ExpiresAt == nil || now.Before(cred.ExpiresAt.Add(-u.buffer)) {
		return cred.AccessToken, nil
	}

	if cred.RefreshToken == "" {
		return "", &RefreshError{
			Kind: RefreshKindRefreshFailed, Platform: platform, Revoked: true,
			Err: errors.New("access token expired and no refresh token stored"),
		}
	}

	pair, err := u.refresher.RefreshToken(ctx, platform, cred.RefreshToken)
	if err != nil {
		refreshErr := &RefreshError{
			Kind: RefreshKindRefreshFailed, Platform: platform,
			Revoked: grantRevoked(err), Err: err,
		}
		logger.GetLogger().
			WithField("user_id", userID).
			WithField("platform", platform).
			WithField("revoked", refreshErr.Revoked).
			WithField("error", err).
			Warn("Token refresh failed")
		return "", refreshErr
	}

	if pair.RefreshToken == "" {
		// The provider did not rotate the refresh token.
		pair.RefreshToken = cred.RefreshToken
	}
	if err := u.creds.UpdateTokens(ctx, cred.ID, *pair); err != nil {
		return "", &RefreshError{Kind: RefreshKindDBError, Platform: platform, Err: err}
	}
	return pair.AccessToken, nil
}

func (u *tokenUsecase) Save(ctx context.Context, userID string, platform model.Platform, pair model.TokenPair, identity *string) error {
	cred := &model.Credential{
		UserID:       userID,
		Platform:     platform,
		IdentityRef:  identity,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
		Scopes:       pair.Scopes,
	}
	return u.creds.Upsert(ctx, cred)
}

func (u *tokenUsecase) Disconnect(ctx context.Context, userID string, platform model.Platform, identity *string) error {
	return u.creds.Delete(ctx, userID, platform, identity)
}

func (u *tokenUsecase) List(ctx context.Context, userID string) ([]model.Credential, error) {
	return u.creds.ListForUser(ctx, userID)
}

// grantRevoked inspects a provider token-endpoint failure for the error
// codes that mean the grant itself is dead.
func grantRevoked(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch retrieveErr.ErrorCode {
		case "invalid_grant", "unauthorized_client", "access_denied":
			return true
		}
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "invalid_grant") ||
		strings.Contains(lower, "token has been expired or revoked")
}
