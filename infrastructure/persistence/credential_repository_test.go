package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"insight-hub/domain/model"
	"insight-hub/infrastructure/crypto"
)

func newCredentialRepo(t *testing.T, caps SchemaCapabilities) (*CredentialRepository, sqlmock.Sqlmock, *crypto.TokenCipher) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cipher, err := crypto.NewTokenCipher("test-secret")
	require.NoError(t, err)
	return NewCredentialRepository(db, cipher, caps), mock, cipher
}

func credentialRow(t *testing.T, cipher *crypto.TokenCipher, access, refresh string) *sqlmock.Rows {
	t.Helper()
	accessEnc, err := cipher.Encrypt(access)
	require.NoError(t, err)
	refreshEnc, err := cipher.Encrypt(refresh)
	require.NoError(t, err)

	now := time.Now().UTC()
	exp := now.Add(time.Hour)
	return sqlmock.NewRows([]string{"id", "user_id", "platform", "identity_ref", "identity_name",
		"access_token", "refresh_token", "expires_at", "scopes", "created_at", "updated_at"}).
		AddRow(int64(7), "user-1", "google_analytics", nil, nil, accessEnc, refreshEnc, exp, "scope-a", now, now)
}

func TestCredentialRepository_Get_DecryptsTokens(t *testing.T) {
	repo, mock, cipher := newCredentialRepo(t, SchemaCapabilities{})

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT `+credentialColumns+` FROM oauth_credentials WHERE user_id=$1 AND platform=$2 ORDER BY updated_at DESC LIMIT 1`)).
		WithArgs("user-1", model.PlatformGoogleAnalytics).
		WillReturnRows(credentialRow(t, cipher, "plain-access", "plain-refresh"))

	cred, err := repo.Get(context.Background(), "user-1", model.PlatformGoogleAnalytics, nil)
	require.NoError(t, err)
	require.NotNil(t, cred)
	require.Equal(t, int64(7), cred.ID)
	require.Equal(t, "plain-access", cred.AccessToken)
	require.Equal(t, "plain-refresh", cred.RefreshToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_Get_MissReturnsNilNil(t *testing.T) {
	repo, mock, _ := newCredentialRepo(t, SchemaCapabilities{})

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT `+credentialColumns+` FROM oauth_credentials WHERE user_id=$1 AND platform=$2 ORDER BY updated_at DESC LIMIT 1`)).
		WithArgs("user-1", model.PlatformLinkedIn).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	cred, err := repo.Get(context.Background(), "user-1", model.PlatformLinkedIn, nil)
	require.NoError(t, err)
	require.Nil(t, cred)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_Get_IdentityRowWins(t *testing.T) {
	repo, mock, cipher := newCredentialRepo(t, SchemaCapabilities{HasIdentityColumn: true})

	identity := "sc-site"
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT `+credentialColumns+` FROM oauth_credentials WHERE user_id=$1 AND platform=$2 AND identity_ref=$3`)).
		WithArgs("user-1", model.PlatformSearchConsole, identity).
		WillReturnRows(credentialRow(t, cipher, "identity-access", "identity-refresh"))

	cred, err := repo.Get(context.Background(), "user-1", model.PlatformSearchConsole, &identity)
	require.NoError(t, err)
	require.NotNil(t, cred)
	require.Equal(t, "identity-access", cred.AccessToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_Get_DecryptFailureSurfacesErrDecrypt(t *testing.T) {
	repo, mock, _ := newCredentialRepo(t, SchemaCapabilities{})

	otherCipher, err := crypto.NewTokenCipher("some-other-secret")
	require.NoError(t, err)
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT `+credentialColumns+` FROM oauth_credentials WHERE user_id=$1 AND platform=$2 ORDER BY updated_at DESC LIMIT 1`)).
		WithArgs("user-1", model.PlatformYouTube).
		WillReturnRows(credentialRow(t, otherCipher, "access", "refresh"))

	_, err = repo.Get(context.Background(), "user-1", model.PlatformYouTube, nil)
	require.ErrorIs(t, err, crypto.ErrDecrypt)
}

func TestCredentialRepository_Upsert_IdentityConflictTarget(t *testing.T) {
	repo, mock, _ := newCredentialRepo(t, SchemaCapabilities{HasIdentityColumn: true})

	mock.ExpectExec(`ON CONFLICT \(user_id, platform, COALESCE\(identity_ref, ''\)\)`).
		WithArgs("user-1", model.PlatformGoogleAnalytics, nil, nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(), nil, "scope-a", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Upsert(context.Background(), &model.Credential{
		UserID:       "user-1",
		Platform:     model.PlatformGoogleAnalytics,
		AccessToken:  "access",
		RefreshToken: "refresh",
		Scopes:       "scope-a",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_Upsert_LegacyConflictTarget(t *testing.T) {
	repo, mock, _ := newCredentialRepo(t, SchemaCapabilities{})

	mock.ExpectExec(`ON CONFLICT \(user_id, platform\)`).
		WithArgs("user-1", model.PlatformLinkedIn,
			sqlmock.AnyArg(), sqlmock.AnyArg(), nil, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Upsert(context.Background(), &model.Credential{
		UserID:      "user-1",
		Platform:    model.PlatformLinkedIn,
		AccessToken: "access",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_UpdateTokens_KeepsStoredRefresh(t *testing.T) {
	repo, mock, _ := newCredentialRepo(t, SchemaCapabilities{})

	// No rotated refresh token: the UPDATE must not touch refresh_token.
	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE oauth_credentials SET access_token=$1, expires_at=$2, updated_at=$3 WHERE id=$4`)).
		WithArgs(sqlmock.AnyArg(), nil, sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateTokens(context.Background(), 7, model.TokenPair{AccessToken: "rotated-access"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_UpdateTokens_PersistsRotatedRefresh(t *testing.T) {
	repo, mock, _ := newCredentialRepo(t, SchemaCapabilities{})

	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE oauth_credentials SET access_token=$1, refresh_token=$2, expires_at=$3, updated_at=$4 WHERE id=$5`)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), nil, sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateTokens(context.Background(), 7, model.TokenPair{AccessToken: "a", RefreshToken: "rotated"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepository_Delete_ScopedToIdentity(t *testing.T) {
	repo, mock, _ := newCredentialRepo(t, SchemaCapabilities{HasIdentityColumn: true})

	identity := "chan-1"
	mock.ExpectExec(regexp.QuoteMeta(
		`DELETE FROM oauth_credentials WHERE user_id=$1 AND platform=$2 AND identity_ref=$3`)).
		WithArgs("user-1", model.PlatformYouTube, identity).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), "user-1", model.PlatformYouTube, &identity)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
