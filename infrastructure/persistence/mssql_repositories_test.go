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

func TestCredentialRepositoryMSSQL_Get_NamedPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cipher, err := crypto.NewTokenCipher("test-secret")
	require.NoError(t, err)
	repo := NewCredentialRepositoryMSSQL(db, cipher)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT TOP 1 `+credentialColumns+` FROM oauth_credentials WHERE user_id=@p1 AND platform=@p2 ORDER BY updated_at DESC`)).
		WithArgs("user-1", "google_analytics").
		WillReturnRows(credentialRow(t, cipher, "plain-access", "plain-refresh"))

	cred, err := repo.Get(context.Background(), "user-1", model.PlatformGoogleAnalytics, nil)
	require.NoError(t, err)
	require.NotNil(t, cred)
	require.Equal(t, "plain-access", cred.AccessToken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCredentialRepositoryMSSQL_Upsert_MergesOnIdentity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cipher, err := crypto.NewTokenCipher("test-secret")
	require.NoError(t, err)
	repo := NewCredentialRepositoryMSSQL(db, cipher)

	mock.ExpectExec(`MERGE dbo\.\[oauth_credentials\] AS t`).
		WithArgs("user-1", "linkedin", nil, nil,
			sqlmock.AnyArg(), sqlmock.AnyArg(), nil, "scope-a", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = repo.Upsert(context.Background(), &model.Credential{
		UserID:       "user-1",
		Platform:     model.PlatformLinkedIn,
		AccessToken:  "access",
		RefreshToken: "refresh",
		Scopes:       "scope-a",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsCacheRepositoryMSSQL_LatestContaining_JSONPath(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewAnalyticsCacheRepositoryMSSQL(db)

	since := time.Now().UTC().Add(-30 * 24 * time.Hour)
	mock.ExpectQuery(`JSON_QUERY\(payload, @p4\) IS NOT NULL`).
		WithArgs(int64(1), model.CacheTypeAll, since, "$.searchConsole").
		WillReturnRows(cacheRow(model.CacheTypeAll, nil, `{"searchConsole":{"summary":{"clicks":7}}}`))

	entry, err := repo.LatestContaining(context.Background(), 1, model.PlatformSearchConsole, since)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyRepositoryMSSQL_UserHasAccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewCompanyRepositoryMSSQL(db)

	mock.ExpectQuery(regexp.QuoteMeta(`cu.user_id = @p1`)).
		WithArgs("user-1", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	ok, err := repo.UserHasAccess(context.Background(), "user-1", 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyRepositoryMSSQL_ListActive_BitPredicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo := NewCompanyRepositoryMSSQL(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE active=1 ORDER BY id`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "owner_user_id", "active", "created_at", "updated_at"}).
			AddRow(int64(1), "Acme", "owner-1", true, now, now))

	companies, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, companies, 1)
	require.Equal(t, "Acme", companies[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}
