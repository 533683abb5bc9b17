package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"insight-hub/domain/dto"
	"insight-hub/domain/model"
)

func newCacheRepo(t *testing.T) (*AnalyticsCacheRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewAnalyticsCacheRepository(db), mock
}

func cacheRow(dataType string, rng *dto.DateRange, payload string) *sqlmock.Rows {
	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "company_id", "data_type", "range_start", "range_end", "payload", "created_at", "expires_at"})
	if rng != nil {
		return rows.AddRow(int64(3), int64(1), dataType, rng.Start, rng.End, []byte(payload), now, now.Add(time.Hour))
	}
	return rows.AddRow(int64(3), int64(1), dataType, nil, nil, []byte(payload), now, now.Add(time.Hour))
}

func TestAnalyticsCacheRepository_Get_ExactRange(t *testing.T) {
	repo, mock := newCacheRepo(t)

	rng := dto.DateRange{
		Start: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
	}
	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT `+cacheColumns+` FROM analytics_cache WHERE company_id=$1 AND data_type=$2 AND range_start=$3 AND range_end=$4`)).
		WithArgs(int64(1), model.CacheTypeAll, rng.Start, rng.End).
		WillReturnRows(cacheRow(model.CacheTypeAll, &rng, `{"companyId":1}`))

	entry, err := repo.Get(context.Background(), 1, model.CacheTypeAll, &rng)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, model.CacheTypeAll, entry.DataType)
	require.NotNil(t, entry.RangeStart)
	require.Equal(t, rng.Start, *entry.RangeStart)
	require.JSONEq(t, `{"companyId":1}`, string(entry.Payload))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsCacheRepository_Get_SnapshotIgnoresRange(t *testing.T) {
	repo, mock := newCacheRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT `+cacheColumns+` FROM analytics_cache WHERE company_id=$1 AND data_type=$2 ORDER BY created_at DESC LIMIT 1`)).
		WithArgs(int64(1), model.CacheTypeDailySnapshot).
		WillReturnRows(cacheRow(model.CacheTypeDailySnapshot, nil, `{"companyId":1}`))

	entry, err := repo.Get(context.Background(), 1, model.CacheTypeDailySnapshot, nil)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Nil(t, entry.RangeStart)
	require.Nil(t, entry.RangeEnd)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsCacheRepository_Get_MissReturnsNilNil(t *testing.T) {
	repo, mock := newCacheRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM analytics_cache`).
		WithArgs(int64(9), model.CacheTypeDailySnapshot).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	entry, err := repo.Get(context.Background(), 9, model.CacheTypeDailySnapshot, nil)
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestAnalyticsCacheRepository_LatestContaining_FiltersByPlatformKey(t *testing.T) {
	repo, mock := newCacheRepo(t)

	since := time.Now().UTC().Add(-30 * 24 * time.Hour)
	mock.ExpectQuery(`jsonb_exists\(payload, \$4\)`).
		WithArgs(int64(1), model.CacheTypeAll, since, "searchConsole").
		WillReturnRows(cacheRow(model.CacheTypeAll, nil, `{"searchConsole":{"summary":{"clicks":7}}}`))

	entry, err := repo.LatestContaining(context.Background(), 1, model.PlatformSearchConsole, since)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsCacheRepository_Put_SnapshotWritesNullRange(t *testing.T) {
	repo, mock := newCacheRepo(t)

	mock.ExpectExec(`INSERT INTO analytics_cache`).
		WithArgs(int64(1), model.CacheTypeDailySnapshot, nil, nil, []byte(`{"companyId":1}`), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Put(context.Background(), 1, model.CacheTypeDailySnapshot, nil, []byte(`{"companyId":1}`), 24*time.Hour)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsCacheRepository_Put_OnDemandCarriesRange(t *testing.T) {
	repo, mock := newCacheRepo(t)

	rng := dto.DateRange{
		Start: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
	}
	mock.ExpectExec(`ON CONFLICT \(company_id, data_type, COALESCE`).
		WithArgs(int64(1), model.CacheTypeAll, rng.Start, rng.End, []byte(`{}`), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Put(context.Background(), 1, model.CacheTypeAll, &rng, []byte(`{}`), time.Hour)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsCacheRepository_Delete(t *testing.T) {
	repo, mock := newCacheRepo(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM analytics_cache WHERE id=$1`)).
		WithArgs(int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), 11))
	require.NoError(t, mock.ExpectationsWereMet())
}
