package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"insight-hub/domain/dto"
	"insight-hub/domain/model"
)

type fakeRedis struct {
	data map[string][]byte
	dels []string
}

func newFakeRedis() *fakeRedis { return &fakeRedis{data: map[string][]byte{}} }

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	if raw, ok := f.data[key]; ok {
		return redis.NewStringResult(string(raw), nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.data[key] = value.([]byte)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
		f.dels = append(f.dels, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

type stubCacheStore struct {
	entry   *model.AnalyticsCacheEntry
	gets    int
	deleted []int64
}

func (s *stubCacheStore) Get(ctx context.Context, companyID int64, dataType string, rng *dto.DateRange) (*model.AnalyticsCacheEntry, error) {
	s.gets++
	return s.entry, nil
}

func (s *stubCacheStore) LatestContaining(ctx context.Context, companyID int64, platform model.Platform, since time.Time) (*model.AnalyticsCacheEntry, error) {
	return nil, nil
}

func (s *stubCacheStore) Put(ctx context.Context, companyID int64, dataType string, rng *dto.DateRange, payload json.RawMessage, ttl time.Duration) error {
	return nil
}

func (s *stubCacheStore) Delete(ctx context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	s.entry = nil
	return nil
}

func testEntry() *model.AnalyticsCacheEntry {
	now := time.Now().UTC()
	return &model.AnalyticsCacheEntry{
		ID:        11,
		CompanyID: 1,
		DataType:  model.CacheTypeAll,
		Payload:   json.RawMessage(`{"companyId":1}`),
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func testRange() *dto.DateRange {
	return &dto.DateRange{
		Start: time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
	}
}

func TestAnalyticsHotCache_GetMemoizesExactRangeReads(t *testing.T) {
	inner := &stubCacheStore{entry: testEntry()}
	hot := NewAnalyticsHotCache(inner, newFakeRedis(), time.Minute)
	rng := testRange()

	first, err := hot.Get(context.Background(), 1, model.CacheTypeAll, rng)
	require.NoError(t, err)
	require.NotNil(t, first)
	require.Equal(t, 1, inner.gets)

	second, err := hot.Get(context.Background(), 1, model.CacheTypeAll, rng)
	require.NoError(t, err)
	require.NotNil(t, second)
	require.Equal(t, first.ID, second.ID)
	// Served from the hot layer, not the database.
	require.Equal(t, 1, inner.gets)
}

func TestAnalyticsHotCache_DeleteEvictsHotCopy(t *testing.T) {
	inner := &stubCacheStore{entry: testEntry()}
	client := newFakeRedis()
	hot := NewAnalyticsHotCache(inner, client, time.Minute)
	rng := testRange()

	_, err := hot.Get(context.Background(), 1, model.CacheTypeAll, rng)
	require.NoError(t, err)

	require.NoError(t, hot.Delete(context.Background(), 11))
	require.Equal(t, []int64{11}, inner.deleted)
	require.Contains(t, client.dels, hotKey(1, rng))

	// The next read must reach the database, not re-serve the deleted row.
	entry, err := hot.Get(context.Background(), 1, model.CacheTypeAll, rng)
	require.NoError(t, err)
	require.Nil(t, entry)
	require.Equal(t, 2, inner.gets)
}

func TestAnalyticsHotCache_NilClientDelegates(t *testing.T) {
	inner := &stubCacheStore{entry: testEntry()}
	hot := NewAnalyticsHotCache(inner, nil, time.Minute)

	entry, err := hot.Get(context.Background(), 1, model.CacheTypeAll, testRange())
	require.NoError(t, err)
	require.NotNil(t, entry)

	require.NoError(t, hot.Delete(context.Background(), 11))
	require.Equal(t, []int64{11}, inner.deleted)
}
