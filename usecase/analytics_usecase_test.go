package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"insight-hub/domain/dto"
	"insight-hub/domain/model"
	"insight-hub/domain/repository"
	"insight-hub/usecase"
)

type MockCompanyRepo struct{ mock.Mock }

func (m *MockCompanyRepo) GetByID(ctx context.Context, id int64) (*model.Company, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Company), args.Error(1)
}

func (m *MockCompanyRepo) UserHasAccess(ctx context.Context, userID string, companyID int64) (bool, error) {
	args := m.Called(ctx, userID, companyID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCompanyRepo) ListActive(ctx context.Context) ([]model.Company, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Company), args.Error(1)
}

type MockMappingRepo struct{ mock.Mock }

func (m *MockMappingRepo) Get(ctx context.Context, companyID int64, platform model.Platform) (*model.AccountMapping, error) {
	args := m.Called(ctx, companyID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccountMapping), args.Error(1)
}

func (m *MockMappingRepo) ListForCompany(ctx context.Context, companyID int64) ([]model.AccountMapping, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.AccountMapping), args.Error(1)
}

type MockNormalizedRepo struct{ mock.Mock }

func (m *MockNormalizedRepo) GetRange(ctx context.Context, companyID int64, rng, prev dto.DateRange) (map[model.Platform]*model.PlatformMetrics, error) {
	args := m.Called(ctx, companyID, rng, prev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[model.Platform]*model.PlatformMetrics), args.Error(1)
}

type MockSyncStatusRepo struct{ mock.Mock }

func (m *MockSyncStatusRepo) List(ctx context.Context, companyID int64) ([]model.SyncStatus, error) {
	args := m.Called(ctx, companyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SyncStatus), args.Error(1)
}

type MockCacheRepo struct{ mock.Mock }

func (m *MockCacheRepo) Get(ctx context.Context, companyID int64, dataType string, rng *dto.DateRange) (*model.AnalyticsCacheEntry, error) {
	args := m.Called(ctx, companyID, dataType, rng)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnalyticsCacheEntry), args.Error(1)
}

func (m *MockCacheRepo) LatestContaining(ctx context.Context, companyID int64, platform model.Platform, since time.Time) (*model.AnalyticsCacheEntry, error) {
	args := m.Called(ctx, companyID, platform, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AnalyticsCacheEntry), args.Error(1)
}

func (m *MockCacheRepo) Put(ctx context.Context, companyID int64, dataType string, rng *dto.DateRange, payload json.RawMessage, ttl time.Duration) error {
	args := m.Called(ctx, companyID, dataType, rng, payload, ttl)
	return args.Error(0)
}

func (m *MockCacheRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockTokenManager struct{ mock.Mock }

func (m *MockTokenManager) GetCredential(ctx context.Context, userID string, platform model.Platform, identity *string) (*model.Credential, error) {
	args := m.Called(ctx, userID, platform, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Credential), args.Error(1)
}

func (m *MockTokenManager) Refresh(ctx context.Context, userID string, platform model.Platform, identity *string) (string, error) {
	args := m.Called(ctx, userID, platform, identity)
	return args.String(0), args.Error(1)
}

func (m *MockTokenManager) Save(ctx context.Context, userID string, platform model.Platform, pair model.TokenPair, identity *string) error {
	args := m.Called(ctx, userID, platform, pair, identity)
	return args.Error(0)
}

func (m *MockTokenManager) Disconnect(ctx context.Context, userID string, platform model.Platform, identity *string) error {
	args := m.Called(ctx, userID, platform, identity)
	return args.Error(0)
}

type MockPlatformClient struct {
	mock.Mock
	platform model.Platform
}

func (m *MockPlatformClient) Platform() model.Platform { return m.platform }

func (m *MockPlatformClient) FetchMetrics(ctx context.Context, userID, accountID string, rng, prev dto.DateRange) (*model.PlatformMetrics, error) {
	args := m.Called(ctx, userID, accountID, rng, prev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PlatformMetrics), args.Error(1)
}

type orchestratorFixture struct {
	companies  *MockCompanyRepo
	mappings   *MockMappingRepo
	normalized *MockNormalizedRepo
	syncStates *MockSyncStatusRepo
	cache      *MockCacheRepo
	tokens     *MockTokenManager
	ga, sc     *MockPlatformClient
	yt, li     *MockPlatformClient
	analytics  usecase.IAnalyticsUsecase
}

func newFixture() *orchestratorFixture {
	f := &orchestratorFixture{
		companies:  new(MockCompanyRepo),
		mappings:   new(MockMappingRepo),
		normalized: new(MockNormalizedRepo),
		syncStates: new(MockSyncStatusRepo),
		cache:      new(MockCacheRepo),
		tokens:     new(MockTokenManager),
		ga:         &MockPlatformClient{platform: model.PlatformGoogleAnalytics},
		sc:         &MockPlatformClient{platform: model.PlatformSearchConsole},
		yt:         &MockPlatformClient{platform: model.PlatformYouTube},
		li:         &MockPlatformClient{platform: model.PlatformLinkedIn},
	}
	f.analytics = usecase.NewAnalyticsUsecase(usecase.AnalyticsDeps{
		Companies:  f.companies,
		Mappings:   f.mappings,
		Normalized: f.normalized,
		SyncStates: f.syncStates,
		Cache:      f.cache,
		Tokens:     f.tokens,
		Clients:    []repository.IPlatformClient{f.ga, f.sc, f.yt, f.li},
	}, usecase.AnalyticsTuning{})
	return f
}

func (f *orchestratorFixture) withCompany() *orchestratorFixture {
	f.companies.On("GetByID", mock.Anything, int64(1)).
		Return(&model.Company{ID: 1, Name: "Acme", OwnerUserID: "owner-1", Active: true}, nil)
	return f
}

func (f *orchestratorFixture) withMapping(p model.Platform, accountID string) *orchestratorFixture {
	f.mappings.On("Get", mock.Anything, int64(1), p).
		Return(&model.AccountMapping{CompanyID: 1, Platform: p, AccountID: accountID}, nil)
	return f
}

func (f *orchestratorFixture) withoutMapping(p model.Platform) *orchestratorFixture {
	f.mappings.On("Get", mock.Anything, int64(1), p).Return(nil, nil)
	return f
}

func mergedPayload(p model.Platform, metrics *model.PlatformMetrics) json.RawMessage {
	resp := &dto.AnalyticsResponse{}
	resp.SetData(p, metrics, dto.SourceAPI)
	raw, _ := json.Marshal(resp)
	return raw
}

func TestGetCompanyAnalytics_CompanyMissing(t *testing.T) {
	f := newFixture()
	f.companies.On("GetByID", mock.Anything, int64(1)).Return(nil, nil)

	_, err := f.analytics.GetCompanyAnalytics(context.Background(), usecase.AnalyticsRequest{CompanyID: 1})
	assert.ErrorIs(t, err, usecase.ErrCompanyNotFound)
}

func TestGetCompanyAnalytics_AccessDenied(t *testing.T) {
	f := newFixture().withCompany()
	f.companies.On("UserHasAccess", mock.Anything, "intruder", int64(1)).Return(false, nil)

	_, err := f.analytics.GetCompanyAnalytics(context.Background(), usecase.AnalyticsRequest{CompanyID: 1, UserID: "intruder"})
	assert.ErrorIs(t, err, usecase.ErrNoAccess)
}

func TestGetCompanyAnalytics_NoMappingsConfigured(t *testing.T) {
	f := newFixture().withCompany()
	for _, p := range model.AllPlatforms() {
		f.withoutMapping(p)
	}

	_, err := f.analytics.GetCompanyAnalytics(context.Background(), usecase.AnalyticsRequest{CompanyID: 1})
	assert.ErrorIs(t, err, usecase.ErrNoMappings)
}

func TestGetCompanyAnalytics_NormalizedTierKeepsSyncedZeros(t *testing.T) {
	f := newFixture().withCompany().
		withMapping(model.PlatformGoogleAnalytics, "123").
		withMapping(model.PlatformSearchConsole, "sc-site")
	f.withoutMapping(model.PlatformYouTube)
	f.withoutMapping(model.PlatformLinkedIn)

	f.normalized.On("GetRange", mock.Anything, int64(1), mock.Anything, mock.Anything).
		Return(map[model.Platform]*model.PlatformMetrics{
			model.PlatformGoogleAnalytics: {Summary: map[string]float64{"sessions": 120}},
			model.PlatformSearchConsole:   {Summary: map[string]float64{"clicks": 0, "impressions": 0}},
		}, nil)
	lastSuccess := time.Now().Add(-2 * time.Hour)
	f.syncStates.On("List", mock.Anything, int64(1)).Return([]model.SyncStatus{
		{CompanyID: 1, Platform: model.PlatformGoogleAnalytics, State: model.SyncStateOK, LastSuccessAt: &lastSuccess},
		{CompanyID: 1, Platform: model.PlatformSearchConsole, State: model.SyncStateOK, LastSuccessAt: &lastSuccess},
	}, nil)
	// Platforms missing from the normalized store fall back to the cache
	// lookback; nothing is cached for them here.
	f.cache.On("LatestContaining", mock.Anything, int64(1), mock.Anything, mock.Anything).Return(nil, nil)

	resp, err := f.analytics.GetCompanyAnalytics(context.Background(), usecase.AnalyticsRequest{CompanyID: 1})
	require.NoError(t, err)

	assert.Equal(t, dto.FreshnessNormalized, resp.DataFreshness.Source)
	require.NotNil(t, resp.GoogleAnalytics)
	assert.Equal(t, float64(120), resp.GoogleAnalytics.Summary["sessions"])
	// A synced platform with all-zero metrics is real data, not a gap.
	require.NotNil(t, resp.SearchConsole)
	assert.Empty(t, resp.SearchConsoleError)
	f.ga.AssertNotCalled(t, "FetchMetrics")
	f.sc.AssertNotCalled(t, "FetchMetrics")
}

func TestGetCompanyAnalytics_SyncedPlatformAbsentFromWindowServedAsZero(t *testing.T) {
	f := newFixture().withCompany().
		withMapping(model.PlatformGoogleAnalytics, "123").
		withMapping(model.PlatformSearchConsole, "sc-site")

	// Search Console has synced but wrote no rows inside the window:
	// zero activity, not a gap to backfill.
	f.normalized.On("GetRange", mock.Anything, int64(1), mock.Anything, mock.Anything).
		Return(map[model.Platform]*model.PlatformMetrics{
			model.PlatformGoogleAnalytics: {Summary: map[string]float64{"sessions": 50}},
		}, nil)
	lastSuccess := time.Now().Add(-3 * time.Hour)
	f.syncStates.On("List", mock.Anything, int64(1)).Return([]model.SyncStatus{
		{CompanyID: 1, Platform: model.PlatformSearchConsole, State: model.SyncStateOK, LastSuccessAt: &lastSuccess},
	}, nil)

	resp, err := f.analytics.GetCompanyAnalytics(context.Background(), usecase.AnalyticsRequest{
		CompanyID: 1,
		Platforms: []model.Platform{model.PlatformGoogleAnalytics, model.PlatformSearchConsole},
	})
	require.NoError(t, err)

	assert.Equal(t, dto.FreshnessNormalized, resp.DataFreshness.Source)
	require.NotNil(t, resp.SearchConsole)
	assert.True(t, resp.SearchConsole.IsZero())
	assert.Equal(t, dto.SourceCache, resp.Sources["searchConsole"])
	f.cache.AssertNotCalled(t, "LatestContaining")
	f.sc.AssertNotCalled(t, "FetchMetrics")
}

func TestGetCompanyAnalytics_NeverSyncedZerosBackfilledFromCache(t *testing.T) {
	f := newFixture().withCompany().
		withMapping(model.PlatformGoogleAnalytics, "123").
		withMapping(model.PlatformSearchConsole, "sc-site")
	f.withoutMapping(model.PlatformYouTube)
	f.withoutMapping(model.PlatformLinkedIn)

	f.normalized.On("GetRange", mock.Anything, int64(1), mock.Anything, mock.Anything).
		Return(map[model.Platform]*model.PlatformMetrics{
			model.PlatformGoogleAnalytics: {Summary: map[string]float64{"sessions": 80}},
			model.PlatformSearchConsole:   {Summary: map[string]float64{"clicks": 0}},
		}, nil)
	f.syncStates.On("List", mock.Anything, int64(1)).Return([]model.SyncStatus{
		{CompanyID: 1, Platform: model.PlatformSearchConsole, State: model.SyncStatePending},
	}, nil)

	cachedSC := &model.PlatformMetrics{Summary: map[string]float64{"clicks": 42}}
	f.cache.On("LatestContaining", mock.Anything, int64(1), model.PlatformSearchConsole, mock.Anything).
		Return(&model.AnalyticsCacheEntry{
			ID: 5, CompanyID: 1, DataType: model.CacheTypeAll,
			Payload:   mergedPayload(model.PlatformSearchConsole, cachedSC),
			CreatedAt: time.Now().Add(-48 * time.Hour),
		}, nil)
	f.cache.On("LatestContaining", mock.Anything, int64(1), mock.Anything, mock.Anything).Return(nil, nil)

	resp, err := f.analytics.GetCompanyAnalytics(context.Background(), usecase.AnalyticsRequest{CompanyID: 1})
	require.NoError(t, err)

	require.NotNil(t, resp.SearchConsole)
	assert.Equal(t, float64(42), resp.SearchConsole.Summary["clicks"])
	assert.Equal(t, dto.SourceCache, resp.Sources["searchConsole"])
}

func TestGetCompanyAnalytics_StaleSnapshotDeletedThenLiveFetch(t *testing.T) {
	f := newFixture().withCompany()
	for _, p := range model.AllPlatforms() {
		f.withMapping(p, "acct-"+string(p))
	}

	f.normalized.On("GetRange", mock.Anything, int64(1), mock.Anything, mock.Anything).
		Return(map[model.Platform]*model.PlatformMetrics{}, nil)

	// Snapshot created yesterday: invalid regardless of expires_at.
	f.cache.On("Get", mock.Anything, int64(1), model.CacheTypeDailySnapshot, (*dto.DateRange)(nil)).
		Return(&model.AnalyticsCacheEntry{
			ID: 11, CompanyID: 1, DataType: model.CacheTypeDailySnapshot,
			CreatedAt: time.Now().Add(-26 * time.Hour),
			ExpiresAt: time.Now().Add(2 * time.Hour),
		}, nil)
	f.cache.On("Delete", mock.Anything, int64(11)).Return(nil).Once()
	f.cache.On("Get", mock.Anything, int64(1), model.CacheTypeAll, mock.Anything).Return(nil, nil)

	live := &model.PlatformMetrics{Summary: map[string]float64{"value": 1}}
	for _, client := range []*MockPlatformClient{f.ga, f.sc, f.yt, f.li} {
		client.On("FetchMetrics", mock.Anything, "owner-1", mock.Anything, mock.Anything, mock.Anything).Return(live, nil)
	}
	f.cache.On("Put", mock.Anything, int64(1), model.CacheTypeAll, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	resp, err := f.analytics.GetCompanyAnalytics(context.Background(), usecase.AnalyticsRequest{CompanyID: 1})
	require.NoError(t, err)

	assert.Equal(t, dto.FreshnessAPI, resp.DataFreshness.Source)
	assert.Equal(t, dto.SourceAPI, resp.Sources["googleAnalytics"])
	f.cache.AssertExpectations(t)
}

func TestGetCompanyAnalytics_PartialFailureIsIsolatedAndBackfilled(t *testing.T) {
	f := newFixture().withCompany()
	for _, p := range model.AllPlatforms() {
		f.withMapping(p, "acct-"+string(p))
	}

	f.normalized.On("GetRange", mock.Anything, int64(1), mock.Anything, mock.Anything).
		Return(map[model.Platform]*model.PlatformMetrics{}, nil)
	f.cache.On("Get", mock.Anything, int64(1), mock.Anything, mock.Anything).Return(nil, nil)

	live := &model.PlatformMetrics{Summary: map[string]float64{"value": 9}}
	f.ga.On("FetchMetrics", mock.Anything, "owner-1", mock.Anything, mock.Anything, mock.Anything).Return(live, nil)
	f.yt.On("FetchMetrics", mock.Anything, "owner-1", mock.Anything, mock.Anything, mock.Anything).Return(live, nil)
	f.li.On("FetchMetrics", mock.Anything, "owner-1", mock.Anything, mock.Anything, mock.Anything).Return(live, nil)
	f.sc.On("FetchMetrics", mock.Anything, "owner-1", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("googleapi: Error 403: insufficient authentication scopes"))

	cachedSC := &model.PlatformMetrics{Summary: map[string]float64{"clicks": 7}}
	f.cache.On("LatestContaining", mock.Anything, int64(1), model.PlatformSearchConsole, mock.Anything).
		Return(&model.AnalyticsCacheEntry{
			ID: 3, CompanyID: 1, DataType: model.CacheTypeAll,
			Payload:   mergedPayload(model.PlatformSearchConsole, cachedSC),
			CreatedAt: time.Now().Add(-20 * 24 * time.Hour),
		}, nil)
	f.syncStates.On("List", mock.Anything, int64(1)).Return([]model.SyncStatus{}, nil)
	f.cache.On("Put", mock.Anything, int64(1), model.CacheTypeAll, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	resp, err := f.analytics.GetCompanyAnalytics(context.Background(), usecase.AnalyticsRequest{CompanyID: 1})
	require.NoError(t, err)

	// The failed platform carries both a typed error and stale cached data.
	assert.Equal(t, "scope_missing", resp.SearchConsoleError)
	require.NotNil(t, resp.SearchConsole)
	assert.Equal(t, float64(7), resp.SearchConsole.Summary["clicks"])
	assert.Equal(t, dto.SourceCached, resp.Sources["searchConsole"])
	// The other three are untouched by the failure.
	require.NotNil(t, resp.GoogleAnalytics)
	require.NotNil(t, resp.YouTube)
	require.NotNil(t, resp.LinkedIn)
	assert.Empty(t, resp.GoogleAnalyticsError)
}

func TestGetCompanyAnalytics_PlatformScopedSkipsCacheWrite(t *testing.T) {
	f := newFixture().withCompany().withMapping(model.PlatformGoogleAnalytics, "123")

	f.normalized.On("GetRange", mock.Anything, int64(1), mock.Anything, mock.Anything).
		Return(map[model.Platform]*model.PlatformMetrics{}, nil)
	live := &model.PlatformMetrics{Summary: map[string]float64{"sessions": 5}}
	f.ga.On("FetchMetrics", mock.Anything, "owner-1", "123", mock.Anything, mock.Anything).Return(live, nil)
	f.syncStates.On("List", mock.Anything, int64(1)).Return([]model.SyncStatus{}, nil)

	resp, err := f.analytics.GetCompanyAnalytics(context.Background(), usecase.AnalyticsRequest{
		CompanyID: 1,
		Platforms: []model.Platform{model.PlatformGoogleAnalytics},
	})
	require.NoError(t, err)

	require.NotNil(t, resp.GoogleAnalytics)
	// A partial result must never overwrite a complete cached entry.
	f.cache.AssertNotCalled(t, "Put")
	// The snapshot tier is skipped entirely for subset requests.
	f.cache.AssertNotCalled(t, "Get")
}

func TestGetCompanyAnalytics_NoCacheBypassesAllCachedTiers(t *testing.T) {
	f := newFixture().withCompany()
	for _, p := range model.AllPlatforms() {
		f.withMapping(p, "acct-"+string(p))
	}

	live := &model.PlatformMetrics{Summary: map[string]float64{"value": 2}}
	for _, client := range []*MockPlatformClient{f.ga, f.sc, f.yt, f.li} {
		client.On("FetchMetrics", mock.Anything, "owner-1", mock.Anything, mock.Anything, mock.Anything).Return(live, nil)
	}
	f.syncStates.On("List", mock.Anything, int64(1)).Return([]model.SyncStatus{}, nil)

	resp, err := f.analytics.GetCompanyAnalytics(context.Background(), usecase.AnalyticsRequest{CompanyID: 1, NoCache: true})
	require.NoError(t, err)

	assert.Equal(t, dto.FreshnessAPI, resp.DataFreshness.Source)
	f.normalized.AssertNotCalled(t, "GetRange")
	f.cache.AssertNotCalled(t, "Put")
}

func TestGetCompanyAnalytics_InvertedRangeRepaired(t *testing.T) {
	f := newFixture().withCompany().withMapping(model.PlatformGoogleAnalytics, "123")

	f.normalized.On("GetRange", mock.Anything, int64(1), mock.MatchedBy(func(rng dto.DateRange) bool {
		return !rng.Start.After(rng.End)
	}), mock.Anything).Return(map[model.Platform]*model.PlatformMetrics{
		model.PlatformGoogleAnalytics: {Summary: map[string]float64{"sessions": 10}},
	}, nil)
	f.syncStates.On("List", mock.Anything, int64(1)).Return([]model.SyncStatus{}, nil)

	start := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	resp, err := f.analytics.GetCompanyAnalytics(context.Background(), usecase.AnalyticsRequest{
		CompanyID: 1,
		Platforms: []model.Platform{model.PlatformGoogleAnalytics},
		Range:     dto.DateRange{Start: start, End: end},
	})
	require.NoError(t, err)

	assert.Equal(t, "2026-03-01", resp.StartDate)
	assert.Equal(t, "2026-03-10", resp.EndDate)
	// Previous period is equal length and immediately preceding.
	assert.Equal(t, "2026-02-28", resp.PrevEnd)
	assert.Equal(t, "2026-02-19", resp.PrevStart)
}
