package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"insight-hub/domain/dto"
	"insight-hub/domain/model"
	"insight-hub/domain/repository"
	"insight-hub/infrastructure/archive"
	"insight-hub/infrastructure/logger"
	"insight-hub/infrastructure/pubsub"
	"insight-hub/infrastructure/servicebus"
)

// Request-level failures. Everything platform-level degrades in place
// instead of failing the request.
var (
	ErrCompanyNotFound = errors.New("company not found")
	ErrNoAccess        = errors.New("user has no access to company")
	ErrNoMappings      = errors.New("no account mappings configured")
)

// AnalyticsRequest is one aggregation request.
type AnalyticsRequest struct {
	CompanyID int64
	UserID    string
	Range     dto.DateRange
	// Platforms restricts the report to a subset; empty means all.
	Platforms []model.Platform
	NoCache   bool
}

type IAnalyticsUsecase interface {
	GetCompanyAnalytics(ctx context.Context, req AnalyticsRequest) (*dto.AnalyticsResponse, error)
	SyncStatus(ctx context.Context, companyID int64) ([]model.SyncStatus, error)
	BuildDailySnapshots(ctx context.Context) error
}

// AnalyticsDeps bundles the orchestrator's collaborators. Publisher, alerts
// and archive run degraded as no-ops when their backend is absent.
type AnalyticsDeps struct {
	Companies  repository.ICompany
	Mappings   repository.IAccountMapping
	Normalized repository.INormalizedMetrics
	SyncStates repository.ISyncStatus
	Cache      repository.IAnalyticsCache
	Tokens     repository.ITokenManager
	Clients    []repository.IPlatformClient
	Publisher  pubsub.IEventPublisher
	Alerts     servicebus.IAlertSender
	Archive    archive.IReportArchive
}

// AnalyticsTuning carries the cache and fan-out knobs from configuration.
type AnalyticsTuning struct {
	OnDemandTTL     time.Duration
	OnDemandStale   time.Duration
	SnapshotTTL     time.Duration
	CacheLookback   time.Duration
	FetchTimeout    time.Duration
	FailureAlertMin int
}

func (t *AnalyticsTuning) applyDefaults() {
	if t.OnDemandTTL <= 0 {
		t.OnDemandTTL = time.Hour
	}
	if t.OnDemandStale <= 0 {
		t.OnDemandStale = 30 * time.Minute
	}
	if t.SnapshotTTL <= 0 {
		t.SnapshotTTL = 24 * time.Hour
	}
	if t.CacheLookback <= 0 {
		t.CacheLookback = 30 * 24 * time.Hour
	}
	if t.FetchTimeout <= 0 {
		t.FetchTimeout = 45 * time.Second
	}
	if t.FailureAlertMin <= 0 {
		t.FailureAlertMin = 5
	}
}

type analyticsUsecase struct {
	deps    AnalyticsDeps
	tuning  AnalyticsTuning
	clients map[model.Platform]repository.IPlatformClient
	flight  singleflight.Group
	now     func() time.Time
}

func NewAnalyticsUsecase(deps AnalyticsDeps, tuning AnalyticsTuning) IAnalyticsUsecase {
	tuning.applyDefaults()
	clients := make(map[model.Platform]repository.IPlatformClient, len(deps.Clients))
	for _, c := range deps.Clients {
		clients[c.Platform()] = c
	}
	return &analyticsUsecase{deps: deps, tuning: tuning, clients: clients, now: time.Now}
}

// GetCompanyAnalytics walks the tiers in strict priority order: normalized
// store, daily snapshot, on-demand cache, live fan-out. Each tier
// short-circuits when it produces usable data.
func (u *analyticsUsecase) GetCompanyAnalytics(ctx context.Context, req AnalyticsRequest) (*dto.AnalyticsResponse, error) {
	company, err := u.deps.Companies.GetByID(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, ErrCompanyNotFound
	}
	if req.UserID != "" && req.UserID != company.OwnerUserID {
		ok, err := u.deps.Companies.UserHasAccess(ctx, req.UserID, req.CompanyID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNoAccess
		}
	}
	if req.UserID == "" {
		req.UserID = company.OwnerUserID
	}

	now := u.now()
	rng := req.Range.Normalize(now)
	prev := rng.Previous()

	requested := req.Platforms
	if len(requested) == 0 {
		requested = model.AllPlatforms()
	}
	platformScoped := len(requested) < len(model.AllPlatforms())

	mappings, err := u.resolveMappings(ctx, req.CompanyID, requested)
	if err != nil {
		return nil, err
	}
	if len(mappings) == 0 {
		return nil, ErrNoMappings
	}

	resp := u.newResponse(req.CompanyID, rng, prev)

	if !req.NoCache {
		if done := u.normalizedTier(ctx, req, requested, mappings, rng, prev, resp, now); done {
			return resp, nil
		}
		if !platformScoped {
			if done := u.cacheTier(ctx, req.CompanyID, rng, prev, resp, now); done {
				return resp, nil
			}
		}
	}

	return u.liveTier(ctx, req, requested, mappings, rng, prev, platformScoped)
}

func (u *analyticsUsecase) SyncStatus(ctx context.Context, companyID int64) ([]model.SyncStatus, error) {
	company, err := u.deps.Companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, ErrCompanyNotFound
	}
	return u.deps.SyncStates.List(ctx, companyID)
}

func (u *analyticsUsecase) newResponse(companyID int64, rng, prev dto.DateRange) *dto.AnalyticsResponse {
	return &dto.AnalyticsResponse{
		CompanyID: companyID,
		StartDate: rng.Start.Format("2006-01-02"),
		EndDate:   rng.End.Format("2006-01-02"),
		PrevStart: prev.Start.Format("2006-01-02"),
		PrevEnd:   prev.End.Format("2006-01-02"),
	}
}

// resolveMappings loads account mappings for the requested platforms
// concurrently; a missing mapping is an absence, not an error.
func (u *analyticsUsecase) resolveMappings(ctx context.Context, companyID int64, platforms []model.Platform) (map[model.Platform]*model.AccountMapping, error) {
	var mu sync.Mutex
	mappings := make(map[model.Platform]*model.AccountMapping)
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range platforms {
		platform := p
		g.Go(func() error {
			mapping, err := u.deps.Mappings.Get(gctx, companyID, platform)
			if err != nil {
				return err
			}
			if mapping != nil {
				mu.Lock()
				mappings[platform] = mapping
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return mappings, nil
}

// normalizedTier serves from the precomputed store. A platform that has
// synced and reports all zeros is real data; a platform absent from the
// store is supplemented from old cache or a credential-gated live call.
func (u *analyticsUsecase) normalizedTier(ctx context.Context, req AnalyticsRequest, requested []model.Platform, mappings map[model.Platform]*model.AccountMapping, rng, prev dto.DateRange, resp *dto.AnalyticsResponse, now time.Time) bool {
	normalized, err := u.deps.Normalized.GetRange(ctx, req.CompanyID, rng, prev)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Normalized store read failed - falling through")
		return false
	}
	if len(normalized) == 0 {
		return false
	}

	statuses := u.syncStatusByPlatform(ctx, req.CompanyID)

	var missing []model.Platform
	for _, p := range requested {
		metrics, ok := normalized[p]
		if !ok {
			if statuses[p].HasSynced() {
				// A synced platform with no rows in the window had zero
				// activity; serving old cache here would present stale
				// numbers as current.
				resp.SetData(p, &model.PlatformMetrics{Summary: map[string]float64{}}, dto.SourceCache)
				continue
			}
			missing = append(missing, p)
			continue
		}
		if metrics.IsZero() && !statuses[p].HasSynced() {
			// Zeros from a platform that never synced are a gap, not data.
			missing = append(missing, p)
			continue
		}
		resp.SetData(p, metrics, dto.SourceCache)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, p := range missing {
		platform := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics, source := u.supplementPlatform(ctx, req.UserID, req.CompanyID, platform, mappings[platform], rng, prev, now)
			if metrics != nil {
				mu.Lock()
				resp.SetData(platform, metrics, source)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if !u.hasAnyData(resp, requested) {
		return false
	}

	freshness := dto.DataFreshness{
		Source:    dto.FreshnessNormalized,
		FetchedAt: now,
		Platforms: map[string]dto.PlatformFreshness{},
	}
	for _, p := range requested {
		if status, ok := statuses[p]; ok {
			freshness.Platforms[p.JSONKey()] = dto.PlatformFreshness{
				LastSuccessAt:       status.LastSuccessAt,
				DataEndDate:         status.DataEndDate,
				ConsecutiveFailures: status.ConsecutiveFailures,
			}
		}
	}
	resp.DataFreshness = freshness
	return true
}

// supplementPlatform backfills one platform missing from the normalized
// store: first the newest cached block inside the lookback window, then a
// live call gated on a usable credential.
func (u *analyticsUsecase) supplementPlatform(ctx context.Context, userID string, companyID int64, platform model.Platform, mapping *model.AccountMapping, rng, prev dto.DateRange, now time.Time) (*model.PlatformMetrics, string) {
	entry, err := u.deps.Cache.LatestContaining(ctx, companyID, platform, now.Add(-u.tuning.CacheLookback))
	if err != nil {
		logger.GetLogger().WithField("error", err).WithField("platform", platform).Warn("Cache lookback failed")
	}
	if entry != nil {
		if metrics := platformBlock(entry.Payload, platform); metrics != nil {
			return metrics, dto.SourceCache
		}
	}

	if mapping == nil {
		return nil, ""
	}
	client, ok := u.clients[platform]
	if !ok {
		return nil, ""
	}
	cred, err := u.deps.Tokens.GetCredential(ctx, userID, platform, &mapping.AccountID)
	if err != nil || cred == nil {
		return nil, ""
	}

	fetchCtx, cancel := context.WithTimeout(ctx, u.tuning.FetchTimeout)
	defer cancel()
	metrics, err := client.FetchMetrics(fetchCtx, userID, mapping.AccountID, rng, prev)
	if err != nil {
		logger.GetLogger().WithField("error", err).WithField("platform", platform).Warn("Supplemental live fetch failed")
		return nil, ""
	}
	return metrics, dto.SourceAPI
}

// cacheTier serves the daily snapshot first, then the exact-range on-demand
// entry. Entries not created today, past expiry, or (on-demand) past the
// staleness bound are deleted eagerly and ignored.
func (u *analyticsUsecase) cacheTier(ctx context.Context, companyID int64, rng, prev dto.DateRange, resp *dto.AnalyticsResponse, now time.Time) bool {
	if entry := u.usableEntry(ctx, companyID, model.CacheTypeDailySnapshot, nil, now); entry != nil {
		if u.serveFromEntry(entry, resp) {
			return true
		}
	}
	if entry := u.usableEntry(ctx, companyID, model.CacheTypeAll, &rng, now); entry != nil {
		if u.serveFromEntry(entry, resp) {
			return true
		}
	}
	return false
}

func (u *analyticsUsecase) usableEntry(ctx context.Context, companyID int64, dataType string, rng *dto.DateRange, now time.Time) *model.AnalyticsCacheEntry {
	entry, err := u.deps.Cache.Get(ctx, companyID, dataType, rng)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Cache read failed")
		return nil
	}
	if entry == nil {
		return nil
	}
	stale := !entry.CreatedToday(now) || entry.Expired(now)
	if !stale && dataType == model.CacheTypeAll && now.Sub(entry.CreatedAt) > u.tuning.OnDemandStale {
		stale = true
	}
	if stale {
		if err := u.deps.Cache.Delete(ctx, entry.ID); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Stale cache delete failed")
		}
		return nil
	}
	return entry
}

// serveFromEntry rehydrates a cached merged response. Platform blocks are
// re-tagged as cache-sourced and the freshness descriptor points at the
// entry's creation time.
func (u *analyticsUsecase) serveFromEntry(entry *model.AnalyticsCacheEntry, resp *dto.AnalyticsResponse) bool {
	var cached dto.AnalyticsResponse
	if err := json.Unmarshal(entry.Payload, &cached); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Cache payload decode failed")
		return false
	}
	any := false
	for _, p := range model.AllPlatforms() {
		if metrics := cached.Data(p); metrics != nil {
			resp.SetData(p, metrics, dto.SourceCache)
			any = true
		}
		if msg := cached.Error(p); msg != "" {
			resp.SetError(p, msg)
		}
	}
	if !any {
		return false
	}
	resp.DataFreshness = dto.DataFreshness{Source: dto.FreshnessCache, FetchedAt: entry.CreatedAt}
	return true
}

type fetchResult struct {
	platform model.Platform
	metrics  *model.PlatformMetrics
	err      error
}

// liveTier fans out one fetch per mapped platform, run to completion with
// per-platform failure isolation, then merges, caches and publishes.
func (u *analyticsUsecase) liveTier(ctx context.Context, req AnalyticsRequest, requested []model.Platform, mappings map[model.Platform]*model.AccountMapping, rng, prev dto.DateRange, platformScoped bool) (*dto.AnalyticsResponse, error) {
	key := fmt.Sprintf("%d:%s:%s:%v:%t", req.CompanyID, rng.Start.Format("2006-01-02"), rng.End.Format("2006-01-02"), requested, req.NoCache)
	result, err, _ := u.flight.Do(key, func() (interface{}, error) {
		return u.fetchLive(ctx, req, requested, mappings, rng, prev, platformScoped), nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*dto.AnalyticsResponse), nil
}

func (u *analyticsUsecase) fetchLive(ctx context.Context, req AnalyticsRequest, requested []model.Platform, mappings map[model.Platform]*model.AccountMapping, rng, prev dto.DateRange, platformScoped bool) *dto.AnalyticsResponse {
	now := u.now()
	resp := u.newResponse(req.CompanyID, rng, prev)

	fetchCtx, cancel := context.WithTimeout(ctx, u.tuning.FetchTimeout)
	defer cancel()

	results := make(chan fetchResult, len(requested))
	var wg sync.WaitGroup
	for _, p := range requested {
		mapping, ok := mappings[p]
		if !ok {
			continue
		}
		client, ok := u.clients[p]
		if !ok {
			continue
		}
		platform := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			metrics, err := client.FetchMetrics(fetchCtx, req.UserID, mapping.AccountID, rng, prev)
			results <- fetchResult{platform: platform, metrics: metrics, err: err}
		}()
	}
	wg.Wait()
	close(results)

	errorsByPlatform := map[string]string{}
	for res := range results {
		if res.err == nil {
			resp.SetData(res.platform, res.metrics, dto.SourceAPI)
			if u.deps.Archive != nil {
				u.deps.Archive.Store(ctx, req.CompanyID, res.platform, resp.StartDate, resp.EndDate, res.metrics)
			}
			continue
		}
		kind := u.classifyFailure(res.err)
		errorsByPlatform[string(res.platform)] = kind
		resp.SetError(res.platform, kind)
		logger.GetLogger().
			WithField("platform", res.platform).
			WithField("kind", kind).
			WithField("error", res.err).
			Warn("Platform fetch failed")

		// Stale data beats no data: backfill the failed platform from the
		// newest cached block inside the lookback window.
		entry, cacheErr := u.deps.Cache.LatestContaining(ctx, req.CompanyID, res.platform, now.Add(-u.tuning.CacheLookback))
		if cacheErr == nil && entry != nil {
			if metrics := platformBlock(entry.Payload, res.platform); metrics != nil {
				resp.SetData(res.platform, metrics, dto.SourceCached)
			}
		}

		u.maybeAlert(ctx, req.CompanyID, res.platform, res.err)
	}

	if !platformScoped && !req.NoCache && u.hasAnyData(resp, requested) {
		if payload, err := json.Marshal(resp); err == nil {
			if err := u.deps.Cache.Put(ctx, req.CompanyID, model.CacheTypeAll, &rng, payload, u.tuning.OnDemandTTL); err != nil {
				logger.GetLogger().WithField("error", err).Warn("On-demand cache write failed")
			}
		}
	}

	if u.deps.Publisher != nil {
		event := pubsub.FetchEvent{
			CompanyID:  req.CompanyID,
			RangeStart: resp.StartDate,
			RangeEnd:   resp.EndDate,
			FetchedAt:  now,
			Errors:     errorsByPlatform,
		}
		for _, p := range requested {
			event.Platforms = append(event.Platforms, string(p))
		}
		if err := u.deps.Publisher.PublishFetch(ctx, event); err != nil {
			logger.GetLogger().WithField("error", err).Warn("Fetch event publish failed")
		}
	}

	resp.DataFreshness = dto.DataFreshness{Source: dto.FreshnessAPI, FetchedAt: now}
	return resp
}

// classifyFailure prefers the token layer's typed result and falls back to
// lexical classification of the raw message.
func (u *analyticsUsecase) classifyFailure(err error) string {
	var refreshErr *RefreshError
	if errors.As(err, &refreshErr) {
		if refreshErr.AuthRequired() {
			return ErrKindAuthRequired
		}
		return ErrKindAPIError
	}
	return ClassifyFetchError(err.Error())
}

func (u *analyticsUsecase) maybeAlert(ctx context.Context, companyID int64, platform model.Platform, fetchErr error) {
	if u.deps.Alerts == nil {
		return
	}
	statuses := u.syncStatusByPlatform(ctx, companyID)
	status, ok := statuses[platform]
	if !ok || status.ConsecutiveFailures+1 < u.tuning.FailureAlertMin {
		return
	}
	alert := servicebus.DegradationAlert{
		CompanyID:           companyID,
		Platform:            string(platform),
		ConsecutiveFailures: status.ConsecutiveFailures + 1,
		LastError:           fetchErr.Error(),
		OccurredAt:          u.now(),
	}
	if err := u.deps.Alerts.SendDegradation(ctx, alert); err != nil {
		logger.GetLogger().WithField("error", err).Warn("Degradation alert send failed")
	}
}

func (u *analyticsUsecase) syncStatusByPlatform(ctx context.Context, companyID int64) map[model.Platform]*model.SyncStatus {
	byPlatform := map[model.Platform]*model.SyncStatus{}
	statuses, err := u.deps.SyncStates.List(ctx, companyID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Sync status read failed")
		return byPlatform
	}
	for i := range statuses {
		byPlatform[statuses[i].Platform] = &statuses[i]
	}
	return byPlatform
}

func (u *analyticsUsecase) hasAnyData(resp *dto.AnalyticsResponse, requested []model.Platform) bool {
	for _, p := range requested {
		if resp.Data(p) != nil {
			return true
		}
	}
	return false
}

// platformBlock extracts one platform's metric block from a cached merged
// payload.
func platformBlock(payload json.RawMessage, platform model.Platform) *model.PlatformMetrics {
	var cached dto.AnalyticsResponse
	if err := json.Unmarshal(payload, &cached); err != nil {
		return nil
	}
	return cached.Data(platform)
}

// BuildDailySnapshots runs the out-of-band snapshot job: a full live fetch
// per active company, written as the company's daily_snapshot entry.
func (u *analyticsUsecase) BuildDailySnapshots(ctx context.Context) error {
	companies, err := u.deps.Companies.ListActive(ctx)
	if err != nil {
		return err
	}

	now := u.now()
	rng := dto.DefaultRange(now)
	prev := rng.Previous()
	requested := model.AllPlatforms()

	for _, company := range companies {
		req := AnalyticsRequest{CompanyID: company.ID, UserID: company.OwnerUserID}
		mappings, err := u.resolveMappings(ctx, company.ID, requested)
		if err != nil {
			logger.GetLogger().WithField("error", err).WithField("company_id", company.ID).Warn("Snapshot mapping resolve failed")
			continue
		}
		if len(mappings) == 0 {
			continue
		}

		resp := u.fetchLive(ctx, req, requested, mappings, rng, prev, true)
		if !u.hasAnyData(resp, requested) {
			continue
		}
		payload, err := json.Marshal(resp)
		if err != nil {
			continue
		}
		if err := u.deps.Cache.Put(ctx, company.ID, model.CacheTypeDailySnapshot, nil, payload, u.tuning.SnapshotTTL); err != nil {
			logger.GetLogger().WithField("error", err).WithField("company_id", company.ID).Warn("Snapshot write failed")
		} else {
			logger.GetLogger().WithField("company_id", company.ID).Info("Daily snapshot written")
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}
