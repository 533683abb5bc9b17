package dto

import (
	"time"

	"insight-hub/domain/model"
)

// Per-platform data-source tags.
const (
	SourceAPI    = "api"    // fetched live in this request
	SourceCache  = "cache"  // served from a valid cache tier
	SourceCached = "cached" // stale cache fallback after a live failure
)

// Freshness tiers for the whole response.
const (
	FreshnessNormalized = "normalized"
	FreshnessCache      = "cache"
	FreshnessAPI        = "api"
)

// PlatformFreshness describes per-platform sync recency when the response is
// served from the normalized store.
type PlatformFreshness struct {
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	DataEndDate         *time.Time `json:"dataEndDate,omitempty"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
}

// DataFreshness tags the tier the response came from.
type DataFreshness struct {
	Source    string                       `json:"source"`
	FetchedAt time.Time                    `json:"fetchedAt"`
	Platforms map[string]PlatformFreshness `json:"platforms,omitempty"`
}

// AnalyticsResponse is the aggregated per-platform report. A platform block
// and its *Error field only coexist when the error was backfilled from cache
// (the block is tagged SourceCached in that case).
type AnalyticsResponse struct {
	CompanyID int64  `json:"companyId"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	PrevStart string `json:"prevStartDate"`
	PrevEnd   string `json:"prevEndDate"`

	GoogleAnalytics      *model.PlatformMetrics `json:"googleAnalytics,omitempty"`
	GoogleAnalyticsError string                 `json:"googleAnalyticsError,omitempty"`
	SearchConsole        *model.PlatformMetrics `json:"searchConsole,omitempty"`
	SearchConsoleError   string                 `json:"searchConsoleError,omitempty"`
	YouTube              *model.PlatformMetrics `json:"youtube,omitempty"`
	YouTubeError         string                 `json:"youtubeError,omitempty"`
	LinkedIn             *model.PlatformMetrics `json:"linkedin,omitempty"`
	LinkedInError        string                 `json:"linkedinError,omitempty"`

	Sources       map[string]string `json:"dataSources,omitempty"`
	DataFreshness DataFreshness     `json:"dataFreshness"`
}

// SetData attaches a metric block for the platform and records where it came
// from. It does not touch the error field: a failed live fetch backfilled
// from cache keeps its error alongside the SourceCached block.
func (r *AnalyticsResponse) SetData(p model.Platform, m *model.PlatformMetrics, source string) {
	if r.Sources == nil {
		r.Sources = map[string]string{}
	}
	r.Sources[p.JSONKey()] = source
	switch p {
	case model.PlatformGoogleAnalytics:
		r.GoogleAnalytics = m
	case model.PlatformSearchConsole:
		r.SearchConsole = m
	case model.PlatformYouTube:
		r.YouTube = m
	case model.PlatformLinkedIn:
		r.LinkedIn = m
	}
}

// SetError records a platform failure.
func (r *AnalyticsResponse) SetError(p model.Platform, msg string) {
	switch p {
	case model.PlatformGoogleAnalytics:
		r.GoogleAnalyticsError = msg
	case model.PlatformSearchConsole:
		r.SearchConsoleError = msg
	case model.PlatformYouTube:
		r.YouTubeError = msg
	case model.PlatformLinkedIn:
		r.LinkedInError = msg
	}
}

// Data returns the metric block currently set for the platform, if any.
func (r *AnalyticsResponse) Data(p model.Platform) *model.PlatformMetrics {
	switch p {
	case model.PlatformGoogleAnalytics:
		return r.GoogleAnalytics
	case model.PlatformSearchConsole:
		return r.SearchConsole
	case model.PlatformYouTube:
		return r.YouTube
	case model.PlatformLinkedIn:
		return r.LinkedIn
	}
	return nil
}

// Error returns the error string currently set for the platform.
func (r *AnalyticsResponse) Error(p model.Platform) string {
	switch p {
	case model.PlatformGoogleAnalytics:
		return r.GoogleAnalyticsError
	case model.PlatformSearchConsole:
		return r.SearchConsoleError
	case model.PlatformYouTube:
		return r.YouTubeError
	case model.PlatformLinkedIn:
		return r.LinkedInError
	}
	return ""
}
