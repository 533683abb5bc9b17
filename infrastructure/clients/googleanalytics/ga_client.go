package googleanalytics

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/oauth2"
	"google.golang.org/api/analyticsdata/v1beta"
	"google.golang.org/api/option"

	"insight-hub/domain/dto"
	"insight-hub/domain/model"
	"insight-hub/domain/repository"
)

const topContentLimit = 10

// Client fetches Google Analytics (GA4) metrics through the Analytics Data
// API. A service is built per call from a freshly refreshed access token so a
// long-lived client never holds a stale bearer.
type Client struct {
	tokens repository.ITokenManager
	opts   []option.ClientOption
}

func NewClient(tokens repository.ITokenManager, opts ...option.ClientOption) *Client {
	return &Client{tokens: tokens, opts: opts}
}

func (c *Client) Platform() model.Platform {
	return model.PlatformGoogleAnalytics
}

// FetchMetrics runs three reports against the GA4 property: summary totals
// over the current and previous windows, a daily sessions series, and the top
// pages by views.
func (c *Client) FetchMetrics(ctx context.Context, userID, accountID string, rng, prev dto.DateRange) (*model.PlatformMetrics, error) {
	accessToken, err := c.tokens.Refresh(ctx, userID, model.PlatformGoogleAnalytics, &accountID)
	if err != nil {
		return nil, fmt.Errorf("google analytics token: %w", err)
	}

	opts := append([]option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})),
	}, c.opts...)
	svc, err := analyticsdata.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create analytics data service: %w", err)
	}

	property := "properties/" + accountID
	metrics := &model.PlatformMetrics{
		Summary:  map[string]float64{},
		Previous: map[string]float64{},
	}

	summaryReq := &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{
			{StartDate: rng.Start.Format("2006-01-02"), EndDate: rng.End.Format("2006-01-02")},
			{StartDate: prev.Start.Format("2006-01-02"), EndDate: prev.End.Format("2006-01-02")},
		},
		Metrics: []*analyticsdata.Metric{
			{Name: "sessions"},
			{Name: "activeUsers"},
			{Name: "screenPageViews"},
			{Name: "averageSessionDuration"},
		},
	}
	summary, err := svc.Properties.RunReport(property, summaryReq).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google analytics report failed: %w", err)
	}
	for _, row := range summary.Rows {
		// With two date ranges the API appends a dateRange dimension.
		target := metrics.Summary
		if len(row.DimensionValues) > 0 && row.DimensionValues[0].Value == "date_range_1" {
			target = metrics.Previous
		}
		for i, mv := range row.MetricValues {
			if i < len(summaryReq.Metrics) {
				target[summaryReq.Metrics[i].Name] = parseMetric(mv.Value)
			}
		}
	}

	seriesReq := &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{
			{StartDate: rng.Start.Format("2006-01-02"), EndDate: rng.End.Format("2006-01-02")},
		},
		Dimensions: []*analyticsdata.Dimension{{Name: "date"}},
		Metrics:    []*analyticsdata.Metric{{Name: "sessions"}},
	}
	series, err := svc.Properties.RunReport(property, seriesReq).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google analytics series report failed: %w", err)
	}
	for _, row := range series.Rows {
		if len(row.DimensionValues) == 0 || len(row.MetricValues) == 0 {
			continue
		}
		metrics.Series = append(metrics.Series, model.MetricPoint{
			Date:  formatReportDate(row.DimensionValues[0].Value),
			Value: parseMetric(row.MetricValues[0].Value),
		})
	}
	sort.Slice(metrics.Series, func(i, j int) bool { return metrics.Series[i].Date < metrics.Series[j].Date })

	pagesReq := &analyticsdata.RunReportRequest{
		DateRanges: []*analyticsdata.DateRange{
			{StartDate: rng.Start.Format("2006-01-02"), EndDate: rng.End.Format("2006-01-02")},
		},
		Dimensions: []*analyticsdata.Dimension{{Name: "pagePath"}, {Name: "pageTitle"}},
		Metrics:    []*analyticsdata.Metric{{Name: "screenPageViews"}},
		OrderBys: []*analyticsdata.OrderBy{
			{Metric: &analyticsdata.MetricOrderBy{MetricName: "screenPageViews"}, Desc: true},
		},
		Limit: topContentLimit,
	}
	pages, err := svc.Properties.RunReport(property, pagesReq).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("google analytics pages report failed: %w", err)
	}
	for _, row := range pages.Rows {
		if len(row.DimensionValues) < 2 || len(row.MetricValues) == 0 {
			continue
		}
		metrics.TopContent = append(metrics.TopContent, model.ContentStat{
			URL:   row.DimensionValues[0].Value,
			Title: row.DimensionValues[1].Value,
			Value: parseMetric(row.MetricValues[0].Value),
		})
	}

	return metrics, nil
}

func parseMetric(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// formatReportDate converts the API's YYYYMMDD dimension value to ISO dates.
func formatReportDate(s string) string {
	if len(s) != 8 {
		return s
	}
	return s[:4] + "-" + s[4:6] + "-" + s[6:]
}
