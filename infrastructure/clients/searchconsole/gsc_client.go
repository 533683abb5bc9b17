package searchconsole

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/searchconsole/v1"

	"insight-hub/domain/dto"
	"insight-hub/domain/model"
	"insight-hub/domain/repository"
)

const topQueryLimit = 10

// Client fetches Search Console performance data. The account identifier is
// the verified site URL (or sc-domain: property).
type Client struct {
	tokens repository.ITokenManager
	opts   []option.ClientOption
}

func NewClient(tokens repository.ITokenManager, opts ...option.ClientOption) *Client {
	return &Client{tokens: tokens, opts: opts}
}

func (c *Client) Platform() model.Platform {
	return model.PlatformSearchConsole
}

func (c *Client) FetchMetrics(ctx context.Context, userID, accountID string, rng, prev dto.DateRange) (*model.PlatformMetrics, error) {
	accessToken, err := c.tokens.Refresh(ctx, userID, model.PlatformSearchConsole, &accountID)
	if err != nil {
		return nil, fmt.Errorf("search console token: %w", err)
	}

	opts := append([]option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})),
	}, c.opts...)
	svc, err := searchconsole.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create search console service: %w", err)
	}

	metrics := &model.PlatformMetrics{
		Summary:  map[string]float64{},
		Previous: map[string]float64{},
	}

	current, err := c.query(ctx, svc, accountID, rng, nil, 1)
	if err != nil {
		return nil, fmt.Errorf("search console query failed: %w", err)
	}
	fillTotals(metrics.Summary, current)

	previous, err := c.query(ctx, svc, accountID, prev, nil, 1)
	if err != nil {
		return nil, fmt.Errorf("search console comparison query failed: %w", err)
	}
	fillTotals(metrics.Previous, previous)

	byDate, err := c.query(ctx, svc, accountID, rng, []string{"date"}, int64(rng.Days())+1)
	if err != nil {
		return nil, fmt.Errorf("search console series query failed: %w", err)
	}
	for _, row := range byDate.Rows {
		if len(row.Keys) == 0 {
			continue
		}
		metrics.Series = append(metrics.Series, model.MetricPoint{Date: row.Keys[0], Value: row.Clicks})
	}
	sort.Slice(metrics.Series, func(i, j int) bool { return metrics.Series[i].Date < metrics.Series[j].Date })

	byQuery, err := c.query(ctx, svc, accountID, rng, []string{"query"}, topQueryLimit)
	if err != nil {
		return nil, fmt.Errorf("search console top query failed: %w", err)
	}
	for _, row := range byQuery.Rows {
		if len(row.Keys) == 0 {
			continue
		}
		metrics.TopContent = append(metrics.TopContent, model.ContentStat{Title: row.Keys[0], Value: row.Clicks})
	}

	return metrics, nil
}

func (c *Client) query(ctx context.Context, svc *searchconsole.Service, siteURL string, rng dto.DateRange, dims []string, limit int64) (*searchconsole.SearchAnalyticsQueryResponse, error) {
	req := &searchconsole.SearchAnalyticsQueryRequest{
		StartDate:  rng.Start.Format("2006-01-02"),
		EndDate:    rng.End.Format("2006-01-02"),
		Dimensions: dims,
		RowLimit:   limit,
	}
	return svc.Searchanalytics.Query(siteURL, req).Context(ctx).Do()
}

// fillTotals sums every returned row into the target map. A dimensionless
// query yields a single totals row; summing keeps this safe either way.
func fillTotals(target map[string]float64, resp *searchconsole.SearchAnalyticsQueryResponse) {
	var clicks, impressions, position float64
	for _, row := range resp.Rows {
		clicks += row.Clicks
		impressions += row.Impressions
		position += row.Position
	}
	target["clicks"] = clicks
	target["impressions"] = impressions
	if impressions > 0 {
		target["ctr"] = clicks / impressions
	}
	if n := len(resp.Rows); n > 0 {
		target["position"] = position / float64(n)
	}
}
