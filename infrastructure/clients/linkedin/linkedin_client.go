package linkedin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-querystring/query"

	"insight-hub/domain/dto"
	"insight-hub/domain/model"
	"insight-hub/domain/repository"
)

const defaultBaseURL = "https://api.linkedin.com"

// Client fetches LinkedIn organization page metrics over the REST API. The
// account identifier is the numeric organization ID.
type Client struct {
	tokens  repository.ITokenManager
	http    *http.Client
	baseURL string
}

func NewClient(tokens repository.ITokenManager, httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{tokens: tokens, http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) Platform() model.Platform {
	return model.PlatformLinkedIn
}

type shareStatsQuery struct {
	Q           string `url:"q"`
	Entity      string `url:"organizationalEntity"`
	Granularity string `url:"timeIntervals.timeGranularityType,omitempty"`
	RangeStart  int64  `url:"timeIntervals.timeRange.start,omitempty"`
	RangeEnd    int64  `url:"timeIntervals.timeRange.end,omitempty"`
}

type shareStatsResponse struct {
	Elements []struct {
		TotalShareStatistics struct {
			ShareCount             float64 `json:"shareCount"`
			ClickCount             float64 `json:"clickCount"`
			LikeCount              float64 `json:"likeCount"`
			CommentCount           float64 `json:"commentCount"`
			ImpressionCount        float64 `json:"impressionCount"`
			UniqueImpressionsCount float64 `json:"uniqueImpressionsCount"`
		} `json:"totalShareStatistics"`
		TimeRange *struct {
			Start int64 `json:"start"`
			End   int64 `json:"end"`
		} `json:"timeRange"`
	} `json:"elements"`
}

type networkSizeResponse struct {
	FirstDegreeSize float64 `json:"firstDegreeSize"`
}

func (c *Client) FetchMetrics(ctx context.Context, userID, accountID string, rng, prev dto.DateRange) (*model.PlatformMetrics, error) {
	accessToken, err := c.tokens.Refresh(ctx, userID, model.PlatformLinkedIn, &accountID)
	if err != nil {
		return nil, fmt.Errorf("linkedin token: %w", err)
	}

	orgURN := accountID
	if !strings.HasPrefix(orgURN, "urn:") {
		orgURN = "urn:li:organization:" + accountID
	}

	metrics := &model.PlatformMetrics{
		Summary:  map[string]float64{},
		Previous: map[string]float64{},
	}

	current, err := c.shareStats(ctx, accessToken, orgURN, rng, true)
	if err != nil {
		return nil, err
	}
	for _, el := range current.Elements {
		s := el.TotalShareStatistics
		metrics.Summary["impressions"] += s.ImpressionCount
		metrics.Summary["clicks"] += s.ClickCount
		metrics.Summary["likes"] += s.LikeCount
		metrics.Summary["comments"] += s.CommentCount
		metrics.Summary["shares"] += s.ShareCount
		if el.TimeRange != nil {
			metrics.Series = append(metrics.Series, model.MetricPoint{
				Date:  time.UnixMilli(el.TimeRange.Start).UTC().Format("2006-01-02"),
				Value: s.ImpressionCount,
			})
		}
	}

	previous, err := c.shareStats(ctx, accessToken, orgURN, prev, false)
	if err != nil {
		return nil, err
	}
	for _, el := range previous.Elements {
		s := el.TotalShareStatistics
		metrics.Previous["impressions"] += s.ImpressionCount
		metrics.Previous["clicks"] += s.ClickCount
		metrics.Previous["likes"] += s.LikeCount
		metrics.Previous["comments"] += s.CommentCount
		metrics.Previous["shares"] += s.ShareCount
	}

	followers, err := c.networkSize(ctx, accessToken, orgURN)
	if err != nil {
		return nil, err
	}
	metrics.Summary["followers"] = followers

	return metrics, nil
}

func (c *Client) shareStats(ctx context.Context, accessToken, orgURN string, rng dto.DateRange, daily bool) (*shareStatsResponse, error) {
	q := shareStatsQuery{
		Q:          "organizationalEntity",
		Entity:     orgURN,
		RangeStart: rng.Start.UnixMilli(),
		RangeEnd:   rng.End.Add(24 * time.Hour).UnixMilli(),
	}
	if daily {
		q.Granularity = "DAY"
	}
	out := &shareStatsResponse{}
	if err := c.get(ctx, accessToken, "/v2/organizationalEntityShareStatistics", q, out); err != nil {
		return nil, fmt.Errorf("linkedin share statistics failed: %w", err)
	}
	return out, nil
}

func (c *Client) networkSize(ctx context.Context, accessToken, orgURN string) (float64, error) {
	type edgeQuery struct {
		EdgeType string `url:"edgeType"`
	}
	out := &networkSizeResponse{}
	path := "/v2/networkSizes/" + orgURN
	if err := c.get(ctx, accessToken, path, edgeQuery{EdgeType: "CompanyFollowedByMember"}, out); err != nil {
		return 0, fmt.Errorf("linkedin follower count failed: %w", err)
	}
	return out.FirstDegreeSize, nil
}

func (c *Client) get(ctx context.Context, accessToken, path string, params, out interface{}) error {
	values, err := query.Values(params)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+values.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		// Keep the status text in the message so the caller can classify
		// auth, permission and throttling failures from the error string.
		return fmt.Errorf("status %d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), strings.TrimSpace(string(body)))
	}
	return json.Unmarshal(body, out)
}
