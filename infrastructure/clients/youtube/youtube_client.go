package youtube

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"insight-hub/domain/dto"
	"insight-hub/domain/model"
	"insight-hub/domain/repository"
)

const topVideoLimit = 10

// Client fetches YouTube channel metrics through the Data API. The account
// identifier is the channel ID.
type Client struct {
	tokens repository.ITokenManager
	opts   []option.ClientOption
}

func NewClient(tokens repository.ITokenManager, opts ...option.ClientOption) *Client {
	return &Client{tokens: tokens, opts: opts}
}

func (c *Client) Platform() model.Platform {
	return model.PlatformYouTube
}

// FetchMetrics reads channel statistics plus the top videos published inside
// the requested window. The Data API exposes lifetime channel counters only,
// so the summary is a point-in-time snapshot and no comparison block or daily
// series is produced.
func (c *Client) FetchMetrics(ctx context.Context, userID, accountID string, rng, prev dto.DateRange) (*model.PlatformMetrics, error) {
	accessToken, err := c.tokens.Refresh(ctx, userID, model.PlatformYouTube, &accountID)
	if err != nil {
		return nil, fmt.Errorf("youtube token: %w", err)
	}

	opts := append([]option.ClientOption{
		option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})),
	}, c.opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}

	channels, err := svc.Channels.List([]string{"statistics"}).Id(accountID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get channel statistics: %w", err)
	}
	if len(channels.Items) == 0 {
		return nil, fmt.Errorf("channel not found: %s", accountID)
	}

	metrics := &model.PlatformMetrics{Summary: map[string]float64{}}
	if stats := channels.Items[0].Statistics; stats != nil {
		metrics.Summary["views"] = float64(stats.ViewCount)
		metrics.Summary["subscribers"] = float64(stats.SubscriberCount)
		metrics.Summary["videos"] = float64(stats.VideoCount)
	}

	search, err := svc.Search.List([]string{"id"}).
		ChannelId(accountID).
		Type("video").
		Order("viewCount").
		PublishedAfter(rng.Start.Format("2006-01-02T15:04:05Z")).
		PublishedBefore(rng.End.Format("2006-01-02T15:04:05Z")).
		MaxResults(topVideoLimit).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to search channel videos: %w", err)
	}

	var videoIDs []string
	for _, item := range search.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			videoIDs = append(videoIDs, item.Id.VideoId)
		}
	}
	if len(videoIDs) > 0 {
		details, err := svc.Videos.List([]string{"snippet", "statistics"}).
			Id(strings.Join(videoIDs, ",")).Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to get video details: %w", err)
		}
		for _, video := range details.Items {
			var views float64
			if video.Statistics != nil {
				views = float64(video.Statistics.ViewCount)
			}
			stat := model.ContentStat{
				ID:    video.Id,
				URL:   "https://www.youtube.com/watch?v=" + video.Id,
				Value: views,
			}
			if video.Snippet != nil {
				stat.Title = video.Snippet.Title
			}
			metrics.TopContent = append(metrics.TopContent, stat)
		}
	}

	return metrics, nil
}
