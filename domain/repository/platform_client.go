package repository

import (
	"context"

	"insight-hub/domain/dto"
	"insight-hub/domain/model"
)

// IPlatformClient is the uniform fetch capability one provider exposes.
// Implementations ask the token manager for a fresh access token before each
// live call and return errors whose text is lexically classifiable
// (auth / scope / rate limit substrings).
type IPlatformClient interface {
	Platform() model.Platform
	// FetchMetrics fetches the metric block for the account over the range
	// plus the preceding comparison period.
	FetchMetrics(ctx context.Context, userID, accountID string, rng, prev dto.DateRange) (*model.PlatformMetrics, error)
}
