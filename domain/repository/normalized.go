package repository

import (
	"context"

	"insight-hub/domain/dto"
	"insight-hub/domain/model"
)

// INormalizedMetrics reads the precomputed tier, populated out-of-band by the
// normalization job. A platform absent from the map has no normalized rows
// for the range.
type INormalizedMetrics interface {
	GetRange(ctx context.Context, companyID int64, rng, prev dto.DateRange) (map[model.Platform]*model.PlatformMetrics, error)
}
