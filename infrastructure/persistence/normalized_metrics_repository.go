package persistence

import (
	"context"
	"database/sql"

	"insight-hub/domain/dto"
	"insight-hub/domain/model"
)

// NormalizedMetricsRepository reads the precomputed tier: per-day metric rows
// written by the out-of-band normalization job, summed over the range here.
type NormalizedMetricsRepository struct{ db *sql.DB }

func NewNormalizedMetricsRepository(db *sql.DB) *NormalizedMetricsRepository {
	return &NormalizedMetricsRepository{db: db}
}

// GetRange aggregates daily_platform_metrics for the requested window and the
// preceding comparison window. Platforms with no rows are absent from the map.
func (r *NormalizedMetricsRepository) GetRange(ctx context.Context, companyID int64, rng, prev dto.DateRange) (map[model.Platform]*model.PlatformMetrics, error) {
	out := map[model.Platform]*model.PlatformMetrics{}

	if err := r.sumInto(ctx, companyID, rng, out, false); err != nil {
		return nil, err
	}
	if err := r.sumInto(ctx, companyID, prev, out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *NormalizedMetricsRepository) sumInto(ctx context.Context, companyID int64, rng dto.DateRange, out map[model.Platform]*model.PlatformMetrics, previous bool) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT platform, metric, SUM(value)
		 FROM daily_platform_metrics
		 WHERE company_id=$1 AND date >= $2 AND date <= $3
		 GROUP BY platform, metric`,
		companyID, rng.Start, rng.End)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var platform, metric string
		var value float64
		if err := rows.Scan(&platform, &metric, &value); err != nil {
			return err
		}
		p := model.Platform(platform)
		// The comparison window must not create platform keys the current
		// window does not have.
		block, ok := out[p]
		if !ok {
			if previous {
				continue
			}
			block = &model.PlatformMetrics{Summary: map[string]float64{}, Previous: map[string]float64{}}
			out[p] = block
		}
		if previous {
			block.Previous[metric] = value
		} else {
			block.Summary[metric] = value
		}
	}
	return rows.Err()
}
