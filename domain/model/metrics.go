package model

// MetricPoint is one day of a time series.
type MetricPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// ContentStat is one top-content row (page, query, video or post).
type ContentStat struct {
	ID    string  `json:"id,omitempty"`
	Title string  `json:"title"`
	URL   string  `json:"url,omitempty"`
	Value float64 `json:"value"`
}

// PlatformMetrics is the uniform per-platform metric block the fetch clients
// produce and the normalized store returns. Summary keys are provider-specific
// (sessions, clicks, views, impressions, ...); the orchestrator treats them
// opaquely.
type PlatformMetrics struct {
	Summary    map[string]float64 `json:"summary"`
	Previous   map[string]float64 `json:"previous,omitempty"`
	Series     []MetricPoint      `json:"series,omitempty"`
	TopContent []ContentStat      `json:"topContent,omitempty"`
}

// IsZero reports whether every summary value is zero. A synced platform with
// all-zero metrics is real data, not a miss.
func (m *PlatformMetrics) IsZero() bool {
	if m == nil {
		return true
	}
	for _, v := range m.Summary {
		if v != 0 {
			return false
		}
	}
	return true
}
