package orchestrator

import (
	"time"

	"marketdata-archiver/internal/domain"
	"marketdata-archiver/internal/markets"
)

// PlanRuns expands dates × markets into run requests, date-major.
// A market is kept when it passes filter and is active on the last date.
// dates must be sorted ascending.
func PlanRuns(candidates []*domain.Market, dates []time.Time, filter markets.Filter) []domain.RunRequest {
	if len(dates) == 0 {
		return nil
	}
	last := dates[len(dates)-1]

	var selected []domain.Market
	for _, m := range candidates {
		if m.ActiveOn(last) && filter.Match(m.Market) {
			selected = append(selected, *m)
		}
	}

	runs := make([]domain.RunRequest, 0, len(dates)*len(selected))
	for _, date := range dates {
		for _, m := range selected {
			runs = append(runs, domain.NewRunRequest(date, m))
		}
	}
	return runs
}
