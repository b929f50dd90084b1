package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketdata-archiver/internal/domain"
	"marketdata-archiver/internal/markets"
)

func TestPlanRuns(t *testing.T) {
	d1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	candidates := []*domain.Market{
		{Exchange: "gate-io", Market: "JNT_USDT", Instrument: "JNTUSDT", Enabled: true},
		{Exchange: "gate-io", Market: "BTC_USDT", Instrument: "BTCUSDT", Enabled: true},
		// Disabled, but expires on the last date: kept.
		{Exchange: "gate-io", Market: "OLD_USDT", Expiry: d2.Add(8 * time.Hour)},
		// Disabled and expired before the last date: dropped.
		{Exchange: "gate-io", Market: "DEAD_USDT", Expiry: d1.Add(8 * time.Hour)},
		// Disabled without expiry: dropped.
		{Exchange: "gate-io", Market: "OFF_USDT"},
	}

	runs := PlanRuns(candidates, []time.Time{d1, d2}, markets.Filter{"all"})
	require.Len(t, runs, 6)

	got := make([]string, len(runs))
	for i, r := range runs {
		got[i] = r.String()
	}
	assert.Equal(t, []string{
		"gate-io/JNT_USDT@2024-03-01",
		"gate-io/BTC_USDT@2024-03-01",
		"gate-io/OLD_USDT@2024-03-01",
		"gate-io/JNT_USDT@2024-03-02",
		"gate-io/BTC_USDT@2024-03-02",
		"gate-io/OLD_USDT@2024-03-02",
	}, got)

	from, to := runs[0].Window()
	assert.Equal(t, d1, from)
	assert.Equal(t, d2, to)
}

func TestPlanRuns_Filter(t *testing.T) {
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	candidates := []*domain.Market{
		{Exchange: "gate-io", Market: "JNT_USDT", Enabled: true},
		{Exchange: "gate-io", Market: "BTC_USDT", Enabled: true},
	}

	runs := PlanRuns(candidates, []time.Time{d}, markets.Filter{"BTC_USDT"})
	require.Len(t, runs, 1)
	assert.Equal(t, "BTC_USDT", runs[0].Market.Market)

	assert.Empty(t, PlanRuns(candidates, nil, markets.Filter{"all"}))
}
