package query

import (
	"testing"
	"time"

	"backflow/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestMetricsEntity(t *testing.T) {
	runDate := time.Date(2025, 1, 2, 15, 30, 0, 0, time.FixedZone("AEDT", 11*3600))
	m := &model.StrategyMetrics{
		StrategyType: "swing", Version: "v2", TotalTrades: 13, WinningTrades: 7, LosingTrades: 6,
		WinRate: f(0.5385), AvgReturn: f(3.3), TotalReturn: 41.2, SharpeRatio: f(1.1), MaxDrawdown: -8,
		SortinoRatio: nil, MedianHoldDays: f(4),
		SectorPerformance:  map[string]model.SectorStats{"Materials": {Count: 5, AvgReturn: 2.1, WinRate: 0.6}},
		SignalDistribution: map[string]model.SignalStats{"breakout": {Count: 3, AvgReturn: 5}},
		ExitReasons:        map[string]int{"target": 4, "stop": 6, "time": 3},
	}

	row, err := toMetricsEntity("123", runDate, m)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), row.RunDate)
	assert.Equal(t, "swing", row.StrategyType)
	assert.Equal(t, "v2", row.Version)
	assert.Equal(t, 13, row.TotalTrades)
	assert.Equal(t, 0.5385, *row.WinRate)
	assert.Equal(t, -8.0, row.MaxDrawdown)
	assert.NotEmpty(t, row.Payload)

	snap, err := fromMetricsEntity(row)
	require.NoError(t, err)
	assert.Equal(t, "123", snap.RunID)
	assert.Equal(t, *m, snap.StrategyMetrics)
}

func TestMetricsEntity_ColumnsWin(t *testing.T) {
	row, err := toMetricsEntity("1", time.Now(), &model.StrategyMetrics{StrategyType: "btst", Version: "v1", TotalTrades: 2})
	require.NoError(t, err)
	row.TotalTrades = 5
	row.WinRate = nil

	snap, err := fromMetricsEntity(row)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.TotalTrades)
	assert.Nil(t, snap.WinRate)

	row.Payload = []byte("{broken")
	_, err = fromMetricsEntity(row)
	assert.Error(t, err)
}

func TestComparisonEntity(t *testing.T) {
	c := &model.ComparisonResult{
		RunDate:        time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
		StrategyType:   "swing",
		Recommendation: model.UseV2,
		Confidence:     model.ConfidenceHigh,
		CriteriaMet:    4,
		Criteria: []model.Criterion{
			{Name: "signal_volume_up_30pct", Met: true},
			{Name: "sharpe_better", Met: false},
		},
		Deltas:          model.MetricDeltas{TotalTrades: 3, WinRate: f(-0.02), MaxDrawdown: 1},
		TTestPValue:     f(0.41),
		ChiSquarePValue: nil,
		DegradedReason:  "chi_square_test: fewer than 2 trades on a side",
	}

	row, err := toComparisonEntity("77", c)
	require.NoError(t, err)
	assert.Equal(t, "use_v2", row.Recommendation)
	assert.Equal(t, "high", row.Confidence)
	assert.Nil(t, row.ChiSquarePValue)

	snap, err := fromComparisonEntity(row)
	require.NoError(t, err)
	assert.Equal(t, "77", snap.RunID)
	assert.Equal(t, *c, snap.ComparisonResult)
}

func TestLimitOf(t *testing.T) {
	assert.Equal(t, defaultHistoryLimit, limitOf(model.HistoryQuery{}))
	assert.Equal(t, 7, limitOf(model.HistoryQuery{Limit: 7}))
}
