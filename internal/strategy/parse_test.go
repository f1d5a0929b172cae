package strategy

import (
	"errors"
	"strings"
	"testing"

	"backflow/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRaw() map[string]any {
	return map[string]any{
		"name":          "swing",
		"version":       "v1",
		"entry_timing":  "next_open",
		"min_score":     "45", // cast 负责把字符串转换成数字
		"max_results":   15,
		"max_hold_days": 10,
		"stop_pct":      6,
		"target_pct":    12.5,
		"entry_signals": []any{"breakout", "pullback", "trend_follow"},
		"rules": map[string]any{
			"rsi_band": map[string]any{"points": 20, "rsi_min": 40, "rsi_max": 60, "pullback_rsi_floor": 30},
			"volume_surge": map[string]any{
				"points": 15, "min_volume_ratio": 1.2,
			},
			"sector": map[string]any{"points": 10, "excluded": []any{"Pharma"}},
		},
		"breakout":       map[string]any{"pct": 2, "volume_ratio": 1.5},
		"exits":          map[string]any{"breakout": map[string]any{"stop_pct": 5, "target_pct": 12}},
		"sector_weights": map[string]any{"Materials": 1.2},
	}
}

func issuesOf(t *testing.T, err error) []string {
	t.Helper()
	var cfgErr *model.ConfigError
	require.True(t, errors.As(err, &cfgErr), "expected ConfigError, got %v", err)
	return cfgErr.Issues
}

func containsIssue(issues []string, substr string) bool {
	for _, i := range issues {
		if strings.Contains(i, substr) {
			return true
		}
	}
	return false
}

func TestParse_Valid(t *testing.T) {
	cfg, err := Parse("swing_v1", validRaw())
	require.NoError(t, err)

	assert.Equal(t, "swing_v1", cfg.Key())
	assert.Equal(t, NextOpen, cfg.EntryTiming)
	assert.Equal(t, 45.0, cfg.MinScore)
	assert.Equal(t, 15, cfg.MaxResults)
	assert.Equal(t, 12.5, cfg.TargetPct)
	assert.Equal(t, 3, cfg.Rules.Count())
	require.NotNil(t, cfg.Rules.RSIBand)
	assert.Equal(t, 30.0, cfg.Rules.RSIBand.PullbackFloor)
	assert.Equal(t, []string{"Pharma"}, cfg.Rules.Sector.Excluded)
	assert.Nil(t, cfg.TrendExit)
	assert.False(t, cfg.BTST())

	assert.True(t, cfg.Accepts(model.SignalPullback))
	assert.False(t, cfg.Accepts(model.SignalMACross))

	assert.Equal(t, 1.2, cfg.SectorWeight("Materials"))
	assert.Equal(t, 1.0, cfg.SectorWeight("Utilities"))

	stop, target := cfg.ExitLevels(model.SignalBreakout)
	assert.Equal(t, 5.0, stop)
	assert.Equal(t, 12.0, target)
	stop, target = cfg.ExitLevels(model.SignalTrendFollow)
	assert.Equal(t, 6.0, stop)
	assert.Equal(t, 12.5, target)
}

func TestParse_MissingRequiredKeys(t *testing.T) {
	raw := validRaw()
	delete(raw, "min_score")
	delete(raw, "stop_pct")
	delete(raw, "sector_weights")

	_, err := Parse("swing_v1", raw)
	issues := issuesOf(t, err)
	assert.True(t, containsIssue(issues, "min_score: is required"))
	assert.True(t, containsIssue(issues, "stop_pct: is required"))
	assert.True(t, containsIssue(issues, "sector_weights: is required"))
}

func TestParse_CollectsParseAndRangeIssues(t *testing.T) {
	raw := validRaw()
	delete(raw, "stop_pct")
	raw["min_score"] = 120
	raw["max_hold_days"] = 0

	_, err := Parse("swing_v1", raw)
	issues := issuesOf(t, err)
	assert.True(t, containsIssue(issues, "stop_pct: is required"), "issues: %v", issues)
	assert.True(t, containsIssue(issues, "min_score"), "issues: %v", issues)
	assert.True(t, containsIssue(issues, "max_hold_days"), "issues: %v", issues)

	// 缺失的字段只报告一次
	n := 0
	for _, i := range issues {
		if strings.HasPrefix(i, "stop_pct:") {
			n++
		}
	}
	assert.Equal(t, 1, n, "issues: %v", issues)
}

func TestParse_MissingRuleThreshold(t *testing.T) {
	raw := validRaw()
	delete(raw["rules"].(map[string]any)["rsi_band"].(map[string]any), "rsi_max")

	_, err := Parse("swing_v1", raw)
	issues := issuesOf(t, err)
	assert.True(t, containsIssue(issues, "rules.rsi_band.rsi_max: is required"))
}

func TestParse_WrongType(t *testing.T) {
	raw := validRaw()
	raw["max_results"] = "many"

	_, err := Parse("swing_v1", raw)
	issues := issuesOf(t, err)
	assert.True(t, containsIssue(issues, "max_results"))
}

func TestParse_InvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		field  string
	}{
		{
			name:   "unknown entry timing",
			mutate: func(m map[string]any) { m["entry_timing"] = "tomorrow" },
			field:  "entry_timing",
		},
		{
			name:   "score above 100",
			mutate: func(m map[string]any) { m["min_score"] = 120 },
			field:  "min_score",
		},
		{
			name:   "zero hold days",
			mutate: func(m map[string]any) { m["max_hold_days"] = 0 },
			field:  "max_hold_days",
		},
		{
			name:   "unknown signal type",
			mutate: func(m map[string]any) { m["entry_signals"] = []any{"moonshot"} },
			field:  "entry_signals",
		},
		{
			name: "rsi band inverted",
			mutate: func(m map[string]any) {
				m["rules"].(map[string]any)["rsi_band"].(map[string]any)["rsi_max"] = 35
			},
			field: "rules.rsi_band.rsi_max",
		},
		{
			name:   "negative sector weight",
			mutate: func(m map[string]any) { m["sector_weights"] = map[string]any{"Energy": -1} },
			field:  "sector_weights",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(raw)
			_, err := Parse("swing_v1", raw)
			issues := issuesOf(t, err)
			assert.True(t, containsIssue(issues, tt.field), "issues: %v", issues)
		})
	}
}

func TestParse_UnknownAndEmptyRules(t *testing.T) {
	raw := validRaw()
	raw["rules"] = map[string]any{"astrology": map[string]any{"points": 5}}

	_, err := Parse("swing_v1", raw)
	issues := issuesOf(t, err)
	assert.True(t, containsIssue(issues, "rules.astrology: unknown rule"))
	assert.True(t, containsIssue(issues, "at least one rule"))
}

func TestParse_TrendExit(t *testing.T) {
	raw := validRaw()
	raw["trend_exit"] = map[string]any{"ma": "ema50", "days": 2}

	cfg, err := Parse("swing_v1", raw)
	require.NoError(t, err)
	require.NotNil(t, cfg.TrendExit)
	assert.Equal(t, "ema50", cfg.TrendExit.MA)
	assert.Equal(t, 2, cfg.TrendExit.Days)
}

func TestLoadAll_ShippedStrategies(t *testing.T) {
	files := map[string]string{
		"swing_v1": "../../conf/strategies/swing_v1.yaml",
		"swing_v2": "../../conf/strategies/swing_v2.yaml",
		"btst_v1":  "../../conf/strategies/btst_v1.yaml",
		"btst_v2":  "../../conf/strategies/btst_v2.yaml",
	}
	require.NoError(t, LoadAll(files))

	v1, v2, err := Pair("swing")
	require.NoError(t, err)
	assert.Equal(t, "v1", v1.Version)
	assert.Equal(t, "v2", v2.Version)
	assert.NotNil(t, v2.TrendExit)
	assert.Equal(t, 1.2, v2.SectorWeight("Materials"))

	b1, _, err := Pair("btst")
	require.NoError(t, err)
	assert.True(t, b1.BTST())
	assert.Equal(t, []model.SignalType{model.SignalBTST}, b1.EntrySignals)

	_, _, err = Pair("scalp")
	issues := issuesOf(t, err)
	assert.Equal(t, []string{"strategy is not configured"}, issues)
	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "scalp_v1", cfgErr.Source)
}

func TestLoadAll_KeyMismatch(t *testing.T) {
	err := LoadAll(map[string]string{"swing_v3": "../../conf/strategies/swing_v1.yaml"})
	issues := issuesOf(t, err)
	assert.True(t, containsIssue(issues, "declare swing_v1"), "issues: %v", issues)
	_, err = Get("swing_v3")
	assert.Error(t, err)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("swing_v9", "does/not/exist.yaml")
	var cfgErr *model.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}
