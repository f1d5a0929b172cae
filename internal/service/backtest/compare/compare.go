package compare

import (
	"math"
	"strings"
	"time"

	"backflow/internal/model"
)

// 判定标准名称
const (
	CriterionVolume    = "signal_volume_up_30pct"
	CriterionWinRate   = "win_rate_within_5pts"
	CriterionAvgReturn = "avg_return_up_10pct"
	CriterionDrawdown  = "drawdown_equal_or_better"
	CriterionSharpe    = "sharpe_better"

	eps = 1e-9
)

// Side 一个策略版本的指标和成交
type Side struct {
	Metrics model.StrategyMetrics
	Trades  []model.Trade
}

// Compare 纯函数：对比基线 v1 与候选 v2，无副作用、不重试。
// 任一侧不足 2 笔交易时结论降级为 inconclusive / low，p 值为空并记录原因。
func Compare(runDate time.Time, strategyType string, v1, v2 Side) model.ComparisonResult {
	criteria := Evaluate(v1.Metrics, v2.Metrics)
	met := CountMet(criteria)
	reverse := CountMet(Evaluate(v2.Metrics, v1.Metrics))

	res := model.ComparisonResult{
		RunDate:        runDate,
		StrategyType:   strategyType,
		Recommendation: Recommend(met),
		Confidence:     Tier(max(met, reverse)),
		CriteriaMet:    met,
		Criteria:       criteria,
		Deltas:         Deltas(v1.Metrics, v2.Metrics),
	}

	var reasons []string
	if p, err := WelchTTest(returnsOf(v1.Trades), returnsOf(v2.Trades)); err == nil {
		res.TTestPValue = &p
	} else {
		reasons = append(reasons, err.Error())
	}
	if p, err := ChiSquareWinRate(wins(v1.Trades), len(v1.Trades), wins(v2.Trades), len(v2.Trades)); err == nil {
		res.ChiSquarePValue = &p
	} else {
		reasons = append(reasons, err.Error())
	}
	if len(reasons) > 0 {
		res.DegradedReason = strings.Join(reasons, "; ")
	}

	if len(v1.Trades) < minSamples || len(v2.Trades) < minSamples {
		res.Recommendation = model.Inconclusive
		res.Confidence = model.ConfidenceLow
	}
	return res
}

// Evaluate 五项固定标准，候选 cand 相对基线 base；任一侧指标为空时该项不满足
func Evaluate(base, cand model.StrategyMetrics) []model.Criterion {
	return []model.Criterion{
		{Name: CriterionVolume, Met: volumeUp(base.TotalTrades, cand.TotalTrades)},
		{Name: CriterionWinRate, Met: winRateStable(base.WinRate, cand.WinRate)},
		{Name: CriterionAvgReturn, Met: avgReturnUp(base.AvgReturn, cand.AvgReturn)},
		{Name: CriterionDrawdown, Met: cand.MaxDrawdown >= base.MaxDrawdown-eps},
		{Name: CriterionSharpe, Met: base.SharpeRatio != nil && cand.SharpeRatio != nil && *cand.SharpeRatio > *base.SharpeRatio},
	}
}

// volumeUp 交易数至少增加 30%，整数比较避免 1.3*n 的浮点误差
func volumeUp(n1, n2 int) bool {
	if n1 == 0 {
		return n2 > 0
	}
	return 10*n2 >= 13*n1
}

func winRateStable(w1, w2 *float64) bool {
	if w1 == nil || w2 == nil {
		return false
	}
	return math.Abs(*w2-*w1) <= 0.05+eps
}

func avgReturnUp(a1, a2 *float64) bool {
	if a1 == nil || a2 == nil {
		return false
	}
	if *a1 == 0 {
		return *a2 > 0
	}
	return *a2 >= *a1+0.10*math.Abs(*a1)-eps
}

func CountMet(criteria []model.Criterion) int {
	n := 0
	for _, c := range criteria {
		if c.Met {
			n++
		}
	}
	return n
}

// Recommend >=4 采用 v2，<=1 保留 v1，其余无结论
func Recommend(met int) model.Recommendation {
	switch {
	case met >= 4:
		return model.UseV2
	case met <= 1:
		return model.UseV1
	default:
		return model.Inconclusive
	}
}

// Tier 4-5 high，3 medium，0-2 low
func Tier(met int) model.Confidence {
	switch {
	case met >= 4:
		return model.ConfidenceHigh
	case met == 3:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// Deltas v2 - v1
func Deltas(v1, v2 model.StrategyMetrics) model.MetricDeltas {
	return model.MetricDeltas{
		TotalTrades:      v2.TotalTrades - v1.TotalTrades,
		WinRate:          diff(v1.WinRate, v2.WinRate),
		AvgReturn:        diff(v1.AvgReturn, v2.AvgReturn),
		TotalReturn:      v2.TotalReturn - v1.TotalReturn,
		SharpeRatio:      diff(v1.SharpeRatio, v2.SharpeRatio),
		SortinoRatio:     diff(v1.SortinoRatio, v2.SortinoRatio),
		MaxDrawdown:      v2.MaxDrawdown - v1.MaxDrawdown,
		AvgHoldDays:      diff(v1.AvgHoldDays, v2.AvgHoldDays),
		ReturnVolatility: diff(v1.ReturnVolatility, v2.ReturnVolatility),
	}
}

func diff(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	d := *b - *a
	return &d
}

func returnsOf(trades []model.Trade) []float64 {
	out := make([]float64, len(trades))
	for i, t := range trades {
		out[i] = t.ReturnPct
	}
	return out
}

func wins(trades []model.Trade) int {
	n := 0
	for _, t := range trades {
		if t.ReturnPct > 0 {
			n++
		}
	}
	return n
}
