package metrics

import (
	"math"
	"sort"

	"backflow/internal/model"

	"gonum.org/v1/gonum/stat"
)

// DefaultPeriodsPerYear 日线一年的交易日数
const DefaultPeriodsPerYear = 252.0

// Aggregator 把一个策略版本的全部 Trade 汇总成 StrategyMetrics
type Aggregator struct {
	periodsPerYear float64
}

func NewAggregator(periodsPerYear float64) *Aggregator {
	if periodsPerYear <= 0 {
		periodsPerYear = DefaultPeriodsPerYear
	}
	return &Aggregator{periodsPerYear: periodsPerYear}
}

// Aggregate 纯函数：同样的 Trade 集合总是得到同样的结果，与输入顺序无关
func (a *Aggregator) Aggregate(strategyType, version string, trades []model.Trade) model.StrategyMetrics {
	m := model.StrategyMetrics{
		StrategyType:       strategyType,
		Version:            version,
		TotalTrades:        len(trades),
		SectorPerformance:  map[string]model.SectorStats{},
		SignalDistribution: map[string]model.SignalStats{},
		ExitReasons:        map[string]int{},
	}
	if len(trades) == 0 {
		return m
	}

	ordered := SortForCurve(trades)
	returns := make([]float64, len(ordered))
	holds := make([]float64, len(ordered))
	for i, t := range ordered {
		returns[i] = t.ReturnPct
		holds[i] = float64(t.HoldDays)
		if t.ReturnPct > 0 {
			m.WinningTrades++
		}
		m.ExitReasons[string(t.ExitReason)]++
	}
	m.LosingTrades = m.TotalTrades - m.WinningTrades

	n := float64(len(returns))
	mean := stat.Mean(returns, nil)
	m.WinRate = ptr(float64(m.WinningTrades) / n)
	m.AvgReturn = ptr(mean)

	curve := EquityCurve(ordered)
	m.TotalReturn = (curve[len(curve)-1] - 1) * 100
	m.MaxDrawdown = MaxDrawdown(curve)

	avgHold := stat.Mean(holds, nil)
	m.AvgHoldDays = ptr(avgHold)
	m.MedianHoldDays = ptr(median(holds))

	sortedReturns := append([]float64(nil), returns...)
	sort.Float64s(sortedReturns)
	m.WorstTrade = ptr(sortedReturns[0])
	m.BestTrade = ptr(sortedReturns[len(sortedReturns)-1])

	factor := math.NaN()
	if avgHold > 0 {
		factor = math.Sqrt(a.periodsPerYear / avgHold)
	}
	if len(returns) >= 2 {
		sd := stat.StdDev(returns, nil)
		m.ReturnVolatility = ptr(sd)
		if sd > 0 && !math.IsNaN(factor) {
			m.SharpeRatio = ptr(mean / sd * factor)
		}
		if dd := downsideDeviation(returns); dd > 0 && !math.IsNaN(factor) {
			m.SortinoRatio = ptr(mean / dd * factor)
		}
	}

	m.SectorPerformance = sectorBreakdown(ordered)
	m.SignalDistribution = signalBreakdown(ordered)
	return m
}

// SortForCurve 按 (入场日, 代码, 出场日) 排序，返回副本
func SortForCurve(trades []model.Trade) []model.Trade {
	out := append([]model.Trade(nil), trades...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.EntryDate.Equal(b.EntryDate) {
			return a.EntryDate.Before(b.EntryDate)
		}
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.ExitDate.Before(b.ExitDate)
	})
	return out
}

// EquityCurve 复利净值曲线，起点为 1.0，长度为 len(trades)+1
func EquityCurve(ordered []model.Trade) []float64 {
	curve := make([]float64, 0, len(ordered)+1)
	equity := 1.0
	curve = append(curve, equity)
	for _, t := range ordered {
		equity *= 1 + t.ReturnPct/100
		curve = append(curve, equity)
	}
	return curve
}

// MaxDrawdown 最大回撤（百分比，<= 0）
func MaxDrawdown(curve []float64) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (v - peak) / peak * 100; dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// downsideDeviation sqrt(Σ min(r,0)² / n)
func downsideDeviation(returns []float64) float64 {
	var sum float64
	for _, r := range returns {
		if r < 0 {
			sum += r * r
		}
	}
	return math.Sqrt(sum / float64(len(returns)))
}

func median(values []float64) float64 {
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func sectorBreakdown(trades []model.Trade) map[string]model.SectorStats {
	type acc struct {
		n, wins int
		sum     float64
	}
	groups := map[string]*acc{}
	for _, t := range trades {
		g, ok := groups[t.Sector]
		if !ok {
			g = &acc{}
			groups[t.Sector] = g
		}
		g.n++
		g.sum += t.ReturnPct
		if t.ReturnPct > 0 {
			g.wins++
		}
	}
	out := make(map[string]model.SectorStats, len(groups))
	for k, g := range groups {
		out[k] = model.SectorStats{
			Count:     g.n,
			AvgReturn: g.sum / float64(g.n),
			WinRate:   float64(g.wins) / float64(g.n),
		}
	}
	return out
}

func signalBreakdown(trades []model.Trade) map[string]model.SignalStats {
	counts := map[string]int{}
	sums := map[string]float64{}
	for _, t := range trades {
		k := string(t.SignalType)
		counts[k]++
		sums[k] += t.ReturnPct
	}
	out := make(map[string]model.SignalStats, len(counts))
	for k, n := range counts {
		out[k] = model.SignalStats{Count: n, AvgReturn: sums[k] / float64(n)}
	}
	return out
}

func ptr(v float64) *float64 {
	return &v
}
