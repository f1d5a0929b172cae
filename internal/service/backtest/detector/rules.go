package detector

import (
	"backflow/internal/model"
	"backflow/internal/strategy"
)

// dayView 单日规则评估所需的上下文
type dayView struct {
	bar    model.PriceBar
	prev   model.PriceBar
	sector string
}

// outcome 单条规则的评估结果
type outcome struct {
	points float64
	veto   bool             // 不满足硬性条件，当日不产生信号
	tag    model.SignalType // 规则识别出的入场类型，可为空
}

type rule struct {
	name  string
	score func(v dayView) outcome
}

// buildRules 按固定顺序组装已启用的规则；标签后者覆盖前者
func buildRules(r strategy.Rules) []rule {
	var rules []rule
	if r.DayGain != nil {
		rules = append(rules, rule{strategy.RuleDayGain, dayGain(r.DayGain)})
	}
	if r.CloseNearHigh != nil {
		rules = append(rules, rule{strategy.RuleCloseNearHigh, closeNearHigh(r.CloseNearHigh)})
	}
	if r.TrendAlignment != nil {
		rules = append(rules, rule{strategy.RuleTrendAlignment, trendAlignment(r.TrendAlignment)})
	}
	if r.RSIBand != nil {
		rules = append(rules, rule{strategy.RuleRSIBand, rsiBand(r.RSIBand)})
	}
	if r.HighProximity != nil {
		rules = append(rules, rule{strategy.RuleHighProximity, highProximity(r.HighProximity)})
	}
	if r.MACD != nil {
		rules = append(rules, rule{strategy.RuleMACD, macd(r.MACD)})
	}
	if r.VolumeSurge != nil {
		rules = append(rules, rule{strategy.RuleVolumeSurge, volumeSurge(r.VolumeSurge)})
	}
	if r.Sector != nil {
		rules = append(rules, rule{strategy.RuleSector, sector(r.Sector)})
	}
	return rules
}

func dayGain(c *strategy.DayGainRule) func(dayView) outcome {
	return func(v dayView) outcome {
		gain := v.bar.ChangePct(v.prev.Close)
		switch {
		case gain < c.MinGain:
			return outcome{veto: true}
		case gain <= c.MaxGain:
			return outcome{points: c.Points}
		default:
			// 涨幅过大，追高风险
			return outcome{points: c.Points / 2}
		}
	}
}

func closeNearHigh(c *strategy.CloseNearHighRule) func(dayView) outcome {
	return func(v dayView) outcome {
		pos := 1.0
		if rng := v.bar.High - v.bar.Low; rng > 0 {
			pos = (v.bar.Close - v.bar.Low) / rng
		}
		switch {
		case pos >= 0.9:
			return outcome{points: c.Points}
		case pos >= 0.8:
			return outcome{points: c.Points * 0.75}
		default:
			return outcome{points: c.Points * 0.25}
		}
	}
}

func trendAlignment(c *strategy.TrendAlignmentRule) func(dayView) outcome {
	return func(v dayView) outcome {
		b := v.bar
		switch {
		case b.Close > b.EMA20 && b.EMA20 > b.EMA50 && b.EMA50 > b.SMA200:
			return outcome{points: c.Points}
		case b.Close > b.EMA20 && b.Close > b.EMA50:
			return outcome{points: c.Points * 0.75}
		default:
			return outcome{points: c.Points * 0.25}
		}
	}
}

func rsiBand(c *strategy.RSIBandRule) func(dayView) outcome {
	return func(v dayView) outcome {
		rsi := v.bar.RSI14
		switch {
		case rsi >= c.RSIMin && rsi <= c.RSIMax:
			return outcome{points: c.Points}
		case rsi > c.PullbackFloor && rsi < c.RSIMin:
			return outcome{points: c.Points * 0.75, tag: model.SignalPullback}
		case rsi > c.RSIMax:
			return outcome{points: c.Points * 0.25}
		default:
			return outcome{}
		}
	}
}

func highProximity(c *strategy.HighProximityRule) func(dayView) outcome {
	return func(v dayView) outcome {
		if v.bar.High52w <= 0 {
			return outcome{points: c.Points / 3}
		}
		prox := v.bar.Close / v.bar.High52w * 100
		switch {
		case prox >= c.MinPct && prox <= c.MaxPct:
			return outcome{points: c.Points}
		case prox > c.MaxPct:
			return outcome{points: c.Points / 2}
		default:
			return outcome{points: c.Points / 3}
		}
	}
}

func macd(c *strategy.MACDRule) func(dayView) outcome {
	return func(v dayView) outcome {
		b := v.bar
		switch {
		case b.MACD > b.MACDSignal && b.MACDHist > 0:
			o := outcome{points: c.Points}
			if v.prev.MACDHist <= 0 {
				o.tag = model.SignalMACDCross
			}
			return o
		case b.MACD > b.MACDSignal:
			return outcome{points: c.Points * 2 / 3}
		default:
			return outcome{}
		}
	}
}

func volumeSurge(c *strategy.VolumeSurgeRule) func(dayView) outcome {
	return func(v dayView) outcome {
		if v.bar.VolumeRatio >= c.MinVolumeRatio {
			return outcome{points: c.Points}
		}
		return outcome{points: c.Points / 3}
	}
}

func sector(c *strategy.SectorRule) func(dayView) outcome {
	excluded := toSet(c.Excluded)
	preferred := toSet(c.Preferred)
	return func(v dayView) outcome {
		switch {
		case excluded[v.sector]:
			return outcome{veto: true}
		case preferred[v.sector]:
			return outcome{points: c.Points}
		default:
			return outcome{points: c.Points / 2}
		}
	}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		set[s] = true
	}
	return set
}
