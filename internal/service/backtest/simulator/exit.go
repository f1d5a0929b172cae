package simulator

import (
	"backflow/internal/model"
	"backflow/internal/strategy"
)

// exitRule 出场规则：命中时返回成交价
type exitRule struct {
	reason model.ExitReason
	check  func(pos *position, bar model.PriceBar, hold int) (float64, bool)
}

// exitChain 止损 > 止盈 > 持有期满 > 趋势破位
func exitChain(cfg *strategy.Config) []exitRule {
	chain := []exitRule{
		{model.ExitStop, func(pos *position, bar model.PriceBar, _ int) (float64, bool) {
			return pos.stop, bar.Low <= pos.stop
		}},
		{model.ExitTarget, func(pos *position, bar model.PriceBar, _ int) (float64, bool) {
			return pos.target, bar.High >= pos.target
		}},
		{model.ExitTime, func(_ *position, bar model.PriceBar, hold int) (float64, bool) {
			return bar.Close, hold >= cfg.MaxHoldDays
		}},
	}
	if te := cfg.TrendExit; te != nil {
		chain = append(chain, exitRule{model.ExitTrend, func(pos *position, bar model.PriceBar, _ int) (float64, bool) {
			if bar.Close < movingAverage(bar, te.MA) {
				pos.belowMA++
			} else {
				pos.belowMA = 0
			}
			return bar.Close, pos.belowMA >= te.Days
		}})
	}
	return chain
}

func movingAverage(bar model.PriceBar, name string) float64 {
	switch name {
	case "ema50":
		return bar.EMA50
	case "sma200":
		return bar.SMA200
	default:
		return bar.EMA20
	}
}
