package provider

import (
	"backflow/conf"
	"backflow/internal/model"

	"github.com/markcheno/go-talib"
)

// DefaultParams 日线常用周期：EMA20/50、SMA200、RSI14、MACD(12,26,9)
func DefaultParams() conf.TechnicalParams {
	return conf.TechnicalParams{
		EMAShort:       20,
		EMAMedium:      50,
		SMALong:        200,
		RSIPeriod:      14,
		MACDFast:       12,
		MACDSlow:       26,
		MACDSignal:     9,
		ATRPeriod:      14,
		VolumeLookback: 20,
		RangeLookback:  252,
	}
}

// WithDefaults 未配置的周期使用默认值
func WithDefaults(p conf.TechnicalParams) conf.TechnicalParams {
	d := DefaultParams()
	fill := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&p.EMAShort, d.EMAShort)
	fill(&p.EMAMedium, d.EMAMedium)
	fill(&p.SMALong, d.SMALong)
	fill(&p.RSIPeriod, d.RSIPeriod)
	fill(&p.MACDFast, d.MACDFast)
	fill(&p.MACDSlow, d.MACDSlow)
	fill(&p.MACDSignal, d.MACDSignal)
	fill(&p.ATRPeriod, d.ATRPeriod)
	fill(&p.VolumeLookback, d.VolumeLookback)
	fill(&p.RangeLookback, d.RangeLookback)
	return p
}

// WarmUp 第一根所有指标都有效的 K 线下标
func WarmUp(p conf.TechnicalParams) int {
	w := 0
	for _, lb := range []int{
		p.EMAShort - 1,
		p.EMAMedium - 1,
		p.SMALong - 1,
		p.RSIPeriod,
		p.MACDSlow + p.MACDSignal - 2,
		p.ATRPeriod,
		p.VolumeLookback - 1,
		p.RangeLookback - 1,
	} {
		if lb > w {
			w = lb
		}
	}
	return w
}

// Annotate 在完整历史上计算指标并写回每根 K 线。
// 调用方需保证 len(bars) > WarmUp(p)，talib 在样本不足时会越界。
func Annotate(bars []model.PriceBar, p conf.TechnicalParams) {
	n := len(bars)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		volumes[i] = b.Volume
	}

	ema20 := talib.Ema(closes, p.EMAShort)
	ema50 := talib.Ema(closes, p.EMAMedium)
	sma200 := talib.Sma(closes, p.SMALong)
	rsi := talib.Rsi(closes, p.RSIPeriod)
	macd, macdSignal, macdHist := talib.Macd(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	atr := talib.Atr(highs, lows, closes, p.ATRPeriod)
	avgVolume := talib.Sma(volumes, p.VolumeLookback)
	high52 := talib.Max(highs, p.RangeLookback)
	low52 := talib.Min(lows, p.RangeLookback)

	warm := WarmUp(p)
	for i := range bars {
		b := &bars[i]
		b.EMA20 = ema20[i]
		b.EMA50 = ema50[i]
		b.SMA200 = sma200[i]
		b.RSI14 = rsi[i]
		b.MACD = macd[i]
		b.MACDSignal = macdSignal[i]
		b.MACDHist = macdHist[i]
		if b.Close > 0 {
			b.ATRPct = atr[i] / b.Close * 100
		}
		if avgVolume[i] > 0 {
			b.VolumeRatio = b.Volume / avgVolume[i]
		}
		b.High52w = high52[i]
		b.Low52w = low52[i]
		b.Ready = i >= warm
	}
}
