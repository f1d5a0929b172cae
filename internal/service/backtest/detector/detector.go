package detector

import (
	"math"
	"sort"
	"time"

	"backflow/internal/model"
	"backflow/internal/strategy"
)

// Detector 按策略配置逐日扫描，输出带评分的候选信号。
// 除指标列自带的回看窗口外不保留任何状态。
type Detector struct {
	cfg   *strategy.Config
	rules []rule
}

func New(cfg *strategy.Config) *Detector {
	return &Detector{
		cfg:   cfg,
		rules: buildRules(cfg.Rules),
	}
}

// Detect 评估第 i 根 K 线；需要前一根 K 线，首根以及指标未就绪的 K 线不产生信号
func (d *Detector) Detect(series *model.Series, i int) (model.Signal, bool) {
	if i < 1 || i >= len(series.Bars) || !series.Bars[i].Ready {
		return model.Signal{}, false
	}
	v := dayView{
		bar:    series.Bars[i],
		prev:   series.Bars[i-1],
		sector: series.Sector,
	}

	var raw float64
	var tag model.SignalType
	factors := make(map[string]float64, len(d.rules))
	for _, r := range d.rules {
		o := r.score(v)
		if o.veto {
			return model.Signal{}, false
		}
		raw += o.points
		factors[r.name] = o.points
		if o.tag != "" {
			tag = o.tag
		}
	}
	if raw < d.cfg.MinScore {
		return model.Signal{}, false
	}

	typ := d.entryType(v, tag)
	if !d.cfg.Accepts(typ) {
		return model.Signal{}, false
	}

	weight := d.cfg.SectorWeight(series.Sector)
	return model.Signal{
		Symbol:       series.Symbol,
		Date:         v.bar.Date,
		Type:         typ,
		Score:        clamp(raw*weight, 0, 100),
		RawScore:     raw,
		Factors:      factors,
		Sector:       series.Sector,
		SectorWeight: weight,
	}, true
}

// entryType 规则未给出类型时依次判断突破、均线金叉，否则为顺势
func (d *Detector) entryType(v dayView, tag model.SignalType) model.SignalType {
	if d.cfg.BTST() {
		return model.SignalBTST
	}
	if tag != "" {
		return tag
	}
	b := v.bar
	if b.Close > b.EMA20*(1+d.cfg.Breakout.Pct/100) && b.VolumeRatio > d.cfg.Breakout.VolumeRatio {
		return model.SignalBreakout
	}
	if b.EMA20 > b.EMA50 && v.prev.EMA20 <= v.prev.EMA50 {
		return model.SignalMACross
	}
	return model.SignalTrendFollow
}

// Scan 扫描整个序列
func (d *Detector) Scan(series *model.Series) []model.Signal {
	var out []model.Signal
	for i := range series.Bars {
		if sig, ok := d.Detect(series, i); ok {
			out = append(out, sig)
		}
	}
	return out
}

// Shortlist 每个交易日跨标的按得分降序（同分按代码升序）保留前 maxResults 个，
// 结果按日期、名次排列
func Shortlist(signals []model.Signal, maxResults int) []model.Signal {
	out := make([]model.Signal, len(signals))
	copy(out, signals)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Symbol < b.Symbol
	})

	kept := out[:0]
	rank := 0
	var day time.Time
	for _, s := range out {
		if !s.Date.Equal(day) {
			day, rank = s.Date, 0
		}
		rank++
		if rank <= maxResults {
			kept = append(kept, s)
		}
	}
	return kept
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
