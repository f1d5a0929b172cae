package strategy

import (
	"backflow/internal/model"
)

// 策略配置：阈值、启用的规则和出场参数。所有必填项都没有默认值。

type EntryTiming string

const (
	NextOpen    EntryTiming = "next_open"    // 信号次日开盘成交（波段）
	SignalClose EntryTiming = "signal_close" // 信号当日收盘成交（BTST）
)

// Rule 名称
const (
	RuleDayGain        = "day_gain"
	RuleCloseNearHigh  = "close_near_high"
	RuleTrendAlignment = "trend_alignment"
	RuleRSIBand        = "rsi_band"
	RuleMACD           = "macd"
	RuleVolumeSurge    = "volume_surge"
	RuleHighProximity  = "high_proximity"
	RuleSector         = "sector"
)

type DayGainRule struct {
	Points  float64 `yaml:"points" validate:"gt=0"`
	MinGain float64 `yaml:"min_gain"`
	MaxGain float64 `yaml:"max_gain" validate:"gtfield=MinGain"`
}

type CloseNearHighRule struct {
	Points float64 `yaml:"points" validate:"gt=0"`
}

type TrendAlignmentRule struct {
	Points float64 `yaml:"points" validate:"gt=0"`
}

type RSIBandRule struct {
	Points        float64 `yaml:"points" validate:"gt=0"`
	RSIMin        float64 `yaml:"rsi_min" validate:"gte=0,lte=100"`
	RSIMax        float64 `yaml:"rsi_max" validate:"gtfield=RSIMin,lte=100"`
	PullbackFloor float64 `yaml:"pullback_rsi_floor" validate:"gte=0,ltfield=RSIMin"`
}

type MACDRule struct {
	Points float64 `yaml:"points" validate:"gt=0"`
}

type VolumeSurgeRule struct {
	Points         float64 `yaml:"points" validate:"gt=0"`
	MinVolumeRatio float64 `yaml:"min_volume_ratio" validate:"gt=0"`
}

type HighProximityRule struct {
	Points float64 `yaml:"points" validate:"gt=0"`
	MinPct float64 `yaml:"min_pct" validate:"gt=0"`
	MaxPct float64 `yaml:"max_pct" validate:"gtfield=MinPct,lte=100"`
}

type SectorRule struct {
	Points    float64  `yaml:"points" validate:"gt=0"`
	Excluded  []string `yaml:"excluded"`
	Preferred []string `yaml:"preferred"`
}

// Rules 启用的打分规则，nil 表示未启用
type Rules struct {
	DayGain        *DayGainRule        `yaml:"day_gain"`
	CloseNearHigh  *CloseNearHighRule  `yaml:"close_near_high"`
	TrendAlignment *TrendAlignmentRule `yaml:"trend_alignment"`
	RSIBand        *RSIBandRule        `yaml:"rsi_band"`
	MACD           *MACDRule           `yaml:"macd"`
	VolumeSurge    *VolumeSurgeRule    `yaml:"volume_surge"`
	HighProximity  *HighProximityRule  `yaml:"high_proximity"`
	Sector         *SectorRule         `yaml:"sector"`
}

// Count 启用的规则数量
func (r Rules) Count() int {
	n := 0
	for _, on := range []bool{
		r.DayGain != nil, r.CloseNearHigh != nil, r.TrendAlignment != nil, r.RSIBand != nil,
		r.MACD != nil, r.VolumeSurge != nil, r.HighProximity != nil, r.Sector != nil,
	} {
		if on {
			n++
		}
	}
	return n
}

// Breakout 突破判定：close > EMA20 * (1 + Pct/100) 且量比 > VolumeRatio
type Breakout struct {
	Pct         float64 `yaml:"pct" validate:"gte=0"`
	VolumeRatio float64 `yaml:"volume_ratio" validate:"gt=0"`
}

type ExitOverride struct {
	StopPct   float64 `yaml:"stop_pct" validate:"gt=0,lt=100"`
	TargetPct float64 `yaml:"target_pct" validate:"gt=0"`
}

// TrendExit 收盘连续 Days 天低于均线 MA 时离场
type TrendExit struct {
	MA   string `yaml:"ma" validate:"oneof=ema20 ema50 sma200"`
	Days int    `yaml:"days" validate:"gt=0"`
}

type Config struct {
	Name          string                            `yaml:"name" validate:"required"`
	Version       string                            `yaml:"version" validate:"required"`
	EntryTiming   EntryTiming                       `yaml:"entry_timing" validate:"oneof=next_open signal_close"`
	MinScore      float64                           `yaml:"min_score" validate:"gte=0,lte=100"`
	MaxResults    int                               `yaml:"max_results" validate:"gt=0"`
	MaxHoldDays   int                               `yaml:"max_hold_days" validate:"gt=0"`
	StopPct       float64                           `yaml:"stop_pct" validate:"gt=0,lt=100"`
	TargetPct     float64                           `yaml:"target_pct" validate:"gt=0"`
	EntrySignals  []model.SignalType                `yaml:"entry_signals" validate:"min=1,dive,oneof=breakout ma_cross trend_follow pullback macd_cross btst"`
	Rules         Rules                             `yaml:"rules"`
	Breakout      Breakout                          `yaml:"breakout"`
	Exits         map[model.SignalType]ExitOverride `yaml:"exits" validate:"dive"`
	SectorWeights map[string]float64                `yaml:"sector_weights" validate:"dive,gt=0"`
	TrendExit     *TrendExit                        `yaml:"trend_exit"`
}

// Key 配置标识，如 swing_v1
func (c *Config) Key() string {
	return c.Name + "_" + c.Version
}

// BTST 当日收盘买入、次日卖出的配置
func (c *Config) BTST() bool {
	return c.EntryTiming == SignalClose
}

// Accepts 信号类型是否在 entry_signals 中
func (c *Config) Accepts(t model.SignalType) bool {
	for _, s := range c.EntrySignals {
		if s == t {
			return true
		}
	}
	return false
}

// SectorWeight 未配置的行业权重为 1
func (c *Config) SectorWeight(sector string) float64 {
	if w, ok := c.SectorWeights[sector]; ok {
		return w
	}
	return 1.0
}

// ExitLevels 返回信号类型对应的止损、止盈百分比
func (c *Config) ExitLevels(t model.SignalType) (stopPct, targetPct float64) {
	if o, ok := c.Exits[t]; ok {
		return o.StopPct, o.TargetPct
	}
	return c.StopPct, c.TargetPct
}
