package model

import "time"

// Indicators 单根日线上预先计算好的技术指标
type Indicators struct {
	EMA20       float64 `json:"ema20"`
	EMA50       float64 `json:"ema50"`
	SMA200      float64 `json:"sma200"`
	RSI14       float64 `json:"rsi14"`
	MACD        float64 `json:"macd"`
	MACDSignal  float64 `json:"macd_signal"`
	MACDHist    float64 `json:"macd_hist"`
	ATRPct      float64 `json:"atr_pct"`      // ATR / close * 100
	VolumeRatio float64 `json:"volume_ratio"` // volume / 均量
	High52w     float64 `json:"high_52w"`
	Low52w      float64 `json:"low_52w"`
}

// PriceBar 日线 OHLCV 及指标，由 provider 构造后只读
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
	Indicators
	Ready bool `json:"ready"` // 所有指标均已度过预热期
}

// ChangePct 相对上一根收盘的涨跌幅（百分比）
func (b PriceBar) ChangePct(prevClose float64) float64 {
	if prevClose <= 0 {
		return 0
	}
	return (b.Close - prevClose) / prevClose * 100
}

// Series 单个标的在回测区间内的日线序列
type Series struct {
	Symbol string     `json:"symbol"`
	Sector string     `json:"sector"`
	Bars   []PriceBar `json:"bars"`
}

type SignalType string

const (
	SignalBreakout    SignalType = "breakout"
	SignalMACross     SignalType = "ma_cross"
	SignalTrendFollow SignalType = "trend_follow"
	SignalPullback    SignalType = "pullback"
	SignalMACDCross   SignalType = "macd_cross"
	SignalBTST        SignalType = "btst"
)

// Signal 某个标的在某一交易日的候选入场信号
type Signal struct {
	Symbol       string             `json:"symbol"`
	Date         time.Time          `json:"date"`
	Type         SignalType         `json:"type"`
	Score        float64            `json:"score"`     // 乘以行业权重并截断到 [0,100]
	RawScore     float64            `json:"raw_score"` // 规则得分之和
	Factors      map[string]float64 `json:"factors"`   // 规则名 -> 得分
	Sector       string             `json:"sector"`
	SectorWeight float64            `json:"sector_weight"`
}

type ExitReason string

const (
	ExitStop    ExitReason = "stop"
	ExitTarget  ExitReason = "target"
	ExitTime    ExitReason = "time"
	ExitTrend   ExitReason = "trend"
	ExitDataEnd ExitReason = "data_end"
)

// Trade 一次完整的模拟持仓
type Trade struct {
	ID          string     `json:"id"`
	Symbol      string     `json:"symbol"`
	Sector      string     `json:"sector"`
	SignalType  SignalType `json:"signal_type"`
	SignalScore float64    `json:"signal_score"`
	EntryDate   time.Time  `json:"entry_date"`
	EntryPrice  float64    `json:"entry_price"`
	ExitDate    time.Time  `json:"exit_date"`
	ExitPrice   float64    `json:"exit_price"`
	ExitReason  ExitReason `json:"exit_reason"`
	ReturnPct   float64    `json:"return_pct"`
	HoldDays    int        `json:"hold_days"`
	StopPrice   float64    `json:"stop_price"`
	TargetPrice float64    `json:"target_price"`
}

// SectorStats 按行业分组的表现
type SectorStats struct {
	Count     int     `json:"count"`
	AvgReturn float64 `json:"avg_return"`
	WinRate   float64 `json:"win_rate"`
}

// SignalStats 按信号类型分组的表现
type SignalStats struct {
	Count     int     `json:"count"`
	AvgReturn float64 `json:"avg_return"`
}

// StrategyMetrics 单个策略版本一次运行的汇总指标。
// 指针字段为 nil 表示无定义（样本不足或标准差为 0）。
type StrategyMetrics struct {
	StrategyType       string                 `json:"strategy_type"`
	Version            string                 `json:"version"`
	TotalTrades        int                    `json:"total_trades"`
	WinningTrades      int                    `json:"winning_trades"`
	LosingTrades       int                    `json:"losing_trades"`
	WinRate            *float64               `json:"win_rate"`
	AvgReturn          *float64               `json:"avg_return"`
	TotalReturn        float64                `json:"total_return"`
	SharpeRatio        *float64               `json:"sharpe_ratio"`
	SortinoRatio       *float64               `json:"sortino_ratio"`
	MaxDrawdown        float64                `json:"max_drawdown"`
	AvgHoldDays        *float64               `json:"avg_hold_days"`
	MedianHoldDays     *float64               `json:"median_hold_days"`
	ReturnVolatility   *float64               `json:"return_volatility"`
	BestTrade          *float64               `json:"best_trade"`
	WorstTrade         *float64               `json:"worst_trade"`
	SectorPerformance  map[string]SectorStats `json:"sector_performance"`
	SignalDistribution map[string]SignalStats `json:"signal_distribution"`
	ExitReasons        map[string]int         `json:"exit_reasons"`
}

type Recommendation string

const (
	UseV1        Recommendation = "use_v1"
	UseV2        Recommendation = "use_v2"
	Inconclusive Recommendation = "inconclusive"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// MetricDeltas v2 - v1，任一侧为 nil 时对应差值为 nil
type MetricDeltas struct {
	TotalTrades      int      `json:"total_trades"`
	WinRate          *float64 `json:"win_rate"`
	AvgReturn        *float64 `json:"avg_return"`
	TotalReturn      float64  `json:"total_return"`
	SharpeRatio      *float64 `json:"sharpe_ratio"`
	SortinoRatio     *float64 `json:"sortino_ratio"`
	MaxDrawdown      float64  `json:"max_drawdown"`
	AvgHoldDays      *float64 `json:"avg_hold_days"`
	ReturnVolatility *float64 `json:"return_volatility"`
}

type Criterion struct {
	Name string `json:"name"`
	Met  bool   `json:"met"`
}

// ComparisonResult v1/v2 对比结论，按 (run_date, strategy_type) 持久化
type ComparisonResult struct {
	RunDate         time.Time      `json:"run_date"`
	StrategyType    string         `json:"strategy_type"`
	Recommendation  Recommendation `json:"recommendation"`
	Confidence      Confidence     `json:"confidence"`
	CriteriaMet     int            `json:"criteria_met"`
	Criteria        []Criterion    `json:"criteria"`
	Deltas          MetricDeltas   `json:"deltas"`
	TTestPValue     *float64       `json:"t_test_p_value"`
	ChiSquarePValue *float64       `json:"chi_square_p_value"`
	DegradedReason  string         `json:"degraded_reason,omitempty"`
}

// VariantResult 单个版本的运行产出
type VariantResult struct {
	Version string          `json:"version"`
	Signals int             `json:"signals"`
	Trades  []Trade         `json:"trades"`
	Metrics StrategyMetrics `json:"metrics"`
}

// RunSummary 一次运行（同一策略类型的两个版本）的完整结果
type RunSummary struct {
	RunID        string            `json:"run_id"`
	RunDate      time.Time         `json:"run_date"`
	StrategyType string            `json:"strategy_type"`
	From         time.Time         `json:"from"`
	To           time.Time         `json:"to"`
	V1           VariantResult     `json:"v1"`
	V2           VariantResult     `json:"v2"`
	Comparison   ComparisonResult  `json:"comparison"`
	Skipped      map[string]string `json:"skipped"` // 数据不足被跳过的标的 -> 原因
	Failed       map[string]string `json:"failed"`  // 模拟不变量被破坏的标的 -> 错误
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
}

// HasFailures 是否有标的触发了模拟不变量错误
func (s *RunSummary) HasFailures() bool {
	return len(s.Failed) > 0
}
