package model

import "time"

// MetricsSnapshot 某次运行中一个策略版本的指标，用于趋势查询
type MetricsSnapshot struct {
	RunID   string    `json:"run_id"`
	RunDate time.Time `json:"run_date"`
	StrategyMetrics
}

// ComparisonSnapshot 某次运行的对比结论
type ComparisonSnapshot struct {
	RunID string `json:"run_id"`
	ComparisonResult
}

// HistoryQuery 趋势查询条件
type HistoryQuery struct {
	StrategyType string    `form:"strategy_type" json:"strategy_type" binding:"required"`
	Version      string    `form:"version" json:"version"`
	Since        time.Time `form:"since" json:"since" time_format:"2006-01-02" time_utc:"1"`
	Limit        int       `form:"limit" json:"limit" binding:"omitempty,min=1,max=365"`
}

// RunEvent 广播到 Kafka 的运行结果摘要（不含逐笔交易）
type RunEvent struct {
	RunID        string            `json:"run_id"`
	RunDate      time.Time         `json:"run_date"`
	StrategyType string            `json:"strategy_type"`
	V1           StrategyMetrics   `json:"v1"`
	V2           StrategyMetrics   `json:"v2"`
	Comparison   ComparisonResult  `json:"comparison"`
	Skipped      int               `json:"skipped"`
	Failed       map[string]string `json:"failed,omitempty"`
}

func NewRunEvent(s *RunSummary) RunEvent {
	return RunEvent{
		RunID:        s.RunID,
		RunDate:      s.RunDate,
		StrategyType: s.StrategyType,
		V1:           s.V1.Metrics,
		V2:           s.V2.Metrics,
		Comparison:   s.Comparison,
		Skipped:      len(s.Skipped),
		Failed:       s.Failed,
	}
}
