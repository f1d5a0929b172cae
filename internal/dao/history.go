package dao

import (
	"context"
	"time"

	"backflow/internal/model"
)

// HistoryDao 回测指标与对比结论的持久化。
// 写入按 (run_date, strategy_type[, version]) 幂等覆盖。
type HistoryDao interface {
	SaveMetrics(ctx context.Context, runID string, runDate time.Time, m *model.StrategyMetrics) error
	SaveComparison(ctx context.Context, runID string, c *model.ComparisonResult) error
	// 按运行日期倒序
	ListMetrics(ctx context.Context, q model.HistoryQuery) ([]model.MetricsSnapshot, error)
	ListComparisons(ctx context.Context, q model.HistoryQuery) ([]model.ComparisonSnapshot, error)
	// 软删除某天某策略类型的全部记录
	DeleteRun(ctx context.Context, runDate time.Time, strategyType string) error
}
