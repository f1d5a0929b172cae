package entity

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/plugin/soft_delete"
)

// BacktestMetrics 每次运行每个策略版本一行，(run_date, strategy_type, version) 唯一
type BacktestMetrics struct {
	ID           uint64    `gorm:"primaryKey"`
	RunID        string    `gorm:"column:run_id;type:varchar(32);not null"`
	RunDate      time.Time `gorm:"column:run_date;type:date;not null;uniqueIndex:uk_metrics_run,priority:1"`
	StrategyType string    `gorm:"column:strategy_type;type:varchar(30);not null;uniqueIndex:uk_metrics_run,priority:2"`
	Version      string    `gorm:"column:version;type:varchar(10);not null;uniqueIndex:uk_metrics_run,priority:3"`

	// 常用于趋势图的列单独存放，其余整体放在 payload
	TotalTrades int      `gorm:"column:total_trades;not null"`
	WinRate     *float64 `gorm:"column:win_rate;type:decimal(7,4)"`
	AvgReturn   *float64 `gorm:"column:avg_return;type:decimal(12,4)"`
	TotalReturn float64  `gorm:"column:total_return;type:decimal(14,4);not null"`
	SharpeRatio *float64 `gorm:"column:sharpe_ratio;type:decimal(12,4)"`
	MaxDrawdown float64  `gorm:"column:max_drawdown;type:decimal(12,4);not null"`

	Payload datatypes.JSON `gorm:"column:payload;type:json"` // model.StrategyMetrics

	CreatedAt time.Time             `gorm:"column:created_at"`
	UpdatedAt time.Time             `gorm:"column:updated_at"`
	DeletedAt soft_delete.DeletedAt `gorm:"column:deleted_at;softDelete:milli;not null;default:0;uniqueIndex:uk_metrics_run,priority:4"`
}

func (BacktestMetrics) TableName() string {
	return "backtest_metrics"
}

// BacktestComparison 每次运行每个策略类型一行，(run_date, strategy_type) 唯一
type BacktestComparison struct {
	ID              uint64    `gorm:"primaryKey"`
	RunID           string    `gorm:"column:run_id;type:varchar(32);not null"`
	RunDate         time.Time `gorm:"column:run_date;type:date;not null;uniqueIndex:uk_comparison_run,priority:1"`
	StrategyType    string    `gorm:"column:strategy_type;type:varchar(30);not null;uniqueIndex:uk_comparison_run,priority:2"`
	Recommendation  string    `gorm:"column:recommendation;type:varchar(20);not null"`
	Confidence      string    `gorm:"column:confidence;type:varchar(10);not null"`
	CriteriaMet     int       `gorm:"column:criteria_met;not null"`
	TTestPValue     *float64  `gorm:"column:t_test_p_value;type:decimal(10,8)"`
	ChiSquarePValue *float64  `gorm:"column:chi_square_p_value;type:decimal(10,8)"`
	DegradedReason  string    `gorm:"column:degraded_reason;type:varchar(255)"`

	Criteria datatypes.JSON `gorm:"column:criteria;type:json"` // []model.Criterion
	Deltas   datatypes.JSON `gorm:"column:deltas;type:json"`   // model.MetricDeltas

	CreatedAt time.Time             `gorm:"column:created_at"`
	UpdatedAt time.Time             `gorm:"column:updated_at"`
	DeletedAt soft_delete.DeletedAt `gorm:"column:deleted_at;softDelete:milli;not null;default:0;uniqueIndex:uk_comparison_run,priority:3"`
}

func (BacktestComparison) TableName() string {
	return "backtest_comparisons"
}
