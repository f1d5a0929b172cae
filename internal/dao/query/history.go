package query

import (
	"context"
	"fmt"
	"time"

	"backflow/internal/dao"
	"backflow/internal/model"
	"backflow/internal/model/entity"

	"github.com/goccy/go-json"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultHistoryLimit = 30

type historyDao struct {
	db *gorm.DB
}

func NewHistoryDao(db *gorm.DB) dao.HistoryDao {
	return &historyDao{
		db: db,
	}
}

// SaveMetrics 同一 (run_date, strategy_type, version) 重复写入时覆盖
func (r *historyDao) SaveMetrics(ctx context.Context, runID string, runDate time.Time, m *model.StrategyMetrics) error {
	row, err := toMetricsEntity(runID, runDate, m)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "run_date"}, {Name: "strategy_type"}, {Name: "version"}, {Name: "deleted_at"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"run_id", "total_trades", "win_rate", "avg_return", "total_return",
			"sharpe_ratio", "max_drawdown", "payload", "updated_at",
		}),
	}).Create(row)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert metrics %s/%s: %w", m.StrategyType, m.Version, result.Error)
	}
	return nil
}

// SaveComparison 同一 (run_date, strategy_type) 重复写入时覆盖
func (r *historyDao) SaveComparison(ctx context.Context, runID string, c *model.ComparisonResult) error {
	row, err := toComparisonEntity(runID, c)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "run_date"}, {Name: "strategy_type"}, {Name: "deleted_at"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"run_id", "recommendation", "confidence", "criteria_met", "t_test_p_value",
			"chi_square_p_value", "degraded_reason", "criteria", "deltas", "updated_at",
		}),
	}).Create(row)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert comparison %s: %w", c.StrategyType, result.Error)
	}
	return nil
}

func (r *historyDao) ListMetrics(ctx context.Context, q model.HistoryQuery) ([]model.MetricsSnapshot, error) {
	var rows []entity.BacktestMetrics
	tx := r.db.WithContext(ctx).Where("strategy_type = ?", q.StrategyType)
	if q.Version != "" {
		tx = tx.Where("version = ?", q.Version)
	}
	if !q.Since.IsZero() {
		tx = tx.Where("run_date >= ?", dateOnly(q.Since))
	}
	if err := tx.Order("run_date DESC").Order("version").Limit(limitOf(q)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list metrics for %s: %w", q.StrategyType, err)
	}

	out := make([]model.MetricsSnapshot, 0, len(rows))
	for i := range rows {
		snap, err := fromMetricsEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

func (r *historyDao) ListComparisons(ctx context.Context, q model.HistoryQuery) ([]model.ComparisonSnapshot, error) {
	var rows []entity.BacktestComparison
	tx := r.db.WithContext(ctx).Where("strategy_type = ?", q.StrategyType)
	if !q.Since.IsZero() {
		tx = tx.Where("run_date >= ?", dateOnly(q.Since))
	}
	if err := tx.Order("run_date DESC").Limit(limitOf(q)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list comparisons for %s: %w", q.StrategyType, err)
	}

	out := make([]model.ComparisonSnapshot, 0, len(rows))
	for i := range rows {
		snap, err := fromComparisonEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// DeleteRun 软删除，之后同一天可以重新写入
func (r *historyDao) DeleteRun(ctx context.Context, runDate time.Time, strategyType string) error {
	day := dateOnly(runDate)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_date = ? AND strategy_type = ?", day, strategyType).
			Delete(&entity.BacktestMetrics{}).Error; err != nil {
			return fmt.Errorf("failed to delete metrics: %w", err)
		}
		if err := tx.Where("run_date = ? AND strategy_type = ?", day, strategyType).
			Delete(&entity.BacktestComparison{}).Error; err != nil {
			return fmt.Errorf("failed to delete comparison: %w", err)
		}
		return nil
	})
}

func toMetricsEntity(runID string, runDate time.Time, m *model.StrategyMetrics) (*entity.BacktestMetrics, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metrics payload: %w", err)
	}
	return &entity.BacktestMetrics{
		RunID:        runID,
		RunDate:      dateOnly(runDate),
		StrategyType: m.StrategyType,
		Version:      m.Version,
		TotalTrades:  m.TotalTrades,
		WinRate:      m.WinRate,
		AvgReturn:    m.AvgReturn,
		TotalReturn:  m.TotalReturn,
		SharpeRatio:  m.SharpeRatio,
		MaxDrawdown:  m.MaxDrawdown,
		Payload:      datatypes.JSON(payload),
	}, nil
}

func fromMetricsEntity(e *entity.BacktestMetrics) (model.MetricsSnapshot, error) {
	snap := model.MetricsSnapshot{RunID: e.RunID, RunDate: e.RunDate}
	if len(e.Payload) > 0 {
		if err := json.Unmarshal(e.Payload, &snap.StrategyMetrics); err != nil {
			return snap, fmt.Errorf("decode metrics payload %d: %w", e.ID, err)
		}
	}
	// 列与 payload 不一致时以列为准
	snap.StrategyType = e.StrategyType
	snap.Version = e.Version
	snap.TotalTrades = e.TotalTrades
	snap.WinRate = e.WinRate
	snap.AvgReturn = e.AvgReturn
	snap.TotalReturn = e.TotalReturn
	snap.SharpeRatio = e.SharpeRatio
	snap.MaxDrawdown = e.MaxDrawdown
	return snap, nil
}

func toComparisonEntity(runID string, c *model.ComparisonResult) (*entity.BacktestComparison, error) {
	criteria, err := json.Marshal(c.Criteria)
	if err != nil {
		return nil, fmt.Errorf("encode criteria: %w", err)
	}
	deltas, err := json.Marshal(c.Deltas)
	if err != nil {
		return nil, fmt.Errorf("encode deltas: %w", err)
	}
	return &entity.BacktestComparison{
		RunID:           runID,
		RunDate:         dateOnly(c.RunDate),
		StrategyType:    c.StrategyType,
		Recommendation:  string(c.Recommendation),
		Confidence:      string(c.Confidence),
		CriteriaMet:     c.CriteriaMet,
		TTestPValue:     c.TTestPValue,
		ChiSquarePValue: c.ChiSquarePValue,
		DegradedReason:  c.DegradedReason,
		Criteria:        datatypes.JSON(criteria),
		Deltas:          datatypes.JSON(deltas),
	}, nil
}

func fromComparisonEntity(e *entity.BacktestComparison) (model.ComparisonSnapshot, error) {
	snap := model.ComparisonSnapshot{
		RunID: e.RunID,
		ComparisonResult: model.ComparisonResult{
			RunDate:         e.RunDate,
			StrategyType:    e.StrategyType,
			Recommendation:  model.Recommendation(e.Recommendation),
			Confidence:      model.Confidence(e.Confidence),
			CriteriaMet:     e.CriteriaMet,
			TTestPValue:     e.TTestPValue,
			ChiSquarePValue: e.ChiSquarePValue,
			DegradedReason:  e.DegradedReason,
		},
	}
	if len(e.Criteria) > 0 {
		if err := json.Unmarshal(e.Criteria, &snap.Criteria); err != nil {
			return snap, fmt.Errorf("decode criteria %d: %w", e.ID, err)
		}
	}
	if len(e.Deltas) > 0 {
		if err := json.Unmarshal(e.Deltas, &snap.Deltas); err != nil {
			return snap, fmt.Errorf("decode deltas %d: %w", e.ID, err)
		}
	}
	return snap, nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func limitOf(q model.HistoryQuery) int {
	if q.Limit <= 0 {
		return defaultHistoryLimit
	}
	return q.Limit
}
