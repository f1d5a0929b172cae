package model

import (
	"fmt"
	"strings"
	"time"
)

// DataGapError 行情不足以完成预热或回测，跳过该标的
type DataGapError struct {
	Symbol string
	Reason string
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap for %s: %s", e.Symbol, e.Reason)
}

// ConfigError 策略配置缺失或非法，在任何模拟开始之前终止运行
type ConfigError struct {
	Source string   // 配置来源，如 swing_v1
	Issues []string // 每个非法字段一条
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid strategy config %s: %s", e.Source, strings.Join(e.Issues, "; "))
}

// SimulationInvariantError 同一标的出现重叠持仓
type SimulationInvariantError struct {
	Symbol    string
	PrevExit  time.Time
	NextEntry time.Time
}

func (e *SimulationInvariantError) Error() string {
	return fmt.Sprintf("overlapping trades for %s: entry %s before previous exit %s",
		e.Symbol, e.NextEntry.Format(time.DateOnly), e.PrevExit.Format(time.DateOnly))
}

// StatisticalTestError 样本不足无法做显著性检验
type StatisticalTestError struct {
	Test   string
	Reason string
}

func (e *StatisticalTestError) Error() string {
	return fmt.Sprintf("%s not computed: %s", e.Test, e.Reason)
}
