package backtest

import (
	"fmt"
	"strings"
	"time"

	"backflow/internal/model"
)

const maxSkippedInReport = 10

// RenderText 纯文本运行报告，用于邮件正文和命令行输出
func RenderText(s *model.RunSummary) string {
	var b strings.Builder
	c := s.Comparison

	fmt.Fprintf(&b, "Backtest %s  run %s\n", s.StrategyType, s.RunID)
	fmt.Fprintf(&b, "Window %s .. %s  (run date %s)\n\n",
		s.From.Format(time.DateOnly), s.To.Format(time.DateOnly), s.RunDate.Format(time.DateOnly))

	fmt.Fprintf(&b, "Recommendation: %s (confidence %s, %d/5 criteria)\n", c.Recommendation, c.Confidence, c.CriteriaMet)
	for _, cr := range c.Criteria {
		mark := " "
		if cr.Met {
			mark = "x"
		}
		fmt.Fprintf(&b, "  [%s] %s\n", mark, cr.Name)
	}
	fmt.Fprintf(&b, "  t-test p=%s  chi-square p=%s\n", fmtPtr(c.TTestPValue, 4), fmtPtr(c.ChiSquarePValue, 4))
	if c.DegradedReason != "" {
		fmt.Fprintf(&b, "  degraded: %s\n", c.DegradedReason)
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "%-18s %12s %12s\n", "", s.V1.Version, s.V2.Version)
	row := func(name, a, bb string) {
		fmt.Fprintf(&b, "%-18s %12s %12s\n", name, a, bb)
	}
	m1, m2 := s.V1.Metrics, s.V2.Metrics
	row("signals", fmt.Sprint(s.V1.Signals), fmt.Sprint(s.V2.Signals))
	row("trades", fmt.Sprint(m1.TotalTrades), fmt.Sprint(m2.TotalTrades))
	row("win rate", fmtPct(m1.WinRate), fmtPct(m2.WinRate))
	row("avg return %", fmtPtr(m1.AvgReturn, 2), fmtPtr(m2.AvgReturn, 2))
	row("total return %", fmt.Sprintf("%.2f", m1.TotalReturn), fmt.Sprintf("%.2f", m2.TotalReturn))
	row("max drawdown %", fmt.Sprintf("%.2f", m1.MaxDrawdown), fmt.Sprintf("%.2f", m2.MaxDrawdown))
	row("sharpe", fmtPtr(m1.SharpeRatio, 2), fmtPtr(m2.SharpeRatio, 2))
	row("sortino", fmtPtr(m1.SortinoRatio, 2), fmtPtr(m2.SortinoRatio, 2))
	row("avg hold days", fmtPtr(m1.AvgHoldDays, 1), fmtPtr(m2.AvgHoldDays, 1))

	if len(s.Failed) > 0 {
		b.WriteString("\nFailed symbols:\n")
		for _, k := range sortedKeys(s.Failed) {
			fmt.Fprintf(&b, "  %s: %s\n", k, s.Failed[k])
		}
	}
	if len(s.Skipped) > 0 {
		fmt.Fprintf(&b, "\nSkipped symbols (%d):\n", len(s.Skipped))
		for _, line := range SkippedLines(s, maxSkippedInReport) {
			fmt.Fprintf(&b, "  %s\n", line)
		}
	}
	return b.String()
}

// Subject 邮件标题
func Subject(s *model.RunSummary) string {
	return fmt.Sprintf("[backflow] %s %s: %s (%s)",
		s.StrategyType, s.RunDate.Format(time.DateOnly), s.Comparison.Recommendation, s.Comparison.Confidence)
}

func fmtPtr(v *float64, prec int) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", prec, *v)
}

func fmtPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *v*100)
}
