package simulator

import (
	"errors"
	"testing"
	"time"

	"backflow/internal/model"
	"backflow/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var d0 = time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)

func day(i int) time.Time { return d0.AddDate(0, 0, i) }

// flat 生成 n 根价格恒为 100、振幅 ±1 的 K 线，EMA20 在收盘价下方
func flat(n int) *model.Series {
	bars := make([]model.PriceBar, n)
	for i := range bars {
		bars[i] = model.PriceBar{
			Date: day(i), Open: 100, High: 101, Low: 99, Close: 100, Ready: true,
			Indicators: model.Indicators{EMA20: 98, EMA50: 96, SMA200: 90},
		}
	}
	return &model.Series{Symbol: "WES.AX", Sector: "Consumer Discretionary", Bars: bars}
}

func cfg() *strategy.Config {
	return &strategy.Config{
		Name:         "swing",
		Version:      "v1",
		EntryTiming:  strategy.NextOpen,
		MaxHoldDays:  3,
		StopPct:      5,
		TargetPct:    10,
		EntrySignals: []model.SignalType{model.SignalTrendFollow, model.SignalBreakout},
		Exits: map[model.SignalType]strategy.ExitOverride{
			model.SignalBreakout: {StopPct: 5, TargetPct: 12},
		},
	}
}

func sig(i int) model.Signal {
	return model.Signal{Symbol: "WES.AX", Date: day(i), Type: model.SignalTrendFollow, Score: 70}
}

func TestRun_ExitChain(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(s *model.Series)
		reason    model.ExitReason
		exitDay   int
		exitPrice float64
		ret       float64
	}{
		{
			name:      "target",
			mutate:    func(s *model.Series) { s.Bars[3].High = 111 },
			reason:    model.ExitTarget,
			exitDay:   3,
			exitPrice: 110,
			ret:       10,
		},
		{
			name:      "stop",
			mutate:    func(s *model.Series) { s.Bars[4].Low = 94 },
			reason:    model.ExitStop,
			exitDay:   4,
			exitPrice: 95,
			ret:       -5,
		},
		{
			name: "stop wins over target on the same bar",
			mutate: func(s *model.Series) {
				s.Bars[3].Low, s.Bars[3].High = 90, 115
			},
			reason:    model.ExitStop,
			exitDay:   3,
			exitPrice: 95,
			ret:       -5,
		},
		{
			name:      "max hold days",
			mutate:    func(s *model.Series) { s.Bars[5].Close = 103 },
			reason:    model.ExitTime,
			exitDay:   5,
			exitPrice: 103,
			ret:       3,
		},
		{
			name:      "entry bar is not evaluated",
			mutate:    func(s *model.Series) { s.Bars[2].Low, s.Bars[3].High = 50, 110 },
			reason:    model.ExitTarget,
			exitDay:   3,
			exitPrice: 110,
			ret:       10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := flat(10)
			tt.mutate(s)
			trades, err := New(cfg()).Run(s, []model.Signal{sig(1)})
			require.NoError(t, err)
			require.Len(t, trades, 1)

			tr := trades[0]
			assert.Equal(t, tt.reason, tr.ExitReason)
			assert.True(t, tr.EntryDate.Equal(day(2)), "fills at next open")
			assert.Equal(t, 100.0, tr.EntryPrice)
			assert.True(t, tr.ExitDate.Equal(day(tt.exitDay)))
			assert.Equal(t, tt.exitPrice, tr.ExitPrice)
			assert.InDelta(t, tt.ret, tr.ReturnPct, 1e-9)
			assert.Equal(t, tt.exitDay-2, tr.HoldDays)
			assert.Equal(t, 95.0, tr.StopPrice)
			assert.Equal(t, 110.0, tr.TargetPrice)
		})
	}
}

func TestRun_TrendExit(t *testing.T) {
	c := cfg()
	c.MaxHoldDays = 10
	c.TrendExit = &strategy.TrendExit{MA: "ema20", Days: 2}

	s := flat(12)
	s.Bars[3].Close = 97 // 一天跌破后收复，计数清零
	s.Bars[5].Close = 97
	s.Bars[6].Close = 96

	trades, err := New(c).Run(s, []model.Signal{sig(1)})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, model.ExitTrend, trades[0].ExitReason)
	assert.True(t, trades[0].ExitDate.Equal(day(6)))
	assert.Equal(t, 96.0, trades[0].ExitPrice)
}

func TestRun_DataEndForceClose(t *testing.T) {
	c := cfg()
	c.MaxHoldDays = 30
	s := flat(6)
	s.Bars[5].Close = 104

	trades, err := New(c).Run(s, []model.Signal{sig(1)})
	require.NoError(t, err)
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, model.ExitDataEnd, tr.ExitReason)
	assert.True(t, tr.ExitDate.Equal(day(5)))
	assert.Equal(t, 104.0, tr.ExitPrice)
	assert.Equal(t, 3, tr.HoldDays)
	assert.True(t, tr.ExitDate.After(tr.EntryDate))
}

func TestRun_IncompleteLifecyclesDiscarded(t *testing.T) {
	s := flat(5)

	// 最后一根 K 线上的信号没有次日开盘可成交
	trades, err := New(cfg()).Run(s, []model.Signal{sig(4)})
	require.NoError(t, err)
	assert.Empty(t, trades)

	// 倒数第二根的信号在最后一根成交，之后没有 K 线
	trades, err = New(cfg()).Run(s, []model.Signal{sig(3)})
	require.NoError(t, err)
	assert.Empty(t, trades)

	c := cfg()
	c.EntryTiming = strategy.SignalClose
	trades, err = New(c).Run(s, []model.Signal{sig(4)})
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestRun_NoPyramidingAndNoOverlap(t *testing.T) {
	s := flat(15)
	s.Bars[4].High = 111 // 第一笔在 day4 止盈

	signals := []model.Signal{sig(1), sig(2), sig(3), sig(4), sig(5)}
	trades, err := New(cfg()).Run(s, signals)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	first, second := trades[0], trades[1]
	assert.True(t, first.EntryDate.Equal(day(2)))
	assert.True(t, first.ExitDate.Equal(day(4)))
	// day2/day3 持仓中、day4 平仓当日的信号被丢弃，day5 的信号在 day6 开盘成交
	assert.True(t, second.EntryDate.Equal(day(6)))
	assert.True(t, second.EntryDate.After(first.ExitDate))
	assert.Equal(t, model.ExitTime, second.ExitReason)

	for _, tr := range trades {
		assert.True(t, tr.ExitDate.After(tr.EntryDate))
	}
	assert.NoError(t, CheckNoOverlap("WES.AX", trades))
}

func TestRun_SignalCloseTiming(t *testing.T) {
	c := cfg()
	c.EntryTiming = strategy.SignalClose
	c.MaxHoldDays = 1
	c.StopPct, c.TargetPct = 2, 2

	s := flat(5)
	s.Bars[1].Close = 100
	s.Bars[2].Close = 101

	trades, err := New(c).Run(s, []model.Signal{sig(1)})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].EntryDate.Equal(day(1)))
	assert.True(t, trades[0].ExitDate.Equal(day(2)))
	assert.Equal(t, model.ExitTime, trades[0].ExitReason)
	assert.InDelta(t, 1.0, trades[0].ReturnPct, 1e-9)
}

func TestRun_Transitions(t *testing.T) {
	tests := []struct {
		name   string
		timing strategy.EntryTiming
		want   []Transition
	}{
		{
			name:   "signal_close fills on the signal bar",
			timing: strategy.SignalClose,
			want: []Transition{
				{Date: day(1), From: Idle, To: PendingEntry},
				{Date: day(1), From: PendingEntry, To: Holding},
				{Date: day(2), From: Holding, To: Closed},
				{Date: day(3), From: Closed, To: Idle},
			},
		},
		{
			name:   "next_open fills on the following bar",
			timing: strategy.NextOpen,
			want: []Transition{
				{Date: day(1), From: Idle, To: PendingEntry},
				{Date: day(2), From: PendingEntry, To: Holding},
				{Date: day(3), From: Holding, To: Closed},
				{Date: day(4), From: Closed, To: Idle},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := cfg()
			c.EntryTiming = tt.timing
			c.MaxHoldDays = 1

			var got []Transition
			trades, err := New(c, WithTrace(func(tr Transition) { got = append(got, tr) })).
				Run(flat(5), []model.Signal{sig(1)})
			require.NoError(t, err)
			require.Len(t, trades, 1)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRun_PerTypeExitLevelsRounded(t *testing.T) {
	s := flat(6)
	s.Bars[2].Open = 33.33
	breakout := sig(1)
	breakout.Type = model.SignalBreakout

	c := cfg()
	c.MaxHoldDays = 1
	trades, err := New(c).Run(s, []model.Signal{breakout})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	// 33.33 * 0.95 = 31.6635, 33.33 * 1.12 = 37.3296
	assert.Equal(t, 31.66, trades[0].StopPrice)
	assert.Equal(t, 37.33, trades[0].TargetPrice)
	assert.Equal(t, model.SignalBreakout, trades[0].SignalType)
}

func TestRun_IgnoresOtherSymbolsAndPicksBestSignal(t *testing.T) {
	s := flat(8)
	other := sig(1)
	other.Symbol = "JBH.AX"
	low := sig(2)
	high := sig(2)
	high.Type, high.Score = model.SignalBreakout, 90

	trades, err := New(cfg()).Run(s, []model.Signal{other, low, high})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].EntryDate.Equal(day(3)))
	assert.Equal(t, model.SignalBreakout, trades[0].SignalType)
	assert.Equal(t, 90.0, trades[0].SignalScore)
}

func TestRun_Deterministic(t *testing.T) {
	s := flat(20)
	s.Bars[4].High = 111
	signals := []model.Signal{sig(1), sig(8), sig(14)}

	a, err := New(cfg()).Run(s, signals)
	require.NoError(t, err)
	b, err := New(cfg()).Run(s, signals)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	require.NotEmpty(t, a)
	assert.NotEmpty(t, a[0].ID)
}

func TestCheckNoOverlap(t *testing.T) {
	trades := []model.Trade{
		{EntryDate: day(1), ExitDate: day(4)},
		{EntryDate: day(4), ExitDate: day(6)},
	}
	err := CheckNoOverlap("WES.AX", trades)
	var inv *model.SimulationInvariantError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "WES.AX", inv.Symbol)
	assert.True(t, inv.PrevExit.Equal(day(4)))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "IDLE", Idle.String())
	assert.Equal(t, "PENDING_ENTRY", PendingEntry.String())
	assert.Equal(t, "HOLDING", Holding.String())
	assert.Equal(t, "CLOSED", Closed.String())
}
