package simulator

import (
	"time"

	"backflow/internal/model"
	"backflow/internal/strategy"
	"backflow/utils/uuid"

	"github.com/shopspring/decimal"
)

// State 单个标的的持仓状态
type State int

const (
	Idle         State = iota
	PendingEntry       // 信号已接受，等待成交
	Holding
	Closed // 当日已平仓，次日回到 Idle
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case PendingEntry:
		return "PENDING_ENTRY"
	case Holding:
		return "HOLDING"
	case Closed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// position 持仓中的可变状态，平仓时转换为不可变的 Trade
type position struct {
	signal     model.Signal
	entryIdx   int
	entryPrice float64
	stop       float64
	target     float64
	belowMA    int // 连续收盘低于趋势均线的天数
}

// Transition 一次状态迁移，Date 为发生迁移的 K 线日期
type Transition struct {
	Date     time.Time
	From, To State
}

// Simulator 把一个标的的信号转换为完整的持仓生命周期
type Simulator struct {
	cfg   *strategy.Config
	exits []exitRule
	trace func(Transition)
}

type Option func(*Simulator)

// WithTrace 每次状态迁移时回调，用于排查单个标的的持仓过程
func WithTrace(f func(Transition)) Option {
	return func(s *Simulator) { s.trace = f }
}

func New(cfg *strategy.Config, opts ...Option) *Simulator {
	s := &Simulator{cfg: cfg, exits: exitChain(cfg)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run 逐日推进状态机。signals 只应包含该标的的信号，同一天多个时取得分最高者。
// 返回的 Trade 按入场日期排列；出现重叠持仓时返回 SimulationInvariantError。
func (s *Simulator) Run(series *model.Series, signals []model.Signal) ([]model.Trade, error) {
	byDate := make(map[time.Time]model.Signal, len(signals))
	for _, sig := range signals {
		if sig.Symbol != series.Symbol {
			continue
		}
		if cur, ok := byDate[sig.Date]; !ok || sig.Score > cur.Score {
			byDate[sig.Date] = sig
		}
	}

	var (
		trades []model.Trade
		state  = Idle
		pos    *position
		bars   = series.Bars
	)
	move := func(to State, date time.Time) {
		if s.trace != nil {
			s.trace(Transition{Date: date, From: state, To: to})
		}
		state = to
	}
	for i, bar := range bars {
		switch state {
		case Closed:
			move(Idle, bar.Date)
		case PendingEntry:
			// next_open：次日开盘成交
			s.fill(pos, i, bar.Open)
			move(Holding, bar.Date)
			continue
		case Holding:
			if t, ok := s.evaluate(series, pos, i); ok {
				trades = append(trades, t)
				pos = nil
				move(Closed, bar.Date)
			}
			continue
		}

		// Idle：持仓期间和平仓当日的信号都被丢弃
		sig, ok := byDate[bar.Date]
		if !ok {
			continue
		}
		pos = &position{signal: sig}
		move(PendingEntry, bar.Date)
		if s.cfg.EntryTiming == strategy.SignalClose {
			// signal_close：挂单在信号当日收盘成交
			s.fill(pos, i, bar.Close)
			move(Holding, bar.Date)
		}
	}

	// 窗口结束仍持仓：按最后收盘价强制平仓；入场后没有新 K 线的持仓和未成交的挂单直接丢弃
	if state == Holding && pos.entryIdx < len(bars)-1 {
		last := len(bars) - 1
		trades = append(trades, s.close(series, pos, last, bars[last].Close, model.ExitDataEnd))
	}

	if err := CheckNoOverlap(series.Symbol, trades); err != nil {
		return trades, err
	}
	return trades, nil
}

// fill 挂单成交，按成交价计算止损止盈
func (s *Simulator) fill(pos *position, idx int, price float64) {
	stopPct, targetPct := s.cfg.ExitLevels(pos.signal.Type)
	entry := decimal.NewFromFloat(price)
	hundred := decimal.NewFromInt(100)
	pos.entryIdx = idx
	pos.entryPrice = price
	pos.stop = entry.Mul(hundred.Sub(decimal.NewFromFloat(stopPct))).Div(hundred).Round(2).InexactFloat64()
	pos.target = entry.Mul(hundred.Add(decimal.NewFromFloat(targetPct))).Div(hundred).Round(2).InexactFloat64()
}

// evaluate 按优先级检查出场规则，首个命中者生效
func (s *Simulator) evaluate(series *model.Series, pos *position, i int) (model.Trade, bool) {
	bar := series.Bars[i]
	hold := i - pos.entryIdx
	for _, r := range s.exits {
		if price, ok := r.check(pos, bar, hold); ok {
			return s.close(series, pos, i, price, r.reason), true
		}
	}
	return model.Trade{}, false
}

func (s *Simulator) close(series *model.Series, pos *position, exitIdx int, price float64, reason model.ExitReason) model.Trade {
	entryBar := series.Bars[pos.entryIdx]
	exitBar := series.Bars[exitIdx]
	return model.Trade{
		ID:          uuid.TradeID(series.Symbol, entryBar.Date, string(pos.signal.Type)),
		Symbol:      series.Symbol,
		Sector:      series.Sector,
		SignalType:  pos.signal.Type,
		SignalScore: pos.signal.Score,
		EntryDate:   entryBar.Date,
		EntryPrice:  pos.entryPrice,
		ExitDate:    exitBar.Date,
		ExitPrice:   price,
		ExitReason:  reason,
		ReturnPct:   ReturnPct(pos.entryPrice, price),
		HoldDays:    exitIdx - pos.entryIdx,
		StopPrice:   pos.stop,
		TargetPrice: pos.target,
	}
}

// ReturnPct 百分比收益，保留 4 位小数
func ReturnPct(entry, exit float64) float64 {
	if entry == 0 {
		return 0
	}
	e := decimal.NewFromFloat(entry)
	return decimal.NewFromFloat(exit).Sub(e).Div(e).Mul(decimal.NewFromInt(100)).Round(4).InexactFloat64()
}

// CheckNoOverlap 同一标的的持仓区间不得重叠：下一笔入场必须晚于上一笔出场
func CheckNoOverlap(symbol string, trades []model.Trade) error {
	for i := 1; i < len(trades); i++ {
		prev, next := trades[i-1], trades[i]
		if !next.EntryDate.After(prev.ExitDate) {
			return &model.SimulationInvariantError{Symbol: symbol, PrevExit: prev.ExitDate, NextEntry: next.EntryDate}
		}
	}
	return nil
}
