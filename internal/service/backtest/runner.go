package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"backflow/internal/dao"
	"backflow/internal/model"
	"backflow/internal/service/backtest/compare"
	"backflow/internal/service/backtest/detector"
	"backflow/internal/service/backtest/metrics"
	"backflow/internal/service/backtest/provider"
	"backflow/internal/service/backtest/simulator"
	"backflow/internal/strategy"
	"backflow/pkg/logger"
	"backflow/utils/uuid"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 8

// runIDs 进程内共享，保证同一毫秒内的运行 ID 也不重复
var runIDs = uuid.NewNode(1)

// Recorder 追加写入运行结果
type Recorder interface {
	Record(result any) error
}

// Publisher 对外广播运行结果
type Publisher interface {
	Publish(ctx context.Context, summary *model.RunSummary) error
}

// Notifier 运行结束后的通知
type Notifier interface {
	Notify(ctx context.Context, summary *model.RunSummary) error
}

// Simulation 单个标的的交易模拟
type Simulation interface {
	Run(series *model.Series, signals []model.Signal) ([]model.Trade, error)
}

// SimulatorFactory 按策略配置构造模拟器，每个版本调用一次
type SimulatorFactory func(cfg *strategy.Config) Simulation

func newSimulation(cfg *strategy.Config) Simulation {
	return simulator.New(cfg)
}

// Request 一次 v1/v2 对比回测
type Request struct {
	StrategyType string
	From         time.Time
	To           time.Time
	RunDate      time.Time // 为空时取 To
	Persist      bool
}

// Runner 串起 行情 -> 信号 -> 模拟 -> 指标 -> 对比 -> 落库/通知
type Runner struct {
	provider     provider.Provider
	universe     []provider.Listing
	workers      int
	fetchTimeout time.Duration
	aggregator   *metrics.Aggregator
	newSim       SimulatorFactory

	history   dao.HistoryDao
	recorder  Recorder
	publisher Publisher
	notifiers []Notifier
}

type Option func(*Runner)

func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(r *Runner) { r.fetchTimeout = d }
}

func WithAggregator(a *metrics.Aggregator) Option {
	return func(r *Runner) { r.aggregator = a }
}

func WithSimulator(f SimulatorFactory) Option {
	return func(r *Runner) {
		if f != nil {
			r.newSim = f
		}
	}
}

func WithHistory(h dao.HistoryDao) Option {
	return func(r *Runner) { r.history = h }
}

func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

func WithPublisher(p Publisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// WithNotifier 可多次调用，按顺序通知
func WithNotifier(n Notifier) Option {
	return func(r *Runner) {
		if n != nil {
			r.notifiers = append(r.notifiers, n)
		}
	}
}

func NewRunner(p provider.Provider, universe []provider.Listing, opts ...Option) *Runner {
	r := &Runner{
		provider:   p,
		universe:   universe,
		workers:    defaultWorkers,
		aggregator: metrics.NewAggregator(metrics.DefaultPeriodsPerYear),
		newSim:     newSimulation,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// variantRun 一个策略版本的中间结果
type variantRun struct {
	cfg     *strategy.Config
	signals int
	trades  []model.Trade
	failed  map[string]error
}

// Run 执行一次对比回测。
// 配置错误在模拟前直接返回；数据不足的标的记入 Skipped；
// 模拟不变量错误记入 Failed 并和落库/通知错误一起合并返回，此时 summary 仍然有效。
func (r *Runner) Run(ctx context.Context, req Request) (*model.RunSummary, error) {
	v1, v2, err := strategy.Pair(req.StrategyType)
	if err != nil {
		return nil, err
	}
	if !req.From.Before(req.To) {
		return nil, fmt.Errorf("invalid range %s .. %s", req.From.Format(time.DateOnly), req.To.Format(time.DateOnly))
	}
	runDate := req.RunDate
	if runDate.IsZero() {
		runDate = req.To
	}

	summary := &model.RunSummary{
		RunID:        runIDs.GenSnowStr(),
		RunDate:      runDate,
		StrategyType: req.StrategyType,
		From:         req.From,
		To:           req.To,
		Skipped:      map[string]string{},
		Failed:       map[string]string{},
		StartedAt:    time.Now(),
	}
	logger.Info("backtest start",
		logger.Pair("run_id", summary.RunID),
		logger.Pair("strategy_type", req.StrategyType),
		logger.Pair("symbols", len(r.universe)))

	series := r.fetch(ctx, req.From, req.To, summary.Skipped)

	// v1/v2 互不依赖，各自完成后才进入对比（屏障）
	runs := [2]*variantRun{{cfg: v1}, {cfg: v2}}
	var g errgroup.Group
	for _, vr := range runs {
		vr := vr
		g.Go(func() error {
			r.simulate(vr, series)
			return nil
		})
	}
	_ = g.Wait()

	var errs error
	for _, vr := range runs {
		for _, sym := range sortedKeys(vr.failed) {
			ferr := vr.failed[sym]
			msg := vr.cfg.Version + ": " + ferr.Error()
			if prev, ok := summary.Failed[sym]; ok {
				msg = prev + "; " + msg
			}
			summary.Failed[sym] = msg
			errs = multierr.Append(errs, ferr)
		}
	}

	m1 := r.aggregator.Aggregate(req.StrategyType, v1.Version, runs[0].trades)
	m2 := r.aggregator.Aggregate(req.StrategyType, v2.Version, runs[1].trades)
	summary.V1 = model.VariantResult{Version: v1.Version, Signals: runs[0].signals, Trades: runs[0].trades, Metrics: m1}
	summary.V2 = model.VariantResult{Version: v2.Version, Signals: runs[1].signals, Trades: runs[1].trades, Metrics: m2}
	summary.Comparison = compare.Compare(runDate, req.StrategyType,
		compare.Side{Metrics: m1, Trades: runs[0].trades},
		compare.Side{Metrics: m2, Trades: runs[1].trades})
	summary.FinishedAt = time.Now()

	logger.Info("backtest finished",
		logger.Pair("run_id", summary.RunID),
		logger.Pair("recommendation", summary.Comparison.Recommendation),
		logger.Pair("confidence", summary.Comparison.Confidence),
		logger.Pair("criteria_met", summary.Comparison.CriteriaMet),
		logger.Pair("skipped", len(summary.Skipped)),
		logger.Pair("failed", len(summary.Failed)))

	errs = multierr.Append(errs, r.deliver(ctx, summary, req.Persist))
	return summary, errs
}

// fetch 并发加载全部标的，结果按 universe 顺序写入各自的槽位
func (r *Runner) fetch(ctx context.Context, from, to time.Time, skipped map[string]string) []*model.Series {
	slots := make([]*model.Series, len(r.universe))
	fails := make([]error, len(r.universe))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, l := range r.universe {
		i, l := i, l
		g.Go(func() error {
			fctx := gctx
			if r.fetchTimeout > 0 {
				var cancel context.CancelFunc
				fctx, cancel = context.WithTimeout(gctx, r.fetchTimeout)
				defer cancel()
			}
			s, err := r.provider.Series(fctx, l.Symbol, from, to)
			if err != nil {
				fails[i] = err
				return nil
			}
			if s.Sector == "" {
				s.Sector = l.Sector
			}
			slots[i] = s
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*model.Series, 0, len(slots))
	for i, s := range slots {
		if err := fails[i]; err != nil {
			sym := r.universe[i].Symbol
			var gap *model.DataGapError
			if errors.As(err, &gap) {
				skipped[sym] = gap.Reason
			} else {
				skipped[sym] = err.Error()
			}
			logger.Warn("symbol skipped", logger.Pair("symbol", sym), logger.Pair("err", err.Error()))
			continue
		}
		out = append(out, s)
	}
	return out
}

// simulate 一个策略版本：逐标的扫描信号，按日截取前 max_results，再逐标的模拟
func (r *Runner) simulate(vr *variantRun, series []*model.Series) {
	det := detector.New(vr.cfg)
	sim := r.newSim(vr.cfg)

	detected := make([][]model.Signal, len(series))
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, s := range series {
		i, s := i, s
		g.Go(func() error {
			detected[i] = det.Scan(s)
			return nil
		})
	}
	_ = g.Wait()

	var all []model.Signal
	for _, sigs := range detected {
		all = append(all, sigs...)
	}
	shortlist := detector.Shortlist(all, vr.cfg.MaxResults)
	vr.signals = len(shortlist)

	bySymbol := make(map[string][]model.Signal)
	for _, sig := range shortlist {
		bySymbol[sig.Symbol] = append(bySymbol[sig.Symbol], sig)
	}

	trades := make([][]model.Trade, len(series))
	fails := make([]error, len(series))
	for i, s := range series {
		i, s := i, s
		sigs, ok := bySymbol[s.Symbol]
		if !ok {
			continue
		}
		g.Go(func() error {
			trades[i], fails[i] = sim.Run(s, sigs)
			return nil
		})
	}
	_ = g.Wait()

	vr.failed = map[string]error{}
	for i, s := range series {
		if fails[i] != nil {
			// 该标的的交易全部作废
			vr.failed[s.Symbol] = fails[i]
			logger.Error("simulation invariant violated",
				logger.Pair("version", vr.cfg.Version),
				logger.Pair("symbol", s.Symbol),
				logger.Pair("err", fails[i].Error()))
			continue
		}
		vr.trades = append(vr.trades, trades[i]...)
	}
	sortTrades(vr.trades)
}

// deliver 落库、写文件、广播、通知；各步骤互不影响，错误合并返回
func (r *Runner) deliver(ctx context.Context, s *model.RunSummary, persist bool) error {
	var errs error
	if persist && r.history != nil {
		errs = multierr.Append(errs, r.persist(ctx, s))
	}
	if r.recorder != nil {
		if err := r.recorder.Record(s); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("record run %s: %w", s.RunID, err))
		}
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, s); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("publish run %s: %w", s.RunID, err))
		}
	}
	for _, n := range r.notifiers {
		if err := n.Notify(ctx, s); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("notify run %s: %w", s.RunID, err))
		}
	}
	if errs != nil {
		logger.Error("deliver run summary", logger.Pair("run_id", s.RunID), logger.Pair("err", errs.Error()))
	}
	return errs
}

func (r *Runner) persist(ctx context.Context, s *model.RunSummary) error {
	if err := r.history.SaveMetrics(ctx, s.RunID, s.RunDate, &s.V1.Metrics); err != nil {
		return fmt.Errorf("save %s metrics: %w", s.V1.Version, err)
	}
	if err := r.history.SaveMetrics(ctx, s.RunID, s.RunDate, &s.V2.Metrics); err != nil {
		return fmt.Errorf("save %s metrics: %w", s.V2.Version, err)
	}
	if err := r.history.SaveComparison(ctx, s.RunID, &s.Comparison); err != nil {
		return fmt.Errorf("save comparison: %w", err)
	}
	return nil
}

// sortTrades 按 (标的, 入场日) 排序
func sortTrades(trades []model.Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		if trades[i].Symbol != trades[j].Symbol {
			return trades[i].Symbol < trades[j].Symbol
		}
		return trades[i].EntryDate.Before(trades[j].EntryDate)
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SkippedLines 跳过原因，按代码排序，最多 n 条
func SkippedLines(s *model.RunSummary, n int) []string {
	keys := sortedKeys(s.Skipped)
	out := make([]string, 0, min(n, len(keys)))
	for _, k := range keys {
		if len(out) == n {
			break
		}
		out = append(out, k+": "+strings.TrimSpace(s.Skipped[k]))
	}
	return out
}
