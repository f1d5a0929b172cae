package api

import (
	"fmt"
	"time"

	"backflow/conf"
	"backflow/internal/dao"
	"backflow/internal/dao/query"
	"backflow/internal/handler/history"
	"backflow/internal/model/entity"
	"backflow/internal/router"
	"backflow/internal/service/backtest"
	"backflow/internal/service/backtest/metrics"
	"backflow/internal/service/backtest/provider"
	"backflow/internal/strategy"
	"backflow/pkg/cache"
	"backflow/pkg/db"
	"backflow/pkg/kafka"
	"backflow/pkg/logger"
	"backflow/pkg/mail"
	"backflow/pkg/recorder"
	"backflow/pkg/telegram"

	"gorm.io/gorm"
)

// Bootstrap 加载配置、初始化日志并注册全部策略；策略配置有误时直接返回 ConfigError
func Bootstrap(path string) (*conf.Config, error) {
	if err := conf.LoadConfig(path); err != nil {
		return nil, err
	}
	cfg := &conf.AppConfig
	logger.InitLogger(&cfg.Log, cfg.AppName)
	if err := strategy.LoadAll(cfg.Backtest.Strategies); err != nil {
		return nil, err
	}
	logger.Info("strategies loaded", logger.Pair("keys", strategy.Keys()))
	return cfg, nil
}

// App 运行期依赖
type App struct {
	Config  *conf.Config
	DB      *gorm.DB
	History dao.HistoryDao
	Runner  *backtest.Runner
	closers []func()
}

// NewApp 组装回测所需的依赖；withDB 为 false 时不连接数据库、不落库。
// Redis、Kafka、邮件未配置或不可用时跳过对应功能。
func NewApp(cfg *conf.Config, withDB bool) (*App, error) {
	app := &App{Config: cfg}

	universe, err := provider.LoadUniverse(cfg.Backtest.UniverseFile)
	if err != nil {
		return nil, err
	}
	var p provider.Provider = provider.NewFileProvider(cfg.Backtest.DataDir, universe, provider.WithDefaults(cfg.Technical))
	if cfg.Redis.Addr != "" {
		if err := cache.InitRedis(cfg.Redis); err != nil {
			logger.Warn("redis unavailable, bar cache disabled", logger.Pair("err", err.Error()))
		} else {
			ttl := time.Duration(cfg.Redis.BarTTL) * time.Second
			p = provider.NewCachedProvider(p, cache.NewRedisStore(cache.GetRedisClient()), ttl)
			app.closers = append(app.closers, cache.CloseRedis)
		}
	}

	opts := []backtest.Option{
		backtest.WithWorkers(cfg.Backtest.Workers),
		backtest.WithFetchTimeout(cfg.Backtest.FetchTimeout),
		backtest.WithAggregator(metrics.NewAggregator(cfg.Metrics.PeriodsPerYear)),
	}
	if cfg.Backtest.RecordFile != "" {
		opts = append(opts, backtest.WithRecorder(recorder.NewJSONFileRecorder(cfg.Backtest.RecordFile)))
	}
	if withDB {
		if err := app.openDB(); err != nil {
			return nil, err
		}
		opts = append(opts, backtest.WithHistory(app.History))
	}
	if cfg.Kafka.Broker != "" && cfg.Kafka.Topic != "" {
		producer := kafka.NewKafkaProducer(cfg.Kafka.Broker, cfg.Kafka.Topic)
		opts = append(opts, backtest.WithPublisher(backtest.NewKafkaPublisher(producer)))
		app.closers = append(app.closers, producer.Close)
	}
	if mailer := mail.NewMailer(cfg.Email); mailer.Enabled() {
		opts = append(opts, backtest.WithNotifier(backtest.NewMailNotifier(mailer)))
	}
	if tg := telegram.NewClient(cfg.Telegram); tg.Enabled() {
		opts = append(opts, backtest.WithNotifier(backtest.NewChatNotifier(tg)))
	}

	app.Runner = backtest.NewRunner(p, universe, opts...)
	return app, nil
}

// NewServeApp 只提供历史查询接口
func NewServeApp(cfg *conf.Config) (*App, error) {
	app := &App{Config: cfg}
	if err := app.openDB(); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) openDB() error {
	gdb, err := db.Init(db.NewConfig(a.Config.Db))
	if err != nil {
		return err
	}
	if err := gdb.AutoMigrate(&entity.BacktestMetrics{}, &entity.BacktestComparison{}); err != nil {
		return fmt.Errorf("migrate history tables: %w", err)
	}
	a.DB = gdb
	a.History = query.NewHistoryDao(gdb)
	a.closers = append(a.closers, func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return nil
}

// Close 逆序释放资源
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	logger.Sync()
}

func InitRouter(h dao.HistoryDao) Router {
	return router.NewApiRouter(history.NewHandler(h))
}

// DailyRequests 定时任务：每个策略类型回放截至 now 的 lookbackDays 自然日窗口
func DailyRequests(now time.Time, strategyTypes []string, lookbackDays int) []backtest.Request {
	if lookbackDays <= 0 {
		lookbackDays = 365
	}
	y, m, d := now.Date()
	to := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -lookbackDays)
	out := make([]backtest.Request, 0, len(strategyTypes))
	for _, st := range strategyTypes {
		out = append(out, backtest.Request{StrategyType: st, From: from, To: to, RunDate: to, Persist: true})
	}
	return out
}
