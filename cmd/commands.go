package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	api "backflow/cmd/backflow"
	"backflow/internal/consts"
	"backflow/internal/dao"
	"backflow/internal/model"
	"backflow/internal/service/backtest"
	"backflow/pkg/kafka"
	"backflow/pkg/logger"

	"github.com/goccy/go-json"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var (
		strategyType string
		from, to     string
		runDate      string
		noPersist    bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Backtest v1 and v2 of a strategy type and compare them",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := backtest.Request{StrategyType: strategyType, Persist: !noPersist}
			var err error
			if req.From, err = time.Parse(time.DateOnly, from); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			if req.To, err = time.Parse(time.DateOnly, to); err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			if runDate != "" {
				if req.RunDate, err = time.Parse(time.DateOnly, runDate); err != nil {
					return fmt.Errorf("--run-date: %w", err)
				}
			}

			cfg, err := api.Bootstrap(configPath)
			if err != nil {
				return err
			}
			app, err := api.NewApp(cfg, req.Persist)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			summary, err := app.Runner.Run(ctx, req)
			if summary != nil {
				fmt.Fprint(cmd.OutOrStdout(), backtest.RenderText(summary))
			}
			return runOutcome(summary, err)
		},
	}
	cmd.Flags().StringVarP(&strategyType, "strategy", "s", "", "strategy type, e.g. swing or btst")
	cmd.Flags().StringVar(&from, "from", "", "first replay date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last replay date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&runDate, "run-date", "", "date the results are stored under, defaults to --to")
	cmd.Flags().BoolVar(&noPersist, "no-persist", false, "do not write results to the history store")
	_ = cmd.MarkFlagRequired("strategy")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

// runOutcome 决定 run 命令的退出状态：运行出错或有标的触发不变量错误时返回非 nil
func runOutcome(summary *model.RunSummary, err error) error {
	if summary != nil && summary.HasFailures() {
		syms := make([]string, 0, len(summary.Failed))
		for sym := range summary.Failed {
			syms = append(syms, sym)
		}
		sort.Strings(syms)
		failed := fmt.Errorf("%d symbols violated simulation invariants (%s)", len(syms), strings.Join(syms, ", "))
		if err == nil {
			return failed
		}
		return fmt.Errorf("%w: %w", failed, err)
	}
	return err
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only history API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := api.Bootstrap(configPath)
			if err != nil {
				return err
			}
			app, err := api.NewServeApp(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return api.NewServer(cfg).
				RegisterOnShutdown(app.Close).
				Run(ctx, api.InitRouter(app.History))
		},
	}
}

func deleteCmd() *cobra.Command {
	var strategyType, runDate string
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Soft-delete the stored metrics and comparison of one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := api.Bootstrap(configPath)
			if err != nil {
				return err
			}
			app, err := api.NewServeApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()
			if err := deleteRun(cmd.Context(), app.History, strategyType, runDate); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s run of %s\n", strategyType, runDate)
			return nil
		},
	}
	cmd.Flags().StringVarP(&strategyType, "strategy", "s", "", "strategy type, e.g. swing or btst")
	cmd.Flags().StringVar(&runDate, "run-date", "", "date the run is stored under (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("strategy")
	_ = cmd.MarkFlagRequired("run-date")
	return cmd
}

// deleteRun 软删除后同一天可以重新 run 落库
func deleteRun(ctx context.Context, h dao.HistoryDao, strategyType, runDate string) error {
	if strategyType == "" {
		return fmt.Errorf("--strategy is required")
	}
	day, err := time.Parse(time.DateOnly, runDate)
	if err != nil {
		return fmt.Errorf("--run-date: %w", err)
	}
	if err := h.DeleteRun(ctx, day, strategyType); err != nil {
		return fmt.Errorf("delete %s run of %s: %w", strategyType, runDate, err)
	}
	logger.Info("run deleted", logger.Pair("strategy_type", strategyType), logger.Pair("run_date", runDate))
	return nil
}

func scheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the configured strategy types on the schedule.cron expression",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := api.Bootstrap(configPath)
			if err != nil {
				return err
			}
			app, err := api.NewApp(cfg, true)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c := cron.New()
			_, err = c.AddFunc(cfg.Schedule.Cron, func() {
				for _, req := range api.DailyRequests(time.Now(), cfg.Schedule.StrategyTypes, cfg.Schedule.LookbackDays) {
					summary, err := app.Runner.Run(ctx, req)
					if err != nil {
						logger.Errorf("> scheduled backtest %s failed: %v", req.StrategyType, err)
						continue
					}
					logger.Infof("> scheduled backtest %s: %s (%s)", req.StrategyType,
						summary.Comparison.Recommendation, summary.Comparison.Confidence)
				}
			})
			if err != nil {
				return fmt.Errorf("add cron job %q: %w", cfg.Schedule.Cron, err)
			}
			logger.Infof("> scheduler started: %s %v", cfg.Schedule.Cron, cfg.Schedule.StrategyTypes)
			c.Start()

			<-ctx.Done()
			// 等待正在执行的任务结束
			<-c.Stop().Done()
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	var group string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print run results as they are published to Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := api.Bootstrap(configPath)
			if err != nil {
				return err
			}
			if cfg.Kafka.Broker == "" || cfg.Kafka.Topic == "" {
				return fmt.Errorf("kafka broker and topic must be configured")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			consumer := kafka.NewKafkaConsumer(cfg.Kafka.Broker)
			defer consumer.Close()
			msgs, err := consumer.Consume(ctx, cfg.Kafka.Topic, group)
			if err != nil {
				return err
			}
			for m := range msgs {
				var ev model.RunEvent
				if err := json.Unmarshal(m.Value, &ev); err != nil {
					logger.Warnf("skip malformed run event at offset %d: %v", m.Offset, err)
					continue
				}
				fmt.Fprintln(os.Stdout, EventLine(ev))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&group, "group", consts.RunEventGroup, "kafka consumer group")
	return cmd
}

// EventLine 一行摘要
func EventLine(ev model.RunEvent) string {
	c := ev.Comparison
	return fmt.Sprintf("%s %-6s %-12s %-6s %d/5  trades %d -> %d  skipped %d  failed %d",
		ev.RunDate.Format(time.DateOnly), ev.StrategyType, c.Recommendation, c.Confidence, c.CriteriaMet,
		ev.V1.TotalTrades, ev.V2.TotalTrades, ev.Skipped, len(ev.Failed))
}

