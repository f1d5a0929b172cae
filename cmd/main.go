package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

/*
回测 swing v1/v2 并落库：

	go run ./cmd run --strategy swing --from 2024-01-01 --to 2024-12-31

只看结果不写数据库：

	go run ./cmd run --strategy btst --from 2024-06-01 --to 2024-12-31 --no-persist

删除某天的结果后重跑：

	go run ./cmd delete --strategy swing --run-date 2024-12-31

历史查询接口：

	go run ./cmd serve
	curl 'http://localhost:12190/api/v1/history/comparisons?strategy_type=swing&limit=10'
*/

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "backflow",
		Short:         "Daily-bar strategy backtester and v1/v2 comparator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "conf/config.yaml", "config file")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
