// Package cli 提供命令行入口, 聚合批量检查/常驻监控/回填/回测等子命令
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/logger"
)

var (
	cfgFile  string
	logLevel string
)

// Execute 构建根命令并执行
func Execute() error {
	root := &cobra.Command{
		Use:   "regime",
		Short: "加密市场状态监控与风险参数服务",
		Long: `基于链上分析数据的市场状态分类系统.

周期性拉取Dune/Allium查询结果, 将市场归类为STABLE/TRANSITIONAL/RECOVERY/
FRAGILE/STRESS五种状态, 推导仓位与杠杆参数, 并通过Slack/Telegram推送告警.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yaml", "配置文件路径")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "覆盖配置中的日志级别 (debug/info/warn/error)")

	root.AddCommand(
		checkCmd(),
		monitorCmd(),
		snapshotCmd(),
		backfillCmd(),
		backtestCmd(),
		paramsCmd(),
		configCmd(),
	)

	return root.Execute()
}

// loadConfig 读取配置文件, 命令行日志级别优先于配置
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.System.LogLevel = logLevel
	}
	return cfg, nil
}

// newLogger 按配置创建日志器
func newLogger(cfg *config.Config) (*logger.Logger, error) {
	log, err := logger.NewLogger(cfg.System.LogDir, cfg.System.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return log, nil
}
