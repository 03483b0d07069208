package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/alert"
	"github.com/life2you_mini/regime/internal/analytics"
	"github.com/life2you_mini/regime/internal/monitor"
	"github.com/life2you_mini/regime/internal/params"
	"github.com/life2you_mini/regime/internal/regime"
	"github.com/life2you_mini/regime/internal/storage"
)

// checkCmd 执行单轮状态检查后退出, 适合cron调度
func checkCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "执行一次市场状态检查",
		Long: `拉取最新链上指标并完成一轮完整检查:
状态分类, 流动性评估, 协议健康检查, 参数推导与告警推送.

--dry-run 使用内存存储且不发送告警, 仅输出分类结果.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if dryRun {
				cfg.Storage.Type = storage.StorageTypeInMemory
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx := cmd.Context()

			store, err := storage.CreateStorage(ctx, cfg, log.Logger)
			if err != nil {
				return fmt.Errorf("初始化存储失败: %w", err)
			}
			defer store.Close(ctx)

			_, provider, err := analytics.CreateProviderFactory(cfg.Analytics, log.Logger)
			if err != nil {
				return fmt.Errorf("初始化数据源失败: %w", err)
			}

			// 单次执行走同步直发, 不经过Redis队列
			var dispatcher *alert.Dispatcher
			if dryRun {
				dispatcher = alert.NewDispatcher(nil, nil, log.Logger)
			} else {
				dispatcher, err = alert.CreateDispatcher(cfg.Notification, nil, log.Logger)
				if err != nil {
					return fmt.Errorf("初始化通知通道失败: %w", err)
				}
			}

			engine := regime.NewEngine(cfg.Regime, log.Logger)
			deriver := params.NewDeriver(cfg.Strategy, cfg.Regime)
			m := monitor.NewRegimeMonitor(provider, engine, deriver, store, dispatcher, cfg, log.Logger)
			m.SetDryRun(dryRun)

			assessment, err := m.RunCheck(ctx)
			if err != nil {
				if !dryRun {
					errAlert := alert.NewErrorAlert("dune_regime_check", err)
					if dispatchErr := dispatcher.Dispatch(ctx, errAlert); dispatchErr != nil {
						log.Warn("发送错误告警失败", zap.Error(dispatchErr))
					}
				}
				return err
			}

			log.Info("检查结果",
				zap.String("regime", string(assessment.Regime)),
				zap.String("previous_regime", string(assessment.PreviousRegime)),
				zap.Float64("risk_multiplier", assessment.RiskMultiplier),
				zap.String("liquidity_health", string(assessment.Liquidity.Health)),
				zap.Int("protocol_alerts", len(assessment.ProtocolAlerts)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "试运行, 不写库且不发送告警")
	return cmd
}
