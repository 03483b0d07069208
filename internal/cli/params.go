package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/model"
	"github.com/life2you_mini/regime/internal/params"
	"github.com/life2you_mini/regime/internal/regime"
	"github.com/life2you_mini/regime/internal/storage"
)

// paramsCmd 策略参数查看与人工批准
func paramsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params",
		Short: "策略参数管理",
	}
	cmd.AddCommand(paramsShowCmd(), paramsApproveCmd())
	return cmd
}

// paramsShowCmd 展示当前生效的策略参数
func paramsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "展示当前生效的策略参数",
		Long:  "输出交易侧实际读取到的参数, 数据缺失或过期时为安全默认值.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
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

			loader := params.NewLoader(store, cfg.Strategy, log.Logger)
			current := loader.Current(ctx)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Regime:            %s\n", current.Regime)
			fmt.Fprintf(out, "MaxPositionSize:   %.2f BTC\n", current.MaxPositionSizeBTC)
			fmt.Fprintf(out, "LeverageLimit:     %.1fx\n", current.LeverageLimit)
			fmt.Fprintf(out, "RiskBudget:        %.2f\n", current.RiskBudgetMultiplier)
			fmt.Fprintf(out, "LiquidityHealth:   %s\n", current.LiquidityHealth)
			if len(current.ProtocolAlerts) > 0 {
				fmt.Fprintf(out, "ProtocolAlerts:    %v\n", current.ProtocolAlerts)
			}
			if current.ApprovedBy != "" {
				fmt.Fprintf(out, "ApprovedBy:        %s\n", current.ApprovedBy)
			}
			if !current.UpdatedAt.IsZero() {
				fmt.Fprintf(out, "UpdatedAt:         %s\n", current.UpdatedAt.UTC().Format("2006-01-02 15:04:05 MST"))
			}
			if loader.IsStale() {
				fmt.Fprintln(out, "\n注意: 参数已过期, 当前为安全默认值")
			}
			return nil
		},
	}
}

// paramsApproveCmd 按最近一次状态评估人工批准参数
// 用于参数变化超过自动应用阈值后的人工确认
func paramsApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve",
		Short: "人工批准最近一次推荐参数",
		Long: `按最近一次状态检查结果重新推导策略参数并落库,
批准来源标记为MANUAL. 用于参数变化超过自动应用阈值时的人工确认.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
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

			records, err := store.GetRegimeHistory(ctx, 1)
			if err != nil {
				return fmt.Errorf("读取状态历史失败: %w", err)
			}
			if len(records) == 0 {
				return errors.New("暂无状态历史, 请先执行check")
			}
			rec := records[0]

			engine := regime.NewEngine(cfg.Regime, log.Logger)
			deriver := params.NewDeriver(cfg.Strategy, cfg.Regime)

			// 历史记录只保留流动性比值, 按比值还原偏离幅度重新评估健康度
			today := rec.LiquidityRatio
			avg := 1.0
			liquidity := engine.AssessLiquidity(model.LiquidityMetrics{
				TVLToday:     &today,
				TVL30dAvg:    &avg,
				DeviationPct: (rec.LiquidityRatio - 1) * 100,
			})

			approved := deriver.Derive(rec.Regime, engine.RiskMultiplier(rec.Regime), liquidity, nil)
			approved.ApprovedBy = model.ApprovedByManual

			if err := store.StoreStrategyParams(ctx, approved); err != nil {
				return fmt.Errorf("保存策略参数失败: %w", err)
			}

			log.Info("策略参数已人工批准",
				zap.String("regime", string(approved.Regime)),
				zap.Float64("max_position_size_btc", approved.MaxPositionSizeBTC),
				zap.Float64("leverage_limit", approved.LeverageLimit))

			fmt.Fprintf(cmd.OutOrStdout(), "已批准: regime=%s position=%.2fBTC leverage=%.1fx risk_budget=%.2f\n",
				approved.Regime, approved.MaxPositionSizeBTC, approved.LeverageLimit, approved.RiskBudgetMultiplier)
			return nil
		},
	}
}
