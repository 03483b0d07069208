package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/backtest"
	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/regime"
)

// backtestCmd 基于历史状态数据验证仓位缩放效果
func backtestCmd() *cobra.Command {
	var (
		regimeFile string
		priceFile  string
		source     string
		days       int
		outFile    string
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "回测状态仓位缩放策略",
		Long: `将历史状态的风险乘数应用到每日收益, 与恒定满仓基准对比
夏普比率/最大回撤/总收益, 并给出是否可部署的结论.

价格来源: mock(确定性模拟), exchange(交易所日线), file(本地JSON).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// 回测是离线分析, 配置文件缺失时退回默认配置
			cfg, cfgErr := loadConfig()
			if cfgErr != nil {
				cfg = config.GetDefaultConfig()
				if logLevel != "" {
					cfg.System.LogLevel = logLevel
				}
			}

			log, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer log.Sync()

			if cfgErr != nil {
				log.Warn("配置文件不可用, 回测使用默认配置", zap.Error(cfgErr))
			}

			if regimeFile == "" {
				return errors.New("--regime-file必填, 请先执行backfill收集历史数据")
			}
			history, err := backtest.LoadRegimeHistory(regimeFile)
			if err != nil {
				return err
			}
			if len(history) == 0 {
				return errors.New("状态历史为空, 无法回测")
			}

			n := days
			if n <= 0 {
				n = len(history)
			}

			src := source
			if src == "" {
				src = cfg.Backtest.PriceSource
			}

			var prices []backtest.PricePoint
			switch src {
			case "", "mock":
				prices = backtest.GenerateMockPrices(n, cfg.Backtest.InitialPrice)
			case "exchange":
				exch, srcErr := backtest.NewExchangePriceSource(cfg.Backtest, log.Logger)
				if srcErr != nil {
					return srcErr
				}
				prices, err = exch.FetchDaily(n)
				if err != nil {
					return err
				}
			case "file":
				if priceFile == "" {
					return errors.New("--source=file需要同时提供--price-file")
				}
				prices, err = backtest.LoadPriceHistory(priceFile)
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("不支持的价格源: %s", src)
			}

			engine := regime.NewEngine(cfg.Regime, log.Logger)
			result := backtest.NewBacktester(engine, log.Logger).Run(history, prices)
			backtest.PrintReport(cmd.OutOrStdout(), result)

			if outFile != "" {
				if err := backtest.SaveResult(outFile, result); err != nil {
					return err
				}
				log.Info("回测结果已保存", zap.String("path", outFile))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&regimeFile, "regime-file", "", "backfill输出的状态历史JSON")
	cmd.Flags().StringVar(&priceFile, "price-file", "", "本地价格历史JSON, 配合--source=file")
	cmd.Flags().StringVar(&source, "source", "", "价格来源 (mock/exchange/file), 默认取配置")
	cmd.Flags().IntVar(&days, "days", 0, "回测天数, 默认与状态历史等长")
	cmd.Flags().StringVar(&outFile, "output", "", "回测结果JSON输出路径")
	return cmd
}
