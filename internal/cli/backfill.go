package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/life2you_mini/regime/internal/analytics"
	"github.com/life2you_mini/regime/internal/backfill"
	"github.com/life2you_mini/regime/internal/regime"
)

const dateLayout = "2006-01-02"

// backfillCmd 收集历史状态分类数据
func backfillCmd() *cobra.Command {
	var (
		from   string
		to     string
		days   int
		quick  bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "回填历史状态数据",
		Long: `逐日执行状态查询并分类, 输出JSON供回测使用.

完整回填按--from/--to逐日查询, 受API频率限制且消耗查询积分;
--quick 复用最近一次缓存结果填充N天, 不消耗积分, 仅用于流程验证.`,
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

			_, provider, err := analytics.CreateProviderFactory(cfg.Analytics, log.Logger)
			if err != nil {
				return fmt.Errorf("初始化数据源失败: %w", err)
			}

			engine := regime.NewEngine(cfg.Regime, log.Logger)
			runner := backfill.NewRunner(provider, engine, cfg, log.Logger)

			var (
				records []backfill.DayRecord
				path    string
			)

			if quick || (from == "" && to == "") {
				records, err = runner.Quick(ctx, days)
				if err != nil {
					return err
				}
				now := time.Now()
				path = runner.OutputPath(now.AddDate(0, 0, -days), now)
			} else {
				if from == "" || to == "" {
					return errors.New("完整回填需要同时提供--from和--to")
				}
				fromDay, parseErr := time.Parse(dateLayout, from)
				if parseErr != nil {
					return fmt.Errorf("无效的开始日期 %q: %w", from, parseErr)
				}
				toDay, parseErr := time.Parse(dateLayout, to)
				if parseErr != nil {
					return fmt.Errorf("无效的结束日期 %q: %w", to, parseErr)
				}

				records, err = runner.Run(ctx, fromDay, toDay)
				if err != nil {
					return err
				}
				path = runner.OutputPath(fromDay, toDay)
			}

			switch {
			case output != "":
				path = output
			case cfg.Backfill.OutputFile != "":
				path = filepath.Join(cfg.System.DataDir, cfg.Backfill.OutputFile)
			}

			return runner.WriteJSON(path, records)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "开始日期 (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "结束日期 (YYYY-MM-DD)")
	cmd.Flags().IntVar(&days, "days", 30, "quick模式的回填天数")
	cmd.Flags().BoolVar(&quick, "quick", false, "快速模式, 复用最近一次缓存结果")
	cmd.Flags().StringVar(&output, "output", "", "输出文件路径, 默认按日期范围命名")
	return cmd
}
