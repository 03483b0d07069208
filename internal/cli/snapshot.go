package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/alert"
	"github.com/life2you_mini/regime/internal/analytics"
	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/monitor"
	"github.com/life2you_mini/regime/internal/storage"
)

// snapshotCmd 拉取一次市场活动快照并输出JSON
func snapshotCmd() *cobra.Command {
	var persist bool

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "拉取当前链上活动快照",
		Long:  "查询最近的巨鲸转账/清算/大额DEX成交并以JSON输出, 需要Allium数据源.",
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

			factory, _, err := analytics.CreateProviderFactory(cfg.Analytics, log.Logger)
			if err != nil {
				return fmt.Errorf("初始化数据源失败: %w", err)
			}
			provider, ok := factory.Get(config.ProviderAllium)
			if !ok {
				return errors.New("市场快照需要配置Allium数据源")
			}
			source, ok := provider.(monitor.EventSource)
			if !ok {
				return errors.New("当前数据源不支持实时事件查询")
			}

			m := monitor.NewRealtimeMonitor(source, nil, nil, alert.NewDispatcher(nil, nil, log.Logger), cfg, log.Logger)
			snap, err := m.Snapshot(ctx)
			if err != nil {
				return err
			}

			if persist {
				store, err := storage.CreateStorage(ctx, cfg, log.Logger)
				if err != nil {
					return fmt.Errorf("初始化存储失败: %w", err)
				}
				defer store.Close(ctx)
				if err := store.StoreMarketSnapshot(ctx, snap); err != nil {
					log.Warn("快照写入存储失败", zap.Error(err))
				}
			}

			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return fmt.Errorf("序列化快照失败: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))

			log.Info("市场快照完成",
				zap.Int("whale_transfers", len(snap.WhaleTransfers)),
				zap.Int("liquidations", len(snap.Liquidations)),
				zap.Int("large_swaps", len(snap.LargeSwaps)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&persist, "store", false, "同时将快照写入存储")
	return cmd
}
