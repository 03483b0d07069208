package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/services"
)

// 优雅关闭的最长等待时间
const shutdownTimeout = 10 * time.Second

// monitorCmd 启动常驻监控服务
func monitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "启动常驻监控服务",
		Long: `以服务形式持续运行: 按固定周期执行状态检查,
同时轮询巨鲸转账/清算/大额交换等实时链上事件, 直到收到终止信号.`,
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

			log.Info("加载配置成功", zap.String("配置文件", cfgFile))

			// 创建上下文，用于处理信号
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			signalChan := make(chan os.Signal, 1)
			signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

			service, err := services.NewRegimeService(ctx, cfg, log.Logger)
			if err != nil {
				return fmt.Errorf("创建服务失败: %w", err)
			}

			service.Start()
			log.Info("服务已启动")

			// 等待终止信号
			sig := <-signalChan
			log.Info("接收到信号, 准备关闭服务", zap.String("signal", sig.String()))

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()

			if err := service.Stop(shutdownCtx); err != nil {
				log.Error("服务关闭失败", zap.Error(err))
				return err
			}

			log.Info("服务已优雅关闭")
			return nil
		},
	}
}
