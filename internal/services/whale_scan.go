package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/alert"
	"github.com/life2you_mini/regime/internal/model"
	"github.com/life2you_mini/regime/internal/onchain"
)

const (
	// DefaultWhaleScanInterval 巨鲸钱包扫描间隔
	DefaultWhaleScanInterval = 10 * time.Minute
	// DefaultWhaleMinValueETH 巨鲸转出告警阈值(ETH)
	DefaultWhaleMinValueETH = 100.0

	componentWhaleScan = "alchemy_monitor"
)

// WhaleScanner 周期扫描已知巨鲸钱包的链上转出并转换为系统告警
type WhaleScanner struct {
	client      *onchain.AlchemyClient
	dispatcher  *alert.Dispatcher
	logger      *zap.Logger
	minValueETH float64
	interval    time.Duration
}

// NewWhaleScanner 创建巨鲸钱包扫描器
func NewWhaleScanner(client *onchain.AlchemyClient, dispatcher *alert.Dispatcher, logger *zap.Logger) *WhaleScanner {
	return &WhaleScanner{
		client:      client,
		dispatcher:  dispatcher,
		logger:      logger,
		minValueETH: DefaultWhaleMinValueETH,
		interval:    DefaultWhaleScanInterval,
	}
}

// SetThreshold 调整告警阈值(ETH)
func (w *WhaleScanner) SetThreshold(minValueETH float64) {
	if minValueETH > 0 {
		w.minValueETH = minValueETH
	}
}

// Start 启动扫描循环, 阻塞直到上下文取消
func (w *WhaleScanner) Start(ctx context.Context) error {
	w.logger.Info("启动巨鲸钱包扫描",
		zap.Duration("interval", w.interval),
		zap.Float64("min_value_eth", w.minValueETH))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *WhaleScanner) scan(ctx context.Context) {
	err := w.client.MonitorWhaleActivity(ctx, w.minValueETH, func(movement onchain.WhaleMovement) {
		whaleAlert := model.Alert{
			Severity: model.SeverityWarning,
			Message: fmt.Sprintf("🐋 %s transferred %.2f ETH to %s",
				movement.WhaleName, movement.Transfer.Value, shortAddress(movement.Transfer.To)),
			Component: componentWhaleScan,
		}
		if err := w.dispatcher.Dispatch(ctx, whaleAlert); err != nil {
			w.logger.Warn("巨鲸告警发送失败", zap.Error(err))
		}
	})
	if err != nil {
		w.logger.Error("巨鲸钱包扫描失败", zap.Error(err))
	}
}

func shortAddress(address string) string {
	if address == "" {
		return "unknown..."
	}
	if len(address) > 10 {
		address = address[:10]
	}
	return address + "..."
}
