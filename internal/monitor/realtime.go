package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/alert"
	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/metrics"
	"github.com/life2you_mini/regime/internal/model"
)

// 实时监控默认参数
const (
	DefaultWhaleInterval       = 10 * time.Second
	DefaultSwapInterval        = 15 * time.Second
	DefaultLiquidationInterval = 30 * time.Second
	DefaultSnapshotInterval    = time.Hour

	DefaultWhaleMinValueUSD      = 1_000_000
	DefaultSwapMinValueUSD       = 500_000
	DefaultLiquidationCascadeUSD = 10_000_000

	// 去重集合容量上限, 超出后整体重置
	maxSeenTxHashes = 10_000
)

// EventSource 实时链上事件数据源接口
type EventSource interface {
	GetWhaleTransfers(ctx context.Context, chain, tokenAddress string, minValueUSD float64, limit int) ([]model.TokenTransfer, error)
	GetDexSwaps(ctx context.Context, chain, protocol string, minValueUSD float64, limit int) ([]model.DexSwap, error)
	GetLiquidations(ctx context.Context, chain, protocol string, hoursAgo, limit int) ([]model.Liquidation, error)
}

// FlowSignaler 交易所储备信号源接口
type FlowSignaler interface {
	GenerateSignal(ctx context.Context) (*model.FlowSignal, error)
}

// SnapshotStore 市场快照存储接口
type SnapshotStore interface {
	StoreMarketSnapshot(ctx context.Context, snapshot *model.MarketSnapshot) error
}

// RealtimeMonitor 实时链上事件监控组件
// 多个轮询协程共享一份交易哈希去重集合, 避免重复告警
type RealtimeMonitor struct {
	source   EventSource
	reserves FlowSignaler
	store    SnapshotStore
	alerter  Alerter
	logger   *zap.Logger
	registry *metrics.Registry

	chain               string
	whaleMinValueUSD    float64
	swapMinValueUSD     float64
	cascadeUSD          float64
	whaleInterval       time.Duration
	swapInterval        time.Duration
	liquidationInterval time.Duration
	snapshotInterval    time.Duration

	mu        sync.Mutex
	isRunning bool
	seen      map[string]struct{}
}

// NewRealtimeMonitor 创建实时监控组件, reserves与store可为nil
func NewRealtimeMonitor(
	source EventSource,
	reserves FlowSignaler,
	store SnapshotStore,
	alerter Alerter,
	cfg *config.Config,
	logger *zap.Logger,
) *RealtimeMonitor {
	m := &RealtimeMonitor{
		source:              source,
		reserves:            reserves,
		store:               store,
		alerter:             alerter,
		logger:              logger,
		chain:               cfg.Analytics.Chain,
		whaleMinValueUSD:    cfg.Realtime.WhaleMinValueUSD,
		swapMinValueUSD:     cfg.Realtime.SwapMinValueUSD,
		cascadeUSD:          cfg.Realtime.LiquidationCascadeUSD,
		whaleInterval:       time.Duration(cfg.Realtime.WhaleIntervalSeconds) * time.Second,
		swapInterval:        time.Duration(cfg.Realtime.SwapIntervalSeconds) * time.Second,
		liquidationInterval: time.Duration(cfg.Realtime.LiquidationIntervalSeconds) * time.Second,
		snapshotInterval:    time.Duration(cfg.Reserves.CheckIntervalMinutes) * time.Minute,
		seen:                make(map[string]struct{}),
	}

	if m.chain == "" {
		m.chain = "ethereum"
	}
	if m.whaleMinValueUSD <= 0 {
		m.whaleMinValueUSD = DefaultWhaleMinValueUSD
	}
	if m.swapMinValueUSD <= 0 {
		m.swapMinValueUSD = DefaultSwapMinValueUSD
	}
	if m.cascadeUSD <= 0 {
		m.cascadeUSD = DefaultLiquidationCascadeUSD
	}
	if m.whaleInterval <= 0 {
		m.whaleInterval = DefaultWhaleInterval
	}
	if m.swapInterval <= 0 {
		m.swapInterval = DefaultSwapInterval
	}
	if m.liquidationInterval <= 0 {
		m.liquidationInterval = DefaultLiquidationInterval
	}
	if m.snapshotInterval <= 0 {
		m.snapshotInterval = DefaultSnapshotInterval
	}

	return m
}

// SetMetricsRegistry 注入指标注册表
func (m *RealtimeMonitor) SetMetricsRegistry(r *metrics.Registry) {
	m.registry = r
}

// Start 启动全部轮询协程, 阻塞直到ctx取消
func (m *RealtimeMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return fmt.Errorf("实时监控器已在运行")
	}
	m.isRunning = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.isRunning = false
		m.mu.Unlock()
	}()

	m.logger.Info("启动实时链上监控",
		zap.String("chain", m.chain),
		zap.Float64("whale_min_usd", m.whaleMinValueUSD),
		zap.Float64("swap_min_usd", m.swapMinValueUSD))

	var wg sync.WaitGroup
	loops := []struct {
		interval time.Duration
		check    func(context.Context)
	}{
		{m.whaleInterval, m.checkWhaleTransfers},
		{m.swapInterval, m.checkDexSwaps},
		{m.liquidationInterval, m.checkLiquidations},
	}
	if m.store != nil || m.reserves != nil {
		loops = append(loops, struct {
			interval time.Duration
			check    func(context.Context)
		}{m.snapshotInterval, m.checkSnapshot})
	}

	for _, loop := range loops {
		wg.Add(1)
		go func(interval time.Duration, check func(context.Context)) {
			defer wg.Done()
			m.pollLoop(ctx, interval, check)
		}(loop.interval, loop.check)
	}

	wg.Wait()
	return ctx.Err()
}

// pollLoop 固定间隔轮询, 启动时立即执行一次
func (m *RealtimeMonitor) pollLoop(ctx context.Context, interval time.Duration, check func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check(ctx)
		}
	}
}

// markSeen 记录交易哈希, 返回false表示已处理过
func (m *RealtimeMonitor) markSeen(txHash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.seen[txHash]; ok {
		return false
	}
	if len(m.seen) >= maxSeenTxHashes {
		m.seen = make(map[string]struct{})
	}
	m.seen[txHash] = struct{}{}
	return true
}

func (m *RealtimeMonitor) checkWhaleTransfers(ctx context.Context) {
	transfers, err := m.source.GetWhaleTransfers(ctx, m.chain, "", m.whaleMinValueUSD, 10)
	if err != nil {
		m.logger.Error("获取巨鲸转账失败", zap.Error(err))
		return
	}

	for _, transfer := range transfers {
		if !m.markSeen(transfer.TransactionHash) {
			continue
		}

		whaleAlert := alert.NewWhaleTransferAlert(transfer)
		m.logger.Info(whaleAlert.Message)
		if m.registry != nil {
			m.registry.WhaleTransfers.Inc()
		}

		if err := m.alerter.Dispatch(ctx, whaleAlert); err != nil {
			m.logger.Warn("发送巨鲸转账告警失败", zap.Error(err))
		}
	}
}

func (m *RealtimeMonitor) checkDexSwaps(ctx context.Context) {
	swaps, err := m.source.GetDexSwaps(ctx, m.chain, "", m.swapMinValueUSD, 10)
	if err != nil {
		m.logger.Error("获取大额成交失败", zap.Error(err))
		return
	}

	for _, swap := range swaps {
		if !m.markSeen(swap.TransactionHash) {
			continue
		}

		swapAlert := alert.NewLargeSwapAlert(swap)
		m.logger.Info(swapAlert.Message)

		if err := m.alerter.Dispatch(ctx, swapAlert); err != nil {
			m.logger.Warn("发送大额成交告警失败", zap.Error(err))
		}
	}
}

func (m *RealtimeMonitor) checkLiquidations(ctx context.Context) {
	liquidations, err := m.source.GetLiquidations(ctx, m.chain, "", 1, 20)
	if err != nil {
		m.logger.Error("获取清算记录失败", zap.Error(err))
		return
	}
	if len(liquidations) == 0 {
		return
	}

	total := 0.0
	for _, liq := range liquidations {
		total += liq.LiquidationValueUSD
	}
	if m.registry != nil {
		m.registry.LiquidationVolume.Set(total)
	}

	if total > m.cascadeUSD {
		cascade := alert.NewLiquidationCascadeAlert(total)
		m.logger.Warn(cascade.Message)

		if err := m.alerter.Dispatch(ctx, cascade); err != nil {
			m.logger.Warn("发送清算潮告警失败", zap.Error(err))
		}
	}
}

// checkSnapshot 保存市场快照并记录储备信号
func (m *RealtimeMonitor) checkSnapshot(ctx context.Context) {
	if m.store != nil {
		snapshot, err := m.Snapshot(ctx)
		if err != nil {
			m.logger.Warn("构建市场快照失败", zap.Error(err))
		} else if err := m.store.StoreMarketSnapshot(ctx, snapshot); err != nil {
			m.logger.Warn("保存市场快照失败", zap.Error(err))
		}
	}

	if m.reserves != nil {
		signal, err := m.reserves.GenerateSignal(ctx)
		if err != nil {
			m.logger.Warn("生成交易所储备信号失败", zap.Error(err))
			return
		}
		m.logger.Info("交易所储备信号",
			zap.Float64("signal", signal.Signal),
			zap.String("reasoning", signal.Reasoning))
	}
}

// Snapshot 拉取当前市场活动快照
func (m *RealtimeMonitor) Snapshot(ctx context.Context) (*model.MarketSnapshot, error) {
	transfers, err := m.source.GetWhaleTransfers(ctx, m.chain, "", m.whaleMinValueUSD, 20)
	if err != nil {
		return nil, fmt.Errorf("获取巨鲸转账失败: %w", err)
	}

	liquidations, err := m.source.GetLiquidations(ctx, m.chain, "", 1, 50)
	if err != nil {
		return nil, fmt.Errorf("获取清算记录失败: %w", err)
	}

	swaps, err := m.source.GetDexSwaps(ctx, m.chain, "", m.swapMinValueUSD, 20)
	if err != nil {
		return nil, fmt.Errorf("获取大额成交失败: %w", err)
	}

	return &model.MarketSnapshot{
		WhaleTransfers: transfers,
		Liquidations:   liquidations,
		LargeSwaps:     swaps,
	}, nil
}
