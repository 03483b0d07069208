package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/alert"
	"github.com/life2you_mini/regime/internal/analytics"
	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/metrics"
	"github.com/life2you_mini/regime/internal/monitor"
	"github.com/life2you_mini/regime/internal/onchain"
	"github.com/life2you_mini/regime/internal/params"
	"github.com/life2you_mini/regime/internal/regime"
	"github.com/life2you_mini/regime/internal/storage"
)

// regimeService 市场状态监控服务
type regimeService struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          *zap.Logger
	cfg             *config.Config
	store           storage.Storage
	providerFactory *analytics.ProviderFactory
	queueClient     *redis.Client
	dispatcher      *alert.Dispatcher
	registry        *metrics.Registry
	regimeMonitor   *monitor.RegimeMonitor
	realtimeMonitor *monitor.RealtimeMonitor
	whaleScanner    *WhaleScanner
}

// NewRegimeService 创建市场状态监控服务
func NewRegimeService(
	parentCtx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
) (*regimeService, error) {
	// 创建服务上下文
	ctx, cancel := context.WithCancel(parentCtx)

	// 初始化存储层
	store, err := storage.CreateStorage(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, err
	}

	// 组装分析数据源
	providerFactory, provider, err := analytics.CreateProviderFactory(cfg.Analytics, logger)
	if err != nil {
		cancel()
		return nil, err
	}

	// 告警队列与分发器
	queueClient, queue := buildAlertQueue(cfg, logger)
	dispatcher, err := alert.CreateDispatcher(cfg.Notification, queue, logger)
	if err != nil {
		cancel()
		return nil, err
	}

	// 状态分类引擎与参数推导
	engine := regime.NewEngine(cfg.Regime, logger)
	deriver := params.NewDeriver(cfg.Strategy, cfg.Regime)

	regimeMonitor := monitor.NewRegimeMonitor(provider, engine, deriver, store, dispatcher, cfg, logger)

	var registry *metrics.Registry
	if cfg.Metrics.Enabled {
		registry = metrics.NewRegistry(logger)
		regimeMonitor.SetMetricsRegistry(registry)
	}

	// Alchemy节点客户端, 储备追踪与巨鲸扫描共用
	var alchemyClient *onchain.AlchemyClient
	if cfg.Alchemy.Enabled && cfg.Alchemy.APIKey != "" {
		alchemyClient = onchain.NewAlchemyClient(cfg.Alchemy, logger)
	}

	var realtimeMonitor *monitor.RealtimeMonitor
	if cfg.Realtime.Enabled {
		realtimeMonitor = buildRealtimeMonitor(cfg, providerFactory, alchemyClient, store, dispatcher, registry, logger)
	}

	var whaleScanner *WhaleScanner
	if alchemyClient != nil {
		whaleScanner = NewWhaleScanner(alchemyClient, dispatcher, logger)
	}

	return &regimeService{
		ctx:             ctx,
		cancel:          cancel,
		logger:          logger,
		cfg:             cfg,
		store:           store,
		providerFactory: providerFactory,
		queueClient:     queueClient,
		dispatcher:      dispatcher,
		registry:        registry,
		regimeMonitor:   regimeMonitor,
		realtimeMonitor: realtimeMonitor,
		whaleScanner:    whaleScanner,
	}, nil
}

// buildRealtimeMonitor 组装实时链上监控, 事件源缺失时返回nil
func buildRealtimeMonitor(
	cfg *config.Config,
	factory *analytics.ProviderFactory,
	alchemyClient *onchain.AlchemyClient,
	store storage.Storage,
	dispatcher *alert.Dispatcher,
	registry *metrics.Registry,
	logger *zap.Logger,
) *monitor.RealtimeMonitor {
	provider, ok := factory.Get(config.ProviderAllium)
	if !ok {
		logger.Warn("实时监控需要Allium数据源, 已跳过")
		return nil
	}
	source, ok := provider.(monitor.EventSource)
	if !ok {
		logger.Warn("Allium数据源不支持实时查询, 已跳过")
		return nil
	}

	var reserves monitor.FlowSignaler
	if alchemyClient != nil && cfg.Reserves.Enabled {
		reserves = onchain.NewReservesTracker(alchemyClient, cfg.Reserves, logger)
	}

	realtimeMonitor := monitor.NewRealtimeMonitor(source, reserves, store, dispatcher, cfg, logger)
	if registry != nil {
		realtimeMonitor.SetMetricsRegistry(registry)
	}
	return realtimeMonitor
}

// Start 启动服务
func (s *regimeService) Start() {
	s.logger.Info("启动市场状态监控服务")

	// 启动告警分发器的队列消费
	s.dispatcher.Start(s.ctx)

	// 启动状态监控
	go func() {
		if err := s.regimeMonitor.Start(s.ctx); err != nil {
			s.logger.Error("状态监控运行结束", zap.Error(err))
		}
	}()

	// 启动实时链上监控
	if s.realtimeMonitor != nil {
		go func() {
			if err := s.realtimeMonitor.Start(s.ctx); err != nil {
				s.logger.Error("实时监控运行结束", zap.Error(err))
			}
		}()
	}

	// 启动巨鲸钱包扫描
	if s.whaleScanner != nil {
		go func() {
			if err := s.whaleScanner.Start(s.ctx); err != nil {
				s.logger.Error("巨鲸扫描运行结束", zap.Error(err))
			}
		}()
	}

	// 暴露Prometheus指标
	if s.registry != nil {
		s.registry.Serve(s.cfg.Metrics.ListenAddr)
	}
}

// Stop 停止服务
func (s *regimeService) Stop(ctx context.Context) error {
	s.logger.Info("停止市场状态监控服务")

	// 取消服务上下文, 各监控循环随之退出
	s.cancel()

	// 停止告警分发器并等待队列消费收尾
	s.dispatcher.Stop()

	// 关闭指标服务
	if s.registry != nil {
		if err := s.registry.Shutdown(ctx); err != nil {
			s.logger.Error("关闭指标服务失败", zap.Error(err))
		}
	}

	// 关闭存储连接
	if err := s.store.Close(ctx); err != nil {
		s.logger.Error("关闭存储连接失败", zap.Error(err))
	}

	// 关闭告警队列连接
	if s.queueClient != nil {
		if err := s.queueClient.Close(); err != nil {
			s.logger.Error("关闭Redis连接失败", zap.Error(err))
		}
	}

	// 等待服务优雅关闭的超时时间
	shutdownTimeout := 5 * time.Second

	timer := time.NewTimer(shutdownTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
