// Package monitor 周期性市场状态检测与实时链上事件监控
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/alert"
	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/metrics"
	"github.com/life2you_mini/regime/internal/model"
	"github.com/life2you_mini/regime/internal/params"
	"github.com/life2you_mini/regime/internal/regime"
)

// 常量定义
const (
	DefaultCheckInterval = 6 * time.Hour

	// 错误告警中的组件标识
	componentRegimeCheck = "dune_regime_check"
)

// MetricsProvider 批量分析数据源接口
type MetricsProvider interface {
	Name() string
	GetLatestResults(ctx context.Context, queryID string) ([]map[string]any, error)
}

// RegimeStore 状态历史与策略参数存取接口
type RegimeStore interface {
	StoreRegimeRecord(ctx context.Context, record *model.RegimeRecord) error
	GetLatestRegime(ctx context.Context) (model.Regime, error)
	StoreStrategyParams(ctx context.Context, params *model.StrategyParams) error
	GetLatestParams(ctx context.Context) (*model.StrategyParams, error)
}

// Alerter 告警分发接口
type Alerter interface {
	Dispatch(ctx context.Context, alert model.Alert) error
}

// RegimeMonitor 市场状态监控组件
// 按固定周期拉取链上分析指标, 分类市场状态并推导策略参数
type RegimeMonitor struct {
	provider MetricsProvider
	engine   *regime.Engine
	deriver  *params.Deriver
	store    RegimeStore
	alerter  Alerter
	logger   *zap.Logger

	queries       config.QueriesConfig
	checkInterval time.Duration
	autoApplyPct  float64
	dryRun        bool
	registry      *metrics.Registry

	mu        sync.Mutex
	isRunning bool
}

// NewRegimeMonitor 创建市场状态监控组件
func NewRegimeMonitor(
	provider MetricsProvider,
	engine *regime.Engine,
	deriver *params.Deriver,
	store RegimeStore,
	alerter Alerter,
	cfg *config.Config,
	logger *zap.Logger,
) *RegimeMonitor {
	interval := time.Duration(cfg.Regime.CheckIntervalHours) * time.Hour
	if interval <= 0 {
		interval = DefaultCheckInterval
	}

	autoApply := cfg.Strategy.AutoApplyThresholdPct
	if autoApply <= 0 {
		autoApply = 10
	}

	return &RegimeMonitor{
		provider:      provider,
		engine:        engine,
		deriver:       deriver,
		store:         store,
		alerter:       alerter,
		logger:        logger,
		queries:       cfg.Analytics.Queries,
		checkInterval: interval,
		autoApplyPct:  autoApply,
	}
}

// SetDryRun 设置演练模式, 跳过写库与告警
func (m *RegimeMonitor) SetDryRun(dryRun bool) {
	m.dryRun = dryRun
}

// SetMetricsRegistry 注入指标注册表
func (m *RegimeMonitor) SetMetricsRegistry(r *metrics.Registry) {
	m.registry = r
}

// Start 启动周期检测, 阻塞直到ctx取消
func (m *RegimeMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.isRunning {
		m.mu.Unlock()
		return fmt.Errorf("状态监控器已在运行")
	}
	m.isRunning = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.isRunning = false
		m.mu.Unlock()
	}()

	m.logger.Info("启动市场状态监控器",
		zap.Duration("检查间隔", m.checkInterval),
		zap.String("provider", m.provider.Name()))

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	// 立即执行一次检查
	m.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.runCycle(ctx)
		}
	}
}

// runCycle 执行一轮检查并处理失败上报
func (m *RegimeMonitor) runCycle(ctx context.Context) {
	if _, err := m.RunCheck(ctx); err != nil {
		m.logger.Error("状态检查失败", zap.Error(err))
		m.recordCheck("failure")

		errAlert := alert.NewErrorAlert(componentRegimeCheck, err)
		if dispatchErr := m.alerter.Dispatch(ctx, errAlert); dispatchErr != nil {
			m.logger.Warn("发送错误告警失败", zap.Error(dispatchErr))
		}
		return
	}
	m.recordCheck("success")
}

// RunCheck 执行一次完整的状态检查
func (m *RegimeMonitor) RunCheck(ctx context.Context) (*model.RegimeAssessment, error) {
	checkID := uuid.New().String()[:8]
	m.logger.Info("开始市场状态检查",
		zap.String("check_id", checkID),
		zap.String("provider", m.provider.Name()))

	// 上一次状态, 无历史或读取失败时跳过变化比对
	previous, err := m.store.GetLatestRegime(ctx)
	if err != nil {
		m.logger.Warn("获取上次状态失败", zap.Error(err))
		previous = ""
	}

	rows, err := m.fetchLatest(ctx, m.queries.RegimeDetection, "regime_detection")
	if err != nil {
		return nil, fmt.Errorf("获取状态指标失败: %w", err)
	}

	var raw map[string]any
	if len(rows) > 0 {
		raw = rows[0]
	} else {
		m.logger.Warn("分析数据为空, 使用模拟指标进行测试")
		raw = map[string]any{
			"avg_funding":           0.05,
			"oi_growth_pct_7d":      5.0,
			"total_liquidations_7d": 15_000_000.0,
		}
	}
	// 随原始指标落库, 便于按日志对账
	raw["check_id"] = checkID

	snapshot := regime.ParseMetrics(raw)
	current := m.engine.Classify(snapshot)
	m.logger.Info("状态分类完成", zap.String("regime", string(current)))

	liqRows, err := m.fetchLatest(ctx, m.queries.LiquidityAssessment, "liquidity_assessment")
	if err != nil {
		return nil, fmt.Errorf("获取流动性指标失败: %w", err)
	}
	var liqMetrics model.LiquidityMetrics
	if len(liqRows) > 0 {
		liqMetrics = regime.ParseLiquidityMetrics(liqRows[0])
	}
	liquidity := m.engine.AssessLiquidity(liqMetrics)

	protocolAlerts := m.checkProtocolHealth(ctx)
	m.checkLeverageCycle(ctx)

	riskMult := m.engine.RiskMultiplier(current)
	assessment := &model.RegimeAssessment{
		Timestamp:      time.Now().UTC(),
		Regime:         current,
		PreviousRegime: previous,
		Metrics:        snapshot,
		RiskMultiplier: riskMult,
		Liquidity:      liquidity,
		ProtocolAlerts: protocolAlerts,
	}

	if m.registry != nil {
		m.registry.SetCurrentRegime(current)
	}

	if m.dryRun {
		m.logger.Info("dry-run模式, 跳过写库与告警",
			zap.String("regime", string(current)),
			zap.Float64("risk_multiplier", riskMult),
			zap.String("liquidity_health", string(liquidity.Health)),
			zap.String("previous_regime", string(previous)))
		return assessment, nil
	}

	m.storeRecord(ctx, assessment, raw)
	recommended, changePct, autoApplied := m.applyParams(ctx, assessment)
	m.sendAlerts(ctx, assessment, recommended, changePct, autoApplied)

	m.logger.Info("状态检查完成",
		zap.String("check_id", checkID),
		zap.String("regime", string(current)))
	return assessment, nil
}

// storeRecord 写入状态历史, 失败仅记录日志
func (m *RegimeMonitor) storeRecord(ctx context.Context, assessment *model.RegimeAssessment, raw map[string]any) {
	ratio := 1.0
	if assessment.Liquidity.DeviationPct != nil {
		ratio = *assessment.Liquidity.DeviationPct/100 + 1
	}
	raw["liquidity_ratio"] = ratio

	rawData, err := json.Marshal(raw)
	if err != nil {
		m.logger.Warn("序列化原始指标失败", zap.Error(err))
		rawData = nil
	}

	record := &model.RegimeRecord{
		Timestamp:      assessment.Timestamp,
		Regime:         assessment.Regime,
		OIGrowth:       assessment.Metrics.OIGrowthPct7d,
		FundingAvg:     assessment.Metrics.AvgFunding,
		LiquidityRatio: ratio,
		RawData:        rawData,
	}

	if err := m.store.StoreRegimeRecord(ctx, record); err != nil {
		m.logger.Error("保存状态历史失败", zap.Error(err))
		return
	}
	m.logger.Info("状态历史已保存", zap.String("regime", string(assessment.Regime)))
}

// applyParams 推导策略参数并按变化幅度决定是否自动应用
func (m *RegimeMonitor) applyParams(ctx context.Context, assessment *model.RegimeAssessment) (*model.StrategyParams, float64, bool) {
	recommended := m.deriver.Derive(
		assessment.Regime,
		assessment.RiskMultiplier,
		assessment.Liquidity,
		assessment.ProtocolAlerts,
	)

	current, err := m.store.GetLatestParams(ctx)
	if err != nil {
		m.logger.Warn("获取当前策略参数失败", zap.Error(err))
		current = nil
	}

	changePct := params.PositionSizeChangePct(current, recommended)

	// 无历史参数时直接落库, 变化幅度门槛只约束后续调整
	autoApplied := current == nil || changePct < m.autoApplyPct

	if !autoApplied {
		m.logger.Warn("参数变化超过自动应用阈值, 等待人工批准",
			zap.Float64("change_pct", changePct),
			zap.Float64("threshold_pct", m.autoApplyPct))
		return recommended, changePct, false
	}

	if err := m.store.StoreStrategyParams(ctx, recommended); err != nil {
		m.logger.Error("更新策略参数失败", zap.Error(err))
		return recommended, changePct, true
	}

	m.logger.Info("策略参数已更新",
		zap.String("regime", string(recommended.Regime)),
		zap.Float64("max_position_size_btc", recommended.MaxPositionSizeBTC))
	if m.registry != nil {
		m.registry.RecordParamsApplied(recommended.ApprovedBy)
	}
	return recommended, changePct, true
}

// sendAlerts 发送状态变化与参数提案告警
func (m *RegimeMonitor) sendAlerts(
	ctx context.Context,
	assessment *model.RegimeAssessment,
	recommended *model.StrategyParams,
	changePct float64,
	autoApplied bool,
) {
	if digest, ok := alert.NewProtocolAlertsDigest(assessment.ProtocolAlerts); ok {
		if err := m.alerter.Dispatch(ctx, digest); err != nil {
			m.logger.Warn("发送协议健康告警失败", zap.Error(err))
		}
	}

	previous := assessment.PreviousRegime
	if previous == "" || previous == assessment.Regime {
		return
	}

	m.logger.Info("市场状态发生变化",
		zap.String("from", string(previous)),
		zap.String("to", string(assessment.Regime)))
	if m.registry != nil {
		m.registry.RecordRegimeSwitch(previous, assessment.Regime)
	}

	snapshot := assessment.Metrics
	changeAlert := alert.NewRegimeChangeAlert(previous, assessment.Regime, &snapshot, assessment.RiskMultiplier)
	if err := m.alerter.Dispatch(ctx, changeAlert); err != nil {
		m.logger.Warn("发送状态变化告警失败", zap.Error(err))
	}

	currentParams, err := m.store.GetLatestParams(ctx)
	if err != nil {
		currentParams = nil
	}
	proposal := alert.NewParameterProposalAlert(currentParams, recommended, changePct, m.autoApplyPct, autoApplied)
	if err := m.alerter.Dispatch(ctx, proposal); err != nil {
		m.logger.Warn("发送参数提案告警失败", zap.Error(err))
	}
}

// checkProtocolHealth 拉取借贷协议健康指标, 失败不影响主流程
func (m *RegimeMonitor) checkProtocolHealth(ctx context.Context) []string {
	if m.queries.ProtocolHealth == "" {
		return nil
	}

	rows, err := m.fetchLatest(ctx, m.queries.ProtocolHealth, "protocol_health")
	if err != nil {
		m.logger.Warn("获取协议健康指标失败", zap.Error(err))
		return nil
	}

	alerts := m.engine.CheckProtocolHealth(regime.ParseProtocolStats(rows))
	if len(alerts) > 0 {
		m.logger.Warn("协议健康异常", zap.Int("alerts", len(alerts)))
	}
	return alerts
}

// checkLeverageCycle 拉取杠杆周期指标并记录阶段, 失败不影响主流程
func (m *RegimeMonitor) checkLeverageCycle(ctx context.Context) {
	if m.queries.LeverageCycle == "" {
		return
	}

	rows, err := m.fetchLatest(ctx, m.queries.LeverageCycle, "leverage_cycle")
	if err != nil {
		m.logger.Warn("获取杠杆周期指标失败", zap.Error(err))
		return
	}
	if len(rows) == 0 {
		return
	}

	cycle := m.engine.ClassifyCycle(regime.ParseCycleMetrics(rows[0]))
	m.logger.Info("杠杆周期评估",
		zap.String("phase", string(cycle.Phase)),
		zap.Float64("leverage_limit", cycle.LeverageLimit),
		zap.String("note", cycle.Note))
}

// fetchLatest 拉取查询缓存结果并记录耗时
func (m *RegimeMonitor) fetchLatest(ctx context.Context, queryID, label string) ([]map[string]any, error) {
	start := time.Now()
	rows, err := m.provider.GetLatestResults(ctx, queryID)

	if m.registry != nil {
		m.registry.ObserveQuery(m.provider.Name(), label, time.Since(start))
		if err != nil {
			m.registry.RecordQueryError(m.provider.Name())
		}
	}
	return rows, err
}

func (m *RegimeMonitor) recordCheck(status string) {
	if m.registry != nil {
		m.registry.RecordCheck(status)
	}
}
