package params

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/model"
)

// ParamsStore 参数加载数据源
type ParamsStore interface {
	GetLatestParams(ctx context.Context) (*model.StrategyParams, error)
}

// Loader 策略参数加载器
// 系统启动时加载一次, 之后按固定间隔重新加载以获取变更,
// 数据库不可用或数据过期时回退安全默认参数
type Loader struct {
	store          ParamsStore
	logger         *zap.Logger
	reloadInterval time.Duration
	staleness      time.Duration

	mu       sync.Mutex
	params   *model.StrategyParams
	lastLoad time.Time
}

// NewLoader 创建参数加载器
func NewLoader(store ParamsStore, cfg config.StrategyConfig, logger *zap.Logger) *Loader {
	reload := time.Duration(cfg.ReloadIntervalSeconds) * time.Second
	if reload <= 0 {
		reload = 30 * time.Minute
	}
	staleness := time.Duration(cfg.StalenessHours) * time.Hour
	if staleness <= 0 {
		staleness = 24 * time.Hour
	}

	return &Loader{
		store:          store,
		logger:         logger,
		reloadInterval: reload,
		staleness:      staleness,
		params:         SafeDefaults(),
	}
}

// LoadLatest 从数据库加载最近一次批准的参数
func (l *Loader) LoadLatest(ctx context.Context) *model.StrategyParams {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLatestLocked(ctx)
}

func (l *Loader) loadLatestLocked(ctx context.Context) *model.StrategyParams {
	if l.store == nil {
		l.logger.Warn("无数据库连接, 使用安全默认参数")
		return SafeDefaults()
	}

	loaded, err := l.store.GetLatestParams(ctx)
	if err != nil {
		l.logger.Error("加载策略参数失败", zap.Error(err))
		return SafeDefaults()
	}
	if loaded == nil {
		l.logger.Info("数据库中暂无策略参数, 使用安全默认参数")
		return SafeDefaults()
	}

	p := normalize(loaded)
	l.params = p
	l.lastLoad = time.Now()
	l.logger.Info("策略参数已加载", zap.String("regime", string(p.Regime)))

	return p
}

// normalize 逐字段回填安全默认值, 空值视为缺失
func normalize(p *model.StrategyParams) *model.StrategyParams {
	defaults := SafeDefaults()
	out := *p
	if out.Regime == "" {
		out.Regime = defaults.Regime
	}
	if out.MaxPositionSizeBTC == 0 {
		out.MaxPositionSizeBTC = defaults.MaxPositionSizeBTC
	}
	if out.LeverageLimit == 0 {
		out.LeverageLimit = defaults.LeverageLimit
	}
	if out.RiskBudgetMultiplier == 0 {
		out.RiskBudgetMultiplier = defaults.RiskBudgetMultiplier
	}
	if out.LiquidityHealth == "" {
		out.LiquidityHealth = defaults.LiquidityHealth
	}
	if out.ProtocolAlerts == nil {
		out.ProtocolAlerts = []string{}
	}
	return &out
}

// maybeReload 到达重载间隔后重新加载, 并检查数据时效
func (l *Loader) maybeReload(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.lastLoad.IsZero() && time.Since(l.lastLoad) <= l.reloadInterval {
		return
	}

	oldRegime := l.params.Regime
	loaded := l.loadLatestLocked(ctx)

	if l.isStale(loaded) {
		l.logger.Warn("策略参数已过期, 使用安全默认参数",
			zap.Duration("staleness_threshold", l.staleness))
		stale := SafeDefaults()
		stale.Stale = true
		l.params = stale
	}

	if oldRegime != l.params.Regime {
		l.logger.Info("市场状态已切换",
			zap.String("old", string(oldRegime)),
			zap.String("new", string(l.params.Regime)))
	}
}

func (l *Loader) isStale(p *model.StrategyParams) bool {
	if p.UpdatedAt.IsZero() {
		return true
	}
	return time.Since(p.UpdatedAt) > l.staleness
}

// Current 获取当前生效的参数副本
func (l *Loader) Current(ctx context.Context) *model.StrategyParams {
	l.maybeReload(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()
	out := *l.params
	return &out
}

// MaxPositionSize 获取当前仓位上限(BTC)
func (l *Loader) MaxPositionSize(ctx context.Context) float64 {
	l.maybeReload(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params.MaxPositionSizeBTC
}

// LeverageLimit 获取当前杠杆上限
func (l *Loader) LeverageLimit(ctx context.Context) float64 {
	l.maybeReload(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params.LeverageLimit
}

// RiskMultiplier 获取当前风险预算乘数
func (l *Loader) RiskMultiplier(ctx context.Context) float64 {
	l.maybeReload(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params.RiskBudgetMultiplier
}

// Regime 获取当前市场状态
func (l *Loader) Regime(ctx context.Context) model.Regime {
	l.maybeReload(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params.Regime
}

// LiquidityHealth 获取当前流动性健康状态
func (l *Loader) LiquidityHealth(ctx context.Context) model.LiquidityHealth {
	l.maybeReload(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params.LiquidityHealth
}

// IsStale 当前参数是否因过期而回退到安全默认值
func (l *Loader) IsStale() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params.Stale
}
