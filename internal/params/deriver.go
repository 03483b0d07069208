package params

import (
	"math"
	"time"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/model"
)

// SafeDefaults 数据不可用时的保守默认参数
func SafeDefaults() *model.StrategyParams {
	return &model.StrategyParams{
		Regime:               model.RegimeUnknown,
		MaxPositionSizeBTC:   0.3,
		LeverageLimit:        1.5,
		RiskBudgetMultiplier: 0.7,
		LiquidityHealth:      model.LiquidityUnknown,
		ProtocolAlerts:       []string{},
	}
}

// Deriver 依据市场状态推导策略参数
type Deriver struct {
	basePosition   float64
	leverageLimits map[string]float64
}

// NewDeriver 创建参数推导器, 配置缺失时回退默认值
func NewDeriver(strategyCfg config.StrategyConfig, regimeCfg config.RegimeConfig) *Deriver {
	base := strategyCfg.BasePositionSizeBTC
	if base <= 0 {
		base = 0.5
	}
	limits := regimeCfg.LeverageLimits
	if len(limits) == 0 {
		limits = config.DefaultLeverageLimits()
	}
	return &Deriver{
		basePosition:   base,
		leverageLimits: limits,
	}
}

// Derive 组合风险乘数与流动性健康, 生成推荐参数
func (d *Deriver) Derive(regime model.Regime, riskMult float64, liquidity model.LiquidityAssessment, protocolAlerts []string) *model.StrategyParams {
	leverage, ok := d.leverageLimits[string(regime)]
	if !ok {
		leverage = 2.0
	}

	alerts := protocolAlerts
	if alerts == nil {
		alerts = []string{}
	}

	return &model.StrategyParams{
		Regime:               regime,
		MaxPositionSizeBTC:   d.basePosition * riskMult,
		LeverageLimit:        leverage,
		RiskBudgetMultiplier: riskMult,
		LiquidityHealth:      liquidity.Health,
		ProtocolAlerts:       alerts,
		ApprovedBy:           model.ApprovedByAuto,
		UpdatedAt:            time.Now().UTC(),
	}
}

// PositionSizeChangePct 计算仓位上限相对当前参数的变化幅度(%)
// 当前参数缺失或为零时视为全量变化
func PositionSizeChangePct(current, recommended *model.StrategyParams) float64 {
	if current == nil || current.MaxPositionSizeBTC <= 0 {
		return 100
	}
	return math.Abs(recommended.MaxPositionSizeBTC-current.MaxPositionSizeBTC) / current.MaxPositionSizeBTC * 100
}
