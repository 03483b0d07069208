package regime

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/model"
)

// 流动性偏离阈值(%)
const (
	liquidityCriticalPct     = -30
	liquidityPoorPct         = -15
	liquidityBelowAveragePct = -5
	liquidityExcellentPct    = 20
)

// 杠杆周期判定阈值
const (
	lateCycleElevatedPct  = 70
	lateCycleConsecutive  = 20
	midCycleElevatedPct   = 50
	midCycleConsecutive   = 10
	earlyCycleElevatedPct = 30
)

// 协议健康告警阈值
const (
	utilizationCritical = 0.90
	utilizationWarning  = 0.80
	healthFactorFloor   = 1.3
)

type cycleAction struct {
	leverageLimit    float64
	positionSizeMult float64
	note             string
}

// 各周期阶段的风险动作建议
var cycleActions = map[model.CyclePhase]cycleAction{
	model.CycleEarly:        {3.0, 1.2, "Favorable leverage environment, can take larger positions"},
	model.CycleMid:          {2.0, 1.0, "Normal operations"},
	model.CycleLate:         {1.5, 0.6, "Leverage saturation detected, reduce exposure"},
	model.CycleTransitional: {2.0, 0.9, "Uncertain cycle position, slight caution"},
}

// Engine 市场状态分类引擎
// 规则按固定优先级顺序评估, 较恶劣的状态先命中先返回
type Engine struct {
	logger      *zap.Logger
	thresholds  config.RegimeThresholds
	multipliers map[string]float64
}

// NewEngine 创建状态分类引擎, 阈值缺失时回退默认值
func NewEngine(cfg config.RegimeConfig, logger *zap.Logger) *Engine {
	thresholds := cfg.Thresholds
	if thresholds == (config.RegimeThresholds{}) {
		thresholds = config.DefaultRegimeThresholds()
	}

	multipliers := cfg.RiskMultipliers
	if len(multipliers) == 0 {
		multipliers = config.DefaultRiskMultipliers()
	}

	return &Engine{
		logger:      logger,
		thresholds:  thresholds,
		multipliers: multipliers,
	}
}

// Classify 依据衍生品指标判定市场状态
func (e *Engine) Classify(m model.RegimeMetrics) model.Regime {
	th := e.thresholds

	// FRAGILE: 杠杆快速堆积, 资金费率偏高, 已出现集中清算
	if m.OIGrowthPct7d > th.Fragile.OIGrowthMin &&
		m.AvgFunding > th.Fragile.FundingAvgMin &&
		m.TotalLiquidations7d > th.Fragile.LiquidationsMin {
		return e.logged(model.RegimeFragile, m)
	}

	// STRESS: 持仓量快速收缩, 清算规模极端
	if m.OIGrowthPct7d < th.Stress.OIGrowthMax &&
		m.TotalLiquidations7d > th.Stress.LiquidationsMin {
		return e.logged(model.RegimeStress, m)
	}

	// RECOVERY: 去杠杆完成, 资金费率回归正常区间
	if th.Recovery.OIGrowthMin <= m.OIGrowthPct7d && m.OIGrowthPct7d <= th.Recovery.OIGrowthMax &&
		th.Recovery.FundingAvgMin <= m.AvgFunding && m.AvgFunding <= th.Recovery.FundingAvgMax &&
		m.TotalLiquidations7d < th.Recovery.LiquidationsMax {
		return e.logged(model.RegimeRecovery, m)
	}

	// STABLE: 杠杆温和增长, 费率正常, 清算有限
	if th.Stable.OIGrowthMin <= m.OIGrowthPct7d && m.OIGrowthPct7d <= th.Stable.OIGrowthMax &&
		th.Stable.FundingAvgMin <= m.AvgFunding && m.AvgFunding <= th.Stable.FundingAvgMax &&
		m.TotalLiquidations7d < th.Stable.LiquidationsMax {
		return e.logged(model.RegimeStable, m)
	}

	return e.logged(model.RegimeTransitional, m)
}

func (e *Engine) logged(r model.Regime, m model.RegimeMetrics) model.Regime {
	e.logger.Info("市场状态判定",
		zap.String("regime", string(r)),
		zap.Float64("oi_growth_pct_7d", m.OIGrowthPct7d),
		zap.Float64("avg_funding", m.AvgFunding),
		zap.Float64("total_liquidations_7d", m.TotalLiquidations7d),
	)
	return r
}

// RiskMultiplier 返回状态对应的风险预算乘数, 未知状态使用UNKNOWN项
func (e *Engine) RiskMultiplier(r model.Regime) float64 {
	if mult, ok := e.multipliers[string(r)]; ok {
		return mult
	}
	return e.multipliers[string(model.RegimeUnknown)]
}

// AssessLiquidity 评估DEX流动性健康度
// TVL任一字段缺失时返回UNKNOWN且不做仓位调整
func (e *Engine) AssessLiquidity(m model.LiquidityMetrics) model.LiquidityAssessment {
	if m.TVLToday == nil || m.TVL30dAvg == nil {
		return model.LiquidityAssessment{Health: model.LiquidityUnknown}
	}

	deviation := m.DeviationPct

	var health model.LiquidityHealth
	var adjustment float64
	switch {
	case deviation < liquidityCriticalPct:
		health, adjustment = model.LiquidityCritical, -0.4
	case deviation < liquidityPoorPct:
		health, adjustment = model.LiquidityPoor, -0.2
	case deviation < liquidityBelowAveragePct:
		health, adjustment = model.LiquidityBelowAverage, -0.1
	case deviation > liquidityExcellentPct:
		health, adjustment = model.LiquidityExcellent, 0.1
	default:
		health, adjustment = model.LiquidityNormal, 0
	}

	e.logger.Info("流动性健康评估",
		zap.String("health", string(health)),
		zap.Float64("deviation_pct", deviation),
		zap.Float64("adjustment", adjustment),
	)

	return model.LiquidityAssessment{
		Health:                 health,
		TVLToday:               m.TVLToday,
		TVL30dAvg:              m.TVL30dAvg,
		DeviationPct:           &deviation,
		PositionSizeAdjustment: adjustment,
	}
}

// ClassifyCycle 判定当前杠杆周期阶段, 用于规避周期尾部的风险堆积
func (e *Engine) ClassifyCycle(m model.CycleMetrics) model.CycleAssessment {
	var phase model.CyclePhase
	switch {
	case m.PctElevatedFunding > lateCycleElevatedPct && m.MaxConsecutiveHigh > lateCycleConsecutive:
		phase = model.CycleLate
	case m.PctElevatedFunding > midCycleElevatedPct && m.MaxConsecutiveHigh > midCycleConsecutive:
		phase = model.CycleMid
	case m.PctElevatedFunding < earlyCycleElevatedPct:
		phase = model.CycleEarly
	default:
		phase = model.CycleTransitional
	}

	action, ok := cycleActions[phase]
	if !ok {
		action = cycleActions[model.CycleTransitional]
	}

	e.logger.Info("杠杆周期判定",
		zap.String("phase", string(phase)),
		zap.Float64("pct_elevated_funding", m.PctElevatedFunding),
		zap.Float64("max_consecutive_high", m.MaxConsecutiveHigh),
	)

	return model.CycleAssessment{
		Phase:              phase,
		LeverageLimit:      action.leverageLimit,
		PositionSizeMult:   action.positionSizeMult,
		Note:               action.note,
		PctElevatedFunding: m.PctElevatedFunding,
		MaxConsecutiveHigh: m.MaxConsecutiveHigh,
	}
}

// CheckProtocolHealth 检查借贷协议压力状况, 返回人类可读的告警文本
func (e *Engine) CheckProtocolHealth(stats []model.ProtocolStat) []string {
	var alerts []string

	for _, stat := range stats {
		protocol := stat.Protocol
		if protocol == "" {
			protocol = "UNKNOWN"
		}
		asset := stat.Asset
		if asset == "" {
			asset = "UNKNOWN"
		}

		// 高利用率意味着清算级联风险
		if stat.UtilizationRatio > utilizationCritical {
			alerts = append(alerts, fmt.Sprintf(
				"🔴 CRITICAL: %s %s utilization at %.1f%% (threshold: 90%%). Liquidation cascade risk elevated.",
				protocol, asset, stat.UtilizationRatio*100))
		} else if stat.UtilizationRatio > utilizationWarning {
			alerts = append(alerts, fmt.Sprintf(
				"🟡 WARNING: %s %s utilization at %.1f%% (threshold: 80%%). Monitor for deleveraging.",
				protocol, asset, stat.UtilizationRatio*100))
		}

		// 健康因子偏低意味着仓位过度加杠杆
		if stat.AvgHealthFactor != nil && *stat.AvgHealthFactor != 0 && *stat.AvgHealthFactor < healthFactorFloor {
			alerts = append(alerts, fmt.Sprintf(
				"🔴 CRITICAL: %s %s avg health factor %.2f (threshold: 1.3). Liquidations likely imminent.",
				protocol, asset, *stat.AvgHealthFactor))
		}
	}

	return alerts
}
