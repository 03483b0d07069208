package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/model"
)

func newTestEngine(t *testing.T) *Engine {
	return NewEngine(config.RegimeConfig{
		Thresholds:      config.DefaultRegimeThresholds(),
		RiskMultipliers: config.DefaultRiskMultipliers(),
	}, zaptest.NewLogger(t))
}

func f64(v float64) *float64 {
	return &v
}

func TestEngine_Classify(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name     string
		metrics  model.RegimeMetrics
		expected model.Regime
	}{
		{
			name: "稳定状态-温和指标",
			metrics: model.RegimeMetrics{
				AvgFunding:          0.05,
				OIGrowthPct7d:       5.0,
				TotalLiquidations7d: 15_000_000,
			},
			expected: model.RegimeStable,
		},
		{
			name: "脆弱状态-高杠杆高费率叠加清算",
			metrics: model.RegimeMetrics{
				AvgFunding:          0.12,
				OIGrowthPct7d:       30,
				TotalLiquidations7d: 60_000_000,
			},
			expected: model.RegimeFragile,
		},
		{
			name: "压力状态-持仓收缩大规模清算",
			metrics: model.RegimeMetrics{
				AvgFunding:          0.02,
				OIGrowthPct7d:       -20,
				TotalLiquidations7d: 150_000_000,
			},
			expected: model.RegimeStress,
		},
		{
			name: "恢复状态-去杠杆完成费率回归",
			metrics: model.RegimeMetrics{
				AvgFunding:          0.05,
				OIGrowthPct7d:       -5,
				TotalLiquidations7d: 10_000_000,
			},
			expected: model.RegimeRecovery,
		},
		{
			name: "过渡状态-规则均不命中",
			metrics: model.RegimeMetrics{
				AvgFunding:          0.005,
				OIGrowthPct7d:       50,
				TotalLiquidations7d: 0,
			},
			expected: model.RegimeTransitional,
		},
		{
			name: "边界-持仓增长恰为脆弱阈值不触发",
			metrics: model.RegimeMetrics{
				AvgFunding:          0.15,
				OIGrowthPct7d:       25,
				TotalLiquidations7d: 60_000_000,
			},
			expected: model.RegimeTransitional,
		},
		{
			name: "边界-费率恰为稳定区间上限",
			metrics: model.RegimeMetrics{
				AvgFunding:          0.06,
				OIGrowthPct7d:       5,
				TotalLiquidations7d: 10_000_000,
			},
			expected: model.RegimeStable,
		},
		{
			name: "边界-清算额恰为稳定上限不触发",
			metrics: model.RegimeMetrics{
				AvgFunding:          0.05,
				OIGrowthPct7d:       5,
				TotalLiquidations7d: 30_000_000,
			},
			expected: model.RegimeTransitional,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, engine.Classify(tt.metrics))
		})
	}
}

func TestEngine_Classify_RecoveryBeforeStable(t *testing.T) {
	engine := newTestEngine(t)

	// 指标同时落入RECOVERY和STABLE区间时, 先评估的RECOVERY胜出
	metrics := model.RegimeMetrics{
		AvgFunding:          0.05,
		OIGrowthPct7d:       -5,
		TotalLiquidations7d: 10_000_000,
	}

	assert.Equal(t, model.RegimeRecovery, engine.Classify(metrics))
}

func TestEngine_Classify_EmptyMetricsUseDefaults(t *testing.T) {
	engine := newTestEngine(t)

	// 空结果行回退默认值(funding=0.05, oi=0, liq=0), oi=0为RECOVERY区间上边界
	metrics := ParseMetrics(map[string]any{})

	assert.Equal(t, 0.05, metrics.AvgFunding)
	assert.Equal(t, 0.0, metrics.OIGrowthPct7d)
	assert.Equal(t, 0.0, metrics.TotalLiquidations7d)
	assert.Equal(t, model.RegimeRecovery, engine.Classify(metrics))
}

func TestEngine_RiskMultiplier(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name     string
		regime   model.Regime
		expected float64
	}{
		{name: "稳定状态", regime: model.RegimeStable, expected: 1.0},
		{name: "恢复状态", regime: model.RegimeRecovery, expected: 1.2},
		{name: "过渡状态", regime: model.RegimeTransitional, expected: 0.8},
		{name: "脆弱状态", regime: model.RegimeFragile, expected: 0.5},
		{name: "压力状态", regime: model.RegimeStress, expected: 0.3},
		{name: "未知状态", regime: model.RegimeUnknown, expected: 0.8},
		{name: "非法状态回退UNKNOWN", regime: model.Regime("GARBAGE"), expected: 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, engine.RiskMultiplier(tt.regime))
		})
	}
}

func TestEngine_AssessLiquidity(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name           string
		metrics        model.LiquidityMetrics
		expectedHealth model.LiquidityHealth
		expectedAdjust float64
	}{
		{
			name:           "TVL缺失返回UNKNOWN",
			metrics:        model.LiquidityMetrics{},
			expectedHealth: model.LiquidityUnknown,
			expectedAdjust: 0,
		},
		{
			name: "仅当日TVL缺失返回UNKNOWN",
			metrics: model.LiquidityMetrics{
				TVL30dAvg:    f64(1_000_000_000),
				DeviationPct: -40,
			},
			expectedHealth: model.LiquidityUnknown,
			expectedAdjust: 0,
		},
		{
			name: "严重恶化",
			metrics: model.LiquidityMetrics{
				TVLToday:     f64(600_000_000),
				TVL30dAvg:    f64(1_000_000_000),
				DeviationPct: -35,
			},
			expectedHealth: model.LiquidityCritical,
			expectedAdjust: -0.4,
		},
		{
			name: "明显恶化",
			metrics: model.LiquidityMetrics{
				TVLToday:     f64(800_000_000),
				TVL30dAvg:    f64(1_000_000_000),
				DeviationPct: -20,
			},
			expectedHealth: model.LiquidityPoor,
			expectedAdjust: -0.2,
		},
		{
			name: "低于均值",
			metrics: model.LiquidityMetrics{
				TVLToday:     f64(900_000_000),
				TVL30dAvg:    f64(1_000_000_000),
				DeviationPct: -10,
			},
			expectedHealth: model.LiquidityBelowAverage,
			expectedAdjust: -0.1,
		},
		{
			name: "边界-负15落入低于均值档",
			metrics: model.LiquidityMetrics{
				TVLToday:     f64(850_000_000),
				TVL30dAvg:    f64(1_000_000_000),
				DeviationPct: -15,
			},
			expectedHealth: model.LiquidityBelowAverage,
			expectedAdjust: -0.1,
		},
		{
			name: "流动性充裕",
			metrics: model.LiquidityMetrics{
				TVLToday:     f64(1_300_000_000),
				TVL30dAvg:    f64(1_000_000_000),
				DeviationPct: 25,
			},
			expectedHealth: model.LiquidityExcellent,
			expectedAdjust: 0.1,
		},
		{
			name: "正常区间",
			metrics: model.LiquidityMetrics{
				TVLToday:     f64(1_030_000_000),
				TVL30dAvg:    f64(1_000_000_000),
				DeviationPct: 3,
			},
			expectedHealth: model.LiquidityNormal,
			expectedAdjust: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.AssessLiquidity(tt.metrics)
			assert.Equal(t, tt.expectedHealth, result.Health)
			assert.Equal(t, tt.expectedAdjust, result.PositionSizeAdjustment)
			if tt.expectedHealth == model.LiquidityUnknown {
				assert.Nil(t, result.DeviationPct)
			} else {
				assert.NotNil(t, result.DeviationPct)
				assert.Equal(t, tt.metrics.DeviationPct, *result.DeviationPct)
			}
		})
	}
}

func TestEngine_ClassifyCycle(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name             string
		metrics          model.CycleMetrics
		expectedPhase    model.CyclePhase
		expectedLeverage float64
		expectedMult     float64
	}{
		{
			name:             "周期尾部-杠杆饱和",
			metrics:          model.CycleMetrics{PctElevatedFunding: 75, MaxConsecutiveHigh: 25},
			expectedPhase:    model.CycleLate,
			expectedLeverage: 1.5,
			expectedMult:     0.6,
		},
		{
			name:             "周期中段",
			metrics:          model.CycleMetrics{PctElevatedFunding: 60, MaxConsecutiveHigh: 15},
			expectedPhase:    model.CycleMid,
			expectedLeverage: 2.0,
			expectedMult:     1.0,
		},
		{
			name:             "周期早期",
			metrics:          model.CycleMetrics{PctElevatedFunding: 10, MaxConsecutiveHigh: 0},
			expectedPhase:    model.CycleEarly,
			expectedLeverage: 3.0,
			expectedMult:     1.2,
		},
		{
			name:             "不确定阶段",
			metrics:          model.CycleMetrics{PctElevatedFunding: 40, MaxConsecutiveHigh: 5},
			expectedPhase:    model.CycleTransitional,
			expectedLeverage: 2.0,
			expectedMult:     0.9,
		},
		{
			name:             "高占比但连续周期不足降级为中段",
			metrics:          model.CycleMetrics{PctElevatedFunding: 75, MaxConsecutiveHigh: 15},
			expectedPhase:    model.CycleMid,
			expectedLeverage: 2.0,
			expectedMult:     1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.ClassifyCycle(tt.metrics)
			assert.Equal(t, tt.expectedPhase, result.Phase)
			assert.Equal(t, tt.expectedLeverage, result.LeverageLimit)
			assert.Equal(t, tt.expectedMult, result.PositionSizeMult)
			assert.NotEmpty(t, result.Note)
		})
	}
}

func TestEngine_CheckProtocolHealth(t *testing.T) {
	engine := newTestEngine(t)

	tests := []struct {
		name     string
		stats    []model.ProtocolStat
		expected []string
	}{
		{
			name: "高利用率触发CRITICAL",
			stats: []model.ProtocolStat{
				{Protocol: "Aave", Asset: "USDC", UtilizationRatio: 0.92},
			},
			expected: []string{
				"🔴 CRITICAL: Aave USDC utilization at 92.0% (threshold: 90%). Liquidation cascade risk elevated.",
			},
		},
		{
			name: "利用率偏高触发WARNING",
			stats: []model.ProtocolStat{
				{Protocol: "Compound", Asset: "DAI", UtilizationRatio: 0.85},
			},
			expected: []string{
				"🟡 WARNING: Compound DAI utilization at 85.0% (threshold: 80%). Monitor for deleveraging.",
			},
		},
		{
			name: "健康因子偏低触发CRITICAL",
			stats: []model.ProtocolStat{
				{Protocol: "Aave", Asset: "WETH", UtilizationRatio: 0.5, AvgHealthFactor: f64(1.1)},
			},
			expected: []string{
				"🔴 CRITICAL: Aave WETH avg health factor 1.10 (threshold: 1.3). Liquidations likely imminent.",
			},
		},
		{
			name: "健康因子为零不触发",
			stats: []model.ProtocolStat{
				{Protocol: "Aave", Asset: "WETH", UtilizationRatio: 0.5, AvgHealthFactor: f64(0)},
			},
			expected: nil,
		},
		{
			name: "利用率与健康因子同时触发",
			stats: []model.ProtocolStat{
				{Protocol: "Aave", Asset: "USDC", UtilizationRatio: 0.95, AvgHealthFactor: f64(1.2)},
			},
			expected: []string{
				"🔴 CRITICAL: Aave USDC utilization at 95.0% (threshold: 90%). Liquidation cascade risk elevated.",
				"🔴 CRITICAL: Aave USDC avg health factor 1.20 (threshold: 1.3). Liquidations likely imminent.",
			},
		},
		{
			name: "字段缺失使用UNKNOWN占位",
			stats: []model.ProtocolStat{
				{UtilizationRatio: 0.95},
			},
			expected: []string{
				"🔴 CRITICAL: UNKNOWN UNKNOWN utilization at 95.0% (threshold: 90%). Liquidation cascade risk elevated.",
			},
		},
		{
			name: "正常指标无告警",
			stats: []model.ProtocolStat{
				{Protocol: "Aave", Asset: "USDC", UtilizationRatio: 0.5, AvgHealthFactor: f64(2.0)},
			},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, engine.CheckProtocolHealth(tt.stats))
		})
	}
}

func TestNewEngine_FallbackDefaults(t *testing.T) {
	// 配置缺失时回退默认阈值与乘数表
	engine := NewEngine(config.RegimeConfig{}, zaptest.NewLogger(t))

	metrics := model.RegimeMetrics{
		AvgFunding:          0.05,
		OIGrowthPct7d:       5.0,
		TotalLiquidations7d: 15_000_000,
	}

	assert.Equal(t, model.RegimeStable, engine.Classify(metrics))
	assert.Equal(t, 1.0, engine.RiskMultiplier(model.RegimeStable))
	assert.Equal(t, 0.8, engine.RiskMultiplier(model.Regime("BOGUS")))
}
