package model

import (
	"encoding/json"
	"time"
)

// Regime 市场状态类型
type Regime string

// 市场状态分类
const (
	RegimeStable       Regime = "STABLE"       // 杠杆温和增长, 资金费率正常
	RegimeRecovery     Regime = "RECOVERY"     // 去杠杆完成, 可适度增加风险
	RegimeTransitional Regime = "TRANSITIONAL" // 不确定状态, 适度降低风险
	RegimeFragile      Regime = "FRAGILE"      // 高杠杆堆积叠加集中清算
	RegimeStress       Regime = "STRESS"       // 主动去杠杆进行中
	RegimeUnknown      Regime = "UNKNOWN"      // 数据缺失或不可用
)

// RegimeMetrics 衍生品市场指标快照
type RegimeMetrics struct {
	AvgFunding          float64 `json:"avg_funding"`           // 7日平均资金费率
	OIGrowthPct7d       float64 `json:"oi_growth_pct_7d"`      // 7日持仓量增长率(%)
	TotalLiquidations7d float64 `json:"total_liquidations_7d"` // 7日清算总额(USD)
}

// LiquidityHealth DEX流动性健康状态
type LiquidityHealth string

const (
	LiquidityUnknown      LiquidityHealth = "UNKNOWN"
	LiquidityCritical     LiquidityHealth = "CRITICAL"
	LiquidityPoor         LiquidityHealth = "POOR"
	LiquidityBelowAverage LiquidityHealth = "BELOW_AVERAGE"
	LiquidityNormal       LiquidityHealth = "NORMAL"
	LiquidityExcellent    LiquidityHealth = "EXCELLENT"
)

// LiquidityMetrics DEX流动性原始指标
type LiquidityMetrics struct {
	TVLToday     *float64 `json:"tvl_today"`              // 当前TVL, 数据缺失时为nil
	TVL30dAvg    *float64 `json:"tvl_30d_avg"`            // 30日平均TVL
	DeviationPct float64  `json:"deviation_from_30d_pct"` // 相对30日均值的偏离(%)
}

// LiquidityAssessment 流动性健康评估结果
type LiquidityAssessment struct {
	Health                 LiquidityHealth `json:"health"`
	TVLToday               *float64        `json:"tvl_today"`
	TVL30dAvg              *float64        `json:"tvl_30d_avg"`
	DeviationPct           *float64        `json:"deviation_pct"`
	PositionSizeAdjustment float64         `json:"position_size_adjustment"` // 建议仓位调整比例
}

// CyclePhase 杠杆周期阶段
type CyclePhase string

const (
	CycleEarly        CyclePhase = "EARLY_CYCLE"
	CycleMid          CyclePhase = "MID_CYCLE"
	CycleLate         CyclePhase = "LATE_CYCLE"
	CycleTransitional CyclePhase = "TRANSITIONAL"
)

// CycleMetrics 资金费率持续性指标
type CycleMetrics struct {
	PctElevatedFunding float64 `json:"pct_elevated_funding"` // 资金费率偏高周期占比(%)
	MaxConsecutiveHigh float64 `json:"max_consecutive_high"` // 最长连续高费率周期数
}

// CycleAssessment 杠杆周期评估结果
type CycleAssessment struct {
	Phase              CyclePhase `json:"phase"`
	LeverageLimit      float64    `json:"leverage_limit"`     // 阶段建议杠杆上限
	PositionSizeMult   float64    `json:"position_size_mult"` // 阶段仓位倍数
	Note               string     `json:"note"`
	PctElevatedFunding float64    `json:"pct_elevated_funding"`
	MaxConsecutiveHigh float64    `json:"max_consecutive_high"`
}

// ProtocolStat 借贷协议健康指标
type ProtocolStat struct {
	Protocol         string   `json:"protocol"`
	Asset            string   `json:"asset"`
	UtilizationRatio float64  `json:"utilization_ratio"` // 资金利用率
	AvgHealthFactor  *float64 `json:"avg_health_factor"` // 平均健康因子, 仅部分协议提供
}

// RegimeAssessment 一次完整状态检查的汇总结果
type RegimeAssessment struct {
	Timestamp      time.Time           `json:"timestamp"`
	Regime         Regime              `json:"regime"`
	PreviousRegime Regime              `json:"previous_regime,omitempty"`
	Metrics        RegimeMetrics       `json:"metrics"`
	RiskMultiplier float64             `json:"risk_multiplier"`
	Liquidity      LiquidityAssessment `json:"liquidity"`
	ProtocolAlerts []string            `json:"protocol_alerts,omitempty"`
}

// RegimeRecord 状态历史记录, 对应dune_regime_history表
type RegimeRecord struct {
	ID             int64           `db:"id" json:"id"`
	Timestamp      time.Time       `db:"timestamp" json:"timestamp"`
	Regime         Regime          `db:"regime" json:"regime"`
	OIGrowth       float64         `db:"oi_growth" json:"oi_growth"`
	FundingAvg     float64         `db:"funding_avg" json:"funding_avg"`
	LiquidityRatio float64         `db:"liquidity_ratio" json:"liquidity_ratio"`
	RawData        json.RawMessage `db:"raw_data" json:"raw_data,omitempty"`
}
