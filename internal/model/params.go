package model

import (
	"time"
)

// 参数来源标识
const (
	ApprovedByAuto   = "AUTO"   // 变化幅度小, 自动应用
	ApprovedByManual = "MANUAL" // 操作员人工批准
)

// StrategyParams 策略参数, 对应himari_strategy_params表
type StrategyParams struct {
	Regime               Regime          `db:"regime" json:"regime"`
	MaxPositionSizeBTC   float64         `db:"max_position_size_btc" json:"max_position_size_btc"`
	LeverageLimit        float64         `db:"leverage_limit" json:"leverage_limit"`
	RiskBudgetMultiplier float64         `db:"risk_budget_multiplier" json:"risk_budget_multiplier"`
	LiquidityHealth      LiquidityHealth `db:"liquidity_health" json:"liquidity_health"`
	ProtocolAlerts       []string        `json:"protocol_alerts"`
	ApprovedBy           string          `db:"approved_by" json:"approved_by"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
	Reasoning            string          `json:"reasoning,omitempty"` // 调整理由, 仅用于通知, 不入库
	Stale                bool            `json:"stale,omitempty"`     // 数据超过时效阈值
}
