package params

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PositionSizer 结合策略约束计算仓位大小
type PositionSizer struct {
	loader      *Loader
	logger      *zap.Logger
	baseRiskPct decimal.Decimal
}

// NewPositionSizer 创建仓位计算器, baseRiskPct为单笔基础风险比例
func NewPositionSizer(loader *Loader, baseRiskPct float64, logger *zap.Logger) *PositionSizer {
	if baseRiskPct <= 0 {
		baseRiskPct = 0.02
	}
	return &PositionSizer{
		loader:      loader,
		logger:      logger,
		baseRiskPct: decimal.NewFromFloat(baseRiskPct),
	}
}

// CalculateSize 计算受策略约束的仓位大小(BTC)
// signalStrength取值[-1,1], accountBalance为账户余额(BTC)
func (s *PositionSizer) CalculateSize(ctx context.Context, signalStrength, accountBalance float64) float64 {
	// 信号强度决定基础仓位
	base := decimal.NewFromFloat(signalStrength).Abs().
		Mul(decimal.NewFromFloat(accountBalance)).
		Mul(s.baseRiskPct)

	// 应用状态推导出的仓位上限
	maxSize := decimal.NewFromFloat(s.loader.MaxPositionSize(ctx))
	constrained := decimal.Min(base, maxSize)

	// 应用风险预算乘数
	riskMult := decimal.NewFromFloat(s.loader.RiskMultiplier(ctx))
	final := constrained.Mul(riskMult)

	s.logger.Debug("仓位计算",
		zap.Float64("signal", signalStrength),
		zap.String("base", base.StringFixed(4)),
		zap.String("max", maxSize.StringFixed(4)),
		zap.String("risk_mult", riskMult.StringFixed(2)),
		zap.String("final", final.StringFixed(4)),
	)

	result, _ := final.Float64()
	return result
}
