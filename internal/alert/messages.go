package alert

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/life2you_mini/regime/internal/format"
	"github.com/life2you_mini/regime/internal/model"
)

// 仓位参数缺省值, 与存储层默认参数保持一致
const (
	fallbackPositionSize = 0.5
	fallbackLeverage     = 2.0
	fallbackRiskBudget   = 1.0
)

const defaultProposalReasoning = "Regime shift warrants risk adjustment"

// formatMultiplier 渲染风险乘数, 整数值保留一位小数(1.0x而非1x)
func formatMultiplier(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// formatThreshold 渲染阈值百分比, 整数值不带小数(10%而非10.0%)
func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// severityForRegime 状态越差告警级别越高
func severityForRegime(r model.Regime) model.Severity {
	switch r {
	case model.RegimeStress, model.RegimeFragile:
		return model.SeverityCritical
	case model.RegimeTransitional:
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}

// NewRegimeChangeAlert 构建市场状态切换告警
func NewRegimeChangeAlert(previous, current model.Regime, metrics *model.RegimeMetrics, riskMultiplier float64) model.Alert {
	var b strings.Builder
	fmt.Fprintf(&b, "*Market Regime Changed*\n\n%s → *%s*", previous, current)

	if metrics != nil {
		b.WriteString("\n\n*Key Metrics:*")
		fmt.Fprintf(&b, "\n• OI Growth (7d): %.1f%%", metrics.OIGrowthPct7d)
		fmt.Fprintf(&b, "\n• Avg Funding: %.4f", metrics.AvgFunding)
		fmt.Fprintf(&b, "\n• Liquidations (7d): $%s", format.Comma(metrics.TotalLiquidations7d))
	}

	fmt.Fprintf(&b, "\n\n*Risk Multiplier:* %sx", formatMultiplier(riskMultiplier))

	return model.Alert{
		Severity:  severityForRegime(current),
		Message:   b.String(),
		CreatedAt: time.Now().UTC(),
	}
}

// NewParameterProposalAlert 构建参数调整提案告警
// changePct为仓位上限变化幅度, autoApplied决定提示文案与级别
func NewParameterProposalAlert(current, recommended *model.StrategyParams, changePct, thresholdPct float64, autoApplied bool) model.Alert {
	oldRegime := model.RegimeUnknown
	currentSize := fallbackPositionSize
	currentLeverage := fallbackLeverage
	currentBudget := fallbackRiskBudget
	if current != nil {
		if current.Regime != "" {
			oldRegime = current.Regime
		}
		currentSize = current.MaxPositionSizeBTC
		currentLeverage = current.LeverageLimit
		currentBudget = current.RiskBudgetMultiplier
	}

	reasoning := recommended.Reasoning
	if reasoning == "" {
		reasoning = defaultProposalReasoning
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Regime Change Detected: %s → %s*\n\n", oldRegime, recommended.Regime)
	b.WriteString("*Recommended Parameter Adjustments:*\n")
	fmt.Fprintf(&b, "• Max Position Size: %.2f BTC → %.2f BTC (%+.1f%%)\n",
		currentSize, recommended.MaxPositionSizeBTC, changePct)
	fmt.Fprintf(&b, "• Leverage Limit: %.1fx → %.1fx\n",
		currentLeverage, recommended.LeverageLimit)
	fmt.Fprintf(&b, "• Risk Budget Multiplier: %.2f → %.2f\n\n",
		currentBudget, recommended.RiskBudgetMultiplier)
	fmt.Fprintf(&b, "*Justification:*\n%s\n", reasoning)

	severity := model.SeverityWarning
	if autoApplied {
		severity = model.SeverityInfo
		fmt.Fprintf(&b, "\n✅ *Auto-applied* (change < %s%%)", formatThreshold(thresholdPct))
	} else {
		fmt.Fprintf(&b, "\n⚠️  *Manual approval required* (change >= %s%%)", formatThreshold(thresholdPct))
		b.WriteString("\nReply `/approve-strategy` to apply")
	}

	return model.Alert{
		Severity:  severity,
		Message:   b.String(),
		CreatedAt: time.Now().UTC(),
	}
}

// NewProtocolAlertsDigest 汇总协议健康告警
// 没有告警时返回false, 调用方应跳过发送
func NewProtocolAlertsDigest(alerts []string) (model.Alert, bool) {
	if len(alerts) == 0 {
		return model.Alert{}, false
	}

	severity := model.SeverityWarning
	for _, a := range alerts {
		if strings.Contains(a, "CRITICAL") {
			severity = model.SeverityCritical
			break
		}
	}

	return model.Alert{
		Severity:  severity,
		Message:   "*Protocol Health Alerts*\n\n" + strings.Join(alerts, "\n"),
		CreatedAt: time.Now().UTC(),
	}, true
}

// NewErrorAlert 构建系统错误告警
func NewErrorAlert(component string, err error) model.Alert {
	return model.Alert{
		Severity:  model.SeverityCritical,
		Message:   fmt.Sprintf("*System Error in %s*\n\n```%v```", component, err),
		Component: component,
		CreatedAt: time.Now().UTC(),
	}
}

// NewWhaleTransferAlert 构建巨鲸转账事件告警
func NewWhaleTransferAlert(transfer model.TokenTransfer) model.Alert {
	from := transfer.FromAddress
	if from == "" {
		from = "unknown"
	}
	if len(from) > 10 {
		from = from[:10]
	}
	return model.Alert{
		Severity:  model.SeverityInfo,
		Message:   fmt.Sprintf("🐋 Whale Transfer: $%s from %s...", format.Comma(transfer.ValueUSD), from),
		CreatedAt: time.Now().UTC(),
	}
}

// NewLargeSwapAlert 构建DEX大额成交告警
func NewLargeSwapAlert(swap model.DexSwap) model.Alert {
	protocol := swap.ProtocolName
	if protocol == "" {
		protocol = "unknown"
	}
	return model.Alert{
		Severity:  model.SeverityInfo,
		Message:   fmt.Sprintf("💱 Large Swap: $%s on %s", format.Comma(swap.AmountUSD), protocol),
		CreatedAt: time.Now().UTC(),
	}
}

// NewLiquidationCascadeAlert 构建清算潮告警
func NewLiquidationCascadeAlert(totalValueUSD float64) model.Alert {
	return model.Alert{
		Severity:  model.SeverityWarning,
		Message:   fmt.Sprintf("⚠️  High liquidation activity: $%s in last hour", format.Comma(totalValueUSD)),
		CreatedAt: time.Now().UTC(),
	}
}
