// Package backtest 验证状态仓位缩放相对恒定仓位基准的风险调整收益
package backtest

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/model"
	"github.com/life2you_mini/regime/internal/regime"
)

// annualizationDays 夏普比率年化天数
const annualizationDays = 365

// Verdict 回测结论
type Verdict string

const (
	VerdictPass     Verdict = "PASS"
	VerdictMarginal Verdict = "MARGINAL"
	VerdictFail     Verdict = "FAIL"
)

// RegimePoint 单日状态标注, 与回填输出文件兼容
type RegimePoint struct {
	Date   string       `json:"date"`
	Regime model.Regime `json:"regime"`
}

// PricePoint 单日价格与收益
type PricePoint struct {
	Date   string  `json:"date"`
	Close  float64 `json:"close"`
	Return float64 `json:"returns"`
}

// Result 基准与状态缩放两种策略的对比指标
type Result struct {
	BaselineSharpe    float64 `json:"baseline_sharpe"`
	RegimeSharpe      float64 `json:"regime_sharpe"`
	SharpeImprovement float64 `json:"sharpe_improvement"`
	BaselineMaxDD     float64 `json:"baseline_max_dd"`
	RegimeMaxDD       float64 `json:"regime_max_dd"`
	DDImprovement     float64 `json:"dd_improvement"`
	BaselineTotal     float64 `json:"baseline_total_return"`
	RegimeTotal       float64 `json:"regime_total_return"`
	ReturnImprovement float64 `json:"return_improvement"`
	Verdict           Verdict `json:"verdict"`
}

// Backtester 状态仓位策略回测器
type Backtester struct {
	engine *regime.Engine
	logger *zap.Logger
}

// NewBacktester 创建回测器
func NewBacktester(engine *regime.Engine, logger *zap.Logger) *Backtester {
	return &Backtester{engine: engine, logger: logger}
}

// Run 对比基准策略(恒定满仓)与状态缩放策略(仓位乘以风险系数)
// 价格日期在状态历史中缺失时按UNKNOWN处理
func (b *Backtester) Run(history []RegimePoint, prices []PricePoint) Result {
	regimeByDate := make(map[string]model.Regime, len(history))
	for _, p := range history {
		regimeByDate[p.Date] = p.Regime
	}

	baseline := make([]float64, 0, len(prices))
	scaled := make([]float64, 0, len(prices))
	for _, p := range prices {
		baseline = append(baseline, p.Return)

		rg, ok := regimeByDate[p.Date]
		if !ok {
			rg = model.RegimeUnknown
		}
		scaled = append(scaled, p.Return*b.engine.RiskMultiplier(rg))
	}

	result := Result{
		BaselineSharpe: sharpeRatio(baseline),
		RegimeSharpe:   sharpeRatio(scaled),
		BaselineMaxDD:  maxDrawdown(baseline),
		RegimeMaxDD:    maxDrawdown(scaled),
		BaselineTotal:  totalReturn(baseline),
		RegimeTotal:    totalReturn(scaled),
	}
	result.SharpeImprovement = result.RegimeSharpe - result.BaselineSharpe
	result.DDImprovement = result.RegimeMaxDD - result.BaselineMaxDD
	result.ReturnImprovement = result.RegimeTotal - result.BaselineTotal
	result.Verdict = verdictFor(result.SharpeImprovement)

	b.logger.Info("回测完成",
		zap.Int("days", len(prices)),
		zap.Float64("baseline_sharpe", result.BaselineSharpe),
		zap.Float64("regime_sharpe", result.RegimeSharpe),
		zap.Float64("sharpe_improvement", result.SharpeImprovement),
		zap.String("verdict", string(result.Verdict)))

	return result
}

func verdictFor(sharpeImprovement float64) Verdict {
	switch {
	case sharpeImprovement > 0.2:
		return VerdictPass
	case sharpeImprovement > 0:
		return VerdictMarginal
	default:
		return VerdictFail
	}
}

// sharpeRatio 年化夏普比率, 标准差为零时返回0
func sharpeRatio(returns []float64) float64 {
	sd := stdDev(returns)
	if sd == 0 {
		return 0
	}
	return mean(returns) / sd * math.Sqrt(annualizationDays)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdDev 总体标准差
func stdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// maxDrawdown 净值相对历史峰值的最大回撤, 返回非正数
func maxDrawdown(returns []float64) float64 {
	worst := 0.0
	equity := 1.0
	peak := math.Inf(-1)
	for _, r := range returns {
		equity *= 1 + r
		if equity > peak {
			peak = equity
		}
		if dd := equity/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

func totalReturn(returns []float64) float64 {
	equity := 1.0
	for _, r := range returns {
		equity *= 1 + r
	}
	return equity - 1
}

// LoadRegimeHistory 读取回填产出的状态历史文件
func LoadRegimeHistory(path string) ([]RegimePoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取状态历史文件失败: %w", err)
	}

	var points []RegimePoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("解析状态历史文件失败: %w", err)
	}
	return points, nil
}

// LoadPriceHistory 读取价格历史文件
func LoadPriceHistory(path string) ([]PricePoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取价格历史文件失败: %w", err)
	}

	var points []PricePoint
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("解析价格历史文件失败: %w", err)
	}
	return points, nil
}

// SaveResult 将回测结果保存为JSON文件
func SaveResult(path string, result Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化回测结果失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入回测结果失败: %w", err)
	}
	return nil
}

// PrintReport 输出格式化的回测报告
func PrintReport(w io.Writer, r Result) {
	separator := strings.Repeat("=", 60)

	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintln(w, "BACKTEST RESULTS - Regime-Based Position Sizing")
	fmt.Fprintln(w, separator)

	fmt.Fprintln(w, "\n📊 Sharpe Ratio:")
	fmt.Fprintf(w, "   Baseline:     %.3f\n", r.BaselineSharpe)
	fmt.Fprintf(w, "   Regime-Based: %.3f\n", r.RegimeSharpe)
	fmt.Fprintf(w, "   Improvement:  %+.3f\n", r.SharpeImprovement)

	fmt.Fprintln(w, "\n📉 Maximum Drawdown:")
	fmt.Fprintf(w, "   Baseline:     %.2f%%\n", r.BaselineMaxDD*100)
	fmt.Fprintf(w, "   Regime-Based: %.2f%%\n", r.RegimeMaxDD*100)
	fmt.Fprintf(w, "   Improvement:  %+.2f%%\n", r.DDImprovement*100)

	fmt.Fprintln(w, "\n💰 Total Return:")
	fmt.Fprintf(w, "   Baseline:     %.2f%%\n", r.BaselineTotal*100)
	fmt.Fprintf(w, "   Regime-Based: %.2f%%\n", r.RegimeTotal*100)
	fmt.Fprintf(w, "   Improvement:  %+.2f%%\n", r.ReturnImprovement*100)

	fmt.Fprintln(w, "\n"+separator)
	switch r.Verdict {
	case VerdictPass:
		fmt.Fprintln(w, "✅ PASS: Regime signals provide meaningful improvement (>0.2)")
		fmt.Fprintln(w, "   → Deploy to production")
	case VerdictMarginal:
		fmt.Fprintln(w, "⚠️  MARGINAL: Small improvement detected")
		fmt.Fprintln(w, "   → Consider longer backtest or parameter tuning")
	default:
		fmt.Fprintln(w, "❌ FAIL: Regime signals do not improve performance")
		fmt.Fprintln(w, "   → Do not deploy, revisit classification logic")
	}
	fmt.Fprintln(w, separator+"\n")
}
