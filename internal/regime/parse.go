package regime

import (
	"encoding/json"
	"strconv"

	"github.com/life2you_mini/regime/internal/model"
)

// ParseMetrics 从查询结果行提取衍生品指标, 缺失字段使用保守默认值
func ParseMetrics(row map[string]any) model.RegimeMetrics {
	return model.RegimeMetrics{
		AvgFunding:          floatOr(row, "avg_funding", 0.05),
		OIGrowthPct7d:       floatOr(row, "oi_growth_pct_7d", 0),
		TotalLiquidations7d: floatOr(row, "total_liquidations_7d", 0),
	}
}

// ParseLiquidityMetrics 从查询结果行提取流动性指标
// TVL字段缺失时保留nil, 由评估逻辑降级为UNKNOWN
func ParseLiquidityMetrics(row map[string]any) model.LiquidityMetrics {
	m := model.LiquidityMetrics{
		DeviationPct: floatOr(row, "deviation_from_30d_pct", 0),
	}
	if v, ok := floatVal(row, "tvl_today"); ok {
		m.TVLToday = &v
	}
	if v, ok := floatVal(row, "tvl_30d_avg"); ok {
		m.TVL30dAvg = &v
	}
	return m
}

// ParseCycleMetrics 从查询结果行提取资金费率持续性指标
func ParseCycleMetrics(row map[string]any) model.CycleMetrics {
	return model.CycleMetrics{
		PctElevatedFunding: floatOr(row, "pct_elevated_funding", 0),
		MaxConsecutiveHigh: floatOr(row, "max_consecutive_high", 0),
	}
}

// ParseProtocolStats 从查询结果行列表提取协议健康指标
func ParseProtocolStats(rows []map[string]any) []model.ProtocolStat {
	stats := make([]model.ProtocolStat, 0, len(rows))
	for _, row := range rows {
		stat := model.ProtocolStat{
			Protocol:         stringOr(row, "protocol", "UNKNOWN"),
			Asset:            stringOr(row, "asset", "UNKNOWN"),
			UtilizationRatio: floatOr(row, "utilization_ratio", 0),
		}
		if v, ok := floatVal(row, "avg_health_factor"); ok {
			stat.AvgHealthFactor = &v
		}
		stats = append(stats, stat)
	}
	return stats
}

// floatVal 读取数值字段, 兼容API返回的多种数值表示
func floatVal(row map[string]any, key string) (float64, bool) {
	v, ok := row[key]
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func floatOr(row map[string]any, key string, def float64) float64 {
	if v, ok := floatVal(row, key); ok {
		return v
	}
	return def
}

func stringOr(row map[string]any, key string, def string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}
