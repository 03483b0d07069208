package regime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMetrics(t *testing.T) {
	tests := []struct {
		name               string
		row                map[string]any
		expectedFunding    float64
		expectedOIGrowth   float64
		expectedLiqudation float64
	}{
		{
			name: "完整结果行",
			row: map[string]any{
				"avg_funding":           0.08,
				"oi_growth_pct_7d":      12.5,
				"total_liquidations_7d": 45_000_000.0,
			},
			expectedFunding:    0.08,
			expectedOIGrowth:   12.5,
			expectedLiqudation: 45_000_000,
		},
		{
			name:               "空结果行使用保守默认值",
			row:                map[string]any{},
			expectedFunding:    0.05,
			expectedOIGrowth:   0,
			expectedLiqudation: 0,
		},
		{
			name: "字符串数值自动转换",
			row: map[string]any{
				"avg_funding":           "0.07",
				"oi_growth_pct_7d":      "-8.2",
				"total_liquidations_7d": "120000000",
			},
			expectedFunding:    0.07,
			expectedOIGrowth:   -8.2,
			expectedLiqudation: 120_000_000,
		},
		{
			name: "json.Number数值自动转换",
			row: map[string]any{
				"avg_funding":           json.Number("0.04"),
				"oi_growth_pct_7d":      json.Number("3"),
				"total_liquidations_7d": json.Number("9000000"),
			},
			expectedFunding:    0.04,
			expectedOIGrowth:   3,
			expectedLiqudation: 9_000_000,
		},
		{
			name: "空值字段回退默认值",
			row: map[string]any{
				"avg_funding":           nil,
				"oi_growth_pct_7d":      nil,
				"total_liquidations_7d": nil,
			},
			expectedFunding:    0.05,
			expectedOIGrowth:   0,
			expectedLiqudation: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ParseMetrics(tt.row)
			assert.Equal(t, tt.expectedFunding, m.AvgFunding)
			assert.Equal(t, tt.expectedOIGrowth, m.OIGrowthPct7d)
			assert.Equal(t, tt.expectedLiqudation, m.TotalLiquidations7d)
		})
	}
}

func TestParseLiquidityMetrics(t *testing.T) {
	t.Run("TVL缺失保留nil", func(t *testing.T) {
		m := ParseLiquidityMetrics(map[string]any{})
		assert.Nil(t, m.TVLToday)
		assert.Nil(t, m.TVL30dAvg)
		assert.Equal(t, 0.0, m.DeviationPct)
	})

	t.Run("完整结果行", func(t *testing.T) {
		m := ParseLiquidityMetrics(map[string]any{
			"tvl_today":              850_000_000.0,
			"tvl_30d_avg":            1_000_000_000.0,
			"deviation_from_30d_pct": -15.0,
		})
		assert.NotNil(t, m.TVLToday)
		assert.Equal(t, 850_000_000.0, *m.TVLToday)
		assert.NotNil(t, m.TVL30dAvg)
		assert.Equal(t, 1_000_000_000.0, *m.TVL30dAvg)
		assert.Equal(t, -15.0, m.DeviationPct)
	})

	t.Run("TVL显式为空保留nil", func(t *testing.T) {
		m := ParseLiquidityMetrics(map[string]any{
			"tvl_today":   nil,
			"tvl_30d_avg": 1_000_000_000.0,
		})
		assert.Nil(t, m.TVLToday)
		assert.NotNil(t, m.TVL30dAvg)
	})
}

func TestParseProtocolStats(t *testing.T) {
	rows := []map[string]any{
		{
			"protocol":          "Aave",
			"asset":             "USDC",
			"utilization_ratio": 0.92,
			"avg_health_factor": 1.5,
		},
		{
			"utilization_ratio": 0.85,
		},
	}

	stats := ParseProtocolStats(rows)

	assert.Len(t, stats, 2)
	assert.Equal(t, "Aave", stats[0].Protocol)
	assert.Equal(t, "USDC", stats[0].Asset)
	assert.Equal(t, 0.92, stats[0].UtilizationRatio)
	assert.NotNil(t, stats[0].AvgHealthFactor)
	assert.Equal(t, 1.5, *stats[0].AvgHealthFactor)

	assert.Equal(t, "UNKNOWN", stats[1].Protocol)
	assert.Equal(t, "UNKNOWN", stats[1].Asset)
	assert.Nil(t, stats[1].AvgHealthFactor)
}

func TestParseCycleMetrics(t *testing.T) {
	m := ParseCycleMetrics(map[string]any{
		"pct_elevated_funding": 65.0,
		"max_consecutive_high": 12,
	})

	assert.Equal(t, 65.0, m.PctElevatedFunding)
	assert.Equal(t, 12.0, m.MaxConsecutiveHigh)
}
