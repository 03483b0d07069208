package params

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/mocks"
	"github.com/life2you_mini/regime/internal/model"
)

func TestSafeDefaults(t *testing.T) {
	p := SafeDefaults()

	assert.Equal(t, model.RegimeUnknown, p.Regime)
	assert.Equal(t, 0.3, p.MaxPositionSizeBTC)
	assert.Equal(t, 1.5, p.LeverageLimit)
	assert.Equal(t, 0.7, p.RiskBudgetMultiplier)
	assert.Equal(t, model.LiquidityUnknown, p.LiquidityHealth)
	assert.NotNil(t, p.ProtocolAlerts)
	assert.Empty(t, p.ProtocolAlerts)
}

func TestDeriver_Derive(t *testing.T) {
	cfg := config.GetDefaultConfig()
	d := NewDeriver(cfg.Strategy, cfg.Regime)

	tests := []struct {
		name         string
		regime       model.Regime
		riskMult     float64
		wantPosition float64
		wantLeverage float64
	}{
		{"稳定状态满仓", model.RegimeStable, 1.0, 0.5, 2.5},
		{"恢复状态加仓", model.RegimeRecovery, 1.2, 0.6, 3.0},
		{"过渡状态减仓", model.RegimeTransitional, 0.8, 0.4, 2.0},
		{"脆弱状态大幅降仓", model.RegimeFragile, 0.5, 0.25, 1.5},
		{"压力状态防御仓位", model.RegimeStress, 0.3, 0.15, 1.0},
		{"未知状态回退杠杆", model.RegimeUnknown, 0.8, 0.4, 2.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := d.Derive(tt.regime, tt.riskMult, model.LiquidityAssessment{Health: model.LiquidityNormal}, nil)

			assert.Equal(t, tt.regime, p.Regime)
			assert.InDelta(t, tt.wantPosition, p.MaxPositionSizeBTC, 1e-9)
			assert.Equal(t, tt.wantLeverage, p.LeverageLimit)
			assert.Equal(t, tt.riskMult, p.RiskBudgetMultiplier)
			assert.Equal(t, model.LiquidityNormal, p.LiquidityHealth)
			assert.Equal(t, model.ApprovedByAuto, p.ApprovedBy)
			assert.NotNil(t, p.ProtocolAlerts)
			assert.False(t, p.UpdatedAt.IsZero())
		})
	}
}

func TestDeriver_Derive_ProtocolAlerts(t *testing.T) {
	cfg := config.GetDefaultConfig()
	d := NewDeriver(cfg.Strategy, cfg.Regime)

	alerts := []string{"TVL下降过快: -25.0%"}
	p := d.Derive(model.RegimeStress, 0.3, model.LiquidityAssessment{Health: model.LiquidityPoor}, alerts)

	assert.Equal(t, alerts, p.ProtocolAlerts)
	assert.Equal(t, model.LiquidityPoor, p.LiquidityHealth)
}

func TestPositionSizeChangePct(t *testing.T) {
	tests := []struct {
		name        string
		current     *model.StrategyParams
		recommended *model.StrategyParams
		want        float64
	}{
		{"无当前参数视为全量变化", nil, &model.StrategyParams{MaxPositionSizeBTC: 0.5}, 100},
		{"当前仓位为零视为全量变化", &model.StrategyParams{}, &model.StrategyParams{MaxPositionSizeBTC: 0.5}, 100},
		{"仓位减半", &model.StrategyParams{MaxPositionSizeBTC: 0.5}, &model.StrategyParams{MaxPositionSizeBTC: 0.25}, 50},
		{"小幅上调", &model.StrategyParams{MaxPositionSizeBTC: 0.5}, &model.StrategyParams{MaxPositionSizeBTC: 0.52}, 4},
		{"无变化", &model.StrategyParams{MaxPositionSizeBTC: 0.5}, &model.StrategyParams{MaxPositionSizeBTC: 0.5}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PositionSizeChangePct(tt.current, tt.recommended), 1e-9)
		})
	}
}

func freshParams() *model.StrategyParams {
	return &model.StrategyParams{
		Regime:               model.RegimeStable,
		MaxPositionSizeBTC:   0.5,
		LeverageLimit:        2.5,
		RiskBudgetMultiplier: 1.0,
		LiquidityHealth:      model.LiquidityNormal,
		ProtocolAlerts:       []string{},
		ApprovedBy:           model.ApprovedByAuto,
		UpdatedAt:            time.Now().UTC(),
	}
}

func TestLoader_Current_FromStore(t *testing.T) {
	store := new(mocks.MockStorage)
	store.On("GetLatestParams", mock.Anything).Return(freshParams(), nil)

	cfg := config.GetDefaultConfig()
	l := NewLoader(store, cfg.Strategy, zaptest.NewLogger(t))

	p := l.Current(context.Background())
	require.NotNil(t, p)
	assert.Equal(t, model.RegimeStable, p.Regime)
	assert.Equal(t, 0.5, p.MaxPositionSizeBTC)
	assert.False(t, l.IsStale())

	assert.Equal(t, 0.5, l.MaxPositionSize(context.Background()))
	assert.Equal(t, 2.5, l.LeverageLimit(context.Background()))
	assert.Equal(t, 1.0, l.RiskMultiplier(context.Background()))
	assert.Equal(t, model.RegimeStable, l.Regime(context.Background()))
	assert.Equal(t, model.LiquidityNormal, l.LiquidityHealth(context.Background()))

	// 重载间隔内只查询一次数据库
	store.AssertNumberOfCalls(t, "GetLatestParams", 1)
}

func TestLoader_Current_StoreError(t *testing.T) {
	store := new(mocks.MockStorage)
	store.On("GetLatestParams", mock.Anything).Return(nil, errors.New("connection refused"))

	cfg := config.GetDefaultConfig()
	l := NewLoader(store, cfg.Strategy, zaptest.NewLogger(t))

	p := l.Current(context.Background())
	assert.Equal(t, model.RegimeUnknown, p.Regime)
	assert.Equal(t, 0.3, p.MaxPositionSizeBTC)
	assert.True(t, l.IsStale())
}

func TestLoader_Current_EmptyStore(t *testing.T) {
	store := new(mocks.MockStorage)
	store.On("GetLatestParams", mock.Anything).Return(nil, nil)

	cfg := config.GetDefaultConfig()
	l := NewLoader(store, cfg.Strategy, zaptest.NewLogger(t))

	p := l.Current(context.Background())
	assert.Equal(t, model.RegimeUnknown, p.Regime)
	assert.True(t, l.IsStale())
}

func TestLoader_Current_NoStore(t *testing.T) {
	cfg := config.GetDefaultConfig()
	l := NewLoader(nil, cfg.Strategy, zaptest.NewLogger(t))

	p := l.Current(context.Background())
	assert.Equal(t, model.RegimeUnknown, p.Regime)
	assert.Equal(t, 1.5, p.LeverageLimit)
	assert.True(t, l.IsStale())
}

func TestLoader_Current_StaleData(t *testing.T) {
	old := freshParams()
	old.UpdatedAt = time.Now().UTC().Add(-25 * time.Hour)

	store := new(mocks.MockStorage)
	store.On("GetLatestParams", mock.Anything).Return(old, nil)

	cfg := config.GetDefaultConfig()
	l := NewLoader(store, cfg.Strategy, zaptest.NewLogger(t))

	// 超过24小时的参数回退安全默认值
	p := l.Current(context.Background())
	assert.Equal(t, model.RegimeUnknown, p.Regime)
	assert.Equal(t, 0.3, p.MaxPositionSizeBTC)
	assert.True(t, l.IsStale())
}

func TestLoader_Normalize_Backfill(t *testing.T) {
	partial := &model.StrategyParams{
		Regime:    model.RegimeRecovery,
		UpdatedAt: time.Now().UTC(),
	}

	store := new(mocks.MockStorage)
	store.On("GetLatestParams", mock.Anything).Return(partial, nil)

	cfg := config.GetDefaultConfig()
	l := NewLoader(store, cfg.Strategy, zaptest.NewLogger(t))

	// 缺失字段逐项回填默认值, 已有字段保留
	p := l.Current(context.Background())
	assert.Equal(t, model.RegimeRecovery, p.Regime)
	assert.Equal(t, 0.3, p.MaxPositionSizeBTC)
	assert.Equal(t, 1.5, p.LeverageLimit)
	assert.Equal(t, 0.7, p.RiskBudgetMultiplier)
	assert.Equal(t, model.LiquidityUnknown, p.LiquidityHealth)
	assert.NotNil(t, p.ProtocolAlerts)
	assert.False(t, l.IsStale())
}

func TestPositionSizer_CalculateSize(t *testing.T) {
	store := new(mocks.MockStorage)
	store.On("GetLatestParams", mock.Anything).Return(freshParams(), nil)

	cfg := config.GetDefaultConfig()
	loader := NewLoader(store, cfg.Strategy, zaptest.NewLogger(t))
	sizer := NewPositionSizer(loader, cfg.Strategy.BaseRiskPct, zaptest.NewLogger(t))

	tests := []struct {
		name    string
		signal  float64
		balance float64
		want    float64
	}{
		{"常规信号不触及上限", 1.0, 10, 0.2},
		{"大额余额受仓位上限约束", 1.0, 100, 0.5},
		{"负信号取绝对值", -0.5, 10, 0.1},
		{"零信号零仓位", 0, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sizer.CalculateSize(context.Background(), tt.signal, tt.balance)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestPositionSizer_CalculateSize_RiskMultiplier(t *testing.T) {
	fragile := freshParams()
	fragile.Regime = model.RegimeFragile
	fragile.MaxPositionSizeBTC = 0.25
	fragile.RiskBudgetMultiplier = 0.5

	store := new(mocks.MockStorage)
	store.On("GetLatestParams", mock.Anything).Return(fragile, nil)

	cfg := config.GetDefaultConfig()
	loader := NewLoader(store, cfg.Strategy, zaptest.NewLogger(t))
	sizer := NewPositionSizer(loader, cfg.Strategy.BaseRiskPct, zaptest.NewLogger(t))

	// 上限0.25封顶后再乘风险预算0.5
	got := sizer.CalculateSize(context.Background(), 1.0, 100)
	assert.InDelta(t, 0.125, got, 1e-9)
}
