package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/mocks"
	"github.com/life2you_mini/regime/internal/model"
	"github.com/life2you_mini/regime/internal/params"
	"github.com/life2you_mini/regime/internal/regime"
)

func newTestRegimeMonitor(t *testing.T, provider *mocks.MockProvider, store *mocks.MockStorage, alerter *mocks.MockAlerter) *RegimeMonitor {
	t.Helper()
	cfg := config.GetDefaultConfig()
	logger := zaptest.NewLogger(t)
	engine := regime.NewEngine(cfg.Regime, logger)
	deriver := params.NewDeriver(cfg.Strategy, cfg.Regime)
	return NewRegimeMonitor(provider, engine, deriver, store, alerter, cfg, logger)
}

func stableParams() *model.StrategyParams {
	return &model.StrategyParams{
		Regime:               model.RegimeStable,
		MaxPositionSizeBTC:   0.5,
		LeverageLimit:        2.5,
		RiskBudgetMultiplier: 1.0,
		LiquidityHealth:      model.LiquidityNormal,
		ApprovedBy:           model.ApprovedByAuto,
	}
}

func TestRegimeMonitor_RunCheck_RegimeChange(t *testing.T) {
	provider := new(mocks.MockProvider)
	store := new(mocks.MockStorage)
	alerter := new(mocks.MockAlerter)

	provider.On("Name").Return("dune")
	provider.On("GetLatestResults", mock.Anything, "6489102").Return([]map[string]any{{
		"avg_funding":           0.12,
		"oi_growth_pct_7d":      30.0,
		"total_liquidations_7d": 60_000_000.0,
	}}, nil)
	provider.On("GetLatestResults", mock.Anything, "4100002").Return([]map[string]any{{
		"tvl_today":              8.0e9,
		"tvl_30d_avg":            1.0e10,
		"deviation_from_30d_pct": -20.0,
	}}, nil)
	provider.On("GetLatestResults", mock.Anything, "4100003").Return([]map[string]any{}, nil)
	provider.On("GetLatestResults", mock.Anything, "4100004").Return([]map[string]any{}, nil)

	store.On("GetLatestRegime", mock.Anything).Return(model.RegimeStable, nil)
	store.On("GetLatestParams", mock.Anything).Return(stableParams(), nil)

	var storedRecord *model.RegimeRecord
	store.On("StoreRegimeRecord", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		storedRecord = args.Get(1).(*model.RegimeRecord)
	}).Return(nil)

	var dispatched []model.Alert
	alerter.On("Dispatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		dispatched = append(dispatched, args.Get(1).(model.Alert))
	}).Return(nil)

	m := newTestRegimeMonitor(t, provider, store, alerter)

	assessment, err := m.RunCheck(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.RegimeFragile, assessment.Regime)
	assert.Equal(t, model.RegimeStable, assessment.PreviousRegime)
	assert.Equal(t, 0.5, assessment.RiskMultiplier)
	assert.Equal(t, model.LiquidityPoor, assessment.Liquidity.Health)

	// 状态历史: liquidity_ratio = -20/100 + 1
	require.NotNil(t, storedRecord)
	assert.Equal(t, model.RegimeFragile, storedRecord.Regime)
	assert.InDelta(t, 0.8, storedRecord.LiquidityRatio, 1e-9)
	assert.Contains(t, string(storedRecord.RawData), "liquidity_ratio")

	// 仓位从0.5降到0.25, 变化50%超过阈值, 不得自动应用
	store.AssertNotCalled(t, "StoreStrategyParams", mock.Anything, mock.Anything)

	// 状态变化告警 + 参数提案告警
	require.Len(t, dispatched, 2)
	assert.Contains(t, dispatched[0].Message, "*Market Regime Changed*")
	assert.Contains(t, dispatched[0].Message, "STABLE → *FRAGILE*")
	assert.Equal(t, model.SeverityCritical, dispatched[0].Severity)
	assert.Contains(t, dispatched[1].Message, "*Regime Change Detected: STABLE → FRAGILE*")
	assert.Contains(t, dispatched[1].Message, "Manual approval required")
	assert.Equal(t, model.SeverityWarning, dispatched[1].Severity)
}

func TestRegimeMonitor_RunCheck_AutoApply(t *testing.T) {
	provider := new(mocks.MockProvider)
	store := new(mocks.MockStorage)
	alerter := new(mocks.MockAlerter)

	provider.On("Name").Return("dune")
	provider.On("GetLatestResults", mock.Anything, "6489102").Return([]map[string]any{{
		"avg_funding":           0.04,
		"oi_growth_pct_7d":      5.0,
		"total_liquidations_7d": 15_000_000.0,
	}}, nil)
	provider.On("GetLatestResults", mock.Anything, mock.Anything).Return([]map[string]any{}, nil)

	store.On("GetLatestRegime", mock.Anything).Return(model.RegimeStable, nil)
	store.On("GetLatestParams", mock.Anything).Return(stableParams(), nil)

	var storedParams *model.StrategyParams
	store.On("StoreRegimeRecord", mock.Anything, mock.Anything).Return(nil)
	store.On("StoreStrategyParams", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		storedParams = args.Get(1).(*model.StrategyParams)
	}).Return(nil)

	m := newTestRegimeMonitor(t, provider, store, alerter)

	assessment, err := m.RunCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RegimeStable, assessment.Regime)

	// 状态未变, 参数无变化, 自动应用且不发告警
	require.NotNil(t, storedParams)
	assert.Equal(t, model.RegimeStable, storedParams.Regime)
	assert.Equal(t, 0.5, storedParams.MaxPositionSizeBTC)
	assert.Equal(t, model.ApprovedByAuto, storedParams.ApprovedBy)
	alerter.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestRegimeMonitor_RunCheck_Bootstrap(t *testing.T) {
	provider := new(mocks.MockProvider)
	store := new(mocks.MockStorage)
	alerter := new(mocks.MockAlerter)

	provider.On("Name").Return("dune")
	provider.On("GetLatestResults", mock.Anything, mock.Anything).Return([]map[string]any{}, nil)

	store.On("GetLatestRegime", mock.Anything).Return(model.Regime(""), nil)
	store.On("GetLatestParams", mock.Anything).Return(nil, nil)
	store.On("StoreRegimeRecord", mock.Anything, mock.Anything).Return(nil)

	var storedParams *model.StrategyParams
	store.On("StoreStrategyParams", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		storedParams = args.Get(1).(*model.StrategyParams)
	}).Return(nil)

	m := newTestRegimeMonitor(t, provider, store, alerter)

	// 空数据使用模拟指标: funding 0.05, oi 5.0, 清算15M -> STABLE
	assessment, err := m.RunCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RegimeStable, assessment.Regime)
	assert.Equal(t, model.LiquidityUnknown, assessment.Liquidity.Health)

	// 无历史参数时直接落库
	require.NotNil(t, storedParams)
	assert.Equal(t, model.ApprovedByAuto, storedParams.ApprovedBy)

	// 无上次状态, 不发变化告警
	alerter.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestRegimeMonitor_RunCheck_DryRun(t *testing.T) {
	provider := new(mocks.MockProvider)
	store := new(mocks.MockStorage)
	alerter := new(mocks.MockAlerter)

	provider.On("Name").Return("dune")
	provider.On("GetLatestResults", mock.Anything, mock.Anything).Return([]map[string]any{}, nil)
	store.On("GetLatestRegime", mock.Anything).Return(model.RegimeStress, nil)

	m := newTestRegimeMonitor(t, provider, store, alerter)
	m.SetDryRun(true)

	assessment, err := m.RunCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RegimeStable, assessment.Regime)

	store.AssertNotCalled(t, "StoreRegimeRecord", mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "StoreStrategyParams", mock.Anything, mock.Anything)
	alerter.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestRegimeMonitor_RunCheck_ProviderError(t *testing.T) {
	provider := new(mocks.MockProvider)
	store := new(mocks.MockStorage)
	alerter := new(mocks.MockAlerter)

	provider.On("Name").Return("dune")
	provider.On("GetLatestResults", mock.Anything, "6489102").Return(nil, errors.New("api unavailable"))
	store.On("GetLatestRegime", mock.Anything).Return(model.Regime(""), nil)

	m := newTestRegimeMonitor(t, provider, store, alerter)

	_, err := m.RunCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "获取状态指标失败")
}

func newTestRealtimeMonitor(t *testing.T, source *mocks.MockEventSource, alerter *mocks.MockAlerter) *RealtimeMonitor {
	t.Helper()
	cfg := config.GetDefaultConfig()
	return NewRealtimeMonitor(source, nil, nil, alerter, cfg, zaptest.NewLogger(t))
}

func TestRealtimeMonitor_WhaleTransfers_Dedupe(t *testing.T) {
	source := new(mocks.MockEventSource)
	alerter := new(mocks.MockAlerter)

	transfers := []model.TokenTransfer{
		{TransactionHash: "0xaaa", FromAddress: "0x28C6c06298d514Db089934071355E5743bf21d60", ValueUSD: 2_500_000},
		{TransactionHash: "0xbbb", FromAddress: "0xF977814e90dA44bFA03b6295A0616a897441aceC", ValueUSD: 1_200_000},
	}
	source.On("GetWhaleTransfers", mock.Anything, "ethereum", "", 1_000_000.0, 10).Return(transfers, nil)

	var dispatched []model.Alert
	alerter.On("Dispatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		dispatched = append(dispatched, args.Get(1).(model.Alert))
	}).Return(nil)

	m := newTestRealtimeMonitor(t, source, alerter)

	// 两轮轮询返回相同结果, 只应告警一次
	m.checkWhaleTransfers(context.Background())
	m.checkWhaleTransfers(context.Background())

	require.Len(t, dispatched, 2)
	assert.Equal(t, "🐋 Whale Transfer: $2,500,000 from 0x28C6c062...", dispatched[0].Message)
	assert.Equal(t, "🐋 Whale Transfer: $1,200,000 from 0xF977814e...", dispatched[1].Message)
}

func TestRealtimeMonitor_Liquidations_Cascade(t *testing.T) {
	source := new(mocks.MockEventSource)
	alerter := new(mocks.MockAlerter)

	liquidations := []model.Liquidation{
		{TransactionHash: "0x1", LiquidationValueUSD: 8_000_000},
		{TransactionHash: "0x2", LiquidationValueUSD: 4_480_000},
	}
	source.On("GetLiquidations", mock.Anything, "ethereum", "", 1, 20).Return(liquidations, nil)

	var dispatched []model.Alert
	alerter.On("Dispatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		dispatched = append(dispatched, args.Get(1).(model.Alert))
	}).Return(nil)

	m := newTestRealtimeMonitor(t, source, alerter)
	m.checkLiquidations(context.Background())

	require.Len(t, dispatched, 1)
	assert.Equal(t, "⚠️  High liquidation activity: $12,480,000 in last hour", dispatched[0].Message)
	assert.Equal(t, model.SeverityWarning, dispatched[0].Severity)
}

func TestRealtimeMonitor_Liquidations_BelowCascade(t *testing.T) {
	source := new(mocks.MockEventSource)
	alerter := new(mocks.MockAlerter)

	source.On("GetLiquidations", mock.Anything, "ethereum", "", 1, 20).Return([]model.Liquidation{
		{TransactionHash: "0x1", LiquidationValueUSD: 3_000_000},
	}, nil)

	m := newTestRealtimeMonitor(t, source, alerter)
	m.checkLiquidations(context.Background())

	alerter.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestRealtimeMonitor_Snapshot(t *testing.T) {
	source := new(mocks.MockEventSource)
	alerter := new(mocks.MockAlerter)

	source.On("GetWhaleTransfers", mock.Anything, "ethereum", "", 1_000_000.0, 20).Return([]model.TokenTransfer{
		{TransactionHash: "0xaaa", ValueUSD: 3_000_000},
	}, nil)
	source.On("GetLiquidations", mock.Anything, "ethereum", "", 1, 50).Return([]model.Liquidation{}, nil)
	source.On("GetDexSwaps", mock.Anything, "ethereum", "", 500_000.0, 20).Return([]model.DexSwap{
		{TransactionHash: "0xccc", ProtocolName: "uniswap_v3", AmountUSD: 900_000},
	}, nil)

	m := newTestRealtimeMonitor(t, source, alerter)

	snapshot, err := m.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snapshot.WhaleTransfers, 1)
	assert.Empty(t, snapshot.Liquidations)
	assert.Len(t, snapshot.LargeSwaps, 1)
}
