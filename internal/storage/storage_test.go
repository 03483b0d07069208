package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/model"
)

func TestMemoryStorage_RegimeHistory(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	regime, err := store.GetLatestRegime(ctx)
	require.NoError(t, err)
	assert.Empty(t, regime)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	records := []*model.RegimeRecord{
		{Timestamp: base, Regime: model.RegimeStable, OIGrowth: 5, FundingAvg: 0.03, LiquidityRatio: 1.0},
		{Timestamp: base.Add(6 * time.Hour), Regime: model.RegimeFragile, OIGrowth: 30, FundingAvg: 0.12, LiquidityRatio: 0.9,
			RawData: json.RawMessage(`{"avg_funding":0.12}`)},
		{Timestamp: base.Add(12 * time.Hour), Regime: model.RegimeStress, OIGrowth: -20, FundingAvg: 0.02, LiquidityRatio: 0.7},
	}
	for _, record := range records {
		require.NoError(t, store.StoreRegimeRecord(ctx, record))
	}

	regime, err = store.GetLatestRegime(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RegimeStress, regime)

	history, err := store.GetRegimeHistory(ctx, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, model.RegimeStress, history[0].Regime)
	assert.Equal(t, model.RegimeFragile, history[1].Regime)
	assert.JSONEq(t, `{"avg_funding":0.12}`, string(history[1].RawData))
}

func TestMemoryStorage_StrategyParams(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	params, err := store.GetLatestParams(ctx)
	require.NoError(t, err)
	assert.Nil(t, params)

	older := &model.StrategyParams{
		Regime:               model.RegimeStable,
		MaxPositionSizeBTC:   0.5,
		LeverageLimit:        2.5,
		RiskBudgetMultiplier: 1.0,
		LiquidityHealth:      model.LiquidityNormal,
		ProtocolAlerts:       []string{},
		ApprovedBy:           model.ApprovedByAuto,
		UpdatedAt:            time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := &model.StrategyParams{
		Regime:               model.RegimeFragile,
		MaxPositionSizeBTC:   0.25,
		LeverageLimit:        1.5,
		RiskBudgetMultiplier: 0.5,
		LiquidityHealth:      model.LiquidityPoor,
		ProtocolAlerts:       []string{"🔴 CRITICAL: aave USDC utilization at 92.0% (threshold: 90%). Liquidation cascade risk elevated."},
		ApprovedBy:           model.ApprovedByManual,
		UpdatedAt:            time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.StoreStrategyParams(ctx, older))
	require.NoError(t, store.StoreStrategyParams(ctx, newer))

	params, err = store.GetLatestParams(ctx)
	require.NoError(t, err)
	require.NotNil(t, params)
	assert.Equal(t, model.RegimeFragile, params.Regime)
	assert.Equal(t, model.ApprovedByManual, params.ApprovedBy)
	require.Len(t, params.ProtocolAlerts, 1)

	// 修改返回值不应影响存储内容
	params.Regime = model.RegimeUnknown
	params.ProtocolAlerts[0] = "tampered"

	again, err := store.GetLatestParams(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RegimeFragile, again.Regime)
	assert.Contains(t, again.ProtocolAlerts[0], "CRITICAL")
}

func TestMemoryStorage_MarketSnapshot(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	snapshot, err := store.GetMarketSnapshot(ctx)
	require.NoError(t, err)
	assert.Nil(t, snapshot)

	require.NoError(t, store.StoreMarketSnapshot(ctx, &model.MarketSnapshot{
		WhaleTransfers: []model.TokenTransfer{{TransactionHash: "0x1", ValueUSD: 2_000_000}},
		Liquidations:   []model.Liquidation{{TransactionHash: "0x2", LiquidationValueUSD: 5_000_000}},
	}))

	snapshot, err = store.GetMarketSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snapshot)
	assert.Len(t, snapshot.WhaleTransfers, 1)
	assert.Len(t, snapshot.Liquidations, 1)
	assert.Empty(t, snapshot.LargeSwaps)
}

func TestStorageFactory(t *testing.T) {
	factory := NewStorageFactory()
	memory := NewMemoryStorage()

	factory.Register(StorageTypeInMemory, memory)

	assert.Same(t, memory, factory.Get(StorageTypeInMemory))
	assert.Nil(t, factory.Get(StorageTypePostgres))
	assert.Len(t, factory.GetAll(), 1)
}

func TestCreateStorage_Memory(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Type = StorageTypeInMemory

	store, err := CreateStorage(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, store)
	require.NoError(t, store.Health(context.Background()))
}

func TestCreateStorage_UnknownType(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.Type = "cassandra"

	_, err := CreateStorage(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "不支持的存储类型")
}
