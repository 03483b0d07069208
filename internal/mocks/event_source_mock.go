package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/life2you_mini/regime/internal/model"
)

// MockEventSource 实时链上事件数据源的模拟实现
type MockEventSource struct {
	mock.Mock
}

// GetWhaleTransfers 获取巨鲸转账的模拟实现
func (m *MockEventSource) GetWhaleTransfers(ctx context.Context, chain, tokenAddress string, minValueUSD float64, limit int) ([]model.TokenTransfer, error) {
	args := m.Called(ctx, chain, tokenAddress, minValueUSD, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TokenTransfer), args.Error(1)
}

// GetDexSwaps 获取大额成交的模拟实现
func (m *MockEventSource) GetDexSwaps(ctx context.Context, chain, protocol string, minValueUSD float64, limit int) ([]model.DexSwap, error) {
	args := m.Called(ctx, chain, protocol, minValueUSD, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DexSwap), args.Error(1)
}

// GetLiquidations 获取清算记录的模拟实现
func (m *MockEventSource) GetLiquidations(ctx context.Context, chain, protocol string, hoursAgo, limit int) ([]model.Liquidation, error) {
	args := m.Called(ctx, chain, protocol, hoursAgo, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Liquidation), args.Error(1)
}
