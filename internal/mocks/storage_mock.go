package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/life2you_mini/regime/internal/model"
)

// MockStorage 存储层接口的模拟实现
type MockStorage struct {
	mock.Mock
}

// Initialize 初始化的模拟实现
func (m *MockStorage) Initialize(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close 关闭连接的模拟实现
func (m *MockStorage) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Health 健康检查的模拟实现
func (m *MockStorage) Health(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// StoreRegimeRecord 保存状态历史的模拟实现
func (m *MockStorage) StoreRegimeRecord(ctx context.Context, record *model.RegimeRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// GetLatestRegime 获取最近状态的模拟实现
func (m *MockStorage) GetLatestRegime(ctx context.Context) (model.Regime, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.Regime), args.Error(1)
}

// GetRegimeHistory 获取状态历史的模拟实现
func (m *MockStorage) GetRegimeHistory(ctx context.Context, limit int) ([]*model.RegimeRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.RegimeRecord), args.Error(1)
}

// StoreStrategyParams 保存策略参数的模拟实现
func (m *MockStorage) StoreStrategyParams(ctx context.Context, params *model.StrategyParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

// GetLatestParams 获取最新策略参数的模拟实现
func (m *MockStorage) GetLatestParams(ctx context.Context) (*model.StrategyParams, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StrategyParams), args.Error(1)
}

// StoreMarketSnapshot 保存市场快照的模拟实现
func (m *MockStorage) StoreMarketSnapshot(ctx context.Context, snapshot *model.MarketSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

// GetMarketSnapshot 获取市场快照的模拟实现
func (m *MockStorage) GetMarketSnapshot(ctx context.Context) (*model.MarketSnapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MarketSnapshot), args.Error(1)
}
