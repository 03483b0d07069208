package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockProvider 分析数据源接口的模拟实现
type MockProvider struct {
	mock.Mock
}

// Name 数据源名称的模拟实现
func (m *MockProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

// ExecuteQuery 执行保存查询的模拟实现
func (m *MockProvider) ExecuteQuery(ctx context.Context, queryID string, parameters map[string]any) ([]map[string]any, error) {
	args := m.Called(ctx, queryID, parameters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]any), args.Error(1)
}

// GetLatestResults 获取缓存结果的模拟实现
func (m *MockProvider) GetLatestResults(ctx context.Context, queryID string) ([]map[string]any, error) {
	args := m.Called(ctx, queryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]any), args.Error(1)
}

// RunSQL 执行临时SQL的模拟实现
func (m *MockProvider) RunSQL(ctx context.Context, sql string, chain string) ([]map[string]any, error) {
	args := m.Called(ctx, sql, chain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]map[string]any), args.Error(1)
}
