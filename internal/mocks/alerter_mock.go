package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/life2you_mini/regime/internal/model"
)

// MockAlerter 告警分发接口的模拟实现
type MockAlerter struct {
	mock.Mock
}

// Dispatch 发送告警的模拟实现
func (m *MockAlerter) Dispatch(ctx context.Context, alert model.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}
