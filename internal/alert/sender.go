// Package alert 告警消息构建与多通道分发
package alert

import (
	"context"

	"github.com/life2you_mini/regime/internal/model"
)

// Sender 单个通知通道
type Sender interface {
	// Name 通道名称
	Name() string
	// Send 发送一条告警
	Send(ctx context.Context, alert model.Alert) error
}
