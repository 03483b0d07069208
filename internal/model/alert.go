package model

import (
	"time"
)

// Severity 告警级别
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Alert 待发送的告警消息
type Alert struct {
	ID        string    `json:"id,omitempty"` // 短追踪ID, 分发时生成
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"` // 支持Slack markdown
	Component string    `json:"component,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
