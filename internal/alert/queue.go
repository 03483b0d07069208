package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/life2you_mini/regime/internal/model"
)

// 队列常量
const (
	queueAlerts = "alerts"
)

// Queue Redis告警队列, 解耦告警产生与发送
type Queue struct {
	client    *redis.Client
	keyPrefix string
}

// NewQueue 创建告警队列
func NewQueue(client *redis.Client, keyPrefix string) *Queue {
	return &Queue{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// 获取完整的队列名称
func (q *Queue) key() string {
	return fmt.Sprintf("%s%s", q.keyPrefix, queueAlerts)
}

// Push 将告警推入队列
func (q *Queue) Push(ctx context.Context, alert model.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("序列化告警失败: %w", err)
	}

	return q.client.LPush(ctx, q.key(), data).Err()
}

// Pop 从队列中弹出告警（阻塞方式）, 超时返回nil
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) (*model.Alert, error) {
	result, err := q.client.BRPop(ctx, timeout, q.key()).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // 超时
		}
		return nil, err
	}

	// BRPop返回一个包含两个元素的数组：[queueName, value]
	if len(result) < 2 {
		return nil, fmt.Errorf("从队列获取的数据结构不正确")
	}

	var alert model.Alert
	if err := json.Unmarshal([]byte(result[1]), &alert); err != nil {
		return nil, fmt.Errorf("解析告警失败: %w", err)
	}

	return &alert, nil
}

// Length 获取队列积压长度
func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key()).Result()
}

// Clear 清空队列
func (q *Queue) Clear(ctx context.Context) error {
	return q.client.Del(ctx, q.key()).Err()
}
