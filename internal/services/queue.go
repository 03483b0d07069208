package services

import (
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/alert"
	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/storage"
)

// buildAlertQueue 尝试连接Redis构建告警队列
// Redis不可用时返回nil, 分发器退化为直接发送
func buildAlertQueue(cfg *config.Config, logger *zap.Logger) (*redis.Client, *alert.Queue) {
	if cfg.Redis.Host == "" {
		return nil, nil
	}

	client, err := storage.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Warn("Redis不可用, 告警将直接发送", zap.Error(err))
		return nil, nil
	}

	logger.Info("告警队列已连接Redis")
	return client, alert.NewQueue(client, cfg.Redis.KeyPrefix)
}
