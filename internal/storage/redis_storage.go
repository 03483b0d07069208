package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/model"
)

// Redis 键后缀常量, 实际键为 keyPrefix + 后缀
const (
	// 市场状态历史（有序集合，按时间戳排序）
	keyRegimeHistory = "history"

	// 策略参数
	keyParamsLatest  = "params:latest"
	keyParamsHistory = "params:history"

	// 链上活动快照
	keySnapshotLatest = "snapshot:latest"

	// 过期时间（秒）
	expiryRegimeHistory = 86400 * 365 // 365天
	expiryParams        = 86400 * 365 // 365天
	expirySnapshot      = 3600        // 实时数据1小时后作废
)

// RedisStorage Redis存储实现
type RedisStorage struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisStorage 创建Redis存储
func NewRedisStorage(client *redis.Client, keyPrefix string, logger *zap.Logger) *RedisStorage {
	return &RedisStorage{
		client:    client,
		keyPrefix: keyPrefix,
		logger:    logger,
	}
}

func (s *RedisStorage) key(suffix string) string {
	return s.keyPrefix + suffix
}

// Initialize 初始化Redis存储
func (s *RedisStorage) Initialize(ctx context.Context) error {
	// 测试连接
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.logger.Error("Redis连接失败", zap.Error(err))
		return fmt.Errorf("redis连接失败: %w", err)
	}

	s.logger.Info("Redis存储初始化成功")
	return nil
}

// Close 关闭Redis连接
func (s *RedisStorage) Close(ctx context.Context) error {
	if err := s.client.Close(); err != nil {
		s.logger.Error("关闭Redis连接失败", zap.Error(err))
		return fmt.Errorf("关闭Redis连接失败: %w", err)
	}

	s.logger.Info("Redis连接已关闭")
	return nil
}

// Health 检查Redis健康状态
func (s *RedisStorage) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// StoreRegimeRecord 写入一条市场状态历史
func (s *RedisStorage) StoreRegimeRecord(ctx context.Context, record *model.RegimeRecord) error {
	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化市场状态记录失败: %w", err)
	}

	historyKey := s.key(keyRegimeHistory)

	// 使用Pipeline批量执行
	pipe := s.client.Pipeline()
	pipe.ZAdd(ctx, historyKey, redis.Z{
		Score:  float64(record.Timestamp.Unix()),
		Member: jsonData,
	})
	pipe.Expire(ctx, historyKey, time.Duration(expiryRegimeHistory)*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("写入市场状态历史失败: %w", err)
	}
	return nil
}

// GetLatestRegime 读取最近一次市场状态, 无记录时返回空值
func (s *RedisStorage) GetLatestRegime(ctx context.Context) (model.Regime, error) {
	results, err := s.client.ZRevRange(ctx, s.key(keyRegimeHistory), 0, 0).Result()
	if err != nil {
		return "", fmt.Errorf("读取最近市场状态失败: %w", err)
	}
	if len(results) == 0 {
		return "", nil
	}

	var record model.RegimeRecord
	if err := json.Unmarshal([]byte(results[0]), &record); err != nil {
		return "", fmt.Errorf("解析市场状态记录失败: %w", err)
	}
	return record.Regime, nil
}

// GetRegimeHistory 按时间倒序读取市场状态历史
func (s *RedisStorage) GetRegimeHistory(ctx context.Context, limit int) ([]*model.RegimeRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	results, err := s.client.ZRevRange(ctx, s.key(keyRegimeHistory), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("读取市场状态历史失败: %w", err)
	}

	records := make([]*model.RegimeRecord, 0, len(results))
	for _, jsonData := range results {
		var record model.RegimeRecord
		if err := json.Unmarshal([]byte(jsonData), &record); err != nil {
			s.logger.Warn("解析市场状态记录失败", zap.Error(err), zap.String("data", jsonData))
			continue
		}
		records = append(records, &record)
	}
	return records, nil
}

// StoreStrategyParams 写入一条策略参数
func (s *RedisStorage) StoreStrategyParams(ctx context.Context, params *model.StrategyParams) error {
	jsonData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("序列化策略参数失败: %w", err)
	}

	latestKey := s.key(keyParamsLatest)
	historyKey := s.key(keyParamsHistory)

	// 使用Pipeline批量执行
	pipe := s.client.Pipeline()
	pipe.Set(ctx, latestKey, jsonData, time.Duration(expiryParams)*time.Second)
	pipe.ZAdd(ctx, historyKey, redis.Z{
		Score:  float64(params.UpdatedAt.Unix()),
		Member: jsonData,
	})
	pipe.Expire(ctx, historyKey, time.Duration(expiryParams)*time.Second)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("写入策略参数失败: %w", err)
	}
	return nil
}

// GetLatestParams 读取最近一条策略参数, 无记录时返回nil
func (s *RedisStorage) GetLatestParams(ctx context.Context) (*model.StrategyParams, error) {
	jsonData, err := s.client.Get(ctx, s.key(keyParamsLatest)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取策略参数失败: %w", err)
	}

	var params model.StrategyParams
	if err := json.Unmarshal([]byte(jsonData), &params); err != nil {
		return nil, fmt.Errorf("解析策略参数失败: %w", err)
	}
	return &params, nil
}

// StoreMarketSnapshot 写入链上活动快照
func (s *RedisStorage) StoreMarketSnapshot(ctx context.Context, snapshot *model.MarketSnapshot) error {
	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("序列化链上快照失败: %w", err)
	}

	err = s.client.Set(ctx, s.key(keySnapshotLatest), jsonData,
		time.Duration(expirySnapshot)*time.Second).Err()
	if err != nil {
		return fmt.Errorf("写入链上快照失败: %w", err)
	}
	return nil
}

// GetMarketSnapshot 读取最近一次链上活动快照, 无记录时返回nil
func (s *RedisStorage) GetMarketSnapshot(ctx context.Context) (*model.MarketSnapshot, error) {
	jsonData, err := s.client.Get(ctx, s.key(keySnapshotLatest)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取链上快照失败: %w", err)
	}

	var snapshot model.MarketSnapshot
	if err := json.Unmarshal([]byte(jsonData), &snapshot); err != nil {
		return nil, fmt.Errorf("解析链上快照失败: %w", err)
	}
	return &snapshot, nil
}
