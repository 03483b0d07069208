package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/model"
)

// 存储类型常量
const (
	StorageTypeRedis    = "redis"
	StorageTypePostgres = "postgres"
	StorageTypeInMemory = "memory"
)

// Storage 定义存储层接口，可以有多种实现（PostgreSQL、Redis等）
type Storage interface {
	// 基础操作
	Initialize(ctx context.Context) error
	Close(ctx context.Context) error
	Health(ctx context.Context) error

	// 市场状态历史操作
	StoreRegimeRecord(ctx context.Context, record *model.RegimeRecord) error
	GetLatestRegime(ctx context.Context) (model.Regime, error)
	GetRegimeHistory(ctx context.Context, limit int) ([]*model.RegimeRecord, error)

	// 策略参数操作
	StoreStrategyParams(ctx context.Context, params *model.StrategyParams) error
	GetLatestParams(ctx context.Context) (*model.StrategyParams, error)

	// 链上活动快照操作
	StoreMarketSnapshot(ctx context.Context, snapshot *model.MarketSnapshot) error
	GetMarketSnapshot(ctx context.Context) (*model.MarketSnapshot, error)
}

// StorageFactory 存储工厂，用于创建不同的存储实现
type StorageFactory struct {
	implementations map[string]Storage
}

// NewStorageFactory 创建存储工厂
func NewStorageFactory() *StorageFactory {
	return &StorageFactory{
		implementations: make(map[string]Storage),
	}
}

// Register 注册存储实现
func (f *StorageFactory) Register(name string, storage Storage) {
	f.implementations[name] = storage
}

// Get 获取存储实现
func (f *StorageFactory) Get(name string) Storage {
	return f.implementations[name]
}

// GetAll 获取所有存储实现
func (f *StorageFactory) GetAll() []Storage {
	var result []Storage
	for _, storage := range f.implementations {
		result = append(result, storage)
	}
	return result
}

// CreateStorage 根据配置创建并初始化存储实现
func CreateStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Storage, error) {
	var store Storage

	switch cfg.Storage.Type {
	case StorageTypePostgres:
		pg, err := NewPostgresStorage(cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		store = pg
	case StorageTypeRedis:
		client, err := NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("创建Redis客户端失败: %w", err)
		}
		store = NewRedisStorage(client, cfg.Redis.KeyPrefix, logger)
	case StorageTypeInMemory:
		store = NewMemoryStorage()
	default:
		return nil, fmt.Errorf("不支持的存储类型: %s", cfg.Storage.Type)
	}

	if err := store.Initialize(ctx); err != nil {
		return nil, err
	}

	logger.Info("存储层已就绪", zap.String("type", cfg.Storage.Type))
	return store, nil
}
