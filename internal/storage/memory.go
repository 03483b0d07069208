package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/life2you_mini/regime/internal/model"
)

// MemoryStorage 内存存储实现, 供测试与dry-run模式使用
type MemoryStorage struct {
	mu            sync.RWMutex
	regimeHistory []*model.RegimeRecord
	paramsHistory []*model.StrategyParams
	snapshot      *model.MarketSnapshot
}

// NewMemoryStorage 创建内存存储
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Initialize 初始化内存存储
func (s *MemoryStorage) Initialize(ctx context.Context) error {
	return nil
}

// Close 关闭内存存储
func (s *MemoryStorage) Close(ctx context.Context) error {
	return nil
}

// Health 检查健康状态
func (s *MemoryStorage) Health(ctx context.Context) error {
	return nil
}

func copyRecord(record *model.RegimeRecord) *model.RegimeRecord {
	clone := *record
	return &clone
}

func copyParams(params *model.StrategyParams) *model.StrategyParams {
	clone := *params
	if params.ProtocolAlerts != nil {
		clone.ProtocolAlerts = append([]string(nil), params.ProtocolAlerts...)
	}
	return &clone
}

// StoreRegimeRecord 写入一条市场状态历史
func (s *MemoryStorage) StoreRegimeRecord(ctx context.Context, record *model.RegimeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regimeHistory = append(s.regimeHistory, copyRecord(record))
	return nil
}

// GetLatestRegime 读取最近一次市场状态, 无记录时返回空值
func (s *MemoryStorage) GetLatestRegime(ctx context.Context) (model.Regime, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.regimeHistory) == 0 {
		return "", nil
	}

	latest := s.regimeHistory[0]
	for _, record := range s.regimeHistory[1:] {
		if record.Timestamp.After(latest.Timestamp) {
			latest = record
		}
	}
	return latest.Regime, nil
}

// GetRegimeHistory 按时间倒序读取市场状态历史
func (s *MemoryStorage) GetRegimeHistory(ctx context.Context, limit int) ([]*model.RegimeRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]*model.RegimeRecord, 0, len(s.regimeHistory))
	for _, record := range s.regimeHistory {
		records = append(records, copyRecord(record))
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// StoreStrategyParams 写入一条策略参数
func (s *MemoryStorage) StoreStrategyParams(ctx context.Context, params *model.StrategyParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paramsHistory = append(s.paramsHistory, copyParams(params))
	return nil
}

// GetLatestParams 读取最近一条策略参数, 无记录时返回nil
func (s *MemoryStorage) GetLatestParams(ctx context.Context) (*model.StrategyParams, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.paramsHistory) == 0 {
		return nil, nil
	}

	latest := s.paramsHistory[0]
	for _, params := range s.paramsHistory[1:] {
		if params.UpdatedAt.After(latest.UpdatedAt) {
			latest = params
		}
	}
	return copyParams(latest), nil
}

// StoreMarketSnapshot 写入链上活动快照
func (s *MemoryStorage) StoreMarketSnapshot(ctx context.Context, snapshot *model.MarketSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *snapshot
	s.snapshot = &clone
	return nil
}

// GetMarketSnapshot 读取最近一次链上活动快照, 无记录时返回nil
func (s *MemoryStorage) GetMarketSnapshot(ctx context.Context) (*model.MarketSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snapshot == nil {
		return nil, nil
	}
	clone := *s.snapshot
	return &clone, nil
}
