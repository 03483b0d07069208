package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/config"
)

var (
	// ErrExecutionFailed 查询执行失败或被取消
	ErrExecutionFailed = errors.New("查询执行失败")
	// ErrExecutionTimeout 查询等待超时
	ErrExecutionTimeout = errors.New("查询等待超时")
	// ErrAdhocUnsupported 当前数据源不支持临时SQL查询
	ErrAdhocUnsupported = errors.New("当前数据源不支持临时SQL查询")
)

// Provider 链上分析数据源统一接口
// 查询为阻塞式执行, 适用于批处理任务而非实时场景
type Provider interface {
	// Name 数据源名称
	Name() string
	// ExecuteQuery 执行保存的查询并等待结果
	ExecuteQuery(ctx context.Context, queryID string, parameters map[string]any) ([]map[string]any, error)
	// GetLatestResults 获取查询的最近缓存结果, 不触发重新执行
	GetLatestResults(ctx context.Context, queryID string) ([]map[string]any, error)
	// RunSQL 执行临时SQL查询, 仅部分数据源支持
	RunSQL(ctx context.Context, sql string, chain string) ([]map[string]any, error)
}

// ProviderFactory 数据源工厂
type ProviderFactory struct {
	providers map[string]Provider
}

// NewProviderFactory 创建数据源工厂
func NewProviderFactory() *ProviderFactory {
	return &ProviderFactory{
		providers: make(map[string]Provider),
	}
}

// Register 注册数据源
func (f *ProviderFactory) Register(name string, provider Provider) {
	f.providers[strings.ToUpper(name)] = provider
}

// Get 获取指定数据源
func (f *ProviderFactory) Get(name string) (Provider, bool) {
	provider, ok := f.providers[strings.ToUpper(name)]
	return provider, ok
}

// GetAll 获取所有已注册数据源
func (f *ProviderFactory) GetAll() map[string]Provider {
	return f.providers
}

// CreateProviderFactory 根据配置组装数据源工厂, 返回当前启用的数据源
func CreateProviderFactory(cfg config.AnalyticsConfig, logger *zap.Logger) (*ProviderFactory, Provider, error) {
	factory := NewProviderFactory()

	if cfg.Dune.APIKey != "" {
		factory.Register(config.ProviderDune, NewDuneClient(cfg, logger))
		logger.Info("已注册Dune数据源")
	}
	if cfg.Allium.APIKey != "" {
		factory.Register(config.ProviderAllium, NewAlliumClient(cfg, logger))
		logger.Info("已注册Allium数据源")
	}

	active, ok := factory.Get(cfg.Provider)
	if !ok {
		return nil, nil, fmt.Errorf("数据源%s未注册, 请检查API密钥配置", cfg.Provider)
	}
	logger.Info("分析数据源已启用", zap.String("provider", active.Name()))

	return factory, active, nil
}
