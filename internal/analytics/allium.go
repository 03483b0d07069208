package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/model"
)

const defaultAlliumBaseURL = "https://api.allium.so/api/v1"

// Allium执行状态
const (
	alliumStatusCompleted = "completed"
	alliumStatusFailed    = "failed"
	alliumStatusCancelled = "cancelled"
)

// adhocResultDelay 临时SQL提交后到结果可读的固定等待
const adhocResultDelay = 2 * time.Second

// AlliumClient Allium API客户端
type AlliumClient struct {
	baseURL      string
	doer         *apiDoer
	logger       *zap.Logger
	pollInterval time.Duration
	maxWait      time.Duration
}

// NewAlliumClient 创建Allium客户端
func NewAlliumClient(cfg config.AnalyticsConfig, logger *zap.Logger) *AlliumClient {
	baseURL := cfg.Allium.BaseURL
	if baseURL == "" {
		baseURL = defaultAlliumBaseURL
	}
	pollInterval := time.Duration(cfg.PollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	maxWait := time.Duration(cfg.MaxWaitSeconds) * time.Second
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}

	return &AlliumClient{
		baseURL: baseURL,
		doer: newAPIDoer(map[string]string{
			"X-API-Key": cfg.Allium.APIKey,
		}),
		logger:       logger,
		pollInterval: pollInterval,
		maxWait:      maxWait,
	}
}

// Name 数据源名称
func (c *AlliumClient) Name() string {
	return config.ProviderAllium
}

type alliumRunResponse struct {
	ExecutionID string `json:"execution_id"`
	ID          string `json:"id"`
}

func (r alliumRunResponse) executionID() string {
	if r.ExecutionID != "" {
		return r.ExecutionID
	}
	return r.ID
}

type alliumStatusResponse struct {
	Status string `json:"status"`
}

type alliumResultsResponse struct {
	Data []map[string]any `json:"data"`
}

// ExecuteQuery 执行保存的查询并阻塞等待结果
func (c *AlliumClient) ExecuteQuery(ctx context.Context, queryID string, parameters map[string]any) ([]map[string]any, error) {
	executionID, err := c.startExecution(ctx, queryID, parameters)
	if err != nil {
		return nil, err
	}

	if err := c.waitForCompletion(ctx, queryID, executionID); err != nil {
		return nil, err
	}

	return c.getResults(ctx, executionID)
}

func (c *AlliumClient) startExecution(ctx context.Context, queryID string, parameters map[string]any) (string, error) {
	url := fmt.Sprintf("%s/queries/%s/run", c.baseURL, queryID)

	payload := map[string]any{}
	if len(parameters) > 0 {
		payload["parameters"] = parameters
	}

	var resp alliumRunResponse
	if err := c.doer.doJSON(ctx, "POST", url, payload, &resp); err != nil {
		return "", fmt.Errorf("启动查询%s失败: %w", queryID, err)
	}
	executionID := resp.executionID()
	if executionID == "" {
		return "", fmt.Errorf("启动查询%s失败: 响应缺少execution_id", queryID)
	}

	c.logger.Info("查询已启动",
		zap.String("query_id", queryID),
		zap.String("execution_id", executionID))

	return executionID, nil
}

func (c *AlliumClient) executionStatus(ctx context.Context, executionID string) (string, error) {
	url := fmt.Sprintf("%s/executions/%s", c.baseURL, executionID)

	var resp alliumStatusResponse
	if err := c.doer.doJSON(ctx, "GET", url, nil, &resp); err != nil {
		return "", err
	}
	if resp.Status == "" {
		return "unknown", nil
	}
	return strings.ToLower(resp.Status), nil
}

func (c *AlliumClient) waitForCompletion(ctx context.Context, queryID, executionID string) error {
	operation := func() error {
		status, err := c.executionStatus(ctx, executionID)
		if err != nil {
			return err
		}
		switch status {
		case alliumStatusCompleted:
			return nil
		case alliumStatusFailed, alliumStatusCancelled:
			return backoff.Permanent(fmt.Errorf("%w: 查询%s状态%s", ErrExecutionFailed, queryID, status))
		}
		c.logger.Debug("等待查询完成",
			zap.String("query_id", queryID),
			zap.String("status", status))
		return fmt.Errorf("%w: %s", errStillPending, status)
	}

	maxPolls := uint64(c.maxWait / c.pollInterval)
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.pollInterval), maxPolls), ctx)

	err := backoff.Retry(operation, policy)
	if err == nil {
		return nil
	}
	if errors.Is(err, errStillPending) {
		return fmt.Errorf("%w: 查询%s在%s内未完成", ErrExecutionTimeout, queryID, c.maxWait)
	}
	return err
}

func (c *AlliumClient) getResults(ctx context.Context, executionID string) ([]map[string]any, error) {
	url := fmt.Sprintf("%s/executions/%s/results", c.baseURL, executionID)

	var resp alliumResultsResponse
	if err := c.doer.doJSON(ctx, "GET", url, nil, &resp); err != nil {
		return nil, fmt.Errorf("获取执行%s结果失败: %w", executionID, err)
	}

	c.logger.Info("获取查询结果",
		zap.String("execution_id", executionID),
		zap.Int("rows", len(resp.Data)))

	return resp.Data, nil
}

// GetLatestResults 获取查询的最近缓存结果, 不触发重新执行
func (c *AlliumClient) GetLatestResults(ctx context.Context, queryID string) ([]map[string]any, error) {
	url := fmt.Sprintf("%s/queries/%s/latest", c.baseURL, queryID)

	var resp alliumResultsResponse
	if err := c.doer.doJSON(ctx, "GET", url, nil, &resp); err != nil {
		return nil, fmt.Errorf("获取查询%s缓存结果失败: %w", queryID, err)
	}

	return resp.Data, nil
}

// RunSQL 提交临时SQL查询并获取结果
func (c *AlliumClient) RunSQL(ctx context.Context, sql string, chain string) ([]map[string]any, error) {
	if chain == "" {
		chain = "ethereum"
	}
	url := fmt.Sprintf("%s/queries/adhoc", c.baseURL)

	payload := map[string]any{
		"sql":   sql,
		"chain": chain,
	}

	var resp alliumRunResponse
	if err := c.doer.doJSON(ctx, "POST", url, payload, &resp); err != nil {
		return nil, fmt.Errorf("提交临时查询失败: %w", err)
	}
	executionID := resp.executionID()
	if executionID == "" {
		return nil, errors.New("提交临时查询失败: 响应缺少execution_id")
	}

	// 临时查询执行很快, 固定等待后直接取结果
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(adhocResultDelay):
	}

	return c.getResults(ctx, executionID)
}

// GetWhaleTransfers 查询大额代币转账
func (c *AlliumClient) GetWhaleTransfers(ctx context.Context, chain, tokenAddress string, minValueUSD float64, limit int) ([]model.TokenTransfer, error) {
	rows, err := c.RunSQL(ctx, WhaleTransfersSQL(chain, tokenAddress, minValueUSD, limit), chain)
	if err != nil {
		return nil, err
	}
	return decodeRows[model.TokenTransfer](rows)
}

// GetDexSwaps 查询DEX大额成交
func (c *AlliumClient) GetDexSwaps(ctx context.Context, chain, protocol string, minValueUSD float64, limit int) ([]model.DexSwap, error) {
	rows, err := c.RunSQL(ctx, DexSwapsSQL(chain, protocol, minValueUSD, limit), chain)
	if err != nil {
		return nil, err
	}
	return decodeRows[model.DexSwap](rows)
}

// GetLiquidations 查询借贷协议清算记录
func (c *AlliumClient) GetLiquidations(ctx context.Context, chain, protocol string, hoursAgo, limit int) ([]model.Liquidation, error) {
	rows, err := c.RunSQL(ctx, LiquidationsSQL(chain, protocol, hoursAgo, limit), chain)
	if err != nil {
		return nil, err
	}
	return decodeRows[model.Liquidation](rows)
}
