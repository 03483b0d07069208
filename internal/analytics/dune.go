package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/config"
)

// 默认API地址与轮询参数
const (
	defaultDuneBaseURL  = "https://api.dune.com/api/v1"
	defaultPollInterval = 5 * time.Second
	defaultMaxWait      = 300 * time.Second
)

// Dune执行状态
const (
	duneStateCompleted = "QUERY_STATE_COMPLETED"
	duneStateFailed    = "QUERY_STATE_FAILED"
	duneStateCancelled = "QUERY_STATE_CANCELLED"
)

// errStillPending 查询尚未完成, 继续轮询
var errStillPending = errors.New("查询尚未完成")

// DuneClient Dune Analytics API客户端
type DuneClient struct {
	baseURL      string
	doer         *apiDoer
	logger       *zap.Logger
	pollInterval time.Duration
	maxWait      time.Duration
}

// NewDuneClient 创建Dune客户端
func NewDuneClient(cfg config.AnalyticsConfig, logger *zap.Logger) *DuneClient {
	baseURL := cfg.Dune.BaseURL
	if baseURL == "" {
		baseURL = defaultDuneBaseURL
	}
	pollInterval := time.Duration(cfg.PollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	maxWait := time.Duration(cfg.MaxWaitSeconds) * time.Second
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}

	return &DuneClient{
		baseURL: baseURL,
		doer: newAPIDoer(map[string]string{
			"X-Dune-API-Key": cfg.Dune.APIKey,
		}),
		logger:       logger,
		pollInterval: pollInterval,
		maxWait:      maxWait,
	}
}

// Name 数据源名称
func (c *DuneClient) Name() string {
	return config.ProviderDune
}

type duneExecuteResponse struct {
	ExecutionID string `json:"execution_id"`
}

type duneStatusResponse struct {
	State string `json:"state"`
}

type duneResultsResponse struct {
	Result struct {
		Rows []map[string]any `json:"rows"`
	} `json:"result"`
}

// ExecuteQuery 执行保存的查询并阻塞等待结果
func (c *DuneClient) ExecuteQuery(ctx context.Context, queryID string, parameters map[string]any) ([]map[string]any, error) {
	executionID, err := c.startExecution(ctx, queryID, parameters)
	if err != nil {
		return nil, err
	}

	if err := c.waitForCompletion(ctx, queryID, executionID); err != nil {
		return nil, err
	}

	return c.getResults(ctx, executionID)
}

func (c *DuneClient) startExecution(ctx context.Context, queryID string, parameters map[string]any) (string, error) {
	url := fmt.Sprintf("%s/query/%s/execute", c.baseURL, queryID)

	payload := map[string]any{}
	if len(parameters) > 0 {
		payload["query_parameters"] = parameters
	}

	var resp duneExecuteResponse
	if err := c.doer.doJSON(ctx, "POST", url, payload, &resp); err != nil {
		return "", fmt.Errorf("启动查询%s失败: %w", queryID, err)
	}
	if resp.ExecutionID == "" {
		return "", fmt.Errorf("启动查询%s失败: 响应缺少execution_id", queryID)
	}

	c.logger.Info("查询已启动",
		zap.String("query_id", queryID),
		zap.String("execution_id", resp.ExecutionID))

	return resp.ExecutionID, nil
}

func (c *DuneClient) executionStatus(ctx context.Context, executionID string) (string, error) {
	url := fmt.Sprintf("%s/execution/%s/status", c.baseURL, executionID)

	var resp duneStatusResponse
	if err := c.doer.doJSON(ctx, "GET", url, nil, &resp); err != nil {
		return "", err
	}
	if resp.State == "" {
		return "UNKNOWN", nil
	}
	return resp.State, nil
}

// waitForCompletion 以固定间隔轮询执行状态直到完成或超时
func (c *DuneClient) waitForCompletion(ctx context.Context, queryID, executionID string) error {
	operation := func() error {
		state, err := c.executionStatus(ctx, executionID)
		if err != nil {
			// 状态查询出错时继续轮询, 与超时机制共同兜底
			return err
		}
		switch state {
		case duneStateCompleted:
			return nil
		case duneStateFailed, duneStateCancelled:
			return backoff.Permanent(fmt.Errorf("%w: 查询%s状态%s", ErrExecutionFailed, queryID, state))
		}
		c.logger.Debug("等待查询完成",
			zap.String("query_id", queryID),
			zap.String("state", state))
		return fmt.Errorf("%w: %s", errStillPending, state)
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

func (c *DuneClient) getResults(ctx context.Context, executionID string) ([]map[string]any, error) {
	url := fmt.Sprintf("%s/execution/%s/results", c.baseURL, executionID)

	var resp duneResultsResponse
	if err := c.doer.doJSON(ctx, "GET", url, nil, &resp); err != nil {
		return nil, fmt.Errorf("获取执行%s结果失败: %w", executionID, err)
	}

	c.logger.Info("获取查询结果",
		zap.String("execution_id", executionID),
		zap.Int("rows", len(resp.Result.Rows)))

	return resp.Result.Rows, nil
}

// GetLatestResults 获取查询的最近缓存结果, 不触发重新执行
func (c *DuneClient) GetLatestResults(ctx context.Context, queryID string) ([]map[string]any, error) {
	url := fmt.Sprintf("%s/query/%s/results", c.baseURL, queryID)

	var resp duneResultsResponse
	if err := c.doer.doJSON(ctx, "GET", url, nil, &resp); err != nil {
		return nil, fmt.Errorf("获取查询%s缓存结果失败: %w", queryID, err)
	}

	return resp.Result.Rows, nil
}

// RunSQL Dune不支持临时SQL查询
func (c *DuneClient) RunSQL(ctx context.Context, sql string, chain string) ([]map[string]any, error) {
	return nil, ErrAdhocUnsupported
}
