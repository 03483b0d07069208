// Package backfill 按日回放状态查询, 为回测收集历史分类数据
package backfill

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/model"
	"github.com/life2you_mini/regime/internal/regime"
)

const (
	// DefaultQueriesPerMinute 分析API的查询频率上限
	DefaultQueriesPerMinute = 5

	dateLayout     = "2006-01-02"
	fileNameLayout = "20060102"

	// creditsPerQuery 单次查询的预估积分消耗
	creditsPerQuery = 10
)

// QueryProvider 回填所需的分析数据源能力
type QueryProvider interface {
	Name() string
	ExecuteQuery(ctx context.Context, queryID string, parameters map[string]any) ([]map[string]any, error)
	GetLatestResults(ctx context.Context, queryID string) ([]map[string]any, error)
}

// DayRecord 单日状态分类结果
type DayRecord struct {
	Date    string              `json:"date"`
	Regime  model.Regime        `json:"regime"`
	Metrics model.RegimeMetrics `json:"metrics"`
}

// Runner 历史状态回填器
type Runner struct {
	provider QueryProvider
	engine   *regime.Engine
	logger   *zap.Logger
	limiter  *rate.Limiter
	queryID  string
	dataDir  string
}

// NewRunner 创建回填器
func NewRunner(provider QueryProvider, engine *regime.Engine, cfg *config.Config, logger *zap.Logger) *Runner {
	qpm := cfg.Backfill.QueriesPerMinute
	if qpm <= 0 {
		qpm = DefaultQueriesPerMinute
	}

	return &Runner{
		provider: provider,
		engine:   engine,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(qpm)), 1),
		queryID:  cfg.Queries.RegimeDetection,
		dataDir:  cfg.System.DataDir,
	}
}

// Run 对日期区间内的每一天执行状态查询并分类
// 区间两端均包含, 查询间隔受频率限制约束
func (r *Runner) Run(ctx context.Context, from, to time.Time) ([]DayRecord, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("结束日期早于开始日期: %s > %s", from.Format(dateLayout), to.Format(dateLayout))
	}

	days := int(to.Sub(from).Hours()/24) + 1
	r.logger.Info("开始历史状态回填",
		zap.String("provider", r.provider.Name()),
		zap.String("from", from.Format(dateLayout)),
		zap.String("to", to.Format(dateLayout)),
		zap.Int("days", days),
		zap.Int("estimated_credits", days*creditsPerQuery))

	records := make([]DayRecord, 0, days)
	index := 0

	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		index++
		if err := r.limiter.Wait(ctx); err != nil {
			return records, err
		}

		date := day.Format(dateLayout)
		r.logger.Info("获取历史状态数据",
			zap.String("date", date),
			zap.Int("index", index),
			zap.Int("total", days))

		rows, err := r.provider.ExecuteQuery(ctx, r.queryID, map[string]any{"as_of_date": date})
		if err != nil {
			r.logger.Warn("历史查询执行失败", zap.String("date", date), zap.Error(err))
			continue
		}
		if len(rows) == 0 {
			r.logger.Warn("该日期无数据返回", zap.String("date", date))
			continue
		}

		metrics := regime.ParseMetrics(rows[0])
		classified := r.engine.Classify(metrics)
		records = append(records, DayRecord{Date: date, Regime: classified, Metrics: metrics})

		r.logger.Info("历史状态分类", zap.String("date", date), zap.String("regime", string(classified)))
	}

	r.logSummary(records)
	return records, nil
}

// Quick 基于缓存结果的快速回填
// 不消耗查询积分, 以当前分类结果填充最近N天, 仅用于流程验证
func (r *Runner) Quick(ctx context.Context, days int) ([]DayRecord, error) {
	r.logger.Info("快速回填最近历史", zap.Int("days", days))

	rows, err := r.provider.GetLatestResults(ctx, r.queryID)
	if err != nil {
		return nil, fmt.Errorf("获取缓存查询结果失败: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	metrics := regime.ParseMetrics(rows[0])
	classified := r.engine.Classify(metrics)

	start := time.Now().AddDate(0, 0, -days)
	records := make([]DayRecord, 0, days)
	for i := 0; i < days; i++ {
		records = append(records, DayRecord{
			Date:    start.AddDate(0, 0, i).Format(dateLayout),
			Regime:  classified,
			Metrics: metrics,
		})
	}

	r.logSummary(records)
	return records, nil
}

// OutputPath 按日期范围生成默认输出文件路径
func (r *Runner) OutputPath(from, to time.Time) string {
	name := fmt.Sprintf("backfill_%s_%s.json", from.Format(fileNameLayout), to.Format(fileNameLayout))
	return filepath.Join(r.dataDir, name)
}

// WriteJSON 将回填结果保存为JSON文件
func (r *Runner) WriteJSON(path string, records []DayRecord) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("创建数据目录失败: %w", err)
		}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化回填结果失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("写入回填文件失败: %w", err)
	}

	r.logger.Info("回填结果已保存", zap.String("path", path), zap.Int("count", len(records)))
	return nil
}

// LoadJSON 读取此前保存的回填结果
func LoadJSON(path string) ([]DayRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取回填文件失败: %w", err)
	}

	var records []DayRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("解析回填文件失败: %w", err)
	}
	return records, nil
}

func (r *Runner) logSummary(records []DayRecord) {
	if len(records) == 0 {
		r.logger.Warn("回填未产生任何结果")
		return
	}

	distribution := make(map[string]int)
	for _, rec := range records {
		distribution[string(rec.Regime)]++
	}
	r.logger.Info("回填完成",
		zap.Int("count", len(records)),
		zap.Any("distribution", distribution))
}
