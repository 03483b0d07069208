package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS dune_regime_history (
    id              BIGSERIAL PRIMARY KEY,
    timestamp       TIMESTAMPTZ NOT NULL,
    regime          TEXT NOT NULL,
    oi_growth       DOUBLE PRECISION NOT NULL DEFAULT 0,
    funding_avg     DOUBLE PRECISION NOT NULL DEFAULT 0,
    liquidity_ratio DOUBLE PRECISION NOT NULL DEFAULT 1,
    raw_data        JSONB
);

CREATE INDEX IF NOT EXISTS idx_regime_history_timestamp
    ON dune_regime_history (timestamp DESC);

CREATE TABLE IF NOT EXISTS himari_strategy_params (
    id                     BIGSERIAL PRIMARY KEY,
    updated_at             TIMESTAMPTZ NOT NULL,
    regime                 TEXT NOT NULL,
    max_position_size_btc  DOUBLE PRECISION NOT NULL,
    leverage_limit         DOUBLE PRECISION NOT NULL,
    risk_budget_multiplier DOUBLE PRECISION NOT NULL,
    liquidity_health       TEXT,
    protocol_alerts        JSONB,
    approved_by            TEXT
);

CREATE INDEX IF NOT EXISTS idx_strategy_params_updated_at
    ON himari_strategy_params (updated_at DESC);

CREATE TABLE IF NOT EXISTS onchain_snapshots (
    id        BIGSERIAL PRIMARY KEY,
    timestamp TIMESTAMPTZ NOT NULL,
    payload   JSONB NOT NULL
);
`

// PostgresStorage PostgreSQL存储实现
type PostgresStorage struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPostgresStorage 创建PostgreSQL存储
func NewPostgresStorage(cfg config.PostgresConfig, logger *zap.Logger) (*PostgresStorage, error) {
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.SSLMode)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开PostgreSQL连接失败: %w", err)
	}
	if cfg.MaxConnections > 0 {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresStorage{db: db, logger: logger}, nil
}

// Initialize 建立连接并确保表结构存在
func (s *PostgresStorage) Initialize(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("PostgreSQL连接失败", zap.Error(err))
		return fmt.Errorf("postgresql连接失败: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("初始化表结构失败: %w", err)
	}

	s.logger.Info("PostgreSQL存储初始化成功")
	return nil
}

// Close 关闭数据库连接
func (s *PostgresStorage) Close(ctx context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("关闭PostgreSQL连接失败: %w", err)
	}
	s.logger.Info("PostgreSQL连接已关闭")
	return nil
}

// Health 检查数据库健康状态
func (s *PostgresStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// regimeRecordRow JSONB列以字节切片中转
type regimeRecordRow struct {
	ID             int64     `db:"id"`
	Timestamp      time.Time `db:"timestamp"`
	Regime         string    `db:"regime"`
	OIGrowth       float64   `db:"oi_growth"`
	FundingAvg     float64   `db:"funding_avg"`
	LiquidityRatio float64   `db:"liquidity_ratio"`
	RawData        []byte    `db:"raw_data"`
}

func (r *regimeRecordRow) toModel() *model.RegimeRecord {
	return &model.RegimeRecord{
		ID:             r.ID,
		Timestamp:      r.Timestamp,
		Regime:         model.Regime(r.Regime),
		OIGrowth:       r.OIGrowth,
		FundingAvg:     r.FundingAvg,
		LiquidityRatio: r.LiquidityRatio,
		RawData:        json.RawMessage(r.RawData),
	}
}

// StoreRegimeRecord 写入一条市场状态历史
func (s *PostgresStorage) StoreRegimeRecord(ctx context.Context, record *model.RegimeRecord) error {
	var rawData any
	if len(record.RawData) > 0 {
		rawData = []byte(record.RawData)
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO dune_regime_history (timestamp, regime, oi_growth, funding_avg, liquidity_ratio, raw_data)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		record.Timestamp, string(record.Regime), record.OIGrowth,
		record.FundingAvg, record.LiquidityRatio, rawData)
	if err != nil {
		return fmt.Errorf("写入市场状态历史失败: %w", err)
	}
	return nil
}

// GetLatestRegime 读取最近一次市场状态, 无记录时返回空值
func (s *PostgresStorage) GetLatestRegime(ctx context.Context) (model.Regime, error) {
	var regime string
	err := s.db.GetContext(ctx, &regime, `
        SELECT regime FROM dune_regime_history ORDER BY timestamp DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("读取最近市场状态失败: %w", err)
	}
	return model.Regime(regime), nil
}

// GetRegimeHistory 按时间倒序读取市场状态历史
func (s *PostgresStorage) GetRegimeHistory(ctx context.Context, limit int) ([]*model.RegimeRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows []regimeRecordRow
	err := s.db.SelectContext(ctx, &rows, `
        SELECT id, timestamp, regime, oi_growth, funding_avg, liquidity_ratio, raw_data
        FROM dune_regime_history
        ORDER BY timestamp DESC
        LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("读取市场状态历史失败: %w", err)
	}

	records := make([]*model.RegimeRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toModel())
	}
	return records, nil
}

type strategyParamsRow struct {
	Regime               string         `db:"regime"`
	MaxPositionSizeBTC   float64        `db:"max_position_size_btc"`
	LeverageLimit        float64        `db:"leverage_limit"`
	RiskBudgetMultiplier float64        `db:"risk_budget_multiplier"`
	LiquidityHealth      sql.NullString `db:"liquidity_health"`
	ProtocolAlerts       []byte         `db:"protocol_alerts"`
	ApprovedBy           sql.NullString `db:"approved_by"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

// StoreStrategyParams 写入一条策略参数
func (s *PostgresStorage) StoreStrategyParams(ctx context.Context, params *model.StrategyParams) error {
	alerts := params.ProtocolAlerts
	if alerts == nil {
		alerts = []string{}
	}
	alertsJSON, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("序列化协议告警失败: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO himari_strategy_params
            (updated_at, regime, max_position_size_btc, leverage_limit, risk_budget_multiplier,
             liquidity_health, protocol_alerts, approved_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		params.UpdatedAt, string(params.Regime), params.MaxPositionSizeBTC,
		params.LeverageLimit, params.RiskBudgetMultiplier,
		string(params.LiquidityHealth), alertsJSON, params.ApprovedBy)
	if err != nil {
		return fmt.Errorf("写入策略参数失败: %w", err)
	}
	return nil
}

// GetLatestParams 读取最近一条策略参数, 无记录时返回nil
func (s *PostgresStorage) GetLatestParams(ctx context.Context) (*model.StrategyParams, error) {
	var row strategyParamsRow
	err := s.db.GetContext(ctx, &row, `
        SELECT regime, max_position_size_btc, leverage_limit, risk_budget_multiplier,
               liquidity_health, protocol_alerts, approved_by, updated_at
        FROM himari_strategy_params
        ORDER BY updated_at DESC
        LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取策略参数失败: %w", err)
	}

	params := &model.StrategyParams{
		Regime:               model.Regime(row.Regime),
		MaxPositionSizeBTC:   row.MaxPositionSizeBTC,
		LeverageLimit:        row.LeverageLimit,
		RiskBudgetMultiplier: row.RiskBudgetMultiplier,
		LiquidityHealth:      model.LiquidityHealth(row.LiquidityHealth.String),
		ApprovedBy:           row.ApprovedBy.String,
		UpdatedAt:            row.UpdatedAt,
		ProtocolAlerts:       []string{},
	}
	if len(row.ProtocolAlerts) > 0 {
		if err := json.Unmarshal(row.ProtocolAlerts, &params.ProtocolAlerts); err != nil {
			s.logger.Warn("解析协议告警失败", zap.Error(err))
		}
	}
	return params, nil
}

// StoreMarketSnapshot 写入链上活动快照
func (s *PostgresStorage) StoreMarketSnapshot(ctx context.Context, snapshot *model.MarketSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("序列化链上快照失败: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO onchain_snapshots (timestamp, payload) VALUES ($1, $2)`,
		time.Now().UTC(), payload)
	if err != nil {
		return fmt.Errorf("写入链上快照失败: %w", err)
	}
	return nil
}

// GetMarketSnapshot 读取最近一次链上活动快照, 无记录时返回nil
func (s *PostgresStorage) GetMarketSnapshot(ctx context.Context) (*model.MarketSnapshot, error) {
	var payload []byte
	err := s.db.GetContext(ctx, &payload, `
        SELECT payload FROM onchain_snapshots ORDER BY timestamp DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取链上快照失败: %w", err)
	}

	var snapshot model.MarketSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("解析链上快照失败: %w", err)
	}
	return &snapshot, nil
}
