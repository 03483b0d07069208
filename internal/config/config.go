package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// 分析数据源类型
const (
	ProviderDune   = "DUNE"
	ProviderAllium = "ALLIUM"
)

// Config 应用配置结构
type Config struct {
	System       SystemConfig       `mapstructure:"system" yaml:"system"`
	Analytics    AnalyticsConfig    `mapstructure:"analytics" yaml:"analytics"`
	Alchemy      AlchemyConfig      `mapstructure:"alchemy" yaml:"alchemy"`
	Regime       RegimeConfig       `mapstructure:"regime" yaml:"regime"`
	Strategy     StrategyConfig     `mapstructure:"strategy" yaml:"strategy"`
	Realtime     RealtimeConfig     `mapstructure:"realtime" yaml:"realtime"`
	Reserves     ReservesConfig     `mapstructure:"reserves" yaml:"reserves"`
	Backfill     BackfillConfig     `mapstructure:"backfill" yaml:"backfill"`
	Backtest     BacktestConfig     `mapstructure:"backtest" yaml:"backtest"`
	Storage      StorageConfig      `mapstructure:"storage" yaml:"storage"`
	Redis        RedisConfig        `mapstructure:"redis" yaml:"redis"`
	Postgres     PostgresConfig     `mapstructure:"postgres" yaml:"postgres"`
	Notification NotificationConfig `mapstructure:"notification" yaml:"notification"`
	Metrics      MetricsConfig      `mapstructure:"metrics" yaml:"metrics"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
	LogDir   string `mapstructure:"log_dir" yaml:"log_dir"`
	DataDir  string `mapstructure:"data_dir" yaml:"data_dir"`
}

// AnalyticsConfig 链上分析数据源配置
type AnalyticsConfig struct {
	Provider            string        `mapstructure:"provider" yaml:"provider"` // DUNE 或 ALLIUM
	Chain               string        `mapstructure:"chain" yaml:"chain"`
	PollIntervalSeconds int           `mapstructure:"poll_interval_seconds" yaml:"poll_interval_seconds"`
	MaxWaitSeconds      int           `mapstructure:"max_wait_seconds" yaml:"max_wait_seconds"`
	Dune                DuneConfig    `mapstructure:"dune" yaml:"dune"`
	Allium              AlliumConfig  `mapstructure:"allium" yaml:"allium"`
	Queries             QueriesConfig `mapstructure:"queries" yaml:"queries"`
}

// DuneConfig Dune API配置
type DuneConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"` // 从环境变量DUNE_API_KEY读取
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// AlliumConfig Allium API配置
type AlliumConfig struct {
	APIKey  string `mapstructure:"api_key" yaml:"api_key"` // 从环境变量ALLIUM_API_KEY读取
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
}

// QueriesConfig 保存的查询ID
type QueriesConfig struct {
	RegimeDetection     string `mapstructure:"regime_detection" yaml:"regime_detection"`         // 7日杠杆与情绪
	LiquidityAssessment string `mapstructure:"liquidity_assessment" yaml:"liquidity_assessment"` // DEX TVL趋势
	LeverageCycle       string `mapstructure:"leverage_cycle" yaml:"leverage_cycle"`             // 资金费率持续性
	ProtocolHealth      string `mapstructure:"protocol_health" yaml:"protocol_health"`           // 借贷协议利用率
}

// AlchemyConfig Alchemy节点配置
type AlchemyConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"` // 从环境变量ALCHEMY_API_KEY读取
	Network string `mapstructure:"network" yaml:"network"` // eth-mainnet, arb-mainnet等
}

// RegimeConfig 市场状态分类配置
type RegimeConfig struct {
	CheckIntervalHours int                `mapstructure:"check_interval_hours" yaml:"check_interval_hours"`
	Thresholds         RegimeThresholds   `mapstructure:"thresholds" yaml:"thresholds"`
	RiskMultipliers    map[string]float64 `mapstructure:"risk_multipliers" yaml:"risk_multipliers"`
	LeverageLimits     map[string]float64 `mapstructure:"leverage_limits" yaml:"leverage_limits"`
}

// RegimeThresholds 状态判定阈值, 按优先级顺序评估
type RegimeThresholds struct {
	Fragile  FragileThresholds `mapstructure:"fragile" yaml:"fragile"`
	Stress   StressThresholds  `mapstructure:"stress" yaml:"stress"`
	Recovery BandThresholds    `mapstructure:"recovery" yaml:"recovery"`
	Stable   BandThresholds    `mapstructure:"stable" yaml:"stable"`
}

// FragileThresholds FRAGILE状态判定条件
type FragileThresholds struct {
	OIGrowthMin     float64 `mapstructure:"oi_growth_min" yaml:"oi_growth_min"`
	FundingAvgMin   float64 `mapstructure:"funding_avg_min" yaml:"funding_avg_min"`
	LiquidationsMin float64 `mapstructure:"liquidations_min" yaml:"liquidations_min"`
}

// StressThresholds STRESS状态判定条件
type StressThresholds struct {
	OIGrowthMax     float64 `mapstructure:"oi_growth_max" yaml:"oi_growth_max"`
	LiquidationsMin float64 `mapstructure:"liquidations_min" yaml:"liquidations_min"`
}

// BandThresholds 区间型状态判定条件(RECOVERY与STABLE)
type BandThresholds struct {
	OIGrowthMin     float64 `mapstructure:"oi_growth_min" yaml:"oi_growth_min"`
	OIGrowthMax     float64 `mapstructure:"oi_growth_max" yaml:"oi_growth_max"`
	FundingAvgMin   float64 `mapstructure:"funding_avg_min" yaml:"funding_avg_min"`
	FundingAvgMax   float64 `mapstructure:"funding_avg_max" yaml:"funding_avg_max"`
	LiquidationsMax float64 `mapstructure:"liquidations_max" yaml:"liquidations_max"`
}

// StrategyConfig 策略参数配置
type StrategyConfig struct {
	BasePositionSizeBTC   float64 `mapstructure:"base_position_size_btc" yaml:"base_position_size_btc"`
	BaseRiskPct           float64 `mapstructure:"base_risk_pct" yaml:"base_risk_pct"`
	AutoApplyThresholdPct float64 `mapstructure:"auto_apply_threshold_pct" yaml:"auto_apply_threshold_pct"` // 低于该幅度自动应用
	ReloadIntervalSeconds int     `mapstructure:"reload_interval_seconds" yaml:"reload_interval_seconds"`
	StalenessHours        int     `mapstructure:"staleness_hours" yaml:"staleness_hours"`
}

// RealtimeConfig 实时链上监控配置
type RealtimeConfig struct {
	Enabled                    bool    `mapstructure:"enabled" yaml:"enabled"`
	WhaleMinValueUSD           float64 `mapstructure:"whale_min_value_usd" yaml:"whale_min_value_usd"`
	WhaleIntervalSeconds       int     `mapstructure:"whale_interval_seconds" yaml:"whale_interval_seconds"`
	SwapMinValueUSD            float64 `mapstructure:"swap_min_value_usd" yaml:"swap_min_value_usd"`
	SwapIntervalSeconds        int     `mapstructure:"swap_interval_seconds" yaml:"swap_interval_seconds"`
	LiquidationIntervalSeconds int     `mapstructure:"liquidation_interval_seconds" yaml:"liquidation_interval_seconds"`
	LiquidationCascadeUSD      float64 `mapstructure:"liquidation_cascade_usd" yaml:"liquidation_cascade_usd"`
}

// ReservesConfig 交易所储备监控配置
type ReservesConfig struct {
	Enabled              bool    `mapstructure:"enabled" yaml:"enabled"`
	FlowThresholdETH     float64 `mapstructure:"flow_threshold_eth" yaml:"flow_threshold_eth"` // 信号归一化基准
	CheckIntervalMinutes int     `mapstructure:"check_interval_minutes" yaml:"check_interval_minutes"`
	BlockWindow          int64   `mapstructure:"block_window" yaml:"block_window"` // 回看区块数, 约24小时
}

// BackfillConfig 历史回填配置
type BackfillConfig struct {
	QueriesPerMinute int    `mapstructure:"queries_per_minute" yaml:"queries_per_minute"`
	OutputFile       string `mapstructure:"output_file" yaml:"output_file"` // 为空时按日期范围自动命名
}

// BacktestConfig 回测配置
type BacktestConfig struct {
	PriceSource  string  `mapstructure:"price_source" yaml:"price_source"` // mock 或 exchange
	Exchange     string  `mapstructure:"exchange" yaml:"exchange"`
	Symbol       string  `mapstructure:"symbol" yaml:"symbol"`
	InitialPrice float64 `mapstructure:"initial_price" yaml:"initial_price"`
}

// StorageConfig 存储后端选择
type StorageConfig struct {
	Type string `mapstructure:"type" yaml:"type"` // postgres, redis, memory
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host      string `mapstructure:"host" yaml:"host"`
	Port      int    `mapstructure:"port" yaml:"port"`
	Password  string `mapstructure:"password" yaml:"password"`
	DB        int    `mapstructure:"db" yaml:"db"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// PostgresConfig PostgreSQL配置
type PostgresConfig struct {
	Host           string `mapstructure:"host" yaml:"host"`
	Port           int    `mapstructure:"port" yaml:"port"`
	Database       string `mapstructure:"database" yaml:"database"`
	User           string `mapstructure:"user" yaml:"user"`
	Password       string `mapstructure:"password" yaml:"password"` // 从环境变量POSTGRES_PASSWORD读取
	MaxConnections int    `mapstructure:"max_connections" yaml:"max_connections"`
	SSLMode        string `mapstructure:"ssl_mode" yaml:"ssl_mode"`
}

// NotificationConfig 通知配置
type NotificationConfig struct {
	Slack    SlackConfig    `mapstructure:"slack" yaml:"slack"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
}

// SlackConfig Slack Webhook配置
type SlackConfig struct {
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
	WebhookURL     string `mapstructure:"webhook_url" yaml:"webhook_url"` // 从环境变量SLACK_WEBHOOK_URL读取
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// TelegramConfig Telegram配置
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	BotToken string `mapstructure:"bot_token" yaml:"bot_token"` // 从环境变量TELEGRAM_BOT_TOKEN读取
	ChatID   int64  `mapstructure:"chat_id" yaml:"chat_id"`     // 从环境变量TELEGRAM_CHAT_ID读取
}

// MetricsConfig Prometheus指标配置
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// LoadConfig 从文件加载配置
func LoadConfig(filePath string) (*Config, error) {
	// 尝试加载.env文件, 已设置的环境变量优先
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(filePath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	// 绑定环境变量, 如REGIME_SYSTEM_LOG_LEVEL
	v.AutomaticEnv()
	v.SetEnvPrefix("REGIME")

	// 敏感配置优先从独立环境变量读取
	if provider := os.Getenv("ANALYTICS_PROVIDER"); provider != "" {
		v.Set("analytics.provider", provider)
	}
	if duneKey := os.Getenv("DUNE_API_KEY"); duneKey != "" {
		v.Set("analytics.dune.api_key", duneKey)
	}
	if alliumKey := os.Getenv("ALLIUM_API_KEY"); alliumKey != "" {
		v.Set("analytics.allium.api_key", alliumKey)
	}
	if alchemyKey := os.Getenv("ALCHEMY_API_KEY"); alchemyKey != "" {
		v.Set("alchemy.api_key", alchemyKey)
	}
	if webhook := os.Getenv("SLACK_WEBHOOK_URL"); webhook != "" {
		v.Set("notification.slack.webhook_url", webhook)
	}
	if botToken := os.Getenv("TELEGRAM_BOT_TOKEN"); botToken != "" {
		v.Set("notification.telegram.bot_token", botToken)
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		v.Set("notification.telegram.chat_id", chatID)
	}
	if pgPassword := os.Getenv("POSTGRES_PASSWORD"); pgPassword != "" {
		v.Set("postgres.password", pgPassword)
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		v.Set("redis.password", redisPassword)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// LoadConfigFromYAML 不经过viper直接解析YAML配置
func LoadConfigFromYAML(filePath string) (*Config, error) {
	yamlFile, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return &config, nil
}

// validateConfig 验证配置有效性
func validateConfig(config *Config) error {
	switch config.Analytics.Provider {
	case ProviderDune:
		if config.Analytics.Dune.APIKey == "" {
			return fmt.Errorf("已选择Dune数据源, 但DUNE_API_KEY未配置")
		}
	case ProviderAllium:
		if config.Analytics.Allium.APIKey == "" {
			return fmt.Errorf("已选择Allium数据源, 但ALLIUM_API_KEY未配置")
		}
	default:
		return fmt.Errorf("不支持的分析数据源: %s, 可选DUNE或ALLIUM", config.Analytics.Provider)
	}

	if config.Analytics.Queries.RegimeDetection == "" {
		return fmt.Errorf("状态检测查询ID未配置")
	}

	if config.Alchemy.Enabled && config.Alchemy.APIKey == "" {
		return fmt.Errorf("Alchemy已启用, 但ALCHEMY_API_KEY未配置")
	}

	if config.Regime.CheckIntervalHours <= 0 {
		return fmt.Errorf("状态检查间隔必须大于0")
	}

	if _, ok := config.Regime.RiskMultipliers["UNKNOWN"]; !ok {
		return fmt.Errorf("风险乘数表必须包含UNKNOWN默认项")
	}

	if config.Strategy.BasePositionSizeBTC <= 0 {
		return fmt.Errorf("基础仓位大小必须大于0")
	}

	if config.Strategy.AutoApplyThresholdPct <= 0 {
		return fmt.Errorf("自动应用阈值必须大于0")
	}

	if config.Strategy.StalenessHours <= 0 {
		return fmt.Errorf("参数时效阈值必须大于0")
	}

	switch config.Storage.Type {
	case "postgres":
		if config.Postgres.Host == "" || config.Postgres.Database == "" || config.Postgres.User == "" {
			return fmt.Errorf("PostgreSQL存储已启用, 但连接信息不完整")
		}
	case "redis":
		if config.Redis.Host == "" {
			return fmt.Errorf("Redis主机不能为空")
		}
		if config.Redis.Port <= 0 || config.Redis.Port > 65535 {
			return fmt.Errorf("无效的Redis端口")
		}
	case "memory":
	default:
		return fmt.Errorf("不支持的存储类型: %s, 可选postgres、redis或memory", config.Storage.Type)
	}

	if config.Notification.Slack.Enabled && config.Notification.Slack.WebhookURL == "" {
		return fmt.Errorf("Slack已启用, 但SLACK_WEBHOOK_URL未配置")
	}

	if config.Notification.Telegram.Enabled {
		if config.Notification.Telegram.BotToken == "" || config.Notification.Telegram.ChatID == 0 {
			return fmt.Errorf("Telegram已启用, 但Bot Token或Chat ID未配置")
		}
	}

	return nil
}

// DefaultRegimeThresholds 状态判定默认阈值, 基于2021-2025历史数据回测得出
func DefaultRegimeThresholds() RegimeThresholds {
	return RegimeThresholds{
		Fragile: FragileThresholds{
			OIGrowthMin:     25,
			FundingAvgMin:   0.10,
			LiquidationsMin: 50_000_000,
		},
		Stress: StressThresholds{
			OIGrowthMax:     -15,
			LiquidationsMin: 100_000_000,
		},
		Recovery: BandThresholds{
			OIGrowthMin:     -15,
			OIGrowthMax:     0,
			FundingAvgMin:   0.03,
			FundingAvgMax:   0.08,
			LiquidationsMax: 20_000_000,
		},
		Stable: BandThresholds{
			OIGrowthMin:     -10,
			OIGrowthMax:     15,
			FundingAvgMin:   0.01,
			FundingAvgMax:   0.06,
			LiquidationsMax: 30_000_000,
		},
	}
}

// DefaultRiskMultipliers 各状态默认风险预算乘数
func DefaultRiskMultipliers() map[string]float64 {
	return map[string]float64{
		"STABLE":       1.0, // 正常运行
		"RECOVERY":     1.2, // 可适度增加风险
		"TRANSITIONAL": 0.8, // 适度降低风险
		"FRAGILE":      0.5, // 大幅降低风险
		"STRESS":       0.3, // 防御姿态
		"UNKNOWN":      0.8, // 保守默认
	}
}

// DefaultLeverageLimits 各状态默认杠杆上限
func DefaultLeverageLimits() map[string]float64 {
	return map[string]float64{
		"STABLE":       2.5,
		"RECOVERY":     3.0,
		"TRANSITIONAL": 2.0,
		"FRAGILE":      1.5,
		"STRESS":       1.0,
	}
}

// GetDefaultConfig 获取默认配置, 用于生成示例配置文件
func GetDefaultConfig() *Config {
	return &Config{
		System: SystemConfig{
			LogLevel: "INFO",
			LogDir:   "./logs",
			DataDir:  "./data",
		},
		Analytics: AnalyticsConfig{
			Provider:            ProviderAllium,
			Chain:               "ethereum",
			PollIntervalSeconds: 5,
			MaxWaitSeconds:      300,
			Dune: DuneConfig{
				BaseURL: "https://api.dune.com/api/v1",
			},
			Allium: AlliumConfig{
				BaseURL: "https://api.allium.so/api/v1",
			},
			Queries: QueriesConfig{
				RegimeDetection:     "6489102",
				LiquidityAssessment: "4100002",
				LeverageCycle:       "4100003",
				ProtocolHealth:      "4100004",
			},
		},
		Alchemy: AlchemyConfig{
			Enabled: false,
			Network: "eth-mainnet",
		},
		Regime: RegimeConfig{
			CheckIntervalHours: 6,
			Thresholds:         DefaultRegimeThresholds(),
			RiskMultipliers:    DefaultRiskMultipliers(),
			LeverageLimits:     DefaultLeverageLimits(),
		},
		Strategy: StrategyConfig{
			BasePositionSizeBTC:   0.5,
			BaseRiskPct:           0.02,
			AutoApplyThresholdPct: 10,
			ReloadIntervalSeconds: 1800,
			StalenessHours:        24,
		},
		Realtime: RealtimeConfig{
			Enabled:                    false,
			WhaleMinValueUSD:           1_000_000,
			WhaleIntervalSeconds:       10,
			SwapMinValueUSD:            500_000,
			SwapIntervalSeconds:        15,
			LiquidationIntervalSeconds: 30,
			LiquidationCascadeUSD:      10_000_000,
		},
		Reserves: ReservesConfig{
			Enabled:              false,
			FlowThresholdETH:     50_000,
			CheckIntervalMinutes: 60,
			BlockWindow:          7200,
		},
		Backfill: BackfillConfig{
			QueriesPerMinute: 5,
		},
		Backtest: BacktestConfig{
			PriceSource:  "mock",
			Exchange:     "binance",
			Symbol:       "BTC/USDT",
			InitialPrice: 45000,
		},
		Storage: StorageConfig{
			Type: "postgres",
		},
		Redis: RedisConfig{
			Host:      "localhost",
			Port:      6379,
			Password:  "",
			DB:        0,
			KeyPrefix: "regime:",
		},
		Postgres: PostgresConfig{
			Host:           "localhost",
			Port:           5432,
			Database:       "himari",
			User:           "postgres",
			MaxConnections: 10,
			SSLMode:        "require",
		},
		Notification: NotificationConfig{
			Slack: SlackConfig{
				Enabled:        false,
				TimeoutSeconds: 10,
			},
			Telegram: TelegramConfig{
				Enabled: false,
			},
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			ListenAddr: ":9104",
		},
	}
}

// SaveConfigToFile 将配置写入文件, 敏感字段置空
func SaveConfigToFile(config *Config, filePath string) error {
	sanitized := *config
	sanitized.Analytics.Dune.APIKey = ""
	sanitized.Analytics.Allium.APIKey = ""
	sanitized.Alchemy.APIKey = ""
	sanitized.Redis.Password = ""
	sanitized.Postgres.Password = ""
	sanitized.Notification.Slack.WebhookURL = ""
	sanitized.Notification.Telegram.BotToken = ""

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	return os.WriteFile(filePath, data, 0644)
}
