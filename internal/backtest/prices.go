package backtest

import (
	"fmt"
	"math/rand"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/exchange"
)

const (
	// DefaultInitialPrice 模拟序列的初始BTC价格
	DefaultInitialPrice = 45000.0

	mockSeed      = 42
	mockDailyMean = 0.001
	mockDailyStd  = 0.02
)

// GenerateMockPrices 生成可复现的模拟价格序列
// 日收益服从N(0.001, 0.02), 收盘价为当日收益生效前的价格
func GenerateMockPrices(days int, initialPrice float64) []PricePoint {
	if initialPrice <= 0 {
		initialPrice = DefaultInitialPrice
	}

	rng := rand.New(rand.NewSource(mockSeed))
	start := time.Now().AddDate(0, 0, -days)

	points := make([]PricePoint, 0, days)
	price := initialPrice
	for i := 0; i < days; i++ {
		ret := rng.NormFloat64()*mockDailyStd + mockDailyMean
		points = append(points, PricePoint{
			Date:   start.AddDate(0, 0, i).Format("2006-01-02"),
			Close:  price,
			Return: ret,
		})
		price *= 1 + ret
	}
	return points
}

// ExchangePriceSource 通过交易所日线行情构建真实价格序列
type ExchangePriceSource struct {
	client exchange.MarketData
	symbol string
	logger *zap.Logger
}

// NewExchangePriceSource 创建交易所行情源
func NewExchangePriceSource(cfg config.BacktestConfig, logger *zap.Logger) (*ExchangePriceSource, error) {
	client, err := exchange.New(cfg.Exchange, logger)
	if err != nil {
		return nil, err
	}

	symbol := cfg.Symbol
	if symbol == "" {
		symbol = "BTC/USDT"
	}

	return &ExchangePriceSource{
		client: client,
		symbol: symbol,
		logger: logger,
	}, nil
}

// FetchDaily 拉取最近N天日线收盘价并计算日收益率
// 需要多取一根K线作为首日收益的基准
func (s *ExchangePriceSource) FetchDaily(days int) ([]PricePoint, error) {
	candles, err := s.client.FetchOHLCV(s.symbol,
		ccxt.WithFetchOHLCVTimeframe("1d"),
		ccxt.WithFetchOHLCVLimit(int64(days+1)),
	)
	if err != nil {
		return nil, fmt.Errorf("获取日线行情失败: %w", err)
	}
	if len(candles) < 2 {
		return nil, fmt.Errorf("日线行情数据不足: 仅%d根K线", len(candles))
	}

	points := make([]PricePoint, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev := candles[i-1].Close
		if prev <= 0 {
			continue
		}
		points = append(points, PricePoint{
			Date:   time.UnixMilli(int64(candles[i].Timestamp)).UTC().Format("2006-01-02"),
			Close:  candles[i].Close,
			Return: candles[i].Close/prev - 1,
		})
	}

	s.logger.Info("日线行情已获取",
		zap.String("exchange", s.client.Name()),
		zap.String("symbol", s.symbol),
		zap.Int("days", len(points)))
	return points, nil
}
