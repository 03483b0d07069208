package exchange

import (
	"fmt"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"
)

// BinanceClient 币安行情客户端
// 仅访问公开行情接口, 无需API密钥
type BinanceClient struct {
	exchange ccxt.Binance
	logger   *zap.Logger
}

// NewBinanceClient 创建币安行情客户端
func NewBinanceClient(logger *zap.Logger) *BinanceClient {
	instance := ccxt.NewBinance(map[string]interface{}{
		"enableRateLimit": true,
	})
	return &BinanceClient{
		exchange: instance,
		logger:   logger,
	}
}

// Name 交易所名称
func (b *BinanceClient) Name() string {
	return "Binance"
}

// FetchOHLCV 拉取K线数据
func (b *BinanceClient) FetchOHLCV(symbol string, options ...ccxt.FetchOHLCVOptions) ([]ccxt.OHLCV, error) {
	candles, err := b.exchange.FetchOHLCV(symbol, options...)
	if err != nil {
		b.logger.Error("获取币安K线失败",
			zap.String("symbol", symbol),
			zap.Error(err))
		return nil, fmt.Errorf("获取币安K线失败: %w", err)
	}
	return candles, nil
}
