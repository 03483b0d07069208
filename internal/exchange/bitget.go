package exchange

import (
	"fmt"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"
)

// BitgetClient Bitget行情客户端
type BitgetClient struct {
	exchange ccxt.Bitget
	logger   *zap.Logger
}

// NewBitgetClient 创建Bitget行情客户端
func NewBitgetClient(logger *zap.Logger) *BitgetClient {
	instance := ccxt.NewBitget(map[string]interface{}{
		"enableRateLimit": true,
	})
	return &BitgetClient{
		exchange: instance,
		logger:   logger,
	}
}

// Name 交易所名称
func (b *BitgetClient) Name() string {
	return "Bitget"
}

// FetchOHLCV 拉取K线数据
func (b *BitgetClient) FetchOHLCV(symbol string, options ...ccxt.FetchOHLCVOptions) ([]ccxt.OHLCV, error) {
	candles, err := b.exchange.FetchOHLCV(symbol, options...)
	if err != nil {
		b.logger.Error("获取Bitget K线失败",
			zap.String("symbol", symbol),
			zap.Error(err))
		return nil, fmt.Errorf("获取Bitget K线失败: %w", err)
	}
	return candles, nil
}
