package exchange

import (
	"fmt"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"
)

// OKXClient OKX行情客户端
type OKXClient struct {
	exchange ccxt.Okx
	logger   *zap.Logger
}

// NewOKXClient 创建OKX行情客户端
func NewOKXClient(logger *zap.Logger) *OKXClient {
	instance := ccxt.NewOkx(map[string]interface{}{
		"enableRateLimit": true,
	})
	return &OKXClient{
		exchange: instance,
		logger:   logger,
	}
}

// Name 交易所名称
func (o *OKXClient) Name() string {
	return "OKX"
}

// FetchOHLCV 拉取K线数据
func (o *OKXClient) FetchOHLCV(symbol string, options ...ccxt.FetchOHLCVOptions) ([]ccxt.OHLCV, error) {
	candles, err := o.exchange.FetchOHLCV(symbol, options...)
	if err != nil {
		o.logger.Error("获取OKX K线失败",
			zap.String("symbol", symbol),
			zap.Error(err))
		return nil, fmt.Errorf("获取OKX K线失败: %w", err)
	}
	return candles, nil
}
