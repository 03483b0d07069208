package exchange

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// New 按名称创建行情客户端, 名称大小写不敏感, 空名称默认Binance
func New(name string, logger *zap.Logger) (MarketData, error) {
	switch strings.ToLower(name) {
	case "", "binance":
		return NewBinanceClient(logger), nil
	case "okx":
		return NewOKXClient(logger), nil
	case "bitget":
		return NewBitgetClient(logger), nil
	default:
		return nil, fmt.Errorf("不支持的行情交易所: %s", name)
	}
}
