// Package exchange 提供交易所行情访问, 供回测拉取真实日线数据
package exchange

import (
	ccxt "github.com/ccxt/ccxt/go/v4"
)

// MarketData 行情数据接口
type MarketData interface {
	// Name 交易所名称
	Name() string

	// FetchOHLCV 拉取K线数据, 时间周期与数量通过options指定
	FetchOHLCV(symbol string, options ...ccxt.FetchOHLCVOptions) ([]ccxt.OHLCV, error)
}
