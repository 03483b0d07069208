package model

import (
	"time"
)

// TokenTransfer 链上大额代币转账
type TokenTransfer struct {
	BlockNumber     int64   `json:"block_number"`
	TransactionHash string  `json:"transaction_hash"`
	FromAddress     string  `json:"from_address"`
	ToAddress       string  `json:"to_address"`
	TokenAddress    string  `json:"token_address"`
	Value           float64 `json:"value"`
	ValueUSD        float64 `json:"value_usd"`
	BlockTimestamp  string  `json:"block_timestamp"`
}

// DexSwap DEX大额成交
type DexSwap struct {
	BlockNumber     int64   `json:"block_number"`
	TransactionHash string  `json:"transaction_hash"`
	ProtocolName    string  `json:"protocol_name"`
	TokenInAddress  string  `json:"token_in_address"`
	TokenOutAddress string  `json:"token_out_address"`
	AmountIn        float64 `json:"amount_in"`
	AmountOut       float64 `json:"amount_out"`
	AmountUSD       float64 `json:"amount_usd"`
	TraderAddress   string  `json:"trader_address"`
	BlockTimestamp  string  `json:"block_timestamp"`
}

// Liquidation 借贷协议清算事件
type Liquidation struct {
	BlockNumber         int64   `json:"block_number"`
	TransactionHash     string  `json:"transaction_hash"`
	ProtocolName        string  `json:"protocol_name"`
	Borrower            string  `json:"borrower"`
	Liquidator          string  `json:"liquidator"`
	CollateralAsset     string  `json:"collateral_asset"`
	DebtAsset           string  `json:"debt_asset"`
	CollateralAmount    float64 `json:"collateral_amount"`
	DebtAmount          float64 `json:"debt_amount"`
	LiquidationValueUSD float64 `json:"liquidation_value_usd"`
	BlockTimestamp      string  `json:"block_timestamp"`
}

// MarketSnapshot 实时链上活动快照
type MarketSnapshot struct {
	WhaleTransfers []TokenTransfer `json:"whale_transfers"`
	Liquidations   []Liquidation   `json:"liquidations"`
	LargeSwaps     []DexSwap       `json:"large_swaps"`
}

// AssetTransfer Alchemy资产转账记录
type AssetTransfer struct {
	BlockNum string  `json:"blockNum"`
	Hash     string  `json:"hash"`
	From     string  `json:"from"`
	To       string  `json:"to"`
	Value    float64 `json:"value"` // 以资产自身单位计
	Asset    string  `json:"asset"`
	Category string  `json:"category"`
}

// TokenMetadata 代币元数据
type TokenMetadata struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// ExchangeFlow 单个交易所24小时资金流汇总
type ExchangeFlow struct {
	Exchange      string  `json:"exchange"`
	Inflow        float64 `json:"inflow"`  // 流入(ETH)
	Outflow       float64 `json:"outflow"` // 流出(ETH)
	NetFlow       float64 `json:"net_flow"`
	TransferCount int     `json:"transfer_count"`
}

// FlowSignal 交易所储备变动产生的方向信号
type FlowSignal struct {
	Timestamp time.Time `json:"timestamp"`
	Signal    float64   `json:"signal"` // [-1,1], 正值看多
	Reasoning string    `json:"reasoning"`
	NetFlow   float64   `json:"net_flow"` // 全市场净流(ETH)
}
