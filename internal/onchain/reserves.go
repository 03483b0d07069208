package onchain

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/format"
	"github.com/life2you_mini/regime/internal/model"
)

// ChainReader 储备追踪所需的链上读取能力
type ChainReader interface {
	BlockNumber(ctx context.Context) (int64, error)
	GetBalance(ctx context.Context, address string) (float64, error)
	GetTokenBalance(ctx context.Context, tokenAddress, walletAddress string) (float64, error)
	GetAssetTransfers(ctx context.Context, filter TransferFilter) ([]model.AssetTransfer, error)
}

// ExchangeWallets 已知的交易所热钱包, 键为"交易所_编号"
func ExchangeWallets() map[string]string {
	return map[string]string{
		// Binance
		"Binance_1":   "0x3f5ce5fbfe3e9af3971dd833d26ba9b5c936f0be",
		"Binance_2":   "0xd551234ae421e3bcba99a0da6d736074f22192ff",
		"Binance_3":   "0x564286362092d8e7936f0549571a803b203aaced",
		"Binance_4":   "0x0681d8db095565fe8a346fa0277bffde9c0edbbf",
		"Binance_5":   "0xfe9e8709d3215310075d67e3ed32a380ccf451c8",
		"Binance_Hot": "0x28C6c06298d514Db089934071355E5743bf21d60",

		// Bitfinex
		"Bitfinex_3": "0x4fdd5eb2fb260149a3903859043e962ab89d8ed4",
		"Bitfinex_4": "0x876eabf441b2ee5b5b0554fd502a8e0600950cfa",
		"Bitfinex_5": "0x742d35cc6634c0532925a3b844bc454e4438f44e",

		// Kraken
		"Kraken_1": "0x2910543af39aba0cd09dbb2d50200b3e800a63d2",
		"Kraken_2": "0x0a869d79a7052c7f1b55a8ebabbea3420f0d1e13",
		"Kraken_3": "0xe853c56864a2ebe4576a807d26fdc4a0ada51919",
		"Kraken_4": "0x267be1c1d684f78cb4f6a176c4911b741e4ffdc0",

		// Huobi
		"Huobi_6": "0xdc76cd25977e0a5ae17155770273ad58648900d3",

		// Bittrex
		"Bittrex_1": "0xfbb1b73c4f0bda4f67dca266ce6ef42f520fbb98",

		// OKEx
		"OKEx_1": "0x6cc5f688a315f3dc28a7781717a9a798a59fda7b",

		// Gemini
		"Gemini_1": "0xd24400ae8bfebb18ca49be86258a3c749cf46853",

		// Gate.io
		"Gate_1": "0x0d0707963952f2fba59dd06f2b425ace40b492fe",
		"Gate_3": "0x1c4b70a3968436b9a0a9cf5205c787eb81bb558c",

		// Poloniex
		"Poloniex_1": "0x32be343b94f860124dc4fee278fdcbd38c102d88",

		// Coinbase
		"Coinbase_1": "0x71660c4005ba85c37ccec55d0c4493e66fe775d3",
		"Coinbase_2": "0x503828976D22510aad0201ac7EC88293211D23Da",
		"Coinbase_3": "0xddfAbCdc4D8FfC6d5beaf154f18B778f892A0740",
	}
}

const (
	defaultFlowThresholdETH = 50000
	defaultBlockWindow      = 7200 // 约12秒一块, 对应24小时
)

// WalletBalance 单个钱包余额
type WalletBalance struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	ETH     float64 `json:"eth"`
	WBTC    float64 `json:"wbtc"`
}

// ExchangeReserves 单个交易所的储备汇总
type ExchangeReserves struct {
	ETH     float64         `json:"eth"`
	WBTC    float64         `json:"wbtc"`
	Wallets []WalletBalance `json:"wallets"`
}

// ReservesSnapshot 全部交易所储备快照
type ReservesSnapshot struct {
	Timestamp   time.Time                    `json:"timestamp"`
	PerExchange map[string]*ExchangeReserves `json:"per_exchange"`
	TotalETH    float64                      `json:"total_eth"`
	TotalWBTC   float64                      `json:"total_wbtc"`
}

// ReservesSummary 储备与资金流的完整汇总
type ReservesSummary struct {
	Timestamp time.Time                      `json:"timestamp"`
	Reserves  *ReservesSnapshot              `json:"reserves"`
	Flows     map[string]*model.ExchangeFlow `json:"flows_24h"`
	Signal    *model.FlowSignal              `json:"signal"`
}

// ReservesTracker 追踪交易所储备变动并生成方向信号
//
// 资金净流出交易所视为看多, 净流入视为看空。
type ReservesTracker struct {
	reader           ChainReader
	logger           *zap.Logger
	wallets          map[string]string
	blockWindow      int64
	flowThresholdETH float64

	mu     sync.Mutex
	cached *ReservesSnapshot
}

// NewReservesTracker 创建储备追踪器
func NewReservesTracker(reader ChainReader, cfg config.ReservesConfig, logger *zap.Logger) *ReservesTracker {
	threshold := cfg.FlowThresholdETH
	if threshold <= 0 {
		threshold = defaultFlowThresholdETH
	}
	window := cfg.BlockWindow
	if window <= 0 {
		window = defaultBlockWindow
	}

	return &ReservesTracker{
		reader:           reader,
		logger:           logger,
		wallets:          ExchangeWallets(),
		blockWindow:      int64(window),
		flowThresholdETH: threshold,
	}
}

// exchangeOf 从钱包名提取交易所名, 如Binance_1 -> Binance
func exchangeOf(walletName string) string {
	exchange, _, _ := strings.Cut(walletName, "_")
	return exchange
}

func sortedWalletNames(wallets map[string]string) []string {
	names := make([]string, 0, len(wallets))
	for name := range wallets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetTotalReserves 查询全部交易所钱包的ETH与WBTC储备
func (t *ReservesTracker) GetTotalReserves(ctx context.Context) (*ReservesSnapshot, error) {
	snapshot := &ReservesSnapshot{
		Timestamp:   time.Now().UTC(),
		PerExchange: make(map[string]*ExchangeReserves),
	}

	t.logger.Info("开始查询交易所储备", zap.Int("wallets", len(t.wallets)))

	for _, name := range sortedWalletNames(t.wallets) {
		address := t.wallets[name]
		exchange := exchangeOf(name)

		eth, err := t.reader.GetBalance(ctx, address)
		if err != nil {
			t.logger.Warn("查询钱包ETH余额失败", zap.String("wallet", name), zap.Error(err))
			continue
		}
		wbtc, err := t.reader.GetTokenBalance(ctx, WBTCContract, address)
		if err != nil {
			t.logger.Warn("查询钱包WBTC余额失败", zap.String("wallet", name), zap.Error(err))
			continue
		}

		reserves, ok := snapshot.PerExchange[exchange]
		if !ok {
			reserves = &ExchangeReserves{}
			snapshot.PerExchange[exchange] = reserves
		}
		reserves.ETH += eth
		reserves.WBTC += wbtc
		reserves.Wallets = append(reserves.Wallets, WalletBalance{
			Name:    name,
			Address: address,
			ETH:     eth,
			WBTC:    wbtc,
		})

		snapshot.TotalETH += eth
		snapshot.TotalWBTC += wbtc
	}

	t.mu.Lock()
	t.cached = snapshot
	t.mu.Unlock()

	t.logger.Info("交易所储备查询完成",
		zap.Float64("total_eth", snapshot.TotalETH),
		zap.Float64("total_wbtc", snapshot.TotalWBTC))

	return snapshot, nil
}

// CachedReserves 最近一次储备快照, 未查询过时为nil
func (t *ReservesTracker) CachedReserves() *ReservesSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cached
}

// GetNetFlows 统计24小时内各交易所的ETH净流, walletAddress非空时只看单个钱包
func (t *ReservesTracker) GetNetFlows(ctx context.Context, walletAddress string) (map[string]*model.ExchangeFlow, error) {
	wallets := t.wallets
	if walletAddress != "" {
		wallets = make(map[string]string)
		for name, address := range t.wallets {
			if strings.EqualFold(address, walletAddress) {
				wallets[name] = address
			}
		}
	}

	head, err := t.reader.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询最新区块号失败: %w", err)
	}
	fromBlock := fmt.Sprintf("0x%x", head-t.blockWindow)

	t.logger.Info("开始统计24小时资金流",
		zap.Int64("from_block", head-t.blockWindow),
		zap.Int64("to_block", head))

	flows := make(map[string]*model.ExchangeFlow)
	for _, name := range sortedWalletNames(wallets) {
		address := wallets[name]
		exchange := exchangeOf(name)

		incoming, err := t.reader.GetAssetTransfers(ctx, TransferFilter{
			ToAddress: address,
			FromBlock: fromBlock,
			MaxCount:  100,
		})
		if err != nil {
			t.logger.Warn("查询流入转账失败", zap.String("wallet", name), zap.Error(err))
			continue
		}
		outgoing, err := t.reader.GetAssetTransfers(ctx, TransferFilter{
			FromAddress: address,
			FromBlock:   fromBlock,
			MaxCount:    100,
		})
		if err != nil {
			t.logger.Warn("查询流出转账失败", zap.String("wallet", name), zap.Error(err))
			continue
		}

		var inflow, outflow float64
		for _, transfer := range incoming {
			if transfer.Asset == "ETH" {
				inflow += transfer.Value
			}
		}
		for _, transfer := range outgoing {
			if transfer.Asset == "ETH" {
				outflow += transfer.Value
			}
		}

		flow, ok := flows[exchange]
		if !ok {
			flow = &model.ExchangeFlow{Exchange: exchange}
			flows[exchange] = flow
		}
		flow.Inflow += inflow
		flow.Outflow += outflow
		flow.NetFlow = flow.Inflow - flow.Outflow
		flow.TransferCount += len(incoming) + len(outgoing)
	}

	return flows, nil
}

// signalFromFlows 把聚合资金流折算为[-1,1]的方向信号
func (t *ReservesTracker) signalFromFlows(flows map[string]*model.ExchangeFlow) *model.FlowSignal {
	if len(flows) == 0 {
		return &model.FlowSignal{
			Timestamp: time.Now().UTC(),
			Signal:    0,
			Reasoning: "No flow data available",
		}
	}

	var totalInflow, totalOutflow float64
	for _, flow := range flows {
		totalInflow += flow.Inflow
		totalOutflow += flow.Outflow
	}
	// 正值代表资金进入交易所
	netFlow := totalInflow - totalOutflow

	var signal float64
	var direction string
	if netFlow > 0 {
		signal = -math.Min(netFlow/t.flowThresholdETH, 1.0)
		direction = "BEARISH"
	} else {
		signal = math.Min(math.Abs(netFlow)/t.flowThresholdETH, 1.0)
		direction = "BULLISH"
	}

	reasoning := fmt.Sprintf("24h Net Flow: %s ETH (In: %s, Out: %s) -> %s",
		format.SignedComma(netFlow), format.Comma(totalInflow), format.Comma(totalOutflow), direction)

	return &model.FlowSignal{
		Timestamp: time.Now().UTC(),
		Signal:    signal,
		Reasoning: reasoning,
		NetFlow:   netFlow,
	}
}

// GenerateSignal 基于24小时资金流生成方向信号
func (t *ReservesTracker) GenerateSignal(ctx context.Context) (*model.FlowSignal, error) {
	flows, err := t.GetNetFlows(ctx, "")
	if err != nil {
		return nil, err
	}

	signal := t.signalFromFlows(flows)
	t.logger.Info("交易所资金流信号",
		zap.Float64("signal", signal.Signal),
		zap.String("reasoning", signal.Reasoning))

	return signal, nil
}

// Summary 储备/资金流/信号的完整汇总
func (t *ReservesTracker) Summary(ctx context.Context) (*ReservesSummary, error) {
	reserves, err := t.GetTotalReserves(ctx)
	if err != nil {
		return nil, err
	}
	flows, err := t.GetNetFlows(ctx, "")
	if err != nil {
		return nil, err
	}

	return &ReservesSummary{
		Timestamp: time.Now().UTC(),
		Reserves:  reserves,
		Flows:     flows,
		Signal:    t.signalFromFlows(flows),
	}, nil
}
