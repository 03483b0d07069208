// Package onchain 基于Alchemy节点API的链上实时监控
package onchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/life2you_mini/regime/internal/config"
	"github.com/life2you_mini/regime/internal/model"
)

const defaultNetwork = "eth-mainnet"

// WBTCContract WBTC合约地址, 用于追踪交易所BTC储备
const WBTCContract = "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"

// ERC20函数选择器
const (
	selectorBalanceOf = "0x70a08231"
	selectorDecimals  = "0x313ce567"
)

// AlchemyClient Alchemy JSON-RPC客户端
type AlchemyClient struct {
	httpURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAlchemyClient 创建Alchemy客户端
func NewAlchemyClient(cfg config.AlchemyConfig, logger *zap.Logger) *AlchemyClient {
	network := cfg.Network
	if network == "" {
		network = defaultNetwork
	}

	client := &AlchemyClient{
		httpURL:    fmt.Sprintf("https://%s.g.alchemy.com/v2/%s", network, cfg.APIKey),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	logger.Info("Alchemy客户端已创建", zap.String("network", network))
	return client
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("节点RPC错误: %d, %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *AlchemyClient) call(ctx context.Context, method string, params []any, out any) error {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("序列化RPC请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.httpURL, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("创建RPC请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("RPC请求%s失败: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("RPC请求%s状态码异常: %d, %s", method, resp.StatusCode, string(body))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("解析RPC响应失败: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}

	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("解析%s结果失败: %w", method, err)
		}
	}
	return nil
}

func parseHexUint(s string) (*big.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return big.NewInt(0), nil
	}
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("无效的十六进制数: %s", s)
	}
	return n, nil
}

// BlockNumber 当前链上最新区块号
func (c *AlchemyClient) BlockNumber(ctx context.Context) (int64, error) {
	var hex string
	if err := c.call(ctx, "eth_blockNumber", []any{}, &hex); err != nil {
		return 0, err
	}
	n, err := parseHexUint(hex)
	if err != nil {
		return 0, err
	}
	return n.Int64(), nil
}

// GetBalance 查询地址的ETH余额
func (c *AlchemyClient) GetBalance(ctx context.Context, address string) (float64, error) {
	var hex string
	if err := c.call(ctx, "eth_getBalance", []any{address, "latest"}, &hex); err != nil {
		return 0, err
	}
	wei, err := parseHexUint(hex)
	if err != nil {
		return 0, err
	}
	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e18)).Float64()
	return eth, nil
}

// GetTokenBalance 查询钱包的ERC20余额, 按代币精度折算
func (c *AlchemyClient) GetTokenBalance(ctx context.Context, tokenAddress, walletAddress string) (float64, error) {
	wallet := strings.TrimPrefix(strings.ToLower(walletAddress), "0x")
	if pad := 64 - len(wallet); pad > 0 {
		wallet = strings.Repeat("0", pad) + wallet
	}
	balanceData := selectorBalanceOf + wallet

	var balanceHex string
	err := c.call(ctx, "eth_call", []any{
		map[string]any{"to": tokenAddress, "data": balanceData},
		"latest",
	}, &balanceHex)
	if err != nil {
		return 0, err
	}
	balance, err := parseHexUint(balanceHex)
	if err != nil {
		return 0, err
	}

	var decimalsHex string
	err = c.call(ctx, "eth_call", []any{
		map[string]any{"to": tokenAddress, "data": selectorDecimals},
		"latest",
	}, &decimalsHex)
	if err != nil {
		return 0, err
	}
	decimals, err := parseHexUint(decimalsHex)
	if err != nil {
		return 0, err
	}

	scale := new(big.Float).SetFloat64(math.Pow10(int(decimals.Int64())))
	value, _ := new(big.Float).Quo(new(big.Float).SetInt(balance), scale).Float64()
	return value, nil
}

// TransferFilter 资产转账查询条件
type TransferFilter struct {
	FromAddress string
	ToAddress   string
	FromBlock   string // 十六进制区块号或latest
	ToBlock     string
	MaxCount    int
}

type assetTransfersResult struct {
	Transfers []model.AssetTransfer `json:"transfers"`
}

// GetAssetTransfers 查询资产转账记录
func (c *AlchemyClient) GetAssetTransfers(ctx context.Context, filter TransferFilter) ([]model.AssetTransfer, error) {
	fromBlock := filter.FromBlock
	if fromBlock == "" {
		fromBlock = "latest"
	}
	toBlock := filter.ToBlock
	if toBlock == "" {
		toBlock = "latest"
	}
	maxCount := filter.MaxCount
	if maxCount <= 0 {
		maxCount = 100
	}

	params := map[string]any{
		"fromBlock":        fromBlock,
		"toBlock":          toBlock,
		"maxCount":         fmt.Sprintf("0x%x", maxCount),
		"excludeZeroValue": true,
		"category":         []string{"external", "erc20", "erc721"},
	}
	if filter.FromAddress != "" {
		params["fromAddress"] = filter.FromAddress
	}
	if filter.ToAddress != "" {
		params["toAddress"] = filter.ToAddress
	}

	var result assetTransfersResult
	if err := c.call(ctx, "alchemy_getAssetTransfers", []any{params}, &result); err != nil {
		return nil, err
	}
	return result.Transfers, nil
}

// GetTokenMetadata 查询代币元数据
func (c *AlchemyClient) GetTokenMetadata(ctx context.Context, contractAddress string) (*model.TokenMetadata, error) {
	var metadata model.TokenMetadata
	if err := c.call(ctx, "alchemy_getTokenMetadata", []any{contractAddress}, &metadata); err != nil {
		return nil, err
	}
	return &metadata, nil
}

// GetPendingTransactions 查询内存池中待确认交易
func (c *AlchemyClient) GetPendingTransactions(ctx context.Context, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 10
	}

	var pending []map[string]any
	if err := c.call(ctx, "alchemy_pendingTransactions", []any{}, &pending); err != nil {
		return nil, err
	}
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// WhaleWallets 重点监控的巨鲸钱包
func WhaleWallets() map[string]string {
	return map[string]string{
		"Jump Trading":       "0xF977814e90dA44bFA03b6295A0616a897441aceC",
		"Binance Hot Wallet": "0x28C6c06298d514Db089934071355E5743bf21d60",
		"Bitfinex Wallet":    "0x742d35Cc6634C0532925a3b844Bc454e4438f44e",
		"Wrapped BTC":        "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599",
		"Aave: Lending Pool": "0x7d2768dE32b0b80b7a3454c06BdAc94A69DDc7A9",
	}
}

// WhaleMovement 巨鲸钱包大额转出事件
type WhaleMovement struct {
	WhaleName    string
	WhaleAddress string
	Transfer     model.AssetTransfer
}

// whaleLookbackBlocks 巨鲸活动回看区块数
const whaleLookbackBlocks = 100

// MonitorWhaleActivity 扫描巨鲸钱包近期大额转出, 逐笔回调
func (c *AlchemyClient) MonitorWhaleActivity(ctx context.Context, minValueETH float64, callback func(WhaleMovement)) error {
	whales := WhaleWallets()
	c.logger.Info("开始扫描巨鲸钱包", zap.Int("wallets", len(whales)))

	head, err := c.BlockNumber(ctx)
	if err != nil {
		return err
	}
	fromBlock := fmt.Sprintf("0x%x", head-whaleLookbackBlocks)

	names := make([]string, 0, len(whales))
	for name := range whales {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		address := whales[name]
		transfers, err := c.GetAssetTransfers(ctx, TransferFilter{
			FromAddress: address,
			FromBlock:   fromBlock,
			MaxCount:    10,
		})
		if err != nil {
			c.logger.Warn("查询巨鲸转账失败", zap.String("whale", name), zap.Error(err))
			continue
		}

		for _, transfer := range transfers {
			if transfer.Value < minValueETH {
				continue
			}
			c.logger.Warn(fmt.Sprintf("🐋 %s transferred %.2f ETH to %s...",
				name, transfer.Value, truncateAddress(transfer.To)))

			if callback != nil {
				callback(WhaleMovement{
					WhaleName:    name,
					WhaleAddress: address,
					Transfer:     transfer,
				})
			}
		}
	}
	return nil
}

func truncateAddress(address string) string {
	if address == "" {
		return "unknown"
	}
	if len(address) <= 10 {
		return address
	}
	return address[:10]
}
