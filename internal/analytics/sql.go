package analytics

import (
	"fmt"
	"strconv"
	"strings"
)

// 临时SQL的默认筛选参数
const (
	DefaultWhaleMinValueUSD = 1_000_000
	DefaultWhaleLimit       = 50

	DefaultSwapMinValueUSD = 100_000
	DefaultSwapLimit       = 100

	DefaultLiquidationHours = 1
	DefaultLiquidationLimit = 100
)

func formatUSD(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WhaleTransfersSQL 大额代币转账查询, tokenAddress为空时覆盖全部代币
func WhaleTransfersSQL(chain, tokenAddress string, minValueUSD float64, limit int) string {
	if chain == "" {
		chain = "ethereum"
	}
	if minValueUSD <= 0 {
		minValueUSD = DefaultWhaleMinValueUSD
	}
	if limit <= 0 {
		limit = DefaultWhaleLimit
	}

	var where strings.Builder
	if tokenAddress != "" {
		fmt.Fprintf(&where, "token_address = '%s' AND ", tokenAddress)
	}
	fmt.Fprintf(&where, "value_usd >= %s", formatUSD(minValueUSD))

	return fmt.Sprintf(`SELECT
    block_number,
    transaction_hash,
    from_address,
    to_address,
    token_address,
    value,
    value_usd,
    block_timestamp
FROM %s.token_transfers
WHERE %s
ORDER BY block_timestamp DESC
LIMIT %d`, chain, where.String(), limit)
}

// DexSwapsSQL DEX大额成交查询, protocol为空时覆盖全部协议
func DexSwapsSQL(chain, protocol string, minValueUSD float64, limit int) string {
	if chain == "" {
		chain = "ethereum"
	}
	if minValueUSD <= 0 {
		minValueUSD = DefaultSwapMinValueUSD
	}
	if limit <= 0 {
		limit = DefaultSwapLimit
	}

	var where strings.Builder
	fmt.Fprintf(&where, "amount_usd >= %s", formatUSD(minValueUSD))
	if protocol != "" {
		fmt.Fprintf(&where, " AND LOWER(protocol_name) = '%s'", strings.ToLower(protocol))
	}

	return fmt.Sprintf(`SELECT
    block_number,
    transaction_hash,
    protocol_name,
    token_in_address,
    token_out_address,
    amount_in,
    amount_out,
    amount_usd,
    trader_address,
    block_timestamp
FROM %s.dex_swaps
WHERE %s
ORDER BY block_timestamp DESC
LIMIT %d`, chain, where.String(), limit)
}

// LiquidationsSQL 借贷协议清算记录查询, 按清算金额降序
func LiquidationsSQL(chain, protocol string, hoursAgo, limit int) string {
	if chain == "" {
		chain = "ethereum"
	}
	if hoursAgo <= 0 {
		hoursAgo = DefaultLiquidationHours
	}
	if limit <= 0 {
		limit = DefaultLiquidationLimit
	}

	var where strings.Builder
	fmt.Fprintf(&where, "block_timestamp >= NOW() - INTERVAL '%d hours'", hoursAgo)
	if protocol != "" {
		fmt.Fprintf(&where, " AND LOWER(protocol_name) = '%s'", strings.ToLower(protocol))
	}

	return fmt.Sprintf(`SELECT
    block_number,
    transaction_hash,
    protocol_name,
    borrower,
    liquidator,
    collateral_asset,
    debt_asset,
    collateral_amount,
    debt_amount,
    liquidation_value_usd,
    block_timestamp
FROM %s.lending_liquidations
WHERE %s
ORDER BY liquidation_value_usd DESC
LIMIT %d`, chain, where.String(), limit)
}
