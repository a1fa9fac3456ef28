package utils

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// NativeDecimals 原生币固定精度
const NativeDecimals uint8 = 18

var ErrNegativeAmount = errors.New("amount must not be negative")

// ChecksumAddress 将 EVM 地址转换为 EIP-55 Checksum 格式
func ChecksumAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	addr = strings.TrimPrefix(strings.ToLower(addr), "0x")
	return common.HexToAddress("0x" + addr).Hex()
}

// IsHexAddress 校验 EVM 地址格式
func IsHexAddress(addr string) bool {
	return common.IsHexAddress(strings.TrimSpace(addr))
}

// AdjustDecimals 链上整数转换为带精度数值，不丢精度
func AdjustDecimals(value *big.Int, decimals uint8) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -int32(decimals))
}

// FormatUnits 格式化单位转换
func FormatUnits(amount *big.Int, decimals uint8) string {
	return AdjustDecimals(amount, decimals).StringFixed(int32(decimals))
}

// ParseUnits 带精度数值转换为链上整数，超出精度的部分向零截断
func ParseUnits(amount decimal.Decimal, decimals uint8) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	return amount.Shift(int32(decimals)).Floor().BigInt(), nil
}

// ParseUnitsString 解析字符串金额
func ParseUnitsString(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return nil, err
	}
	return ParseUnits(d, decimals)
}

// ApplySlippage 按 bps 计算最小输出，向零截断
func ApplySlippage(amountOut *big.Int, slippageBps uint32) *big.Int {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return new(big.Int)
	}
	if slippageBps >= 10000 {
		return new(big.Int)
	}
	minOut := new(big.Int).Mul(amountOut, big.NewInt(int64(10000-slippageBps)))
	return minOut.Quo(minOut, big.NewInt(10000))
}
