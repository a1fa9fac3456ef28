package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Quote 只对计算时的区块有效，仅供参考
type Quote struct {
	TokenIn   string
	TokenOut  string
	AmountIn  *big.Int // base units
	AmountOut *big.Int // base units，0 表示无流动性
	FeeTier   uint32

	DecimalsIn  uint8
	DecimalsOut uint8
}

// NoLiquidity 零报价哨兵
func (q *Quote) NoLiquidity() bool {
	return q == nil || q.AmountOut == nil || q.AmountOut.Sign() <= 0
}

func (q *Quote) AmountOutDecimal() decimal.Decimal {
	if q.NoLiquidity() {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(q.AmountOut, -int32(q.DecimalsOut))
}
