package model

import (
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	// DirectionBuy native -> token
	DirectionBuy Direction = "buy"
	// DirectionSell token -> native
	DirectionSell Direction = "sell"
)

// SwapState 执行状态，单向推进
type SwapState string

const (
	StateQuote          SwapState = "QUOTE"
	StateAllowanceCheck SwapState = "ALLOWANCE_CHECK"
	StateApprove        SwapState = "APPROVE"
	StateBuildTx        SwapState = "BUILD_TX"
	StateSign           SwapState = "SIGN"
	StateSubmit         SwapState = "SUBMIT"
	StateAwaitReceipt   SwapState = "AWAIT_RECEIPT"
	StateSuccess        SwapState = "SUCCESS"
	StateFailed         SwapState = "FAILED"
)

// SwapRequest 由调用方持有，私钥只透传不落盘
type SwapRequest struct {
	Direction      Direction
	Wallet         string
	SigningKey     *ecdsa.PrivateKey
	TokenAddress   string
	Amount         decimal.Decimal // 输入数量，人类可读单位
	SlippageBps    uint32
	DeadlineOffset time.Duration // 0 使用默认值
	FeeTier        uint32        // 0 使用默认值
}

type SwapResult struct {
	Success           bool
	State             SwapState
	TxHash            string
	ApproveTxHash     string
	AmountInActual    *big.Int
	AmountOutExpected *big.Int
	AmountOutMin      *big.Int
	GasUsed           uint64
	BlockNumber       uint64
	Error             string
}
