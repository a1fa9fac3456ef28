package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// ErrCallReverted 合约调用被 revert，与 RPC 不可用区分
var ErrCallReverted = errors.New("execution reverted")

const (
	ReceiptStatusFailed     = types.ReceiptStatusFailed
	ReceiptStatusSuccessful = types.ReceiptStatusSuccessful
)

// Client 单个 RPC 节点的读写适配，实现必须支持并发调用
type Client interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	FilterLogs(ctx context.Context, q LogQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
	WaitForReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*Receipt, error)
}

// LogQuery 闭区间 [FromBlock, ToBlock]
type LogQuery struct {
	FromBlock uint64
	ToBlock   uint64
	Address   common.Address
	Topic     common.Hash
}

type Receipt struct {
	TxHash      common.Hash
	Status      uint64
	GasUsed     uint64
	BlockNumber uint64
}

func (r *Receipt) Succeeded() bool {
	return r != nil && r.Status == ReceiptStatusSuccessful
}

// IsReverted 判断错误是否为合约 revert
func IsReverted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCallReverted) {
		return true
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "revert")
}
