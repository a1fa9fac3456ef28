// Package chaintest 提供可脚本化的 chain.Client 假实现，仅用于测试
package chaintest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"baseflow/internal/worker/chain"
	"baseflow/pkg/xerror"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// CallHandler 处理一次 eth_call，args 为解包后的入参
type CallHandler func(args []any) ([]any, error)

type callKey struct {
	to       common.Address
	selector [4]byte
}

type handler struct {
	method abi.Method
	fn     CallHandler
}

// ReceiptPolicy 决定已发送交易的回执，返回 nil 表示未上链
type ReceiptPolicy func(tx *types.Transaction) *chain.Receipt

type Fake struct {
	mu sync.Mutex

	handlers map[callKey]handler
	calls    []callKey

	head     uint64
	headErr  error
	logs     []types.Log
	logErrs  []error
	queries  []chain.LogQuery
	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	gasPrice *big.Int
	chainID  *big.Int

	sent       []*types.Transaction
	sendErr    error
	receipts   ReceiptPolicy
	receiptErr error

	// OnSend 在交易被接收后回调，可用于模拟链上状态变化
	OnSend func(tx *types.Transaction)
}

func New(chainID int64) *Fake {
	return &Fake{
		handlers: make(map[callKey]handler),
		balances: make(map[common.Address]*big.Int),
		nonces:   make(map[common.Address]uint64),
		gasPrice: big.NewInt(1_000_000_000),
		chainID:  big.NewInt(chainID),
		receipts: func(tx *types.Transaction) *chain.Receipt {
			return &chain.Receipt{TxHash: tx.Hash(), Status: chain.ReceiptStatusSuccessful, GasUsed: 21000}
		},
	}
}

// Handle 为合约方法注册处理函数，返回值按方法 outputs 打包
func (f *Fake) Handle(to common.Address, contract abi.ABI, method string, fn CallHandler) {
	m, ok := contract.Methods[method]
	if !ok {
		panic(fmt.Sprintf("chaintest: unknown method %s", method))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[keyFor(to, m.ID)] = handler{method: m, fn: fn}
}

// Returns 注册固定返回值
func (f *Fake) Returns(to common.Address, contract abi.ABI, method string, outputs ...any) {
	f.Handle(to, contract, method, func([]any) ([]any, error) { return outputs, nil })
}

// Reverts 注册总是 revert 的方法
func (f *Fake) Reverts(to common.Address, contract abi.ABI, method string) {
	f.Handle(to, contract, method, func([]any) ([]any, error) { return nil, chain.ErrCallReverted })
}

func (f *Fake) Call(_ context.Context, to common.Address, data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, chain.ErrCallReverted
	}
	key := keyFor(to, data[:4])

	f.mu.Lock()
	h, ok := f.handlers[key]
	f.calls = append(f.calls, key)
	f.mu.Unlock()

	// 未注册的方法视为合约不存在该函数
	if !ok {
		return nil, fmt.Errorf("%w: no handler", chain.ErrCallReverted)
	}
	args, err := h.method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	outs, err := h.fn(args)
	if err != nil {
		return nil, err
	}
	return h.method.Outputs.Pack(outs...)
}

// CallCount 统计某方法被调用次数
func (f *Fake) CallCount(to common.Address, contract abi.ABI, method string) int {
	id := contract.Methods[method].ID
	key := keyFor(to, id)
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == key {
			n++
		}
	}
	return n
}

func (f *Fake) SetHead(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = n
}

func (f *Fake) FailHead(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headErr = err
}

func (f *Fake) BlockNumber(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return 0, f.headErr
	}
	return f.head, nil
}

func (f *Fake) AddLog(l types.Log) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, l)
}

// FailNextLogs 下一次日志查询返回 err
func (f *Fake) FailNextLogs(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logErrs = append(f.logErrs, err)
}

func (f *Fake) LogQueries() []chain.LogQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chain.LogQuery(nil), f.queries...)
}

func (f *Fake) FilterLogs(_ context.Context, q chain.LogQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if len(f.logErrs) > 0 {
		err := f.logErrs[0]
		f.logErrs = f.logErrs[1:]
		return nil, err
	}
	var out []types.Log
	for _, l := range f.logs {
		if l.BlockNumber < q.FromBlock || l.BlockNumber > q.ToBlock {
			continue
		}
		if l.Address != q.Address || len(l.Topics) == 0 || l.Topics[0] != q.Topic {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (f *Fake) SetBalance(account common.Address, wei *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[account] = new(big.Int).Set(wei)
}

func (f *Fake) BalanceAt(_ context.Context, account common.Address) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.balances[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (f *Fake) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[account], nil
}

func (f *Fake) SuggestGasPrice(context.Context) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.gasPrice), nil
}

func (f *Fake) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.chainID), nil
}

// FailSend 之后的发送都返回 err
func (f *Fake) FailSend(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *Fake) SendRawTransaction(_ context.Context, raw []byte) (common.Hash, error) {
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, xerror.Wrap(xerror.SubmissionRejected, err, "decode raw tx")
	}

	f.mu.Lock()
	if f.sendErr != nil {
		err := f.sendErr
		f.mu.Unlock()
		return common.Hash{}, err
	}
	signer := types.LatestSignerForChainID(f.chainID)
	from, err := types.Sender(signer, tx)
	if err != nil {
		f.mu.Unlock()
		return common.Hash{}, xerror.Wrap(xerror.SubmissionRejected, err, "recover sender")
	}
	if tx.Nonce() != f.nonces[from] {
		f.mu.Unlock()
		return common.Hash{}, xerror.Newf(xerror.SubmissionRejected, "nonce too low: have %d want %d", tx.Nonce(), f.nonces[from])
	}
	f.nonces[from]++
	f.sent = append(f.sent, tx)
	onSend := f.OnSend
	f.mu.Unlock()

	if onSend != nil {
		onSend(tx)
	}
	return tx.Hash(), nil
}

// Sent 按发送顺序返回已接收的交易
func (f *Fake) Sent() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

func (f *Fake) SetReceiptPolicy(p ReceiptPolicy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receipts = p
}

func (f *Fake) FailReceipts(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptErr = err
}

func (f *Fake) WaitForReceipt(_ context.Context, hash common.Hash, timeout time.Duration) (*chain.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	for _, tx := range f.sent {
		if tx.Hash() != hash {
			continue
		}
		if r := f.receipts(tx); r != nil {
			return r, nil
		}
		break
	}
	return nil, xerror.New(xerror.ConfirmationTimeout, fmt.Sprintf("tx %s not mined within %s", hash.Hex(), timeout))
}

// Selector 返回交易 calldata 对应的方法名
func Selector(contract abi.ABI, tx *types.Transaction) (string, error) {
	if len(tx.Data()) < 4 {
		return "", errors.New("no calldata")
	}
	m, err := contract.MethodById(tx.Data()[:4])
	if err != nil {
		return "", err
	}
	return m.Name, nil
}

func keyFor(to common.Address, id []byte) callKey {
	var k callKey
	k.to = to
	copy(k.selector[:], id)
	return k
}

var _ chain.Client = (*Fake)(nil)
