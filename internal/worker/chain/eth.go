package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"baseflow/pkg/xerror"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultReceiptPollInterval = 2 * time.Second

// EthClient 基于 ethclient 的 Client 实现，不持有按调用变化的状态
type EthClient struct {
	client       *ethclient.Client
	limiter      *rate.Limiter
	pollInterval time.Duration
	tl           *zap.Logger
}

type EthClientOption func(*EthClient)

// WithRateLimit 每秒请求上限，<=0 不限速
func WithRateLimit(rps int) EthClientOption {
	return func(c *EthClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

func WithReceiptPollInterval(d time.Duration) EthClientOption {
	return func(c *EthClient) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func NewEthClient(client *ethclient.Client, tl *zap.Logger, opts ...EthClientOption) *EthClient {
	c := &EthClient{
		client:       client,
		pollInterval: defaultReceiptPollInterval,
		tl:           tl,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *EthClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return xerror.Wrap(xerror.RpcUnavailable, err, "rate limiter")
	}
	return nil
}

func (c *EthClient) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	out, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		if IsReverted(err) {
			return nil, fmt.Errorf("%w: %s", ErrCallReverted, err.Error())
		}
		return nil, xerror.Wrap(xerror.RpcUnavailable, err, "eth_call "+to.Hex())
	}
	return out, nil
}

func (c *EthClient) FilterLogs(ctx context.Context, q LogQuery) ([]types.Log, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	logs, err := c.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(q.FromBlock),
		ToBlock:   new(big.Int).SetUint64(q.ToBlock),
		Addresses: []common.Address{q.Address},
		Topics:    [][]common.Hash{{q.Topic}},
	})
	if err != nil {
		return nil, xerror.Wrap(xerror.RpcUnavailable, err, fmt.Sprintf("eth_getLogs [%d,%d]", q.FromBlock, q.ToBlock))
	}
	return logs, nil
}

func (c *EthClient) BlockNumber(ctx context.Context) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	n, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, xerror.Wrap(xerror.RpcUnavailable, err, "eth_blockNumber")
	}
	return n, nil
}

func (c *EthClient) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	bal, err := c.client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, xerror.Wrap(xerror.RpcUnavailable, err, "eth_getBalance")
	}
	return bal, nil
}

func (c *EthClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	nonce, err := c.client.PendingNonceAt(ctx, account)
	if err != nil {
		return 0, xerror.Wrap(xerror.RpcUnavailable, err, "eth_getTransactionCount")
	}
	return nonce, nil
}

func (c *EthClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	price, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, xerror.Wrap(xerror.RpcUnavailable, err, "eth_gasPrice")
	}
	return price, nil
}

func (c *EthClient) ChainID(ctx context.Context) (*big.Int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	id, err := c.client.ChainID(ctx)
	if err != nil {
		return nil, xerror.Wrap(xerror.RpcUnavailable, err, "eth_chainId")
	}
	return id, nil
}

func (c *EthClient) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	if err := c.wait(ctx); err != nil {
		return common.Hash{}, err
	}
	var hash common.Hash
	if err := c.client.Client().CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "insufficient funds") {
			return common.Hash{}, xerror.Wrap(xerror.InsufficientBalance, err, "eth_sendRawTransaction")
		}
		return common.Hash{}, xerror.Wrap(xerror.SubmissionRejected, err, "eth_sendRawTransaction")
	}
	return hash, nil
}

// WaitForReceipt 轮询回执直到上链或超时，超时返回 ConfirmationTimeout（交易仍可能稍后上链）
func (c *EthClient) WaitForReceipt(ctx context.Context, hash common.Hash, timeout time.Duration) (*Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		receipt, err := c.client.TransactionReceipt(waitCtx, hash)
		if err == nil {
			return &Receipt{
				TxHash:      receipt.TxHash,
				Status:      receipt.Status,
				GasUsed:     receipt.GasUsed,
				BlockNumber: receipt.BlockNumber.Uint64(),
			}, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			lastErr = err
			c.tl.Debug("Receipt query failed, keep polling", zap.String("tx", hash.Hex()), zap.Error(err))
		}

		select {
		case <-waitCtx.Done():
			msg := fmt.Sprintf("tx %s not mined within %s", hash.Hex(), timeout)
			return nil, xerror.Wrap(xerror.ConfirmationTimeout, lastErr, msg)
		case <-ticker.C:
		}
	}
}
