package token

import (
	"context"
	"fmt"
	"math/big"

	"baseflow/internal/worker/chain"
	"baseflow/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// DecimalsSource 提供代币精度，quote.Resolver 实现
type DecimalsSource interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

type Balance struct {
	Raw      *big.Int
	Amount   decimal.Decimal
	Decimals uint8
}

func newBalance(raw *big.Int, decimals uint8) Balance {
	return Balance{Raw: raw, Amount: utils.AdjustDecimals(raw, decimals), Decimals: decimals}
}

// Balances 余额与授权额度读取，RPC 失败原样返回，不做降级
type Balances struct {
	client   chain.Client
	decimals DecimalsSource
}

func NewBalances(client chain.Client, decimals DecimalsSource) *Balances {
	return &Balances{client: client, decimals: decimals}
}

func (b *Balances) NativeBalance(ctx context.Context, wallet common.Address) (Balance, error) {
	raw, err := b.client.BalanceAt(ctx, wallet)
	if err != nil {
		return Balance{}, err
	}
	return newBalance(raw, utils.NativeDecimals), nil
}

func (b *Balances) TokenBalance(ctx context.Context, token, wallet common.Address) (Balance, error) {
	decimals, err := b.decimals.Decimals(ctx, token)
	if err != nil {
		return Balance{}, err
	}
	out, err := chain.Read(ctx, b.client, chain.ERC20ABI, token, "balanceOf", wallet)
	if err != nil {
		return Balance{}, fmt.Errorf("balanceOf %s: %w", token.Hex(), err)
	}
	return newBalance(out[0].(*big.Int), decimals), nil
}

func (b *Balances) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := chain.Read(ctx, b.client, chain.ERC20ABI, token, "allowance", owner, spender)
	if err != nil {
		return nil, fmt.Errorf("allowance %s: %w", token.Hex(), err)
	}
	return out[0].(*big.Int), nil
}
