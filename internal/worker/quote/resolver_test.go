package quote

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"baseflow/internal/worker/chain"
	"baseflow/internal/worker/chain/chaintest"
	"baseflow/pkg/xerror"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	quoterAddr = common.HexToAddress("0x3d4e44Eb1374240CE5F1B871ab261CD16335B76a")
	weth       = common.HexToAddress("0x4200000000000000000000000000000000000006")
	usdc       = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
)

// quoterReturns 按 amountIn*num/den 返回报价
func quoterReturns(fake *chaintest.Fake, num, den int64) {
	fake.Handle(quoterAddr, chain.QuoterABI, "quoteExactInputSingle", func(args []any) ([]any, error) {
		p := *abi.ConvertType(args[0], new(chain.QuoteExactInputSingleParams)).(*chain.QuoteExactInputSingleParams)
		out := new(big.Int).Mul(p.AmountIn, big.NewInt(num))
		out.Quo(out, big.NewInt(den))
		return []any{out, big.NewInt(0), uint32(1), big.NewInt(80000)}, nil
	})
}

func newResolver(fake *chaintest.Fake) *Resolver {
	return NewResolver(fake, quoterAddr, weth, time.Minute, zap.NewNop())
}

func TestGetQuoteNativeToToken(t *testing.T) {
	fake := chaintest.New(8453)
	fake.Returns(usdc, chain.ERC20ABI, "decimals", uint8(6))
	// 1 ETH = 3000 USDC
	quoterReturns(fake, 3000, 1_000_000_000_000)

	q, err := newResolver(fake).GetQuote(context.Background(), weth, usdc, decimal.RequireFromString("0.1"), 3000)
	require.NoError(t, err)
	assert.False(t, q.NoLiquidity())
	assert.Equal(t, "100000000000000000", q.AmountIn.String())
	assert.Equal(t, "300000000", q.AmountOut.String())
	assert.Equal(t, uint8(18), q.DecimalsIn)
	assert.Equal(t, uint8(6), q.DecimalsOut)
	assert.Equal(t, "300", q.AmountOutDecimal().String())
	assert.Equal(t, uint32(3000), q.FeeTier)

	// 原生币不查询 decimals
	assert.Equal(t, 0, fake.CallCount(weth, chain.ERC20ABI, "decimals"))
}

func TestGetQuoteFloorsAmountIn(t *testing.T) {
	fake := chaintest.New(8453)
	fake.Returns(usdc, chain.ERC20ABI, "decimals", uint8(6))
	quoterReturns(fake, 1, 1)

	q, err := newResolver(fake).GetQuote(context.Background(), usdc, weth, decimal.RequireFromString("1.0000009"), 500)
	require.NoError(t, err)
	assert.Equal(t, "1000000", q.AmountIn.String())
}

func TestQuoteRevertIsNoLiquidity(t *testing.T) {
	fake := chaintest.New(8453)
	fake.Returns(usdc, chain.ERC20ABI, "decimals", uint8(6))
	fake.Reverts(quoterAddr, chain.QuoterABI, "quoteExactInputSingle")

	r := newResolver(fake)
	for i := 0; i < 2; i++ {
		q, err := r.GetQuote(context.Background(), weth, usdc, decimal.NewFromInt(1), 10000)
		require.NoError(t, err)
		assert.True(t, q.NoLiquidity())
		assert.Equal(t, 0, q.AmountOut.Sign())
	}
	assert.Equal(t, 2, fake.CallCount(quoterAddr, chain.QuoterABI, "quoteExactInputSingle"))
}

func TestQuoteMissingPoolIsNoLiquidity(t *testing.T) {
	fake := chaintest.New(8453)
	fake.Returns(usdc, chain.ERC20ABI, "decimals", uint8(6))

	q, err := newResolver(fake).QuoteExact(context.Background(), weth, usdc, big.NewInt(1e15), 3000)
	require.NoError(t, err)
	assert.True(t, q.NoLiquidity())
}

func TestQuoteRpcFailurePropagates(t *testing.T) {
	fake := chaintest.New(8453)
	fake.Returns(usdc, chain.ERC20ABI, "decimals", uint8(6))
	fake.Handle(quoterAddr, chain.QuoterABI, "quoteExactInputSingle", func([]any) ([]any, error) {
		return nil, xerror.Wrap(xerror.RpcUnavailable, errors.New("dial tcp: connection refused"), "eth_call")
	})

	q, err := newResolver(fake).QuoteExact(context.Background(), weth, usdc, big.NewInt(1e15), 3000)
	require.Error(t, err)
	assert.Nil(t, q)
	assert.True(t, xerror.IsKind(err, xerror.RpcUnavailable))
}

func TestDecimalsFallbackAndCache(t *testing.T) {
	fake := chaintest.New(8453)
	token := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	fake.Reverts(token, chain.ERC20ABI, "decimals")
	fake.Returns(usdc, chain.ERC20ABI, "decimals", uint8(6))
	r := newResolver(fake)

	d, err := r.Decimals(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), d)

	for i := 0; i < 3; i++ {
		d, err = r.Decimals(context.Background(), usdc)
		require.NoError(t, err)
		assert.Equal(t, uint8(6), d)
	}
	assert.Equal(t, 1, fake.CallCount(usdc, chain.ERC20ABI, "decimals"))
}

func TestQuoteRejectsInvalidInput(t *testing.T) {
	r := newResolver(chaintest.New(8453))

	_, err := r.QuoteExact(context.Background(), weth, usdc, big.NewInt(0), 3000)
	assert.True(t, xerror.IsKind(err, xerror.InvalidRequest))

	_, err = r.QuoteExact(context.Background(), weth, weth, big.NewInt(1), 3000)
	assert.True(t, xerror.IsKind(err, xerror.InvalidRequest))

	_, err = r.GetQuote(context.Background(), weth, usdc, decimal.NewFromInt(-1), 3000)
	assert.True(t, xerror.IsKind(err, xerror.InvalidRequest))
}
