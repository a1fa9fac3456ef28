package quote

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"baseflow/internal/worker/chain"
	"baseflow/internal/worker/model"
	"baseflow/internal/worker/monitor"
	"baseflow/pkg/utils"
	"baseflow/pkg/xerror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Resolver 通过 QuoterV2 只读模拟计算预期输出，不做重试也不自动选择费率档
type Resolver struct {
	client        chain.Client
	quoter        common.Address
	wrappedNative common.Address
	decimals      *cache.Cache
	tl            *zap.Logger
}

func NewResolver(client chain.Client, quoter, wrappedNative common.Address, cacheTTL time.Duration, tl *zap.Logger) *Resolver {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Resolver{
		client:        client,
		quoter:        quoter,
		wrappedNative: wrappedNative,
		decimals:      cache.New(cacheTTL, 2*cacheTTL),
		tl:            tl,
	}
}

func (r *Resolver) WrappedNative() common.Address {
	return r.wrappedNative
}

// Decimals 原生币固定 18 位不发请求；decimals() revert 时按 18 处理
func (r *Resolver) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	if token == r.wrappedNative {
		return utils.NativeDecimals, nil
	}
	key := token.Hex()
	if v, ok := r.decimals.Get(key); ok {
		return v.(uint8), nil
	}

	out, err := chain.Read(ctx, r.client, chain.ERC20ABI, token, "decimals")
	if err != nil {
		if chain.IsReverted(err) {
			r.tl.Debug("decimals() unavailable, assume 18", zap.String("token", key), zap.Error(err))
			return model.DefaultDecimals, nil
		}
		return 0, err
	}
	d := out[0].(uint8)
	r.decimals.SetDefault(key, d)
	return d, nil
}

// GetQuote amountIn 为人类可读数量，按 floor 转为 base units
func (r *Resolver) GetQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn decimal.Decimal, feeTier uint32) (*model.Quote, error) {
	decIn, err := r.Decimals(ctx, tokenIn)
	if err != nil {
		return nil, err
	}
	raw, err := utils.ParseUnits(amountIn, decIn)
	if err != nil {
		return nil, xerror.Wrap(xerror.InvalidRequest, err, "amount in")
	}
	return r.QuoteExact(ctx, tokenIn, tokenOut, raw, feeTier)
}

// QuoteExact 池子不存在或模拟 revert 时返回零报价而不是错误，只有 RPC 故障返回错误
func (r *Resolver) QuoteExact(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier uint32) (*model.Quote, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, xerror.New(xerror.InvalidRequest, "amount in must be positive")
	}
	if tokenIn == tokenOut {
		return nil, xerror.New(xerror.InvalidRequest, "token in equals token out")
	}

	decIn, err := r.Decimals(ctx, tokenIn)
	if err != nil {
		return nil, err
	}
	decOut, err := r.Decimals(ctx, tokenOut)
	if err != nil {
		return nil, err
	}

	q := &model.Quote{
		TokenIn:     tokenIn.Hex(),
		TokenOut:    tokenOut.Hex(),
		AmountIn:    new(big.Int).Set(amountIn),
		AmountOut:   new(big.Int),
		FeeTier:     feeTier,
		DecimalsIn:  decIn,
		DecimalsOut: decOut,
	}

	params := chain.QuoteExactInputSingleParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               new(big.Int).SetUint64(uint64(feeTier)),
		SqrtPriceLimitX96: new(big.Int),
	}
	out, err := chain.Read(ctx, r.client, chain.QuoterABI, r.quoter, "quoteExactInputSingle", params)
	if err != nil {
		if chain.IsReverted(err) {
			monitor.QuoteTotal.WithLabelValues("no_liquidity").Inc()
			r.tl.Debug("No liquidity",
				zap.String("token_in", q.TokenIn),
				zap.String("token_out", q.TokenOut),
				zap.Uint32("fee", feeTier))
			return q, nil
		}
		monitor.QuoteTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("quote %s->%s fee %d: %w", q.TokenIn, q.TokenOut, feeTier, err)
	}

	amountOut, ok := out[0].(*big.Int)
	if !ok || amountOut == nil {
		monitor.QuoteTotal.WithLabelValues("no_liquidity").Inc()
		return q, nil
	}
	q.AmountOut = amountOut
	if q.NoLiquidity() {
		monitor.QuoteTotal.WithLabelValues("no_liquidity").Inc()
	} else {
		monitor.QuoteTotal.WithLabelValues("ok").Inc()
	}
	return q, nil
}
