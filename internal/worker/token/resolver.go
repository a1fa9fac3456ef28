package token

import (
	"context"
	"math/big"
	"strings"
	"time"

	"baseflow/internal/worker/chain"
	"baseflow/internal/worker/model"
	"baseflow/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// Quoter 报价来源，quote.Resolver 实现
type Quoter interface {
	GetQuote(ctx context.Context, tokenIn, tokenOut common.Address, amountIn decimal.Decimal, feeTier uint32) (*model.Quote, error)
	WrappedNative() common.Address
}

// NativePricer 原生币价格，FallbackOracle 实现
type NativePricer interface {
	NativePrice(ctx context.Context) model.NativePrice
}

type ResolverConfig struct {
	FeeTier  uint32
	Sample   decimal.Decimal // 用于估价的原生币数量
	CacheTTL time.Duration
}

// Resolver 代币元数据与派生行情，单字段失败降级为默认值
type Resolver struct {
	client chain.Client
	quotes Quoter
	prices NativePricer
	cfg    ResolverConfig
	cache  *cache.Cache
	tl     *zap.Logger
}

func NewResolver(client chain.Client, quotes Quoter, prices NativePricer, cfg ResolverConfig, tl *zap.Logger) *Resolver {
	if !cfg.Sample.IsPositive() {
		cfg.Sample = decimal.New(1, -1)
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return &Resolver{
		client: client,
		quotes: quotes,
		prices: prices,
		cfg:    cfg,
		cache:  cache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		tl:     tl,
	}
}

// GetTokenInfo 只在 ctx 失效时返回错误，其余失败都体现为默认值或零价格
func (r *Resolver) GetTokenInfo(ctx context.Context, token common.Address) (*model.TokenInfo, error) {
	key := strings.ToLower(token.Hex())
	if v, ok := r.cache.Get(key); ok {
		return v.(*model.TokenInfo), nil
	}

	info := &model.TokenInfo{
		Address:  token.Hex(),
		Symbol:   model.DefaultSymbol,
		Name:     model.DefaultName,
		Decimals: model.DefaultDecimals,
	}
	var (
		rawSupply = new(big.Int)
		native    model.NativePrice
		quote     *model.Quote
	)

	p := pool.New()
	p.Go(func() {
		if v, ok := r.read(ctx, token, "symbol"); ok {
			if s, _ := v.(string); s != "" {
				info.Symbol = s
			}
		}
	})
	p.Go(func() {
		if v, ok := r.read(ctx, token, "name"); ok {
			if s, _ := v.(string); s != "" {
				info.Name = s
			}
		}
	})
	p.Go(func() {
		if v, ok := r.read(ctx, token, "decimals"); ok {
			info.Decimals = v.(uint8)
		}
	})
	p.Go(func() {
		if v, ok := r.read(ctx, token, "totalSupply"); ok {
			rawSupply = v.(*big.Int)
		}
	})
	p.Go(func() {
		info.OwnershipRenounced = r.ownershipRenounced(ctx, token)
	})
	p.Go(func() {
		native = r.prices.NativePrice(ctx)
	})
	p.Go(func() {
		q, err := r.quotes.GetQuote(ctx, r.quotes.WrappedNative(), token, r.cfg.Sample, r.cfg.FeeTier)
		if err != nil {
			r.tl.Warn("Price sample quote failed", zap.String("token", info.Address), zap.Error(err))
			return
		}
		quote = q
	})
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info.TotalSupply = utils.AdjustDecimals(rawSupply, info.Decimals)
	info.NativePrice = native.Usd
	info.LowConfidence = native.LowConfidence
	info.PriceUsd = SpotPrice(native.Usd, quote, r.cfg.Sample)
	info.MarketCapUsd = info.PriceUsd.Mul(info.TotalSupply)
	info.FetchedAt = time.Now()

	r.cache.SetDefault(key, info)
	return info, nil
}

// SpotPrice 用一次小额报价近似现价: nativeUsd / (每单位原生币可换代币数)。
// 对流动性差的池子存在价格冲击误差，不是精确的中间价。
func SpotPrice(nativeUsd decimal.Decimal, q *model.Quote, sample decimal.Decimal) decimal.Decimal {
	if q.NoLiquidity() || !sample.IsPositive() || !nativeUsd.IsPositive() {
		return decimal.Zero
	}
	tokensPerNative := q.AmountOutDecimal().Div(sample)
	if !tokensPerNative.IsPositive() {
		return decimal.Zero
	}
	return nativeUsd.Div(tokensPerNative)
}

// ownershipRenounced 没有 owner() 或调用失败都视为未放弃
func (r *Resolver) ownershipRenounced(ctx context.Context, token common.Address) bool {
	v, ok := r.read(ctx, token, "owner")
	if !ok {
		return false
	}
	owner, ok := v.(common.Address)
	return ok && owner == (common.Address{})
}

func (r *Resolver) read(ctx context.Context, token common.Address, method string) (any, bool) {
	out, err := chain.Read(ctx, r.client, chain.ERC20ABI, token, method)
	if err != nil {
		r.tl.Debug("Token field unavailable", zap.String("token", token.Hex()), zap.String("method", method), zap.Error(err))
		return nil, false
	}
	return out[0], true
}
