package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"baseflow/internal/worker/chain"
	"baseflow/internal/worker/model"
	"baseflow/pkg/httpclient"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PriceOracle 原生币 USD 价格来源，每次调用只尝试一次
type PriceOracle interface {
	Name() string
	NativePriceUsd(ctx context.Context) (decimal.Decimal, error)
}

var ErrInvalidPrice = errors.New("oracle returned non-positive price")

// chainlink ETH/USD 喂价默认 8 位小数
const defaultFeedDecimals = uint8(8)

// ChainlinkOracle 读取聚合器 latestRoundData
type ChainlinkOracle struct {
	client chain.Client
	feed   common.Address
}

func NewChainlinkOracle(client chain.Client, feed common.Address) *ChainlinkOracle {
	return &ChainlinkOracle{client: client, feed: feed}
}

func (o *ChainlinkOracle) Name() string { return "chainlink" }

func (o *ChainlinkOracle) NativePriceUsd(ctx context.Context) (decimal.Decimal, error) {
	out, err := chain.Read(ctx, o.client, chain.PriceFeedABI, o.feed, "latestRoundData")
	if err != nil {
		return decimal.Zero, fmt.Errorf("latestRoundData: %w", err)
	}
	answer, ok := out[1].(*big.Int)
	if !ok || answer == nil || answer.Sign() <= 0 {
		return decimal.Zero, ErrInvalidPrice
	}

	decimals := defaultFeedDecimals
	if d, err := chain.Read(ctx, o.client, chain.PriceFeedABI, o.feed, "decimals"); err == nil {
		decimals = d[0].(uint8)
	}
	return decimal.NewFromBigInt(answer, -int32(decimals)), nil
}

type cmcResponse struct {
	Data map[string]struct {
		Quote map[string]struct {
			Price float64 `json:"price"`
		} `json:"quote"`
	} `json:"data"`
}

// CMCOracle CoinMarketCap quotes/latest
type CMCOracle struct {
	http    *httpclient.HTTPClient
	baseURL string
	symbol  string
}

func NewCMCOracle(http *httpclient.HTTPClient, baseURL, symbol string) *CMCOracle {
	return &CMCOracle{http: http, baseURL: strings.TrimRight(baseURL, "/"), symbol: strings.ToUpper(symbol)}
}

func (o *CMCOracle) Name() string { return "cmc" }

func (o *CMCOracle) NativePriceUsd(ctx context.Context) (decimal.Decimal, error) {
	var resp cmcResponse
	err := o.http.Get(ctx, o.baseURL+"/v1/cryptocurrency/quotes/latest",
		map[string]string{"symbol": o.symbol, "convert": "USD"},
		map[string]string{"Accepts": "application/json"},
		&resp)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cmc quotes/latest: %w", err)
	}
	entry, ok := resp.Data[o.symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("cmc: %s not found in response", o.symbol)
	}
	price := decimal.NewFromFloat(entry.Quote["USD"].Price)
	if !price.IsPositive() {
		return decimal.Zero, ErrInvalidPrice
	}
	return price, nil
}

// FallbackOracle 依次尝试各来源，全部失败时返回配置常量并标记低可信度
type FallbackOracle struct {
	sources  []PriceOracle
	fallback decimal.Decimal
	tl       *zap.Logger
}

func NewFallbackOracle(fallback decimal.Decimal, tl *zap.Logger, sources ...PriceOracle) *FallbackOracle {
	return &FallbackOracle{sources: sources, fallback: fallback, tl: tl}
}

func (o *FallbackOracle) NativePrice(ctx context.Context) model.NativePrice {
	for _, src := range o.sources {
		price, err := src.NativePriceUsd(ctx)
		if err == nil {
			return model.NativePrice{Usd: price, Source: src.Name()}
		}
		o.tl.Warn("Native price source failed", zap.String("source", src.Name()), zap.Error(err))
	}
	o.tl.Warn("All price sources failed, using fallback constant", zap.String("price", o.fallback.String()))
	return model.NativePrice{Usd: o.fallback, Source: "fallback", LowConfidence: true}
}
