package worker

import (
	"math/big"

	"baseflow/internal/worker/chain"
	"baseflow/internal/worker/config"
	"baseflow/internal/worker/quote"
	"baseflow/internal/worker/swap"
	"baseflow/internal/worker/token"
	"baseflow/pkg/httpclient"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Engine 报价、元数据与兑换组件，worker 与命令行工具共用
type Engine struct {
	Chain    *chain.EthClient
	Quotes   *quote.Resolver
	Prices   *token.FallbackOracle
	Tokens   *token.Resolver
	Balances *token.Balances
	Executor *swap.Executor

	http *httpclient.HTTPClient
}

func NewEngine(cfg config.Config, eth *ethclient.Client, recorder swap.Recorder, logger *zap.Logger) *Engine {
	client := chain.NewEthClient(eth, logger,
		chain.WithRateLimit(cfg.Chain.RateLimit),
		chain.WithReceiptPollInterval(cfg.Swap.ReceiptPollInterval))

	wrapped := common.HexToAddress(cfg.Chain.WrappedNative)
	quotes := quote.NewResolver(client, common.HexToAddress(cfg.Chain.Quoter), wrapped, cfg.Token.CacheTTL, logger)

	e := &Engine{Chain: client, Quotes: quotes}

	// 价格来源顺序：链上喂价、CMC、兜底常量
	var sources []token.PriceOracle
	if common.IsHexAddress(cfg.Chain.PriceFeed) {
		sources = append(sources, token.NewChainlinkOracle(client, common.HexToAddress(cfg.Chain.PriceFeed)))
	}
	if cfg.Oracle.CmcAPIKey != "" {
		e.http = httpclient.NewHTTPClient(httpclient.HTTPClientConfig{
			Timeout:   cfg.Oracle.Timeout,
			RateLimit: cfg.Oracle.RateLimit,
			Headers:   map[string]string{"X-CMC_PRO_API_KEY": cfg.Oracle.CmcAPIKey},
		}, logger)
		sources = append(sources, token.NewCMCOracle(e.http, cfg.Oracle.CmcBaseURL, cfg.Chain.NativeSymbol))
	}
	e.Prices = token.NewFallbackOracle(decimal.NewFromFloat(cfg.Oracle.FallbackPrice), logger, sources...)

	sample, err := decimal.NewFromString(cfg.Token.PriceSampleEth)
	if err != nil {
		logger.Warn("invalid token.price_sample_eth, using default", zap.String("value", cfg.Token.PriceSampleEth))
		sample = decimal.Zero
	}
	e.Tokens = token.NewResolver(client, quotes, e.Prices, token.ResolverConfig{
		FeeTier:  cfg.Swap.DefaultFeeTier,
		Sample:   sample,
		CacheTTL: cfg.Token.CacheTTL,
	}, logger)
	e.Balances = token.NewBalances(client, quotes)

	var router common.Address
	if common.IsHexAddress(cfg.Chain.Router) {
		router = common.HexToAddress(cfg.Chain.Router)
	}
	e.Executor = swap.NewExecutor(client, quotes, e.Balances, recorder, swap.Config{
		Router:             router,
		ChainID:            new(big.Int).SetUint64(cfg.Chain.ChainID),
		DeadlineOffset:     cfg.Swap.DeadlineOffset,
		SwapGasLimit:       cfg.Swap.SwapGasLimit,
		ApproveGasLimit:    cfg.Swap.ApproveGasLimit,
		ReceiptTimeout:     cfg.Swap.ReceiptTimeout,
		DefaultFeeTier:     cfg.Swap.DefaultFeeTier,
		DefaultSlippageBps: cfg.Swap.DefaultSlippageBps,
	}, logger)
	return e
}

func (e *Engine) Close() {
	if e.http != nil {
		e.http.Close()
	}
}
