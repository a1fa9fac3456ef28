package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"baseflow/internal/worker"
	"baseflow/internal/worker/config"
	"baseflow/internal/worker/model"
	"baseflow/internal/worker/service"
	"baseflow/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const usage = `usage:
  script quote <tokenIn> <tokenOut> <amount> [fee]
  script info <token>
  script buy <token> <amountNative> [slippageBps]
  script sell <token> <amountToken> [slippageBps]
  script listings [limit]

buy/sell read the signing key from SWAP_PRIVATE_KEY`

// 一次性任务
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.InitConfig()
	// 命令行只跑一次，不需要池子发现和指标服务
	cfg.Discovery.Enable = false
	cfg.Monitor.Enable = false

	logger.InitTrace("baseflow", "script")
	ctx, span := logger.StartSpan(context.Background(), "main", "script")
	defer span.End()

	rootLogger := logger.NewLogger("script")
	logger.SetLogLevel(cfg.Log.Level)
	tl := logger.WithTrace(ctx, rootLogger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	core := worker.New(cfg, tl)
	core.StartWriters()

	err := run(ctx, core, cfg, os.Args[1], os.Args[2:])

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	core.Stop(stopCtx)

	if err != nil {
		tl.Error("Command failed", zap.String("cmd", os.Args[1]), zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, core *worker.Core, cfg config.Config, cmd string, args []string) error {
	engine := core.Engine
	switch cmd {
	case "quote":
		if len(args) < 3 {
			return fmt.Errorf("quote needs <tokenIn> <tokenOut> <amount>\n%s", usage)
		}
		in, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		out, err := parseAddress(args[1])
		if err != nil {
			return err
		}
		amount, err := decimal.NewFromString(args[2])
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[2], err)
		}
		fee := cfg.Swap.DefaultFeeTier
		if len(args) > 3 {
			v, err := strconv.ParseUint(args[3], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid fee %q: %w", args[3], err)
			}
			fee = uint32(v)
		}
		q, err := engine.Quotes.GetQuote(ctx, in, out, amount, fee)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"tokenIn":     q.TokenIn,
			"tokenOut":    q.TokenOut,
			"amountIn":    q.AmountIn.String(),
			"amountOut":   q.AmountOut.String(),
			"amountHuman": q.AmountOutDecimal().String(),
			"feeTier":     q.FeeTier,
			"noLiquidity": q.NoLiquidity(),
		})

	case "info":
		if len(args) < 1 {
			return fmt.Errorf("info needs <token>\n%s", usage)
		}
		tok, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		info, err := engine.Tokens.GetTokenInfo(ctx, tok)
		if err != nil {
			return err
		}
		return printJSON(info)

	case "buy", "sell":
		if len(args) < 2 {
			return fmt.Errorf("%s needs <token> <amount>\n%s", cmd, usage)
		}
		tok, err := parseAddress(args[0])
		if err != nil {
			return err
		}
		amount, err := decimal.NewFromString(args[1])
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[1], err)
		}
		key, err := crypto.HexToECDSA(strings.TrimPrefix(os.Getenv("SWAP_PRIVATE_KEY"), "0x"))
		if err != nil {
			return fmt.Errorf("SWAP_PRIVATE_KEY: %w", err)
		}
		req := model.SwapRequest{
			Direction:    model.Direction(cmd),
			Wallet:       crypto.PubkeyToAddress(key.PublicKey).Hex(),
			SigningKey:   key,
			TokenAddress: tok.Hex(),
			Amount:       amount,
		}
		if len(args) > 2 {
			v, err := strconv.ParseUint(args[2], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid slippage %q: %w", args[2], err)
			}
			req.SlippageBps = uint32(v)
		}
		res, err := engine.Executor.Execute(ctx, req)
		if perr := printJSON(res); perr != nil {
			return perr
		}
		return err

	case "listings":
		limit := 20
		if len(args) > 0 {
			v, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid limit %q: %w", args[0], err)
			}
			limit = v
		}
		docs, err := service.RecentListings(ctx, core.Repository().GetES(), cfg.Elasticsearch.ListingsIndexName, int64(cfg.Chain.ChainID), limit)
		if err != nil {
			return err
		}
		return printJSON(docs)
	}
	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

func printJSON(v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
