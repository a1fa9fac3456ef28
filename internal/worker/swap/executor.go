package swap

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"time"

	"baseflow/internal/worker/chain"
	"baseflow/internal/worker/model"
	"baseflow/internal/worker/monitor"
	"baseflow/internal/worker/token"
	"baseflow/pkg/logger"
	"baseflow/pkg/utils"
	"baseflow/pkg/xerror"

	"github.com/bytedance/sonic"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// QuoteSource quote.Resolver 实现
type QuoteSource interface {
	QuoteExact(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, feeTier uint32) (*model.Quote, error)
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	WrappedNative() common.Address
}

// Recorder 成交后的持久化通知，不阻塞也不影响已上链的结果
type Recorder interface {
	RecordTrade(ctx context.Context, trade model.Trade)
	RecordVolume(ctx context.Context, token string, amountNative decimal.Decimal)
}

type Config struct {
	Router             common.Address
	ChainID            *big.Int
	DeadlineOffset     time.Duration
	SwapGasLimit       uint64
	ApproveGasLimit    uint64
	ReceiptTimeout     time.Duration
	DefaultFeeTier     uint32
	DefaultSlippageBps uint32
}

// Executor 单次兑换严格顺序执行: QUOTE -> [ALLOWANCE_CHECK -> APPROVE] -> BUILD_TX -> SIGN -> SUBMIT -> AWAIT_RECEIPT。
// 不自动重试，也不调整 nonce 或 gas price。
type Executor struct {
	client   chain.Client
	quotes   QuoteSource
	balances *token.Balances
	recorder Recorder
	cfg      Config
	now      func() time.Time
	tl       *zap.Logger
}

func NewExecutor(client chain.Client, quotes QuoteSource, balances *token.Balances, recorder Recorder, cfg Config, tl *zap.Logger) *Executor {
	return &Executor{
		client:   client,
		quotes:   quotes,
		balances: balances,
		recorder: recorder,
		cfg:      cfg,
		now:      time.Now,
		tl:       tl,
	}
}

// execution 单次执行的上下文
type execution struct {
	req      model.SwapRequest
	key      *ecdsa.PrivateKey
	wallet   common.Address
	token    common.Address
	tokenIn  common.Address
	tokenOut common.Address
	amountIn *big.Int
	feeTier  uint32
	slippage uint32
	deadline time.Duration
	quote    *model.Quote
	result   *model.SwapResult
	tl       *zap.Logger
}

// Execute 返回的 result 总是非空；error 为 xerror 分类错误并原样透传
func (e *Executor) Execute(ctx context.Context, req model.SwapRequest) (*model.SwapResult, error) {
	ctx, span := logger.StartSpan(ctx, "swap", "swap.Execute")
	defer span.End()
	start := e.now()

	x := &execution{
		req:    req,
		result: &model.SwapResult{State: model.StateQuote},
		tl:     logger.WithTrace(ctx, e.tl).With(zap.String("direction", string(req.Direction)), zap.String("token", req.TokenAddress)),
	}
	err := e.run(ctx, x)

	result := x.result
	if err != nil {
		e.logFailure(x, err)
		// 超时只代表结果未知，不标记为 FAILED
		if !xerror.IsKind(err, xerror.ConfirmationTimeout) {
			result.State = model.StateFailed
		}
		result.Success = false
		result.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, xerror.KindOf(err).String())
	} else {
		result.State = model.StateSuccess
		result.Success = true
		x.tl.Info("Swap confirmed",
			zap.String("tx", result.TxHash),
			zap.Uint64("block", result.BlockNumber),
			zap.Uint64("gas_used", result.GasUsed))
	}

	span.SetAttributes(
		attribute.String("swap.direction", string(req.Direction)),
		attribute.String("swap.state", string(result.State)),
		attribute.String("swap.tx_hash", result.TxHash),
	)
	monitor.SwapTotal.WithLabelValues(string(req.Direction), string(result.State)).Inc()
	monitor.SwapDuration.WithLabelValues(string(req.Direction)).Observe(e.now().Sub(start).Seconds())
	return result, err
}

// Buy native -> token
func (e *Executor) Buy(ctx context.Context, key *ecdsa.PrivateKey, tokenAddr string, amountNative decimal.Decimal, slippageBps uint32) (*model.SwapResult, error) {
	return e.Execute(ctx, model.SwapRequest{
		Direction:    model.DirectionBuy,
		SigningKey:   key,
		TokenAddress: tokenAddr,
		Amount:       amountNative,
		SlippageBps:  slippageBps,
	})
}

// Sell token -> native
func (e *Executor) Sell(ctx context.Context, key *ecdsa.PrivateKey, tokenAddr string, amountToken decimal.Decimal, slippageBps uint32) (*model.SwapResult, error) {
	return e.Execute(ctx, model.SwapRequest{
		Direction:    model.DirectionSell,
		SigningKey:   key,
		TokenAddress: tokenAddr,
		Amount:       amountToken,
		SlippageBps:  slippageBps,
	})
}

func (e *Executor) run(ctx context.Context, x *execution) error {
	if err := e.validate(x); err != nil {
		return err
	}
	if err := e.preflight(ctx, x); err != nil {
		return err
	}

	// QUOTE
	q, err := e.quotes.QuoteExact(ctx, x.tokenIn, x.tokenOut, x.amountIn, x.feeTier)
	if err != nil {
		return err
	}
	if q.NoLiquidity() {
		return xerror.New(xerror.NoLiquidity, "no liquidity")
	}
	x.quote = q
	x.result.AmountInActual = new(big.Int).Set(x.amountIn)
	x.result.AmountOutExpected = new(big.Int).Set(q.AmountOut)

	// 交易一旦提交无法撤回，之后不再响应调用方取消
	if x.req.Direction == model.DirectionSell {
		if err := e.ensureAllowance(ctx, x); err != nil {
			return err
		}
	}
	return e.swap(context.WithoutCancel(ctx), x)
}

func (e *Executor) validate(x *execution) error {
	req := x.req
	if e.cfg.Router == (common.Address{}) {
		return xerror.New(xerror.InvalidRequest, "router address not configured")
	}
	if req.Direction != model.DirectionBuy && req.Direction != model.DirectionSell {
		return xerror.Newf(xerror.InvalidRequest, "unknown direction %q", req.Direction)
	}
	if req.SigningKey == nil {
		return xerror.New(xerror.InvalidRequest, "signing key required")
	}
	if !common.IsHexAddress(req.TokenAddress) {
		return xerror.Newf(xerror.InvalidRequest, "invalid token address %q", req.TokenAddress)
	}
	if !req.Amount.IsPositive() {
		return xerror.Newf(xerror.InvalidRequest, "amount must be positive, got %s", req.Amount)
	}

	x.key = req.SigningKey
	x.wallet = crypto.PubkeyToAddress(req.SigningKey.PublicKey)
	if req.Wallet != "" && !strings.EqualFold(req.Wallet, x.wallet.Hex()) {
		return xerror.Newf(xerror.InvalidRequest, "wallet %s does not match signing key", req.Wallet)
	}

	x.token = common.HexToAddress(req.TokenAddress)
	native := e.quotes.WrappedNative()
	if x.token == native {
		return xerror.New(xerror.InvalidRequest, "token must not be the wrapped native asset")
	}
	if req.Direction == model.DirectionBuy {
		x.tokenIn, x.tokenOut = native, x.token
	} else {
		x.tokenIn, x.tokenOut = x.token, native
	}

	x.feeTier = req.FeeTier
	if x.feeTier == 0 {
		x.feeTier = e.cfg.DefaultFeeTier
	}
	x.slippage = req.SlippageBps
	if x.slippage == 0 {
		x.slippage = e.cfg.DefaultSlippageBps
	}
	if x.slippage >= 10000 {
		return xerror.Newf(xerror.InvalidRequest, "slippage %d bps out of range", x.slippage)
	}
	x.deadline = req.DeadlineOffset
	if x.deadline <= 0 {
		x.deadline = e.cfg.DeadlineOffset
	}
	return nil
}

// preflight 换算数量并检查余额（含 gas），余额不足时不构建任何交易
func (e *Executor) preflight(ctx context.Context, x *execution) error {
	decimals, err := e.quotes.Decimals(ctx, x.tokenIn)
	if err != nil {
		return err
	}
	x.amountIn, err = utils.ParseUnits(x.req.Amount, decimals)
	if err != nil {
		return xerror.Wrap(xerror.InvalidRequest, err, "amount")
	}
	if x.amountIn.Sign() <= 0 {
		return xerror.Newf(xerror.InvalidRequest, "amount %s below token resolution", x.req.Amount)
	}

	gasLimit := e.cfg.SwapGasLimit
	if x.req.Direction == model.DirectionSell {
		balance, err := e.balances.TokenBalance(ctx, x.token, x.wallet)
		if err != nil {
			return err
		}
		if balance.Raw.Cmp(x.amountIn) < 0 {
			return xerror.Newf(xerror.InsufficientBalance, "have %s, need %s", balance.Amount, x.req.Amount)
		}
		allowance, err := e.balances.Allowance(ctx, x.token, x.wallet, e.cfg.Router)
		if err != nil {
			return err
		}
		if allowance.Cmp(x.amountIn) < 0 {
			gasLimit += e.cfg.ApproveGasLimit
		}
	}

	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return err
	}
	// 原生币需覆盖 gasLimit * gasPrice，买入还要加上交易金额
	need := new(big.Int).Mul(new(big.Int).SetUint64(gasLimit), gasPrice)
	if x.req.Direction == model.DirectionBuy {
		need.Add(need, x.amountIn)
	}
	native, err := e.balances.NativeBalance(ctx, x.wallet)
	if err != nil {
		return err
	}
	if native.Raw.Cmp(need) < 0 {
		return xerror.Newf(xerror.InsufficientBalance, "native balance %s below required %s (gas limit %d)",
			native.Amount, utils.AdjustDecimals(need, utils.NativeDecimals), gasLimit)
	}
	return nil
}

// ensureAllowance 授权不足时先单独提交 approve 并等待上链，重试时重新检查额度而不是重复授权
func (e *Executor) ensureAllowance(ctx context.Context, x *execution) error {
	x.result.State = model.StateAllowanceCheck
	allowance, err := e.balances.Allowance(ctx, x.token, x.wallet, e.cfg.Router)
	if err != nil {
		return err
	}
	if allowance.Cmp(x.amountIn) >= 0 {
		return nil
	}

	x.result.State = model.StateApprove
	ctx = context.WithoutCancel(ctx)
	data, err := chain.ERC20ABI.Pack("approve", e.cfg.Router, chain.MaxUint256)
	if err != nil {
		return xerror.Wrap(xerror.InvalidRequest, err, "pack approve")
	}
	hash, err := e.signAndSend(ctx, x, x.token, nil, e.cfg.ApproveGasLimit, data)
	if err != nil {
		return err
	}
	x.result.ApproveTxHash = hash.Hex()
	monitor.ApproveTotal.Inc()
	x.tl.Info("Approval submitted", zap.String("tx", hash.Hex()))

	receipt, err := e.client.WaitForReceipt(ctx, hash, e.cfg.ReceiptTimeout)
	if err != nil {
		return err
	}
	if !receipt.Succeeded() {
		return xerror.Newf(xerror.TransactionReverted, "approve %s reverted", hash.Hex())
	}
	return nil
}

func (e *Executor) swap(ctx context.Context, x *execution) error {
	x.result.State = model.StateBuildTx
	minOut := utils.ApplySlippage(x.quote.AmountOut, x.slippage)
	x.result.AmountOutMin = minOut
	deadline := big.NewInt(e.now().Add(x.deadline).Unix())

	var (
		data  []byte
		value *big.Int
		err   error
	)
	if x.req.Direction == model.DirectionBuy {
		data, err = chain.RouterABI.Pack("swapETHForTokens", x.token, minOut, deadline)
		value = x.amountIn
	} else {
		data, err = chain.RouterABI.Pack("swapTokensForETH", x.token, x.amountIn, minOut, deadline)
	}
	if err != nil {
		return xerror.Wrap(xerror.InvalidRequest, err, "pack swap")
	}

	hash, err := e.signAndSend(ctx, x, e.cfg.Router, value, e.cfg.SwapGasLimit, data)
	if err != nil {
		return err
	}
	x.result.TxHash = hash.Hex()
	x.tl.Info("Swap submitted", zap.String("tx", hash.Hex()), zap.String("min_out", minOut.String()))

	x.result.State = model.StateAwaitReceipt
	receipt, err := e.client.WaitForReceipt(ctx, hash, e.cfg.ReceiptTimeout)
	if err != nil {
		return err
	}
	x.result.GasUsed = receipt.GasUsed
	x.result.BlockNumber = receipt.BlockNumber
	if !receipt.Succeeded() {
		return xerror.Newf(xerror.TransactionReverted, "swap %s reverted in block %d", hash.Hex(), receipt.BlockNumber)
	}

	e.record(ctx, x)
	return nil
}

// signAndSend 构建、签名并提交，失败即终止，不重试
func (e *Executor) signAndSend(ctx context.Context, x *execution, to common.Address, value *big.Int, gasLimit uint64, data []byte) (common.Hash, error) {
	gasPrice, err := e.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	nonce, err := e.client.PendingNonceAt(ctx, x.wallet)
	if err != nil {
		return common.Hash{}, err
	}

	x.result.State = model.StateSign
	raw, _, err := chain.SignTx(x.key, e.cfg.ChainID, chain.TxParams{
		Nonce:    nonce,
		To:       to,
		Value:    value,
		GasLimit: gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	if err != nil {
		return common.Hash{}, xerror.Wrap(xerror.SubmissionRejected, err, "sign tx")
	}

	x.result.State = model.StateSubmit
	return e.client.SendRawTransaction(ctx, raw)
}

func (e *Executor) record(ctx context.Context, x *execution) {
	if e.recorder == nil {
		return
	}
	payload, _ := sonic.Marshal(map[string]any{
		"fee_tier":     x.quote.FeeTier,
		"slippage_bps": x.slippage,
		"min_out":      x.result.AmountOutMin.String(),
		"approve_tx":   x.result.ApproveTxHash,
	})
	p := datatypes.JSON(payload)

	trade := model.Trade{
		ChainID:     e.cfg.ChainID.Int64(),
		Wallet:      x.wallet.Hex(),
		TxHash:      x.result.TxHash,
		TokenIn:     x.tokenIn.Hex(),
		TokenOut:    x.tokenOut.Hex(),
		AmountIn:    decimal.NewFromBigInt(x.amountIn, 0),
		AmountOut:   decimal.NewFromBigInt(x.quote.AmountOut, 0),
		TradeType:   string(x.req.Direction),
		Status:      model.TradeStatusSuccess,
		GasUsed:     x.result.GasUsed,
		BlockNumber: x.result.BlockNumber,
		Payload:     &p,
		CreatedAt:   e.now(),
	}
	e.recorder.RecordTrade(ctx, trade)

	// 成交量以原生币计
	nativeAmount := utils.AdjustDecimals(x.amountIn, utils.NativeDecimals)
	if x.req.Direction == model.DirectionSell {
		nativeAmount = utils.AdjustDecimals(x.quote.AmountOut, utils.NativeDecimals)
	}
	e.recorder.RecordVolume(ctx, x.token.Hex(), nativeAmount)
}

func (e *Executor) logFailure(x *execution, err error) {
	fields := []zap.Field{
		zap.String("stage", string(x.result.State)),
		zap.String("tx", x.result.TxHash),
		zap.Error(err),
	}
	switch xerror.KindOf(err) {
	case xerror.NoLiquidity, xerror.InsufficientBalance, xerror.InvalidRequest:
		x.tl.Info("Swap rejected", fields...)
	case xerror.ConfirmationTimeout:
		x.tl.Warn("Swap outcome unknown", fields...)
	default:
		x.tl.Error("Swap failed", fields...)
	}
}
