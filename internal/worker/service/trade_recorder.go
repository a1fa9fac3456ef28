package service

import (
	"context"
	"strings"
	"time"

	"baseflow/internal/worker/model"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Submitter 异步提交，AsyncBatchWriter 满足该接口
type Submitter[T any] interface {
	Submit(item T)
}

// TradeRecorder 成交持久化边界，提交后立即返回
type TradeRecorder struct {
	tl      *zap.Logger
	trades  Submitter[model.Trade]
	volumes Submitter[model.Volume]
	now     func() time.Time
}

// NewTradeRecorder trades/volumes 为空时对应记录被忽略
func NewTradeRecorder(trades Submitter[model.Trade], volumes Submitter[model.Volume], tl *zap.Logger) *TradeRecorder {
	return &TradeRecorder{
		tl:      tl,
		trades:  trades,
		volumes: volumes,
		now:     time.Now,
	}
}

func (r *TradeRecorder) RecordTrade(_ context.Context, trade model.Trade) {
	if r.trades == nil {
		r.tl.Debug("trade sink disabled", zap.String("tx", trade.TxHash))
		return
	}
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = r.now()
	}
	r.trades.Submit(trade)
}

func (r *TradeRecorder) RecordVolume(_ context.Context, token string, amountNative decimal.Decimal) {
	if r.volumes == nil || !amountNative.IsPositive() {
		return
	}
	r.volumes.Submit(model.Volume{
		TokenAddress: strings.ToLower(token),
		Date:         r.now().UTC().Format(time.DateOnly),
		VolumeNative: amountNative,
		TradeCount:   1,
	})
}
