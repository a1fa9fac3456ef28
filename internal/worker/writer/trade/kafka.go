package trade

import (
	"context"
	"time"

	"baseflow/internal/worker/model"
	"baseflow/internal/worker/writer"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter kafka.Writer 的最小子集
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaTradeWriter struct {
	mq MessageWriter
	tl *zap.Logger

	topic string
}

func NewKafkaTradeWriter(mq MessageWriter, tl *zap.Logger, topic string) writer.BatchWriter[model.Trade] {
	return &KafkaTradeWriter{mq: mq, tl: tl, topic: topic}
}

func (w *KafkaTradeWriter) BWrite(ctx context.Context, trades []model.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(trades))
	for _, t := range trades {
		msg, err := w.marshalToMsg(t)
		if err != nil {
			w.tl.Warn("marshal trade event failed", zap.String("tx", t.TxHash), zap.Error(err))
			continue
		}
		msgs = append(msgs, msg)
	}
	if len(msgs) == 0 {
		return nil
	}

	newCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var err error
	for attempt := 0; attempt < RETRY_COUNT; attempt++ {
		err = w.mq.WriteMessages(newCtx, msgs...)
		if err == nil {
			break
		}
	}
	if err != nil {
		w.tl.Warn("❌ MQ write failed, exceeded the maximum number of retries", zap.Error(err))
		return err
	}
	return nil
}

func (w *KafkaTradeWriter) Close() error {
	return nil
}

func (w *KafkaTradeWriter) marshalToMsg(t model.Trade) (kafka.Message, error) {
	jsonData, err := sonic.Marshal(model.NewTradeEvent(t))
	if err != nil {
		return kafka.Message{}, err
	}
	key := t.TokenOut
	if t.TradeType == "sell" {
		key = t.TokenIn
	}
	return kafka.Message{
		Topic: w.topic,
		Key:   []byte(key),
		Value: jsonData,
	}, nil
}
