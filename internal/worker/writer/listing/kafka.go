package listing

import (
	"context"
	"time"

	"baseflow/internal/worker/model"
	"baseflow/internal/worker/writer"
	"baseflow/internal/worker/writer/trade"

	"github.com/bytedance/sonic"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaListingWriter struct {
	mq trade.MessageWriter
	tl *zap.Logger

	topic string
}

func NewKafkaListingWriter(mq trade.MessageWriter, tl *zap.Logger, topic string) writer.BatchWriter[model.Listing] {
	return &KafkaListingWriter{mq: mq, tl: tl, topic: topic}
}

func (w *KafkaListingWriter) BWrite(ctx context.Context, listings []model.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(listings))
	for _, l := range listings {
		jsonData, err := sonic.Marshal(l)
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Topic: w.topic,
			Key:   []byte(l.Pool.NewToken),
			Value: jsonData,
		})
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

func (w *KafkaListingWriter) Close() error {
	return nil
}
