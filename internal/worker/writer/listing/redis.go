package listing

import (
	"context"
	"time"

	"baseflow/internal/worker/model"
	"baseflow/internal/worker/writer"
	"baseflow/pkg/utils"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisListingPublisher struct {
	redis *redis.Client
	tl    *zap.Logger
}

// NewRedisListingPublisher 通过 pub/sub 频道 listings:new:<chainId> 推送
func NewRedisListingPublisher(rdb *redis.Client, tl *zap.Logger) writer.BatchWriter[model.Listing] {
	return &RedisListingPublisher{redis: rdb, tl: tl}
}

func (w *RedisListingPublisher) BWrite(ctx context.Context, listings []model.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	pipe := w.redis.Pipeline()
	for _, l := range listings {
		payload, err := sonic.Marshal(l)
		if err != nil {
			return err
		}
		pipe.Publish(ctx, utils.ListingChannel(uint64(l.ChainID)), payload)
	}

	var err error
	for attempt := 0; attempt < RETRY_COUNT; attempt++ {
		_, err = pipe.Exec(ctx)
		if err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if err != nil {
		w.tl.Warn("❌ Redis publish failed, exceeded the maximum number of retries", zap.Error(err))
		return err
	}
	return nil
}

func (w *RedisListingPublisher) Close() error {
	return nil
}
