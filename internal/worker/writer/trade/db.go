package trade

import (
	"context"
	"time"

	"baseflow/internal/worker/model"
	"baseflow/internal/worker/writer"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	RETRY_COUNT = 3
)

type DbTradeWriter struct {
	db *gorm.DB
	tl *zap.Logger
}

func NewDbTradeWriter(db *gorm.DB, tl *zap.Logger) writer.BatchWriter[model.Trade] {
	return &DbTradeWriter{db: db, tl: tl}
}

func (w *DbTradeWriter) BWrite(ctx context.Context, trades []model.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	trades = Deduplicate(trades)

	newCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var err error
	for attempt := 0; attempt < RETRY_COUNT; attempt++ {
		// tx_hash 唯一，重复提交忽略
		err = w.db.WithContext(newCtx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tx_hash"}},
			DoNothing: true,
		}).CreateInBatches(trades, 500).Error
		if err == nil {
			break
		}
	}
	if err != nil {
		w.tl.Warn("❌ DB write failed, exceeded the maximum number of retries", zap.Error(err), zap.Int("trades", len(trades)))
		return err
	}
	return nil
}

func (w *DbTradeWriter) Close() error {
	return nil
}

// Deduplicate 按 tx_hash 去重，保留最后一条
func Deduplicate(trades []model.Trade) []model.Trade {
	idx := make(map[string]int, len(trades))
	out := make([]model.Trade, 0, len(trades))
	for _, t := range trades {
		if i, ok := idx[t.TxHash]; ok {
			out[i] = t
			continue
		}
		idx[t.TxHash] = len(out)
		out = append(out, t)
	}
	return out
}
