package listing

import (
	"context"
	"time"

	"baseflow/internal/worker/model"
	"baseflow/internal/worker/writer"

	"github.com/bytedance/sonic"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	RETRY_COUNT = 3
)

type DbPoolWriter struct {
	db *gorm.DB
	tl *zap.Logger
}

func NewDbPoolWriter(db *gorm.DB, tl *zap.Logger) writer.BatchWriter[model.Listing] {
	return &DbPoolWriter{db: db, tl: tl}
}

func (w *DbPoolWriter) BWrite(ctx context.Context, listings []model.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	pools := make([]model.Pool, 0, len(listings))
	for _, l := range listings {
		pools = append(pools, ToPool(l))
	}

	newCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	for attempt := 0; attempt < RETRY_COUNT; attempt++ {
		// 补全信息可能在重投时才拿到，冲突时刷新元数据
		err = w.db.WithContext(newCtx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "chain_id"}, {Name: "address"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"symbol":    gorm.Expr("EXCLUDED.symbol"),
				"name":      gorm.Expr("EXCLUDED.name"),
				"price_usd": gorm.Expr("EXCLUDED.price_usd"),
				"payload":   gorm.Expr("EXCLUDED.payload"),
			}),
		}).Create(&pools).Error
		if err == nil {
			break
		}
	}
	if err != nil {
		w.tl.Warn("❌ DB write failed, exceeded the maximum number of retries", zap.Error(err), zap.Int("pools", len(pools)))
		return err
	}
	return nil
}

func (w *DbPoolWriter) Close() error {
	return nil
}

// ToPool Listing 转 pools 表记录
func ToPool(l model.Listing) model.Pool {
	p := model.Pool{
		ChainID:     l.ChainID,
		Address:     l.Pool.PoolAddress,
		Tokens:      pq.StringArray{l.Pool.Token0, l.Pool.Token1},
		NewToken:    l.Pool.NewToken,
		Symbol:      model.DefaultSymbol,
		Name:        model.DefaultName,
		FeeTier:     l.Pool.FeeTier,
		PriceUsd:    l.PriceUsd,
		BlockNumber: l.Pool.BlockNumber,
		TxHash:      l.Pool.TxHash,
	}
	if l.Token != nil {
		p.Symbol = l.Token.Symbol
		p.Name = l.Token.Name
	}
	if raw, err := sonic.Marshal(l); err == nil {
		payload := datatypes.JSON(raw)
		p.Payload = &payload
	}
	return p
}
