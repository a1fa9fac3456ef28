package dao

import (
	"context"

	"baseflow/internal/worker/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VolumeDAO volume_tracking 累加
type VolumeDAO interface {
	// Add 按 (token_address, date) upsert，累加 volume_native 与 trade_count
	Add(ctx context.Context, v model.Volume) error
}

type volumeDAO struct {
	db *gorm.DB
}

func NewVolumeDAO(db *gorm.DB) VolumeDAO {
	return &volumeDAO{db: db}
}

func (d *volumeDAO) Add(ctx context.Context, v model.Volume) error {
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "token_address"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"volume_native": gorm.Expr("volume_tracking.volume_native + ?", v.VolumeNative),
			"trade_count":   gorm.Expr("volume_tracking.trade_count + ?", v.TradeCount),
			"updated_at":    gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&v).Error
}
