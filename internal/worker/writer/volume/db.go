package volume

import (
	"context"
	"errors"
	"sort"

	"baseflow/internal/worker/dao"
	"baseflow/internal/worker/model"
	"baseflow/internal/worker/writer"

	"go.uber.org/zap"
)

type DbVolumeWriter struct {
	dao dao.VolumeDAO
	tl  *zap.Logger
}

func NewDbVolumeWriter(volumeDAO dao.VolumeDAO, tl *zap.Logger) writer.BatchWriter[model.Volume] {
	return &DbVolumeWriter{dao: volumeDAO, tl: tl}
}

// BWrite 同一批内先按 (token, date) 合并再累加，减少行锁竞争
func (w *DbVolumeWriter) BWrite(ctx context.Context, batch []model.Volume) error {
	if len(batch) == 0 {
		return nil
	}

	var errs []error
	for _, v := range Aggregate(batch) {
		if err := w.dao.Add(ctx, v); err != nil {
			w.tl.Warn("❌ volume upsert failed",
				zap.String("token", v.TokenAddress),
				zap.String("date", v.Date),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (w *DbVolumeWriter) Close() error {
	return nil
}

// Aggregate 合并同一 token 同一天的记录，输出按 key 排序
func Aggregate(batch []model.Volume) []model.Volume {
	type key struct{ token, date string }
	merged := make(map[key]model.Volume, len(batch))
	for _, v := range batch {
		k := key{v.TokenAddress, v.Date}
		cur, ok := merged[k]
		if !ok {
			merged[k] = v
			continue
		}
		cur.VolumeNative = cur.VolumeNative.Add(v.VolumeNative)
		cur.TradeCount += v.TradeCount
		merged[k] = cur
	}

	out := make([]model.Volume, 0, len(merged))
	for _, v := range merged {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TokenAddress != out[j].TokenAddress {
			return out[i].TokenAddress < out[j].TokenAddress
		}
		return out[i].Date < out[j].Date
	})
	return out
}
