package job

import (
	"context"
	"time"

	"baseflow/internal/worker/dao"

	"go.uber.org/zap"
)

// SeenPoolCleanup 清理已见池子集合中超过 ttl 的成员
type SeenPoolCleanup struct {
	seen   dao.SeenPoolDAO
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewSeenPoolCleanup(seen dao.SeenPoolDAO, ttl time.Duration, logger *zap.Logger) *SeenPoolCleanup {
	return &SeenPoolCleanup{seen: seen, ttl: ttl, logger: logger, now: time.Now}
}

func (j *SeenPoolCleanup) Run(ctx context.Context) error {
	if j.ttl <= 0 {
		return nil
	}
	cutoff := j.now().Add(-j.ttl)
	n, err := j.seen.Trim(ctx, cutoff)
	if err != nil {
		return err
	}
	j.logger.Info("trimmed seen pools", zap.Time("cutoff", cutoff), zap.Int64("removed", n))
	return nil
}
