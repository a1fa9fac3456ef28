package service

import (
	"context"
	"fmt"
	"time"

	"baseflow/internal/worker/dao"
	"baseflow/internal/worker/model"
	"baseflow/internal/worker/monitor"
	"baseflow/internal/worker/writer"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// TokenInfoSource token.Resolver 的子集
type TokenInfoSource interface {
	GetTokenInfo(ctx context.Context, token common.Address) (*model.TokenInfo, error)
}

// ListingService 新池子回调：去重、补全、推送
type ListingService struct {
	tl            *zap.Logger
	chainID       int64
	seen          dao.SeenPoolDAO
	tokens        TokenInfoSource
	sink          writer.BatchWriter[model.Listing]
	enrichTimeout time.Duration
	now           func() time.Time
}

func NewListingService(chainID int64, seen dao.SeenPoolDAO, tokens TokenInfoSource, sink writer.BatchWriter[model.Listing], enrichTimeout time.Duration, tl *zap.Logger) *ListingService {
	if enrichTimeout <= 0 {
		enrichTimeout = 10 * time.Second
	}
	return &ListingService{
		tl:            tl,
		chainID:       chainID,
		seen:          seen,
		tokens:        tokens,
		sink:          sink,
		enrichTimeout: enrichTimeout,
		now:           time.Now,
	}
}

// OnPoolDiscovered 返回错误时 monitor 不推进游标，同一事件会被再次投递
func (s *ListingService) OnPoolDiscovered(ctx context.Context, ev model.PoolEvent) error {
	logger := s.tl.With(zap.String("pool", ev.PoolAddress), zap.String("token", ev.NewToken))

	seen, err := s.seen.IsSeen(ctx, ev.PoolAddress)
	if err != nil {
		// 去重不可用时宁可重复推送，下游按池子地址幂等
		logger.Warn("seen pool lookup failed", zap.Error(err))
	}
	if seen {
		monitor.ListingsPublished.WithLabelValues("duplicate").Inc()
		logger.Debug("pool already seen")
		return nil
	}

	now := s.now()
	listing := model.Listing{
		ChainID:      s.chainID,
		Pool:         ev,
		DiscoveredAt: now.UnixMilli(),
	}
	s.enrich(ctx, &listing, logger)

	if s.sink != nil {
		if err := s.sink.BWrite(ctx, []model.Listing{listing}); err != nil {
			monitor.ListingsPublished.WithLabelValues("failed").Inc()
			return fmt.Errorf("publish listing %s: %w", ev.PoolAddress, err)
		}
	}

	if err := s.seen.MarkSeen(ctx, ev.PoolAddress, now); err != nil {
		logger.Warn("mark pool seen failed", zap.Error(err))
	}
	monitor.ListingsPublished.WithLabelValues("published").Inc()

	fields := []zap.Field{zap.Uint64("block", ev.BlockNumber), zap.Uint32("fee", ev.FeeTier)}
	if listing.Token != nil {
		fields = append(fields,
			zap.String("symbol", listing.Token.Symbol),
			zap.String("price_usd", listing.PriceUsd.String()),
			zap.Bool("renounced", listing.Token.OwnershipRenounced))
	}
	logger.Info("new listing", fields...)
	return nil
}

// enrich 尽力补全，失败只记日志
func (s *ListingService) enrich(ctx context.Context, listing *model.Listing, logger *zap.Logger) {
	if s.tokens == nil || !common.IsHexAddress(listing.Pool.NewToken) {
		return
	}
	ectx, cancel := context.WithTimeout(ctx, s.enrichTimeout)
	defer cancel()

	info, err := s.tokens.GetTokenInfo(ectx, common.HexToAddress(listing.Pool.NewToken))
	if err != nil {
		logger.Warn("token enrichment failed", zap.Error(err))
		return
	}
	listing.Token = info
	listing.PriceUsd = info.PriceUsd
}
