package listing

import (
	"context"
	"fmt"
	"strings"

	"baseflow/internal/worker/model"
	"baseflow/internal/worker/writer"
	"baseflow/pkg/elasticsearch"

	"go.uber.org/zap"
)

type ESListingWriter struct {
	esClient *elasticsearch.Client
	logger   *zap.Logger
	index    string
}

func NewESListingWriter(esClient *elasticsearch.Client, logger *zap.Logger, index string) writer.BatchWriter[model.Listing] {
	return &ESListingWriter{
		esClient: esClient,
		logger:   logger,
		index:    index,
	}
}

func (w *ESListingWriter) BWrite(ctx context.Context, listings []model.Listing) error {
	if len(listings) == 0 {
		return nil
	}

	operations := make([]elasticsearch.BulkOperation, 0, len(listings))
	for _, l := range listings {
		operations = append(operations, elasticsearch.BulkOperation{
			Action:   "index",
			Index:    w.index,
			ID:       DocID(l),
			Document: ToDoc(l),
		})
	}

	if err := w.esClient.BulkWrite(ctx, operations); err != nil {
		w.logger.Warn("❌ ES bulk write failed", zap.String("index", w.index), zap.Error(err))
		return err
	}
	return nil
}

func (w *ESListingWriter) Close() error {
	return nil
}

// DocID 同一个池子重复写入覆盖同一文档
func DocID(l model.Listing) string {
	return fmt.Sprintf("%d-%s", l.ChainID, strings.ToLower(l.Pool.PoolAddress))
}

func ToDoc(l model.Listing) map[string]interface{} {
	doc := map[string]interface{}{
		"chain_id":      l.ChainID,
		"pool_address":  strings.ToLower(l.Pool.PoolAddress),
		"token_address": strings.ToLower(l.Pool.NewToken),
		"token0":        l.Pool.Token0,
		"token1":        l.Pool.Token1,
		"fee_tier":      l.Pool.FeeTier,
		"block_number":  l.Pool.BlockNumber,
		"tx_hash":       l.Pool.TxHash,
		"discovered_at": l.DiscoveredAt,
		"price_usd":     l.PriceUsd.InexactFloat64(),
		"symbol":        model.DefaultSymbol,
		"name":          model.DefaultName,
	}
	if l.Token != nil {
		doc["symbol"] = l.Token.Symbol
		doc["name"] = l.Token.Name
		doc["decimals"] = l.Token.Decimals
		doc["ownership_renounced"] = l.Token.OwnershipRenounced
		doc["market_cap_usd"] = l.Token.MarketCapUsd.InexactFloat64()
		doc["low_confidence"] = l.Token.LowConfidence
	}
	return doc
}
