package service

import (
	"context"
	"fmt"

	"baseflow/pkg/elasticsearch"
)

// RecentListings 从 ES 取最近发现的代币，按发现时间倒序
func RecentListings(ctx context.Context, es *elasticsearch.Client, index string, chainID int64, limit int) ([]map[string]interface{}, error) {
	if es == nil {
		return nil, fmt.Errorf("elasticsearch not configured")
	}
	if limit <= 0 {
		limit = 20
	}
	query := map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"term": map[string]interface{}{"chain_id": chainID},
		},
		"sort": []interface{}{
			map[string]interface{}{"discovered_at": map[string]interface{}{"order": "desc"}},
		},
	}
	res, err := es.Search(ctx, index, query)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(res.Hits.Hits))
	for _, h := range res.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
