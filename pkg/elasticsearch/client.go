package elasticsearch

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

type Client struct {
	es     *elasticsearch.Client
	logger *zap.Logger
}

type Config struct {
	Addresses []string
	Username  string
	Password  string
	Indexs    map[string]map[string]interface{} // indexName -> mapping
}

// BulkOperation 批量操作的结构
type BulkOperation struct {
	Action   string                 `json:"action"`   // index, create, delete
	Index    string                 `json:"index"`    // 索引名
	ID       string                 `json:"id"`       // 文档ID
	Document map[string]interface{} `json:"document"` // 文档内容
}

func NewClient(cfg Config, log *zap.Logger) (*Client, error) {
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	client := &Client{
		es:     es,
		logger: log,
	}

	// 初始化索引
	for indexName, mapping := range cfg.Indexs {
		if err := client.CreateIndex(context.Background(), indexName, mapping); err != nil {
			log.Error("Failed to initialize ES index", zap.String("index", indexName), zap.Error(err))
		}
	}

	return client, nil
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// BulkWrite 批量操作，任一条目失败即返回错误
func (c *Client) BulkWrite(ctx context.Context, operations []BulkOperation) error {
	if len(operations) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, op := range operations {
		actionLine := map[string]interface{}{
			op.Action: map[string]interface{}{
				"_index": op.Index,
				"_id":    op.ID,
			},
		}
		actionBytes, err := sonic.Marshal(actionLine)
		if err != nil {
			return fmt.Errorf("marshal bulk action: %w", err)
		}
		buf.Write(actionBytes)
		buf.WriteByte('\n')

		if (op.Action == "index" || op.Action == "create") && op.Document != nil {
			docBytes, err := sonic.Marshal(op.Document)
			if err != nil {
				return fmt.Errorf("marshal bulk document %s: %w", op.ID, err)
			}
			buf.Write(docBytes)
			buf.WriteByte('\n')
		}
	}

	req := esapi.BulkRequest{
		Body: &buf,
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("bulk operation failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk operation error: %s", res.String())
	}

	var parsed bulkResponse
	if err := sonic.ConfigDefault.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if parsed.Errors {
		for _, item := range parsed.Items {
			for action, result := range item {
				if result.Status >= 300 {
					return fmt.Errorf("bulk %s failed: %s: %s", action, result.Error.Type, result.Error.Reason)
				}
			}
		}
	}

	c.logger.Debug("Bulk write operation completed",
		zap.Int("operations", len(operations)))

	return nil
}

// CreateIndex 创建索引
func (c *Client) CreateIndex(ctx context.Context, indexName string, mapping map[string]interface{}) error {
	mappingJSON, err := sonic.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	req := esapi.IndicesCreateRequest{
		Index: indexName,
		Body:  bytes.NewReader(mappingJSON),
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
		return fmt.Errorf("failed to create index: %s", res.String())
	}

	c.logger.Info("Index created or already exists", zap.String("index", indexName))
	return nil
}

// Search 普通搜索
func (c *Client) Search(ctx context.Context, indexName string, query map[string]interface{}) (*SearchResult, error) {
	queryJSON, err := sonic.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{indexName},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var result SearchResult
	if err := sonic.ConfigDefault.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search result: %w", err)
	}

	return &result, nil
}

type SearchResult struct {
	Took     int  `json:"took"`
	TimedOut bool `json:"timed_out"`
	Hits     struct {
		Total struct {
			Value    int    `json:"value"`
			Relation string `json:"relation"`
		} `json:"total"`
		MaxScore float64 `json:"max_score"`
		Hits     []Hit   `json:"hits"`
	} `json:"hits"`
}

type Hit struct {
	Index  string                 `json:"_index"`
	ID     string                 `json:"_id"`
	Score  float64                `json:"_score"`
	Source map[string]interface{} `json:"_source"`
}
