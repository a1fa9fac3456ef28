package elasticsearch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{Addresses: []string{srv.URL}}, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestBulkWriteBody(t *testing.T) {
	var body string
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_bulk", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		_, _ = w.Write([]byte(`{"errors":false,"items":[{"index":{"status":201}}]}`))
	})

	err := c.BulkWrite(context.Background(), []BulkOperation{{
		Action:   "index",
		Index:    "listings",
		ID:       "0xpool",
		Document: map[string]interface{}{"symbol": "PEPE"},
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"_index":"listings"`)
	assert.Contains(t, lines[0], `"_id":"0xpool"`)
	assert.Equal(t, `{"symbol":"PEPE"}`, lines[1])
}

func TestBulkWriteItemError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":true,"items":[{"index":{"status":400,"error":{"type":"mapper_parsing_exception","reason":"bad field"}}}]}`))
	})

	err := c.BulkWrite(context.Background(), []BulkOperation{{Action: "index", Index: "listings", ID: "1", Document: map[string]interface{}{}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestSearch(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/listings/_search", r.URL.Path)
		_, _ = w.Write([]byte(`{"took":1,"hits":{"total":{"value":1},"hits":[{"_id":"0xpool","_source":{"symbol":"PEPE"}}]}}`))
	})

	res, err := c.Search(context.Background(), "listings", map[string]interface{}{"size": 1})
	require.NoError(t, err)
	require.Len(t, res.Hits.Hits, 1)
	assert.Equal(t, "PEPE", res.Hits.Hits[0].Source["symbol"])
}
