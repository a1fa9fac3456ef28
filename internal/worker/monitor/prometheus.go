package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	// QuoteTotal 报价结果
	QuoteTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_requests_total",
			Help: "Total number of quote simulations by outcome.",
		},
		[]string{"outcome"},
	)

	// SwapTotal 兑换执行
	SwapTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "swap_executions_total",
			Help: "Total number of swap executions by direction and terminal state.",
		},
		[]string{"direction", "status"},
	)
	SwapDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "swap_execution_duration_seconds",
			Help:    "Time from quote to terminal receipt.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"direction"},
	)
	ApproveTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "swap_approvals_total",
			Help: "Total number of approval transactions submitted before a swap.",
		},
	)

	// DiscoveredPools 池子发现
	DiscoveredPools = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "discovery_pools_discovered_total",
			Help: "Total number of pool creation events dispatched.",
		},
	)
	DiscoveryCycleErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_cycle_errors_total",
			Help: "Total number of failed polling cycles by stage.",
		},
		[]string{"stage"},
	)
	DiscoveryCursor = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "discovery_cursor_block",
			Help: "Last fully dispatched block number.",
		},
	)
	ListingsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listings_published_total",
			Help: "Total number of new listings by outcome.",
		},
		[]string{"outcome"},
	)

	// AsyncWriterMessagesQueued AsyncWriter 指标
	AsyncWriterMessagesQueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_messages_queued_total",
			Help: "Total number of messages queued to async writer.",
		},
		[]string{"writer_id"},
	)
	AsyncWriterMessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_messages_dropped_total",
			Help: "Total number of messages dropped due to full queue.",
		},
		[]string{"writer_id"},
	)
	AsyncWriterBatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "async_writer_batch_size",
			Help:    "Number of items in each batch submitted to the writer.",
			Buckets: []float64{1, 5, 10, 50, 100, 500},
		},
		[]string{"writer_id"},
	)
	AsyncWriterFlushCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_flush_count_total",
			Help: "Total number of batch flushes triggered.",
		},
		[]string{"writer_id"},
	)
	AsyncWriterFlushErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_flush_errors_total",
			Help: "Total number of batch flushes that returned an error.",
		},
		[]string{"writer_id"},
	)
	AsyncWriterFlushDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "async_writer_flush_duration_seconds",
			Help:    "Time taken to flush a batch.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"writer_id"},
	)
	AsyncWriterItemsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "async_writer_items_written_total",
			Help: "Total number of items successfully written by the async writer.",
		},
		[]string{"writer_id"},
	)
)

func init() {
	prometheus.MustRegister(
		QuoteTotal,

		// 兑换指标
		SwapTotal,
		SwapDuration,
		ApproveTotal,

		// 发现指标
		DiscoveredPools,
		DiscoveryCycleErrors,
		DiscoveryCursor,
		ListingsPublished,

		// async 写入指标
		AsyncWriterMessagesQueued,
		AsyncWriterMessagesDropped,
		AsyncWriterBatchSize,
		AsyncWriterFlushCount,
		AsyncWriterFlushErrors,
		AsyncWriterFlushDuration,
		AsyncWriterItemsWritten,
	)
}
