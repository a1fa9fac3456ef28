package writer

import (
	"context"
	"sync"
	"time"

	"baseflow/internal/worker/monitor"

	"go.uber.org/zap"
)

type AsyncBatchWriter[T any] struct {
	id            string
	workers       int
	tl            *zap.Logger
	writer        BatchWriter[T]
	inputChan     chan T
	wg            sync.WaitGroup
	batchSize     int
	flushInterval time.Duration

	mu     sync.RWMutex
	closed bool
}

func NewAsyncBatchWriter[T any](tl *zap.Logger, writer BatchWriter[T], batchSize int, flushInterval time.Duration, id string, workers int) *AsyncBatchWriter[T] {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &AsyncBatchWriter[T]{
		id:            id,
		workers:       workers,
		tl:            tl,
		writer:        writer,
		inputChan:     make(chan T, 10000),
		batchSize:     batchSize,
		flushInterval: flushInterval,
	}
}

func (b *AsyncBatchWriter[T]) Start(ctx context.Context) {
	for i := 0; i < b.workers; i++ {
		b.wg.Add(1)
		go b.processItems(ctx)
	}
}

func (b *AsyncBatchWriter[T]) processItems(ctx context.Context) {
	defer b.wg.Done()
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	var batch = make([]T, 0, b.batchSize)
	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				// ctx 已取消，落库使用独立 ctx
				b.writeAndRecord(context.WithoutCancel(ctx), batch)
			}
			return
		case item, ok := <-b.inputChan:
			if !ok {
				if len(batch) > 0 {
					b.writeAndRecord(ctx, batch)
				}
				return
			}
			batch = append(batch, item)
			if len(batch) >= b.batchSize {
				b.writeAndRecord(ctx, batch)
				batch = make([]T, 0, b.batchSize)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				b.writeAndRecord(ctx, batch)
				batch = make([]T, 0, b.batchSize)
			}
		}
	}
}

// 封装写入操作并记录指标
func (b *AsyncBatchWriter[T]) writeAndRecord(ctx context.Context, batch []T) {
	startTime := time.Now()
	size := len(batch)

	monitor.AsyncWriterBatchSize.WithLabelValues(b.id).Observe(float64(size))

	if err := b.writer.BWrite(ctx, batch); err != nil {
		monitor.AsyncWriterFlushErrors.WithLabelValues(b.id).Inc()
		b.tl.Warn("Async batch write failed", zap.String("id", b.id), zap.Int("size", size), zap.Error(err))
	} else {
		monitor.AsyncWriterItemsWritten.WithLabelValues(b.id).Add(float64(size))
	}

	elapsed := time.Since(startTime).Seconds()
	monitor.AsyncWriterFlushDuration.WithLabelValues(b.id).Observe(elapsed)
	monitor.AsyncWriterFlushCount.WithLabelValues(b.id).Inc()
}

// Submit 非阻塞提交，队列满或已关闭时丢弃
func (b *AsyncBatchWriter[T]) Submit(item T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		monitor.AsyncWriterMessagesDropped.WithLabelValues(b.id).Inc()
		b.tl.Warn("Batch writer closed, dropping item", zap.String("id", b.id))
		return
	}

	select {
	case b.inputChan <- item:
		monitor.AsyncWriterMessagesQueued.WithLabelValues(b.id).Inc()
	default:
		monitor.AsyncWriterMessagesDropped.WithLabelValues(b.id).Inc()
		b.tl.Warn("Batch input channel full, dropping item", zap.String("id", b.id))
	}
}

// Close 刷出剩余数据后关闭底层 writer
func (b *AsyncBatchWriter[T]) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.inputChan)
	b.mu.Unlock()

	b.wg.Wait()
	_ = b.writer.Close()
}
