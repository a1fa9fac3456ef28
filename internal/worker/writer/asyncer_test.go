package writer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingWriter struct {
	mu      sync.Mutex
	batches [][]int
	err     error
	closed  bool
}

func (w *recordingWriter) BWrite(_ context.Context, batch []int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := append([]int(nil), batch...)
	w.batches = append(w.batches, cp)
	return w.err
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *recordingWriter) items() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []int
	for _, b := range w.batches {
		out = append(out, b...)
	}
	return out
}

func TestAsyncBatchWriterFlushesOnBatchSize(t *testing.T) {
	rw := &recordingWriter{}
	w := NewAsyncBatchWriter[int](zap.NewNop(), rw, 2, time.Hour, "test_size", 1)
	w.Start(context.Background())

	w.Submit(1)
	w.Submit(2)

	require.Eventually(t, func() bool { return len(rw.items()) == 2 }, time.Second, 5*time.Millisecond)
	w.Close()
	assert.Equal(t, []int{1, 2}, rw.items())
}

func TestAsyncBatchWriterFlushesOnTicker(t *testing.T) {
	rw := &recordingWriter{}
	w := NewAsyncBatchWriter[int](zap.NewNop(), rw, 100, 10*time.Millisecond, "test_tick", 1)
	w.Start(context.Background())
	defer w.Close()

	w.Submit(7)
	require.Eventually(t, func() bool { return len(rw.items()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestAsyncBatchWriterCloseFlushesPending(t *testing.T) {
	rw := &recordingWriter{}
	w := NewAsyncBatchWriter[int](zap.NewNop(), rw, 100, time.Hour, "test_close", 1)
	w.Start(context.Background())

	w.Submit(1)
	w.Submit(2)
	w.Submit(3)
	w.Close()

	assert.ElementsMatch(t, []int{1, 2, 3}, rw.items())
	assert.True(t, rw.closed)

	// 关闭后提交直接丢弃
	w.Submit(4)
	w.Close()
	assert.Len(t, rw.items(), 3)
}

func TestAsyncBatchWriterKeepsRunningAfterError(t *testing.T) {
	rw := &recordingWriter{err: errors.New("boom")}
	w := NewAsyncBatchWriter[int](zap.NewNop(), rw, 1, time.Hour, "test_err", 1)
	w.Start(context.Background())

	w.Submit(1)
	w.Submit(2)
	w.Close()
	assert.Len(t, rw.batches, 2)
}

func TestMulti(t *testing.T) {
	a := &recordingWriter{}
	b := &recordingWriter{err: errors.New("sink down")}
	c := &recordingWriter{}

	m := Multi[int](a, b, c)
	err := m.BWrite(context.Background(), []int{1})
	require.ErrorContains(t, err, "sink down")

	// 一个 sink 失败不影响其他 sink
	assert.Equal(t, []int{1}, a.items())
	assert.Equal(t, []int{1}, c.items())

	require.NoError(t, m.Close())
	assert.True(t, a.closed && b.closed && c.closed)
}
