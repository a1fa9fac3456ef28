package job

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"baseflow/internal/worker/dao"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSchedulerRunsPeriodicAndOnceJobs(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	var ticks atomic.Int32
	s.RegisterJob("tick", 10*time.Millisecond, func(ctx context.Context) error {
		ticks.Add(1)
		return nil
	})

	var onceStarted, onceStopped atomic.Bool
	s.RegisterOnceJob("loop", func(ctx context.Context) error {
		onceStarted.Store(true)
		<-ctx.Done()
		onceStopped.Store(true)
		return ctx.Err()
	})

	s.Start(context.Background())
	require.Eventually(t, func() bool { return ticks.Load() >= 3 && onceStarted.Load() }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(stopCtx)

	// Stop 会取消长期运行的单次任务
	assert.True(t, onceStopped.Load())

	// 重复 Stop 无副作用
	s.Stop(stopCtx)
}

func TestJobContextDeadline(t *testing.T) {
	s := NewScheduler(zap.NewNop())

	periodic := make(chan bool, 1)
	s.RegisterJob("tick", 20*time.Millisecond, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		select {
		case periodic <- ok:
		default:
		}
		return nil
	})
	once := make(chan bool, 1)
	s.RegisterOnceJob("loop", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		once <- ok
		<-ctx.Done()
		return ctx.Err()
	})

	s.Start(context.Background())
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(stopCtx)
	}()

	// 周期任务带超时，单次任务只能被取消
	select {
	case ok := <-periodic:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("periodic job did not run")
	}
	select {
	case ok := <-once:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("once job did not run")
	}
}

func TestSeenPoolCleanup(t *testing.T) {
	seen := dao.NewMemorySeenPoolDAO(time.Hour)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	require.NoError(t, seen.MarkSeen(ctx, "0xold", now.Add(-48*time.Hour)))
	require.NoError(t, seen.MarkSeen(ctx, "0xnew", now.Add(-time.Hour)))

	j := NewSeenPoolCleanup(seen, 24*time.Hour, zap.NewNop())
	j.now = func() time.Time { return now }
	require.NoError(t, j.Run(ctx))

	ok, _ := seen.IsSeen(ctx, "0xold")
	assert.False(t, ok)
	ok, _ = seen.IsSeen(ctx, "0xnew")
	assert.True(t, ok)
}

func TestSeenPoolCleanupDisabled(t *testing.T) {
	seen := dao.NewMemorySeenPoolDAO(time.Hour)
	require.NoError(t, seen.MarkSeen(context.Background(), "0xold", time.Unix(0, 0)))

	require.NoError(t, NewSeenPoolCleanup(seen, 0, zap.NewNop()).Run(context.Background()))
	ok, _ := seen.IsSeen(context.Background(), "0xold")
	assert.True(t, ok)
}
