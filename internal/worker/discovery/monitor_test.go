package discovery

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"baseflow/internal/worker/chain"
	"baseflow/internal/worker/chain/chaintest"
	"baseflow/internal/worker/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	factory = common.HexToAddress("0x33128a8fC17869897dcE68Ed026d694621f6FDfD")
	weth    = common.HexToAddress("0x4200000000000000000000000000000000000006")
	tokenA  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokenB  = common.HexToAddress("0x00000000000000000000000000000000000000f2")
	poolX   = common.HexToAddress("0x0000000000000000000000000000000000000b01")
	poolY   = common.HexToAddress("0x0000000000000000000000000000000000000b02")
)

func poolLog(t *testing.T, block uint64, index uint, token0, token1 common.Address, fee int64, pool common.Address) types.Log {
	t.Helper()
	data, err := chain.FactoryABI.Events["PoolCreated"].Inputs.NonIndexed().Pack(big.NewInt(60), pool)
	require.NoError(t, err)
	return types.Log{
		Address: factory,
		Topics: []common.Hash{
			chain.PoolCreatedTopic,
			common.BytesToHash(token0.Bytes()),
			common.BytesToHash(token1.Bytes()),
			common.BigToHash(big.NewInt(fee)),
		},
		Data:        data,
		BlockNumber: block,
		Index:       index,
		TxHash:      common.BigToHash(big.NewInt(int64(block*1000) + int64(index))),
	}
}

type recorder struct {
	mu     sync.Mutex
	events []model.PoolEvent
	fail   func(ev model.PoolEvent) error
	onCall func()
}

func (r *recorder) OnPoolDiscovered(_ context.Context, ev model.PoolEvent) error {
	if r.onCall != nil {
		r.onCall()
	}
	if r.fail != nil {
		if err := r.fail(ev); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) snapshot() []model.PoolEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.PoolEvent(nil), r.events...)
}

func newMonitor(fake *chaintest.Fake, h Handler, maxRange uint64) *Monitor {
	return NewMonitor(fake, h, Config{
		Factory:       factory,
		WrappedNative: weth,
		PollInterval:  10 * time.Millisecond,
		ErrorBackoff:  20 * time.Millisecond,
		MaxBlockRange: maxRange,
	}, zap.NewNop())
}

func TestPollDispatchesInBlockOrderThenAdvances(t *testing.T) {
	fake := chaintest.New(8453)
	fake.SetHead(100)
	// 故意乱序加入
	fake.AddLog(poolLog(t, 104, 0, tokenB, weth, 10000, poolY))
	fake.AddLog(poolLog(t, 102, 3, weth, tokenA, 3000, poolX))
	// 其它合约的日志不应被投递
	stray := poolLog(t, 103, 0, tokenA, tokenB, 500, poolY)
	stray.Address = common.HexToAddress("0x01")
	fake.AddLog(stray)

	rec := &recorder{}
	m := newMonitor(fake, rec, 0)
	rec.onCall = func() {
		assert.Equal(t, uint64(100), m.Cursor())
	}

	require.NoError(t, m.Start(context.Background()))
	assert.Equal(t, uint64(100), m.Cursor())
	assert.Equal(t, StateRunning, m.State())

	fake.SetHead(105)
	require.NoError(t, m.Poll(context.Background()))

	events := rec.snapshot()
	require.Len(t, events, 2)
	assert.Equal(t, uint64(102), events[0].BlockNumber)
	assert.Equal(t, tokenA.Hex(), events[0].NewToken)
	assert.Equal(t, poolX.Hex(), events[0].PoolAddress)
	assert.Equal(t, uint32(3000), events[0].FeeTier)
	assert.Equal(t, int32(60), events[0].TickSpacing)
	assert.Equal(t, uint64(104), events[1].BlockNumber)
	assert.Equal(t, tokenB.Hex(), events[1].NewToken)
	assert.Equal(t, uint64(105), m.Cursor())

	queries := fake.LogQueries()
	require.Len(t, queries, 1)
	assert.Equal(t, uint64(101), queries[0].FromBlock)
	assert.Equal(t, uint64(105), queries[0].ToBlock)
}

func TestPollLogFailureKeepsCursorAndRetriesRange(t *testing.T) {
	fake := chaintest.New(8453)
	fake.SetHead(100)
	fake.AddLog(poolLog(t, 102, 0, weth, tokenA, 3000, poolX))

	rec := &recorder{}
	m := newMonitor(fake, rec, 0)
	require.NoError(t, m.Start(context.Background()))

	fake.SetHead(105)
	fake.FailNextLogs(errors.New("upstream 503"))
	require.Error(t, m.Poll(context.Background()))
	assert.Equal(t, uint64(100), m.Cursor())
	assert.Empty(t, rec.snapshot())

	require.NoError(t, m.Poll(context.Background()))
	assert.Equal(t, uint64(105), m.Cursor())
	assert.Len(t, rec.snapshot(), 1)

	queries := fake.LogQueries()
	require.Len(t, queries, 2)
	assert.Equal(t, queries[0], queries[1])
	assert.Equal(t, uint64(101), queries[1].FromBlock)
}

func TestPollHeadFailureKeepsCursor(t *testing.T) {
	fake := chaintest.New(8453)
	fake.SetHead(100)
	m := newMonitor(fake, &recorder{}, 0)
	require.NoError(t, m.Start(context.Background()))

	fake.FailHead(errors.New("timeout"))
	require.Error(t, m.Poll(context.Background()))
	assert.Equal(t, uint64(100), m.Cursor())
	assert.Empty(t, fake.LogQueries())
}

func TestPollHandlerFailureRedelivers(t *testing.T) {
	fake := chaintest.New(8453)
	fake.SetHead(100)
	fake.AddLog(poolLog(t, 102, 0, weth, tokenA, 3000, poolX))
	fake.AddLog(poolLog(t, 104, 0, tokenB, weth, 3000, poolY))

	failOnce := true
	rec := &recorder{fail: func(ev model.PoolEvent) error {
		if ev.PoolAddress == poolY.Hex() && failOnce {
			failOnce = false
			return errors.New("sink down")
		}
		return nil
	}}
	m := newMonitor(fake, rec, 0)
	require.NoError(t, m.Start(context.Background()))
	fake.SetHead(105)

	require.Error(t, m.Poll(context.Background()))
	assert.Equal(t, uint64(100), m.Cursor())

	require.NoError(t, m.Poll(context.Background()))
	assert.Equal(t, uint64(105), m.Cursor())

	// poolX 被投递两次
	events := rec.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, poolX.Hex(), events[0].PoolAddress)
	assert.Equal(t, poolX.Hex(), events[1].PoolAddress)
	assert.Equal(t, poolY.Hex(), events[2].PoolAddress)
}

func TestPollNoNewBlocks(t *testing.T) {
	fake := chaintest.New(8453)
	fake.SetHead(100)
	m := newMonitor(fake, &recorder{}, 0)
	require.NoError(t, m.Start(context.Background()))

	require.NoError(t, m.Poll(context.Background()))
	assert.Empty(t, fake.LogQueries())
	assert.Equal(t, uint64(100), m.Cursor())
}

func TestPollMaxBlockRange(t *testing.T) {
	fake := chaintest.New(8453)
	fake.SetHead(100)
	fake.AddLog(poolLog(t, 105, 0, weth, tokenA, 3000, poolX))
	rec := &recorder{}
	m := newMonitor(fake, rec, 3)
	require.NoError(t, m.Start(context.Background()))
	fake.SetHead(105)

	require.NoError(t, m.Poll(context.Background()))
	assert.Equal(t, uint64(103), m.Cursor())
	assert.Empty(t, rec.snapshot())

	require.NoError(t, m.Poll(context.Background()))
	assert.Equal(t, uint64(105), m.Cursor())
	assert.Len(t, rec.snapshot(), 1)

	queries := fake.LogQueries()
	require.Len(t, queries, 2)
	assert.Equal(t, uint64(104), queries[1].FromBlock)
	assert.Equal(t, uint64(105), queries[1].ToBlock)
}

func TestDecodePoolCreatedPicksNonWrappedToken(t *testing.T) {
	ev, err := DecodePoolCreated(poolLog(t, 1, 0, weth, tokenA, 500, poolX), weth)
	require.NoError(t, err)
	assert.Equal(t, tokenA.Hex(), ev.NewToken)

	ev, err = DecodePoolCreated(poolLog(t, 1, 0, tokenB, weth, 500, poolX), weth)
	require.NoError(t, err)
	assert.Equal(t, tokenB.Hex(), ev.NewToken)
	assert.Equal(t, uint32(500), ev.FeeTier)

	bad := poolLog(t, 1, 0, tokenB, weth, 500, poolX)
	bad.Topics = bad.Topics[:2]
	_, err = DecodePoolCreated(bad, weth)
	assert.Error(t, err)
}

func TestRunStopLifecycle(t *testing.T) {
	fake := chaintest.New(8453)
	fake.SetHead(100)
	rec := &recorder{}
	m := newMonitor(fake, rec, 0)

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()

	require.Eventually(t, func() bool { return m.State() == StateRunning }, time.Second, 5*time.Millisecond)
	fake.AddLog(poolLog(t, 101, 0, weth, tokenA, 3000, poolX))
	fake.SetHead(101)
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return m.Cursor() == 101 }, time.Second, 5*time.Millisecond)

	m.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
	assert.Equal(t, StateStopped, m.State())
	assert.ErrorIs(t, m.Start(context.Background()), ErrMonitorStopped)
	assert.ErrorIs(t, m.Poll(context.Background()), ErrMonitorStopped)
}

// stoppingHead 在返回区块高度前停止监控
type stoppingHead struct {
	*chaintest.Fake
	m *Monitor
}

func (s *stoppingHead) BlockNumber(ctx context.Context) (uint64, error) {
	s.m.Stop()
	return s.Fake.BlockNumber(ctx)
}

func TestStartStoppedWhileFetchingHead(t *testing.T) {
	fake := chaintest.New(8453)
	fake.SetHead(100)
	client := &stoppingHead{Fake: fake}
	m := NewMonitor(client, &recorder{}, Config{
		Factory:       factory,
		WrappedNative: weth,
		PollInterval:  10 * time.Millisecond,
		ErrorBackoff:  20 * time.Millisecond,
	}, zap.NewNop())
	client.m = m

	assert.ErrorIs(t, m.Start(context.Background()), ErrMonitorStopped)
	assert.Equal(t, StateStopped, m.State())
	assert.Equal(t, uint64(0), m.Cursor())
}

func TestRunContextCancel(t *testing.T) {
	fake := chaintest.New(8453)
	fake.SetHead(1)
	m := newMonitor(fake, &recorder{}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	require.Eventually(t, func() bool { return m.State() == StateRunning }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
	assert.Equal(t, StateStopped, m.State())
}

func TestFanoutJoinsErrors(t *testing.T) {
	var calls int
	ok := HandlerFunc(func(context.Context, model.PoolEvent) error { calls++; return nil })
	bad := HandlerFunc(func(context.Context, model.PoolEvent) error { calls++; return errors.New("kafka down") })

	err := Fanout{ok, bad, ok}.OnPoolDiscovered(context.Background(), model.PoolEvent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka down")
	assert.Equal(t, 3, calls)
	assert.NoError(t, Fanout{ok}.OnPoolDiscovered(context.Background(), model.PoolEvent{}))
}
