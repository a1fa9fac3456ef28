package discovery

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"baseflow/internal/worker/chain"
	"baseflow/internal/worker/model"
	"baseflow/internal/worker/monitor"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	default:
		return "STOPPED"
	}
}

var (
	ErrMonitorStopped = errors.New("monitor stopped")
	ErrAlreadyRunning = errors.New("monitor already running")
)

type Config struct {
	Factory       common.Address
	WrappedNative common.Address
	PollInterval  time.Duration
	ErrorBackoff  time.Duration
	MaxBlockRange uint64 // 0 不限制
}

// Monitor 按区块区间轮询 PoolCreated。游标只在区间内事件全部投递成功后推进，
// 失败时同一区间下轮重扫，投递语义为至少一次。
type Monitor struct {
	client  chain.Client
	handler Handler
	cfg     Config
	tl      *zap.Logger

	cursor   atomic.Uint64
	state    atomic.Int32
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewMonitor(client chain.Client, handler Handler, cfg Config, tl *zap.Logger) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 30 * time.Second
	}
	return &Monitor{
		client:  client,
		handler: handler,
		cfg:     cfg,
		tl:      tl,
		stopCh:  make(chan struct{}),
	}
}

func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Cursor 最后一个完整投递的区块
func (m *Monitor) Cursor() uint64 {
	return m.cursor.Load()
}

// Start 把游标设为当前高度并进入 RUNNING，不回补历史池子
func (m *Monitor) Start(ctx context.Context) error {
	switch m.State() {
	case StateStopped:
		return ErrMonitorStopped
	case StateRunning:
		return ErrAlreadyRunning
	}
	head, err := m.client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("init cursor: %w", err)
	}
	if !m.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		// 等待区块高度期间可能已被 Stop
		if m.State() == StateStopped {
			return ErrMonitorStopped
		}
		return ErrAlreadyRunning
	}
	m.setCursor(head)
	m.tl.Info("Pool discovery started", zap.Uint64("cursor", head), zap.String("factory", m.cfg.Factory.Hex()))
	return nil
}

// Run 阻塞直到 Stop 或 ctx 结束；启动前取高度失败会按退避时间重试
func (m *Monitor) Run(ctx context.Context) error {
	for {
		err := m.Start(ctx)
		if err == nil {
			break
		}
		if errors.Is(err, ErrMonitorStopped) || errors.Is(err, ErrAlreadyRunning) {
			return err
		}
		m.tl.Warn("Pool discovery start failed, backing off", zap.Error(err), zap.Duration("backoff", m.cfg.ErrorBackoff))
		if !m.wait(ctx, m.cfg.ErrorBackoff) {
			m.markStopped()
			return ctx.Err()
		}
	}
	defer m.markStopped()

	for {
		select {
		case <-m.stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		interval := m.cfg.PollInterval
		if err := m.Poll(ctx); err != nil {
			m.tl.Warn("Pool discovery cycle failed, cursor unchanged",
				zap.Uint64("cursor", m.Cursor()),
				zap.Duration("backoff", m.cfg.ErrorBackoff),
				zap.Error(err))
			interval = m.cfg.ErrorBackoff
		}
		if !m.wait(ctx, interval) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}
	}
}

// Stop 在下一次轮询前停止循环，之后不可重启
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	m.markStopped()
}

// Poll 执行一个轮询周期
func (m *Monitor) Poll(ctx context.Context) error {
	if m.State() != StateRunning {
		return ErrMonitorStopped
	}
	current, err := m.client.BlockNumber(ctx)
	if err != nil {
		monitor.DiscoveryCycleErrors.WithLabelValues("head").Inc()
		return fmt.Errorf("block number: %w", err)
	}
	last := m.Cursor()
	if current <= last {
		return nil
	}

	from, to := last+1, current
	if m.cfg.MaxBlockRange > 0 && to-last > m.cfg.MaxBlockRange {
		to = last + m.cfg.MaxBlockRange
	}

	logs, err := m.client.FilterLogs(ctx, chain.LogQuery{
		FromBlock: from,
		ToBlock:   to,
		Address:   m.cfg.Factory,
		Topic:     chain.PoolCreatedTopic,
	})
	if err != nil {
		monitor.DiscoveryCycleErrors.WithLabelValues("logs").Inc()
		return fmt.Errorf("filter logs [%d,%d]: %w", from, to, err)
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	for _, l := range logs {
		if l.Removed {
			continue
		}
		ev, err := DecodePoolCreated(l, m.cfg.WrappedNative)
		if err != nil {
			// 无法解析的日志重扫也不会变化，跳过
			m.tl.Warn("Skip malformed PoolCreated log", zap.String("tx", l.TxHash.Hex()), zap.Uint("index", l.Index), zap.Error(err))
			continue
		}
		if err := m.handler.OnPoolDiscovered(ctx, ev); err != nil {
			monitor.DiscoveryCycleErrors.WithLabelValues("handler").Inc()
			return fmt.Errorf("dispatch pool %s: %w", ev.PoolAddress, err)
		}
		monitor.DiscoveredPools.Inc()
		m.tl.Info("New pool discovered",
			zap.String("pool", ev.PoolAddress),
			zap.String("token", ev.NewToken),
			zap.Uint32("fee", ev.FeeTier),
			zap.Uint64("block", ev.BlockNumber))
	}

	m.setCursor(to)
	return nil
}

// DecodePoolCreated 解析 PoolCreated(token0, token1, fee, tickSpacing, pool)，排除 wrapped native 得到新代币
func DecodePoolCreated(l types.Log, wrappedNative common.Address) (model.PoolEvent, error) {
	if len(l.Topics) != 4 || l.Topics[0] != chain.PoolCreatedTopic {
		return model.PoolEvent{}, fmt.Errorf("unexpected topics count %d", len(l.Topics))
	}
	values, err := chain.FactoryABI.Unpack("PoolCreated", l.Data)
	if err != nil {
		return model.PoolEvent{}, err
	}
	if len(values) != 2 {
		return model.PoolEvent{}, fmt.Errorf("unexpected data fields %d", len(values))
	}
	tickSpacing, _ := values[0].(*big.Int)
	pool, _ := values[1].(common.Address)

	token0 := common.BytesToAddress(l.Topics[1].Bytes())
	token1 := common.BytesToAddress(l.Topics[2].Bytes())
	fee := new(big.Int).SetBytes(l.Topics[3].Bytes())

	newToken := token0
	if token0 == wrappedNative {
		newToken = token1
	}

	ev := model.PoolEvent{
		Token0:      token0.Hex(),
		Token1:      token1.Hex(),
		NewToken:    newToken.Hex(),
		FeeTier:     uint32(fee.Uint64()),
		PoolAddress: pool.Hex(),
		BlockNumber: l.BlockNumber,
		TxHash:      l.TxHash.Hex(),
		LogIndex:    l.Index,
	}
	if tickSpacing != nil {
		ev.TickSpacing = int32(tickSpacing.Int64())
	}
	return ev, nil
}

func (m *Monitor) setCursor(n uint64) {
	m.cursor.Store(n)
	monitor.DiscoveryCursor.Set(float64(n))
}

func (m *Monitor) markStopped() {
	m.state.Store(int32(StateStopped))
}

func (m *Monitor) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-m.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}
