package discovery

import (
	"context"
	"errors"

	"baseflow/internal/worker/model"
)

// Handler 发现回调，同一个池子可能被重复投递，实现必须幂等
type Handler interface {
	OnPoolDiscovered(ctx context.Context, ev model.PoolEvent) error
}

type HandlerFunc func(ctx context.Context, ev model.PoolEvent) error

func (f HandlerFunc) OnPoolDiscovered(ctx context.Context, ev model.PoolEvent) error {
	return f(ctx, ev)
}

// Fanout 依次调用所有 handler，任一失败整体失败，游标不推进
type Fanout []Handler

func (f Fanout) OnPoolDiscovered(ctx context.Context, ev model.PoolEvent) error {
	var errs []error
	for _, h := range f {
		if err := h.OnPoolDiscovered(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
