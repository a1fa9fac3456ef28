package writer

import (
	"context"
	"errors"
)

type BatchWriter[T any] interface {
	BWrite(ctx context.Context, batch []T) error
	Close() error
}

// Multi 把同一批数据写入多个 sink，全部尝试后合并错误
func Multi[T any](writers ...BatchWriter[T]) BatchWriter[T] {
	return multiWriter[T](writers)
}

type multiWriter[T any] []BatchWriter[T]

func (m multiWriter[T]) BWrite(ctx context.Context, batch []T) error {
	var errs []error
	for _, w := range m {
		if err := w.BWrite(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiWriter[T]) Close() error {
	var errs []error
	for _, w := range m {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
