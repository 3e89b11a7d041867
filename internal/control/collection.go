package control

import (
	"context"
	"errors"
	"fmt"

	"github.com/vietddude/feedsync/internal/core/paging"
)

// Collection is one loaded list behind a filter key.
type Collection[T any] interface {
	// Next loads the next older page, initializing the collection on first use.
	Next(ctx context.Context) (paging.State[T], error)
	State() paging.State[T]
	Reset()
}

// Refresher is implemented by collections that can pick up entries newer than their
// first page.
type Refresher[T any] interface {
	Refresh(ctx context.Context) (paging.State[T], error)
}

// CountFunc returns the total number of items behind an index-paged source.
type CountFunc func(ctx context.Context) (int, error)

// IndexCollection drives an IndexLoader, reading the total on first use.
type IndexCollection[T paging.Keyed] struct {
	loader   *paging.IndexLoader[T]
	count    CountFunc
	pageSize int
}

// NewIndexCollection creates a collection over fetch whose total is read with count.
func NewIndexCollection[T paging.Keyed](
	cfg paging.IndexConfig,
	count CountFunc,
	fetch paging.IndexFetchFunc[T],
	pageSize int,
) *IndexCollection[T] {
	return &IndexCollection[T]{
		loader:   paging.NewIndexLoader(cfg, fetch),
		count:    count,
		pageSize: pageSize,
	}
}

func (c *IndexCollection[T]) Next(ctx context.Context) (paging.State[T], error) {
	s, err := c.loader.LoadNext(ctx, c.pageSize)
	if !errors.Is(err, paging.ErrNotInitialized) {
		return s, err
	}

	total, err := c.count(ctx)
	if err != nil {
		return c.loader.State(), fmt.Errorf("read total: %w", err)
	}
	c.loader.Initialize(total)
	return c.loader.LoadNext(ctx, c.pageSize)
}

// Drain loads every remaining page.
func (c *IndexCollection[T]) Drain(ctx context.Context) (paging.State[T], error) {
	if s, err := c.Next(ctx); err != nil || s.IsExhausted {
		return s, err
	}
	return c.loader.Drain(ctx, c.pageSize)
}

func (c *IndexCollection[T]) State() paging.State[T] { return c.loader.State() }
func (c *IndexCollection[T]) Reset()                 { c.loader.Reset() }

// LogCollection drives a LogLoader. The first Next seeds from cache and scans the newest
// page; later calls walk backward.
type LogCollection[T paging.Blocked] struct {
	loader *paging.LogLoader[T]
	// prepare runs before the first initial load, e.g. to resolve the match predicate.
	prepare func(ctx context.Context) error
}

func (c *LogCollection[T]) Next(ctx context.Context) (paging.State[T], error) {
	s, err := c.loader.LoadOlder(ctx)
	if !errors.Is(err, paging.ErrNotInitialized) {
		return s, err
	}
	return c.initial(ctx)
}

// Refresh scans blocks produced since the newest scanned block.
func (c *LogCollection[T]) Refresh(ctx context.Context) (paging.State[T], error) {
	return c.initial(ctx)
}

func (c *LogCollection[T]) initial(ctx context.Context) (paging.State[T], error) {
	if c.prepare != nil {
		if err := c.prepare(ctx); err != nil {
			return c.loader.State(), err
		}
	}
	return c.loader.LoadInitial(ctx)
}

func (c *LogCollection[T]) State() paging.State[T] { return c.loader.State() }
func (c *LogCollection[T]) Reset()                 { c.loader.Reset() }
