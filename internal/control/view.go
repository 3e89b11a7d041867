package control

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/vietddude/feedsync/internal/core/paging"
)

// ErrStaleFilter is returned when the filter key changed while a page was loading. The
// loaded page belonged to the old key and was discarded.
var ErrStaleFilter = errors.New("filter changed while loading")

// BuildFunc creates the collection for a filter key.
type BuildFunc[T any] func(key string) (Collection[T], error)

// View binds one collection to the current filter key. Switching the key discards the
// collection and builds a fresh one.
type View[T any] struct {
	build BuildFunc[T]
	log   *slog.Logger

	mu    sync.Mutex
	key   string
	coll  Collection[T]
	epoch uint64
}

// NewView creates a view with no key selected.
func NewView[T any](name string, build BuildFunc[T]) *View[T] {
	return &View[T]{
		build: build,
		log:   slog.Default().With("component", "view", "collection", name),
	}
}

// Key returns the current filter key.
func (v *View[T]) Key() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.key
}

// Switch selects key. Selecting the current key again is a no-op.
func (v *View[T]) Switch(key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.coll != nil && key == v.key {
		return nil
	}
	coll, err := v.build(key)
	if err != nil {
		return err
	}
	if v.coll != nil {
		v.coll.Reset()
		v.log.Debug("Switched filter", "from", v.key, "to", key)
	}
	v.key = key
	v.coll = coll
	v.epoch++
	return nil
}

// Reset clears the current collection without changing the key.
func (v *View[T]) Reset() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.coll == nil {
		return nil
	}
	coll, err := v.build(v.key)
	if err != nil {
		return err
	}
	v.coll.Reset()
	v.coll = coll
	v.epoch++
	return nil
}

// Next loads the next page for the current key.
func (v *View[T]) Next(ctx context.Context) (paging.State[T], error) {
	return v.run(ctx, func(c Collection[T]) (paging.State[T], error) {
		return c.Next(ctx)
	})
}

// Refresh picks up newer entries when the collection supports it, and loads the next page
// otherwise.
func (v *View[T]) Refresh(ctx context.Context) (paging.State[T], error) {
	return v.run(ctx, func(c Collection[T]) (paging.State[T], error) {
		if r, ok := c.(Refresher[T]); ok {
			return r.Refresh(ctx)
		}
		return c.Next(ctx)
	})
}

// State returns the current snapshot.
func (v *View[T]) State() (paging.State[T], bool) {
	v.mu.Lock()
	coll := v.coll
	v.mu.Unlock()

	if coll == nil {
		return paging.State[T]{}, false
	}
	return coll.State(), true
}

func (v *View[T]) run(ctx context.Context, op func(Collection[T]) (paging.State[T], error)) (paging.State[T], error) {
	v.mu.Lock()
	coll, epoch, key := v.coll, v.epoch, v.key
	v.mu.Unlock()

	if coll == nil {
		return paging.State[T]{}, paging.ErrNotInitialized
	}

	s, err := op(coll)

	v.mu.Lock()
	stale := epoch != v.epoch
	v.mu.Unlock()
	if stale {
		v.log.Debug("Discarding page for old filter", "key", key)
		return paging.State[T]{}, ErrStaleFilter
	}
	return s, err
}
