package paging

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/vietddude/feedsync/internal/metrics"
)

// IndexFetchFunc fetches count items starting at startIndex. It may return fewer items
// than requested when the source skips entries (soft-deleted posts, hidden comments).
type IndexFetchFunc[T any] func(ctx context.Context, startIndex, count int) ([]T, error)

// Order describes how a source orders the items inside one page.
type Order int

const (
	// NewestFirst sources return the highest index first.
	NewestFirst Order = iota
	// OldestFirst sources return the lowest index first; pages are reversed on merge.
	OldestFirst
)

// IndexConfig configures an IndexLoader.
type IndexConfig struct {
	Name  string // collection label for logs and metrics
	Order Order
}

// IndexLoader pages through a source whose total item count is known, newest items first.
type IndexLoader[T Keyed] struct {
	cfg   IndexConfig
	fetch IndexFetchFunc[T]
	log   *slog.Logger

	mu          sync.Mutex
	items       []T
	total       int
	loaded      int // items merged so far
	consumed    int // source entries the walked windows returned; positions the next window
	initialized bool
	loading     bool
	exhausted   bool
	err         error
	generation  uint64 // bumped by Reset so in-flight results are dropped
}

// NewIndexLoader creates a loader over fetch. Initialize must be called before LoadNext.
func NewIndexLoader[T Keyed](cfg IndexConfig, fetch IndexFetchFunc[T]) *IndexLoader[T] {
	if cfg.Name == "" {
		cfg.Name = "index"
	}
	return &IndexLoader[T]{
		cfg:   cfg,
		fetch: fetch,
		log:   slog.Default().With("component", "paging", "collection", cfg.Name),
	}
}

// Initialize sets the total item count. Calling it again with a new total does not rewind
// the loaded count and does not clear exhaustion.
func (l *IndexLoader[T]) Initialize(total int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total = total
	l.initialized = true
	if total >= 0 {
		l.loaded = min(l.loaded, total)
		l.consumed = min(l.consumed, total)
	}
}

// LoadNext fetches the next older page of at most pageSize items.
//
// The call is a no-op returning the current state while a fetch is in flight or after the
// collection is exhausted.
func (l *IndexLoader[T]) LoadNext(ctx context.Context, pageSize int) (State[T], error) {
	if pageSize <= 0 {
		return l.State(), fmt.Errorf("%w: %d", ErrInvalidPageSize, pageSize)
	}

	l.mu.Lock()
	if !l.initialized {
		s := l.snapshotLocked()
		l.mu.Unlock()
		return s, ErrNotInitialized
	}
	if l.loading || l.exhausted {
		reason := "loading"
		if l.exhausted {
			reason = "exhausted"
		}
		metrics.FetchRejected.WithLabelValues(l.cfg.Name, reason).Inc()
		s := l.snapshotLocked()
		l.mu.Unlock()
		return s, nil
	}

	remaining := l.total - l.consumed
	if remaining <= 0 {
		l.exhausted = true
		s := l.snapshotLocked()
		l.mu.Unlock()
		return s, nil
	}

	count := min(pageSize, remaining)
	start := max(0, l.total-l.consumed-count)
	gen := l.generation
	l.loading = true
	l.err = nil
	l.mu.Unlock()

	l.log.Debug("Fetching page", "start", start, "count", count)
	begin := time.Now()
	page, err := l.fetch(ctx, start, count)
	metrics.FetchLatency.WithLabelValues(l.cfg.Name).Observe(time.Since(begin).Seconds())

	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.generation {
		// Reset while the fetch was outstanding: the result belongs to an old filter.
		return l.snapshotLocked(), nil
	}
	l.loading = false

	if err != nil {
		metrics.PageFetches.WithLabelValues(l.cfg.Name, "error").Inc()
		l.err = fmt.Errorf("fetch %s window start=%d count=%d: %w", l.cfg.Name, start, count, err)
		l.log.Warn("Page fetch failed", "start", start, "count", count, "error", err)
		return l.snapshotLocked(), l.err
	}

	if len(page) == 0 {
		// The source holds fewer retrievable items than its count claims. Treat the rest as
		// unreachable so callers paging until exhaustion terminate.
		metrics.PageFetches.WithLabelValues(l.cfg.Name, "empty").Inc()
		l.log.Info("Empty page before reaching total, marking exhausted",
			"start", start, "count", count, "loaded", l.loaded, "total", l.total)
		l.loaded = l.total
		l.consumed = l.total
		l.exhausted = true
		return l.snapshotLocked(), nil
	}

	metrics.PageFetches.WithLabelValues(l.cfg.Name, "ok").Inc()
	if l.cfg.Order == OldestFirst {
		page = slices.Clone(page)
		slices.Reverse(page)
	}

	before := len(l.items)
	l.items = MergeUnique(l.items, page, Append)
	merged := len(l.items) - before
	metrics.ItemsMerged.WithLabelValues(l.cfg.Name).Add(float64(merged))

	// Only new keys count as loaded. A window overlapping earlier pages (the total grew
	// after Initialize) still moves the walk past the entries it returned.
	l.loaded = min(l.total, l.loaded+merged)
	l.consumed = min(l.total, l.consumed+len(page))
	if l.consumed >= l.total {
		l.exhausted = true
	}

	return l.snapshotLocked(), nil
}

// Reset clears the loader back to its uninitialized state.
func (l *IndexLoader[T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items = nil
	l.total = 0
	l.loaded = 0
	l.consumed = 0
	l.initialized = false
	l.loading = false
	l.exhausted = false
	l.err = nil
	l.generation++
}

// State returns a snapshot of the collection.
func (l *IndexLoader[T]) State() State[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *IndexLoader[T]) snapshotLocked() State[T] {
	cursor := 0
	if l.total > l.consumed {
		cursor = l.total - l.consumed
	}
	return State[T]{
		Items:       l.items,
		LoadedCount: l.loaded,
		Total:       l.total,
		TotalKnown:  l.initialized,
		Cursor:      uint64(cursor),
		IsLoading:   l.loading,
		IsExhausted: l.exhausted,
		Err:         l.err,
	}.clone()
}

// Drain calls LoadNext until the collection is exhausted and returns the final state.
func (l *IndexLoader[T]) Drain(ctx context.Context, pageSize int) (State[T], error) {
	for {
		s, err := l.LoadNext(ctx, pageSize)
		if err != nil {
			return s, err
		}
		if s.IsExhausted {
			return s, nil
		}
		if s.IsLoading {
			return s, fmt.Errorf("drain %s: another load is in progress", l.cfg.Name)
		}
		if err := ctx.Err(); err != nil {
			return s, err
		}
	}
}
