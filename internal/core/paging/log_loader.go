package paging

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/vietddude/feedsync/internal/metrics"
)

// DefaultMaxRetained bounds how many entries are persisted per filter key.
const DefaultMaxRetained = 100

// ScanResult is what a log source returns for one window.
type ScanResult[T any] struct {
	Events []T
	// LastScannedBlock is the lowest block the source actually covered. Sources that scan
	// the whole window return Window.FromBlock.
	LastScannedBlock uint64
}

// LogScanFunc scans one block window. pageSize is the number of matches still wanted; a
// source may use it to stop early and report that through LastScannedBlock.
type LogScanFunc[T any] func(ctx context.Context, w Window, pageSize int) (ScanResult[T], error)

// HeadSource resolves the newest block that is safe to scan.
type HeadSource interface {
	SafeTip(ctx context.Context) (uint64, error)
}

// Predicate decides whether a raw entry belongs to the collection.
type Predicate[T any] func(T) bool

// Checkpoint is the persisted form of a log collection.
type Checkpoint[T any] struct {
	// ScannedThrough is the newest block already scanned.
	ScannedThrough uint64 `json:"scanned_through"`
	// Cursor is the highest block the next older scan must cover.
	Cursor uint64 `json:"cursor"`
	// Entries are the newest retained entries, newest first.
	Entries []T `json:"entries"`
	// Exhausted is set once the origin block has been scanned and nothing was trimmed.
	Exhausted bool `json:"exhausted,omitempty"`
}

// CacheStore persists checkpoints per filter key. Load returns nil, nil when nothing is
// stored. Save replaces the whole stored value.
type CacheStore[T any] interface {
	Load(ctx context.Context, key string) (*Checkpoint[T], error)
	Save(ctx context.Context, key string, cp Checkpoint[T]) error
}

// LogConfig configures a LogLoader.
type LogConfig struct {
	Name        string // collection label for logs and metrics
	CacheKey    string // persisted cache key, empty disables persistence
	OriginBlock uint64 // oldest block a scan may reach
	ChunkSize   uint64 // blocks per remote call
	PageSize    int    // matches wanted per load
	MaxRetained int    // entries kept in the persisted cache
}

// LogDeps are the collaborators of a LogLoader. Cache and Match are optional.
type LogDeps[T Blocked] struct {
	Fetch LogScanFunc[T]
	Head  HeadSource
	Cache CacheStore[T]
	Match Predicate[T]
}

// LogLoader scans a block-ranged event log backward from the safe tip toward an origin
// block, newest entries first.
type LogLoader[T Blocked] struct {
	cfg  LogConfig
	deps LogDeps[T]
	log  *slog.Logger

	mu             sync.Mutex
	items          []T
	cursor         uint64
	scannedThrough uint64
	started        bool
	loading        bool
	exhausted      bool
	err            error
	generation     uint64
}

// NewLogLoader validates cfg and returns a loader ready for LoadInitial.
func NewLogLoader[T Blocked](cfg LogConfig, deps LogDeps[T]) (*LogLoader[T], error) {
	if cfg.ChunkSize == 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageSize, cfg.PageSize)
	}
	if deps.Fetch == nil || deps.Head == nil {
		return nil, fmt.Errorf("log loader needs a fetch function and a head source")
	}
	if cfg.MaxRetained <= 0 {
		cfg.MaxRetained = DefaultMaxRetained
	}
	if cfg.Name == "" {
		cfg.Name = "logs"
	}
	return &LogLoader[T]{
		cfg:  cfg,
		deps: deps,
		log:  slog.Default().With("component", "paging", "collection", cfg.Name),
	}, nil
}

// LoadInitial seeds the collection from the persisted cache and scans blocks produced
// since the cache was written. Without a cache it scans the first page backward from the
// safe tip. Calling it again later refreshes the newest blocks only.
func (l *LogLoader[T]) LoadInitial(ctx context.Context) (State[T], error) {
	l.mu.Lock()
	if l.loading {
		metrics.FetchRejected.WithLabelValues(l.cfg.Name, "loading").Inc()
		s := l.snapshotLocked()
		l.mu.Unlock()
		return s, nil
	}
	l.loading = true
	l.err = nil
	gen := l.generation
	started := l.started
	l.mu.Unlock()

	tip, err := l.deps.Head.SafeTip(ctx)
	if err != nil {
		return l.finish(gen, fmt.Errorf("resolve safe tip: %w", err))
	}

	if started {
		err = l.scanNewer(ctx, gen, tip)
		l.persist(ctx, gen)
		return l.finish(gen, err)
	}

	cp := l.readCheckpoint(ctx)

	l.mu.Lock()
	if gen != l.generation {
		s := l.snapshotLocked()
		l.mu.Unlock()
		return s, nil
	}
	if cp != nil {
		l.items = MergeUnique(nil, cp.Entries, Append)
		l.scannedThrough = cp.ScannedThrough
		l.cursor = min(cp.Cursor, cp.ScannedThrough)
		l.exhausted = cp.Exhausted || l.cursor < l.cfg.OriginBlock
	} else {
		l.items = nil
		l.scannedThrough = tip
		l.cursor = tip
		l.exhausted = tip < l.cfg.OriginBlock
	}
	l.started = true
	l.mu.Unlock()

	if cp != nil {
		l.log.Debug("Seeded from cache",
			"entries", len(cp.Entries), "scanned_through", cp.ScannedThrough, "cursor", cp.Cursor)
		err = l.scanNewer(ctx, gen, tip)
	} else {
		err = l.scanOlder(ctx, gen)
	}
	l.persist(ctx, gen)
	return l.finish(gen, err)
}

// LoadOlder scans backward from the cursor until a page of matches is found or the
// origin block is reached.
func (l *LogLoader[T]) LoadOlder(ctx context.Context) (State[T], error) {
	l.mu.Lock()
	if !l.started {
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
	l.loading = true
	l.err = nil
	gen := l.generation
	l.mu.Unlock()

	err := l.scanOlder(ctx, gen)
	l.persist(ctx, gen)
	return l.finish(gen, err)
}

// Reset drops all in-memory state. The persisted cache is left untouched.
func (l *LogLoader[T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.items = nil
	l.cursor = 0
	l.scannedThrough = 0
	l.started = false
	l.loading = false
	l.exhausted = false
	l.err = nil
	l.generation++
}

// State returns a snapshot of the collection.
func (l *LogLoader[T]) State() State[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// scanOlder walks chunks below the cursor. Each completed chunk is merged and moves the
// cursor, so a failure leaves the cursor on the last completed chunk boundary.
func (l *LogLoader[T]) scanOlder(ctx context.Context, gen uint64) error {
	found := 0
	for found < l.cfg.PageSize {
		l.mu.Lock()
		cursor := l.cursor
		l.mu.Unlock()

		w, ok := olderChunk(cursor, l.cfg.OriginBlock, l.cfg.ChunkSize)
		if !ok {
			l.markExhausted(gen)
			return nil
		}

		res, err := l.scan(ctx, w, l.cfg.PageSize-found, "older")
		if err != nil {
			return err
		}

		low := w.FromBlock
		if res.LastScannedBlock > w.FromBlock && res.LastScannedBlock <= w.ToBlock {
			low = res.LastScannedBlock
		}
		matched := l.filter(res.Events, Window{FromBlock: low, ToBlock: w.ToBlock})

		l.mu.Lock()
		if gen != l.generation {
			l.mu.Unlock()
			return nil
		}
		before := len(l.items)
		l.items = MergeUnique(l.items, matched, Append)
		metrics.ItemsMerged.WithLabelValues(l.cfg.Name).Add(float64(len(l.items) - before))
		l.cursor = below(low)
		if low <= l.cfg.OriginBlock {
			l.exhausted = true
		}
		done := l.exhausted
		l.mu.Unlock()

		found += len(matched)
		if done {
			return nil
		}
	}
	return nil
}

// scanNewer walks chunks from just above the newest scanned block up to tip, prepending
// matches, until a page of matches is found.
func (l *LogLoader[T]) scanNewer(ctx context.Context, gen, tip uint64) error {
	found := 0
	for found < l.cfg.PageSize {
		l.mu.Lock()
		from := max(l.scannedThrough+1, l.cfg.OriginBlock)
		l.mu.Unlock()

		w, ok := newerChunk(from, tip, l.cfg.ChunkSize)
		if !ok {
			return nil
		}

		res, err := l.scan(ctx, w, l.cfg.PageSize-found, "newer")
		if err != nil {
			return err
		}
		matched := l.filter(res.Events, w)

		l.mu.Lock()
		if gen != l.generation {
			l.mu.Unlock()
			return nil
		}
		before := len(l.items)
		l.items = MergeUnique(l.items, matched, Prepend)
		metrics.ItemsMerged.WithLabelValues(l.cfg.Name).Add(float64(len(l.items) - before))
		l.scannedThrough = w.ToBlock
		l.mu.Unlock()

		found += len(matched)
	}
	return nil
}

func (l *LogLoader[T]) scan(ctx context.Context, w Window, want int, direction string) (ScanResult[T], error) {
	l.log.Debug("Scanning chunk", "window", w.String(), "direction", direction, "want", want)

	begin := time.Now()
	res, err := l.deps.Fetch(ctx, w, want)
	metrics.FetchLatency.WithLabelValues(l.cfg.Name).Observe(time.Since(begin).Seconds())
	if err != nil {
		metrics.PageFetches.WithLabelValues(l.cfg.Name, "error").Inc()
		l.log.Warn("Chunk scan failed", "window", w.String(), "direction", direction, "error", err)
		return res, fmt.Errorf("scan %s blocks %s: %w", l.cfg.Name, w, err)
	}
	metrics.PageFetches.WithLabelValues(l.cfg.Name, "ok").Inc()
	metrics.ScanChunks.WithLabelValues(l.cfg.Name, direction).Inc()
	return res, nil
}

// filter keeps matching events inside w, ordered newest first.
func (l *LogLoader[T]) filter(events []T, w Window) []T {
	matched := lo.Filter(events, func(e T, _ int) bool {
		b := e.BlockNumber()
		if b < w.FromBlock || b > w.ToBlock {
			return false
		}
		return l.deps.Match == nil || l.deps.Match(e)
	})
	// Sources return ascending logs; reversing first keeps log order inside a block.
	lo.Reverse(matched)
	slices.SortStableFunc(matched, func(a, b T) int {
		return cmp.Compare(b.BlockNumber(), a.BlockNumber())
	})
	return matched
}

func (l *LogLoader[T]) markExhausted(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen == l.generation {
		l.exhausted = true
	}
}

func (l *LogLoader[T]) readCheckpoint(ctx context.Context) *Checkpoint[T] {
	if l.deps.Cache == nil || l.cfg.CacheKey == "" {
		return nil
	}
	cp, err := l.deps.Cache.Load(ctx, l.cfg.CacheKey)
	if err != nil {
		metrics.CacheOps.WithLabelValues("load", "error").Inc()
		l.log.Warn("Ignoring unreadable cache", "key", l.cfg.CacheKey, "error", err)
		return nil
	}
	if cp == nil {
		metrics.CacheOps.WithLabelValues("load", "miss").Inc()
		return nil
	}
	metrics.CacheOps.WithLabelValues("load", "hit").Inc()
	return cp
}

// persist writes the newest retained entries. Failures are logged; the merge already
// happened and the next successful write replaces the stored value.
func (l *LogLoader[T]) persist(ctx context.Context, gen uint64) {
	if l.deps.Cache == nil || l.cfg.CacheKey == "" {
		return
	}

	l.mu.Lock()
	if gen != l.generation || !l.started {
		l.mu.Unlock()
		return
	}
	kept, dropped := retain(l.items, l.cfg.MaxRetained)
	cp := Checkpoint[T]{
		ScannedThrough: l.scannedThrough,
		Cursor:         l.cursor,
		Entries:        slices.Clone(kept),
		Exhausted:      l.exhausted && !dropped,
	}
	if dropped && len(kept) > 0 {
		cp.Cursor = below(kept[len(kept)-1].BlockNumber())
	}
	l.mu.Unlock()

	if err := l.deps.Cache.Save(ctx, l.cfg.CacheKey, cp); err != nil {
		metrics.CacheOps.WithLabelValues("save", "error").Inc()
		l.log.Warn("Failed to persist cache", "key", l.cfg.CacheKey, "error", err)
		return
	}
	metrics.CacheOps.WithLabelValues("save", "ok").Inc()
}

func (l *LogLoader[T]) finish(gen uint64, err error) (State[T], error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.generation {
		return l.snapshotLocked(), nil
	}
	l.loading = false
	l.err = err
	return l.snapshotLocked(), err
}

func (l *LogLoader[T]) snapshotLocked() State[T] {
	return State[T]{
		Items:       l.items,
		LoadedCount: len(l.items),
		Total:       -1,
		TotalKnown:  false,
		Cursor:      l.cursor,
		IsLoading:   l.loading,
		IsExhausted: l.exhausted,
		Err:         l.err,
	}.clone()
}

// retain keeps at most limit entries without splitting a block: entries sharing the block
// of the first dropped entry are dropped too, so a cursor below the oldest kept block
// cannot skip them. If that would leave nothing, the whole newest block is kept.
func retain[T Blocked](items []T, limit int) ([]T, bool) {
	if len(items) <= limit {
		return items, false
	}
	cut := limit
	boundary := items[cut].BlockNumber()
	for cut > 0 && items[cut-1].BlockNumber() == boundary {
		cut--
	}
	if cut == 0 {
		for cut < len(items) && items[cut].BlockNumber() == boundary {
			cut++
		}
	}
	return items[:cut], cut < len(items)
}
