package chaintip

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vietddude/feedsync/internal/metrics"
)

// refreshTimeout bounds a shared head fetch, which runs detached from any one caller.
const refreshTimeout = 10 * time.Second

// HeadReader reads the current chain head.
type HeadReader interface {
	GetLatestBlock(ctx context.Context) (uint64, error)
}

// HeadCache remembers the chain head for a short TTL. Concurrent misses share one
// upstream eth_blockNumber call.
type HeadCache struct {
	reader        HeadReader
	ttl           time.Duration
	confirmations uint64
	chain         string
	log           *slog.Logger
	group         singleflight.Group

	mu        sync.RWMutex
	head      uint64
	fetchedAt time.Time
}

// NewHeadCache creates a head cache. SafeTip holds back confirmations blocks from the head.
func NewHeadCache(reader HeadReader, ttl time.Duration, confirmations uint64, chain string) *HeadCache {
	return &HeadCache{
		reader:        reader,
		ttl:           ttl,
		confirmations: confirmations,
		chain:         chain,
		log:           slog.Default().With("component", "chaintip", "chain", chain),
	}
}

func (c *HeadCache) fresh() (uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.head == 0 || time.Since(c.fetchedAt) >= c.ttl {
		return 0, false
	}
	return c.head, true
}

// GetLatestBlock returns the chain head, reading through to the node once the TTL lapses.
// The returned head never decreases.
func (c *HeadCache) GetLatestBlock(ctx context.Context) (uint64, error) {
	if head, ok := c.fresh(); ok {
		return head, nil
	}

	ch := c.group.DoChan("head", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return c.refresh(fetchCtx)
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(uint64), nil
	}
}

func (c *HeadCache) refresh(ctx context.Context) (uint64, error) {
	observed, err := c.reader.GetLatestBlock(ctx)
	if err != nil {
		return 0, fmt.Errorf("get latest block: %w", err)
	}

	c.mu.Lock()
	head := max(observed, c.head)
	if head != observed {
		c.log.Debug("Ignoring lagging head", "observed", observed, "head", head)
	}
	c.head = head
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	metrics.ChainLatestBlock.WithLabelValues(c.chain).Set(float64(head))
	return head, nil
}

// SafeTip returns the newest block buried under the configured confirmations, or zero
// while the chain is shorter than that.
func (c *HeadCache) SafeTip(ctx context.Context) (uint64, error) {
	head, err := c.GetLatestBlock(ctx)
	if err != nil {
		return 0, err
	}
	if head < c.confirmations {
		return 0, nil
	}
	return head - c.confirmations, nil
}

// Invalidate forces the next read to go to the node. The last head is kept as the floor.
func (c *HeadCache) Invalidate() {
	c.mu.Lock()
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}
