package control

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/feedsync/internal/core/domain"
	"github.com/vietddude/feedsync/internal/core/paging"
	"github.com/vietddude/feedsync/internal/infra/cache"
	"github.com/vietddude/feedsync/internal/infra/contract"
)

// LikeScanner scans one block window for Liked events.
type LikeScanner interface {
	ScanLikes(ctx context.Context, w paging.Window, pageSize int) (paging.ScanResult[domain.LikeEvent], error)
}

// FeedConfig holds page sizes and scan bounds for every collection kind.
type FeedConfig struct {
	PostsPageSize    int
	CommentsPageSize int
	RepliesPageSize  int
	LikesPageSize    int
	ChunkSize        uint64
	OriginBlock      uint64
	MaxCachedLikes   int
	CachePrefix      string
	OldestFirst      bool // gateway pages are in ascending index order
}

// Feed builds collections wired to their remote sources.
type Feed struct {
	cfg    FeedConfig
	reader contract.Reader
	likes  LikeScanner
	head   paging.HeadSource
	cache  paging.CacheStore[domain.LikeEvent]
	log    *slog.Logger
}

// NewFeed creates a feed. likeCache may be nil to disable like persistence.
func NewFeed(
	cfg FeedConfig,
	reader contract.Reader,
	likes LikeScanner,
	head paging.HeadSource,
	likeCache paging.CacheStore[domain.LikeEvent],
) *Feed {
	return &Feed{
		cfg:    cfg,
		reader: reader,
		likes:  likes,
		head:   head,
		cache:  likeCache,
		log:    slog.Default().With("component", "feed"),
	}
}

func (f *Feed) order() paging.Order {
	if f.cfg.OldestFirst {
		return paging.OldestFirst
	}
	return paging.NewestFirst
}

// Posts pages a creator's posts. viewer, when set, fills Post.LikedByViewer.
func (f *Feed) Posts(creator, viewer string) *IndexCollection[domain.Post] {
	creator = domain.NormalizeAddress(creator)
	return NewIndexCollection(
		paging.IndexConfig{Name: "posts", Order: f.order()},
		func(ctx context.Context) (int, error) { return f.reader.PostCount(ctx, creator) },
		func(ctx context.Context, start, count int) ([]domain.Post, error) {
			return f.reader.Posts(ctx, creator, viewer, start, count)
		},
		f.cfg.PostsPageSize,
	)
}

// Comments pages the top-level comments of a post.
func (f *Feed) Comments(postID uint64) *IndexCollection[domain.Comment] {
	return NewIndexCollection(
		paging.IndexConfig{Name: "comments", Order: f.order()},
		func(ctx context.Context) (int, error) { return f.reader.CommentCount(ctx, postID) },
		func(ctx context.Context, start, count int) ([]domain.Comment, error) {
			return f.reader.Comments(ctx, postID, start, count)
		},
		f.cfg.CommentsPageSize,
	)
}

// Replies pages the replies to a comment.
func (f *Feed) Replies(commentID uint64) *IndexCollection[domain.Comment] {
	return NewIndexCollection(
		paging.IndexConfig{Name: "replies", Order: f.order()},
		func(ctx context.Context) (int, error) { return f.reader.ReplyCount(ctx, commentID) },
		func(ctx context.Context, start, count int) ([]domain.Comment, error) {
			return f.reader.Replies(ctx, commentID, start, count)
		},
		f.cfg.RepliesPageSize,
	)
}

// Likes scans Liked events on posts owned by wallet. The owned post set is resolved before
// every initial load so posts created since the last load are matched too.
func (f *Feed) Likes(wallet string) (*LogCollection[domain.LikeEvent], error) {
	wallet = domain.NormalizeAddress(wallet)
	if !domain.IsAddress(wallet) {
		return nil, fmt.Errorf("%w: wallet address %q", domain.ErrInvalidInput, wallet)
	}

	owned := &ownedPosts{}
	loader, err := paging.NewLogLoader(
		paging.LogConfig{
			Name:        "likes",
			CacheKey:    cache.LikesKey(f.cfg.CachePrefix, wallet),
			OriginBlock: f.cfg.OriginBlock,
			ChunkSize:   f.cfg.ChunkSize,
			PageSize:    f.cfg.LikesPageSize,
			MaxRetained: f.cfg.MaxCachedLikes,
		},
		paging.LogDeps[domain.LikeEvent]{
			Fetch: f.likes.ScanLikes,
			Head:  f.head,
			Cache: f.cache,
			Match: func(e domain.LikeEvent) bool { return owned.has(e.PostID) },
		},
	)
	if err != nil {
		return nil, err
	}

	return &LogCollection[domain.LikeEvent]{
		loader: loader,
		prepare: func(ctx context.Context) error {
			return f.resolveOwned(ctx, wallet, owned)
		},
	}, nil
}

// resolveOwned drains the wallet's posts into owned. The safe tip is read alongside so the
// head cache is warm when the log scan starts.
func (f *Feed) resolveOwned(ctx context.Context, wallet string, owned *ownedPosts) error {
	g, gctx := errgroup.WithContext(ctx)

	var ids map[uint64]struct{}
	g.Go(func() error {
		s, err := f.Posts(wallet, "").Drain(gctx)
		if err != nil {
			return fmt.Errorf("resolve posts owned by %s: %w", wallet, err)
		}
		ids = make(map[uint64]struct{}, len(s.Items))
		for _, p := range s.Items {
			ids[p.ID] = struct{}{}
		}
		return nil
	})
	g.Go(func() error {
		_, err := f.head.SafeTip(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	owned.set(ids)
	f.log.Debug("Resolved owned posts", "wallet", wallet, "count", len(ids))
	return nil
}

type ownedPosts struct {
	mu  sync.RWMutex
	ids map[uint64]struct{}
}

func (o *ownedPosts) set(ids map[uint64]struct{}) {
	o.mu.Lock()
	o.ids = ids
	o.mu.Unlock()
}

func (o *ownedPosts) has(id uint64) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.ids[id]
	return ok
}

// ParseID parses a decimal post or comment id.
func ParseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id %q", domain.ErrInvalidInput, s)
	}
	return id, nil
}
