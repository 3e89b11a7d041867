package control

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vietddude/feedsync/internal/core/domain"
	"github.com/vietddude/feedsync/internal/core/paging"
)

// Collection kinds accepted by Registry.Reset.
const (
	KindPosts    = "posts"
	KindComments = "comments"
	KindReplies  = "replies"
	KindLikes    = "likes"
)

// Registry keeps one live collection per kind and filter key so consecutive page requests
// for the same key continue where the previous one stopped.
type Registry struct {
	feed *Feed
	log  *slog.Logger

	mu       sync.Mutex
	posts    map[string]*IndexCollection[domain.Post]
	comments map[uint64]*IndexCollection[domain.Comment]
	replies  map[uint64]*IndexCollection[domain.Comment]
	likes    map[string]*LogCollection[domain.LikeEvent]
}

// NewRegistry creates an empty registry backed by feed.
func NewRegistry(feed *Feed) *Registry {
	return &Registry{
		feed:     feed,
		log:      slog.Default().With("component", "registry"),
		posts:    make(map[string]*IndexCollection[domain.Post]),
		comments: make(map[uint64]*IndexCollection[domain.Comment]),
		replies:  make(map[uint64]*IndexCollection[domain.Comment]),
		likes:    make(map[string]*LogCollection[domain.LikeEvent]),
	}
}

// NextPosts loads the next page of creator's posts as seen by viewer.
func (r *Registry) NextPosts(ctx context.Context, creator, viewer string) (paging.State[domain.Post], error) {
	creator = domain.NormalizeAddress(creator)
	if !domain.IsAddress(creator) {
		return paging.State[domain.Post]{}, fmt.Errorf("%w: creator address %q", domain.ErrInvalidInput, creator)
	}
	key := creator + "|" + domain.NormalizeAddress(viewer)

	r.mu.Lock()
	c, ok := r.posts[key]
	if !ok {
		c = r.feed.Posts(creator, viewer)
		r.posts[key] = c
	}
	r.mu.Unlock()

	return c.Next(ctx)
}

// NextComments loads the next page of comments on postID.
func (r *Registry) NextComments(ctx context.Context, postID uint64) (paging.State[domain.Comment], error) {
	r.mu.Lock()
	c, ok := r.comments[postID]
	if !ok {
		c = r.feed.Comments(postID)
		r.comments[postID] = c
	}
	r.mu.Unlock()

	return c.Next(ctx)
}

// NextReplies loads the next page of replies to commentID.
func (r *Registry) NextReplies(ctx context.Context, commentID uint64) (paging.State[domain.Comment], error) {
	r.mu.Lock()
	c, ok := r.replies[commentID]
	if !ok {
		c = r.feed.Replies(commentID)
		r.replies[commentID] = c
	}
	r.mu.Unlock()

	return c.Next(ctx)
}

// NextLikes loads the next page of likes received by wallet. With refresh set it scans the
// blocks produced since the last load instead of walking backward.
func (r *Registry) NextLikes(ctx context.Context, wallet string, refresh bool) (paging.State[domain.LikeEvent], error) {
	wallet = domain.NormalizeAddress(wallet)

	r.mu.Lock()
	c, ok := r.likes[wallet]
	if !ok {
		var err error
		c, err = r.feed.Likes(wallet)
		if err != nil {
			r.mu.Unlock()
			return paging.State[domain.LikeEvent]{}, err
		}
		r.likes[wallet] = c
	}
	r.mu.Unlock()

	if refresh {
		return c.Refresh(ctx)
	}
	return c.Next(ctx)
}

// Reset drops the collection of kind behind key. It reports whether one was held.
func (r *Registry) Reset(kind, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found bool
	switch kind {
	case KindPosts:
		// Posts are held per creator and viewer; drop every viewer of the creator.
		creator := domain.NormalizeAddress(key)
		for k, c := range r.posts {
			if strings.HasPrefix(k, creator+"|") {
				c.Reset()
				delete(r.posts, k)
				found = true
			}
		}
	case KindComments, KindReplies:
		id, err := ParseID(key)
		if err != nil {
			return false, err
		}
		m := r.comments
		if kind == KindReplies {
			m = r.replies
		}
		if c, ok := m[id]; ok {
			c.Reset()
			delete(m, id)
			found = true
		}
	case KindLikes:
		wallet := domain.NormalizeAddress(key)
		if c, ok := r.likes[wallet]; ok {
			c.Reset()
			delete(r.likes, wallet)
			found = true
		}
	default:
		return false, fmt.Errorf("%w: collection kind %q", domain.ErrInvalidInput, kind)
	}

	if found {
		r.log.Info("Reset collection", "kind", kind, "key", key)
	}
	return found, nil
}
