package control

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vietddude/feedsync/internal/core/domain"
	"github.com/vietddude/feedsync/internal/core/paging"
	"github.com/vietddude/feedsync/internal/infra/cache"
)

// =============================================================================
// Mocks
// =============================================================================

const (
	wallet = "0x00000000000000000000000000000000000000aa"
	other  = "0x00000000000000000000000000000000000000bb"
)

// fakeGateway serves posts by creator and comments by post, newest index first. The
// item at index i carries id base+i+1.
type fakeGateway struct {
	mu          sync.Mutex
	posts       map[string]int
	comments    map[uint64]int
	oldestFirst bool
	countErr    error
	calls       int
}

func (g *fakeGateway) PostCount(ctx context.Context, creator string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.countErr != nil {
		return 0, g.countErr
	}
	return g.posts[creator], nil
}

func (g *fakeGateway) Posts(ctx context.Context, creator, viewer string, start, count int) ([]domain.Post, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	ids := g.window(start, count, g.posts[creator])
	out := make([]domain.Post, len(ids))
	for i, id := range ids {
		out[i] = domain.Post{ID: id, Creator: creator, LikedByViewer: viewer != ""}
	}
	return out, nil
}

func (g *fakeGateway) CommentCount(ctx context.Context, postID uint64) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.comments[postID], nil
}

func (g *fakeGateway) Comments(ctx context.Context, postID uint64, start, count int) ([]domain.Comment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	ids := g.window(start, count, g.comments[postID])
	out := make([]domain.Comment, len(ids))
	for i, id := range ids {
		out[i] = domain.Comment{ID: id, PostID: postID}
	}
	return out, nil
}

func (g *fakeGateway) ReplyCount(ctx context.Context, commentID uint64) (int, error) {
	return g.CommentCount(ctx, commentID)
}

func (g *fakeGateway) Replies(ctx context.Context, commentID uint64, start, count int) ([]domain.Comment, error) {
	return g.Comments(ctx, commentID, start, count)
}

func (g *fakeGateway) window(start, count, total int) []uint64 {
	end := min(start+count, total)
	var ids []uint64
	for i := start; i < end; i++ {
		ids = append(ids, uint64(i+1))
	}
	if !g.oldestFirst {
		for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
			ids[i], ids[j] = ids[j], ids[i]
		}
	}
	return ids
}

type fakeChain struct {
	mu     sync.Mutex
	tip    uint64
	events []domain.LikeEvent
	scans  []paging.Window
}

func (c *fakeChain) SafeTip(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tip, nil
}

func (c *fakeChain) ScanLikes(ctx context.Context, w paging.Window, pageSize int) (paging.ScanResult[domain.LikeEvent], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scans = append(c.scans, w)
	var out []domain.LikeEvent
	for _, e := range c.events {
		if e.Block >= w.FromBlock && e.Block <= w.ToBlock {
			out = append(out, e)
		}
	}
	return paging.ScanResult[domain.LikeEvent]{Events: out, LastScannedBlock: w.FromBlock}, nil
}

func like(block, postID uint64, tx string) domain.LikeEvent {
	return domain.LikeEvent{TxHash: tx, Block: block, PostID: postID, Liker: other}
}

func testFeedConfig() FeedConfig {
	return FeedConfig{
		PostsPageSize:    5,
		CommentsPageSize: 5,
		RepliesPageSize:  5,
		LikesPageSize:    10,
		ChunkSize:        100,
		MaxCachedLikes:   100,
	}
}

func postIDs(s paging.State[domain.Post]) []uint64 {
	ids := make([]uint64, len(s.Items))
	for i, p := range s.Items {
		ids[i] = p.ID
	}
	return ids
}

func equalIDs(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// =============================================================================
// Tests
// =============================================================================

func TestFeed_PostsNewestFirst(t *testing.T) {
	gw := &fakeGateway{posts: map[string]int{wallet: 12}}
	feed := NewFeed(testFeedConfig(), gw, &fakeChain{}, &fakeChain{}, nil)
	posts := feed.Posts(wallet, "")
	ctx := context.Background()

	steps := []struct {
		want      []uint64
		cursor    uint64
		exhausted bool
	}{
		{[]uint64{12, 11, 10, 9, 8}, 7, false},
		{[]uint64{12, 11, 10, 9, 8, 7, 6, 5, 4, 3}, 2, false},
		{[]uint64{12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}, 0, true},
	}
	for i, step := range steps {
		s, err := posts.Next(ctx)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got := postIDs(s); !equalIDs(got, step.want) {
			t.Errorf("step %d: ids = %v, want %v", i, got, step.want)
		}
		if s.Cursor != step.cursor || s.IsExhausted != step.exhausted {
			t.Errorf("step %d: cursor=%d exhausted=%v", i, s.Cursor, s.IsExhausted)
		}
		if s.Total != 12 || !s.TotalKnown {
			t.Errorf("step %d: total = %d known=%v", i, s.Total, s.TotalKnown)
		}
	}

	// Exhausted: no further gateway calls.
	calls := gw.calls
	if _, err := posts.Next(ctx); err != nil {
		t.Fatal(err)
	}
	if gw.calls != calls {
		t.Errorf("exhausted collection fetched again")
	}
}

func TestFeed_CommentsOldestFirstGateway(t *testing.T) {
	gw := &fakeGateway{comments: map[uint64]int{7: 3}, oldestFirst: true}
	cfg := testFeedConfig()
	cfg.OldestFirst = true
	feed := NewFeed(cfg, gw, &fakeChain{}, &fakeChain{}, nil)

	s, err := feed.Comments(7).Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Items) != 3 || s.Items[0].ID != 3 || s.Items[2].ID != 1 {
		t.Errorf("expected newest first, got %+v", s.Items)
	}
	if !s.IsExhausted {
		t.Error("expected exhausted")
	}
}

func TestFeed_EmptyCollection(t *testing.T) {
	feed := NewFeed(testFeedConfig(), &fakeGateway{}, &fakeChain{}, &fakeChain{}, nil)

	s, err := feed.Replies(1).Next(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Items) != 0 || !s.IsExhausted || s.Total != 0 {
		t.Errorf("unexpected state %+v", s)
	}
}

func TestFeed_LikesOnOwnedPosts(t *testing.T) {
	gw := &fakeGateway{posts: map[string]int{wallet: 3}}
	ch := &fakeChain{
		tip: 100,
		events: []domain.LikeEvent{
			like(10, 1, "0x01"),
			like(50, 9, "0x02"), // someone else's post
			like(60, 2, "0x03"),
			like(60, 3, "0x04"),
		},
	}
	store := cache.NewStore[domain.LikeEvent](cache.NewMemory())
	feed := NewFeed(testFeedConfig(), gw, ch, ch, store)

	likes, err := feed.Likes(wallet)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	s, err := likes.Next(ctx)
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	for _, e := range s.Items {
		got = append(got, e.TxHash)
	}
	want := []string{"0x04", "0x03", "0x01"}
	if len(got) != len(want) {
		t.Fatalf("likes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("likes = %v, want %v", got, want)
			break
		}
	}
	if !s.IsExhausted || s.TotalKnown {
		t.Errorf("exhausted=%v totalKnown=%v", s.IsExhausted, s.TotalKnown)
	}

	cp, err := store.Load(ctx, cache.LikesKey("", wallet))
	if err != nil || cp == nil {
		t.Fatalf("checkpoint not persisted: %v", err)
	}
	if cp.ScannedThrough != 100 || len(cp.Entries) != 3 {
		t.Errorf("checkpoint = %+v", cp)
	}
}

func TestFeed_LikesRefreshSeesNewPosts(t *testing.T) {
	gw := &fakeGateway{posts: map[string]int{wallet: 1}}
	ch := &fakeChain{tip: 100, events: []domain.LikeEvent{like(20, 1, "0x01")}}
	feed := NewFeed(testFeedConfig(), gw, ch, ch, nil)

	likes, err := feed.Likes(wallet)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := likes.Next(ctx); err != nil {
		t.Fatal(err)
	}

	gw.mu.Lock()
	gw.posts[wallet] = 2
	gw.mu.Unlock()
	ch.mu.Lock()
	ch.tip = 110
	ch.events = append(ch.events, like(105, 2, "0x02"))
	ch.mu.Unlock()

	s, err := likes.Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Items) != 2 || s.Items[0].TxHash != "0x02" {
		t.Errorf("refresh should prepend the new like, got %+v", s.Items)
	}
	last := ch.scans[len(ch.scans)-1]
	if last.FromBlock != 101 || last.ToBlock != 110 {
		t.Errorf("refresh scanned %s, want 101-110", last)
	}
}

func TestFeed_LikesOwnedResolveFails(t *testing.T) {
	gw := &fakeGateway{countErr: errors.New("gateway down")}
	ch := &fakeChain{tip: 100}
	feed := NewFeed(testFeedConfig(), gw, ch, ch, nil)

	likes, err := feed.Likes(wallet)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := likes.Next(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(ch.scans) != 0 {
		t.Errorf("chain scanned before owned posts were known: %v", ch.scans)
	}
}

func TestFeed_LikesInvalidWallet(t *testing.T) {
	feed := NewFeed(testFeedConfig(), &fakeGateway{}, &fakeChain{}, &fakeChain{}, nil)
	if _, err := feed.Likes("not-an-address"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestParseID(t *testing.T) {
	if id, err := ParseID("42"); err != nil || id != 42 {
		t.Errorf("ParseID(42) = %d, %v", id, err)
	}
	if _, err := ParseID("-1"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}
