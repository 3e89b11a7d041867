package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/feedsync/internal/core/domain"
	"github.com/vietddude/feedsync/internal/core/paging"
	"github.com/vietddude/feedsync/internal/infra/contract"
)

// =============================================================================
// Mocks
// =============================================================================

type mockCollections struct {
	NextPostsFunc    func(ctx context.Context, creator, viewer string) (paging.State[domain.Post], error)
	NextCommentsFunc func(ctx context.Context, postID uint64) (paging.State[domain.Comment], error)
	NextRepliesFunc  func(ctx context.Context, commentID uint64) (paging.State[domain.Comment], error)
	NextLikesFunc    func(ctx context.Context, wallet string, refresh bool) (paging.State[domain.LikeEvent], error)
	ResetFunc        func(kind, key string) (bool, error)
}

func (m *mockCollections) NextPosts(ctx context.Context, creator, viewer string) (paging.State[domain.Post], error) {
	return m.NextPostsFunc(ctx, creator, viewer)
}

func (m *mockCollections) NextComments(ctx context.Context, postID uint64) (paging.State[domain.Comment], error) {
	return m.NextCommentsFunc(ctx, postID)
}

func (m *mockCollections) NextReplies(ctx context.Context, commentID uint64) (paging.State[domain.Comment], error) {
	return m.NextRepliesFunc(ctx, commentID)
}

func (m *mockCollections) NextLikes(ctx context.Context, wallet string, refresh bool) (paging.State[domain.LikeEvent], error) {
	return m.NextLikesFunc(ctx, wallet, refresh)
}

func (m *mockCollections) Reset(kind, key string) (bool, error) {
	return m.ResetFunc(kind, key)
}

type stateBody struct {
	Items       []json.RawMessage `json:"items"`
	LoadedCount int               `json:"loaded_count"`
	Total       *int              `json:"total"`
	Cursor      uint64            `json:"cursor"`
	IsLoading   bool              `json:"is_loading"`
	IsExhausted bool              `json:"is_exhausted"`
	Error       string            `json:"error"`
}

func serve(t *testing.T, colls Collections, method, target string) (*httptest.ResponseRecorder, stateBody) {
	t.Helper()
	s := NewServer(Config{}, colls, NewMonitor(0))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var body stateBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return rec, body
}

// =============================================================================
// Tests
// =============================================================================

func TestServer_Posts(t *testing.T) {
	var gotCreator, gotViewer string
	colls := &mockCollections{
		NextPostsFunc: func(ctx context.Context, creator, viewer string) (paging.State[domain.Post], error) {
			gotCreator, gotViewer = creator, viewer
			return paging.State[domain.Post]{
				Items:       []domain.Post{{ID: 15}, {ID: 14}},
				LoadedCount: 2,
				Total:       15,
				TotalKnown:  true,
				Cursor:      13,
			}, nil
		},
	}

	rec, body := serve(t, colls, http.MethodGet, "/v1/creators/0xabc/posts?viewer=0xdef")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotCreator != "0xabc" || gotViewer != "0xdef" {
		t.Errorf("creator/viewer = %q/%q", gotCreator, gotViewer)
	}
	if len(body.Items) != 2 || body.LoadedCount != 2 || body.Cursor != 13 {
		t.Errorf("unexpected body %+v", body)
	}
	if body.Total == nil || *body.Total != 15 {
		t.Errorf("total = %v, want 15", body.Total)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

func TestServer_LikesUnknownTotal(t *testing.T) {
	var gotRefresh bool
	colls := &mockCollections{
		NextLikesFunc: func(ctx context.Context, wallet string, refresh bool) (paging.State[domain.LikeEvent], error) {
			gotRefresh = refresh
			return paging.State[domain.LikeEvent]{Cursor: 99}, nil
		},
	}

	rec, body := serve(t, colls, http.MethodGet, "/v1/wallets/0xabc/likes?refresh=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !gotRefresh {
		t.Error("refresh flag not passed through")
	}
	if body.Total != nil {
		t.Errorf("total = %d, want null", *body.Total)
	}
	if body.Items == nil {
		t.Error("items must encode as an empty array")
	}
}

func TestServer_CommentsBadID(t *testing.T) {
	rec, body := serve(t, &mockCollections{}, http.MethodGet, "/v1/posts/abc/comments")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if body.Error == "" {
		t.Error("expected an error message")
	}
}

func TestServer_ErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", domain.ErrInvalidInput, http.StatusBadRequest},
		{"not found", contract.ErrNotFound, http.StatusNotFound},
		{"gateway", &contract.GatewayError{Op: "replies", Status: 500}, http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			colls := &mockCollections{
				NextRepliesFunc: func(ctx context.Context, id uint64) (paging.State[domain.Comment], error) {
					if id != 7 {
						t.Errorf("id = %d, want 7", id)
					}
					return paging.State[domain.Comment]{LoadedCount: 3}, tt.err
				},
			}
			rec, body := serve(t, colls, http.MethodGet, "/v1/comments/7/replies")
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if body.Error == "" || body.LoadedCount != 3 {
				t.Errorf("state and error should both be returned, got %+v", body)
			}
		})
	}
}

func TestServer_Reset(t *testing.T) {
	colls := &mockCollections{
		ResetFunc: func(kind, key string) (bool, error) {
			if kind != "likes" || key != "0xabc" {
				return false, domain.ErrInvalidInput
			}
			return true, nil
		},
	}
	s := NewServer(Config{}, colls, NewMonitor(0))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/collections/likes/0xabc", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out map[string]bool
	json.Unmarshal(rec.Body.Bytes(), &out)
	if !out["reset"] {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/collections/bogus/1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestServer_Health(t *testing.T) {
	tests := []struct {
		name   string
		checks []Check
		want   SystemStatus
		code   int
	}{
		{
			name: "healthy",
			checks: []Check{
				{Name: "chain", Critical: true, Probe: func(context.Context) error { return nil }},
			},
			want: StatusHealthy,
			code: http.StatusOK,
		},
		{
			name: "cache down degrades",
			checks: []Check{
				{Name: "chain", Critical: true, Probe: func(context.Context) error { return nil }},
				{Name: "cache", Probe: func(context.Context) error { return errors.New("down") }},
			},
			want: StatusDegraded,
			code: http.StatusOK,
		},
		{
			name: "chain down is critical",
			checks: []Check{
				{Name: "chain", Critical: true, Probe: func(context.Context) error { return errors.New("down") }},
				{Name: "cache", Probe: func(context.Context) error { return errors.New("down") }},
			},
			want: StatusCritical,
			code: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(Config{}, &mockCollections{}, NewMonitor(0, tt.checks...))
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
			var out map[string]SystemStatus
			json.Unmarshal(rec.Body.Bytes(), &out)
			if out["status"] != tt.want {
				t.Errorf("status = %q, want %q", out["status"], tt.want)
			}
		})
	}
}

func TestMonitor_CachesReport(t *testing.T) {
	calls := 0
	m := NewMonitor(time.Minute, Check{Name: "chain", Probe: func(context.Context) error {
		calls++
		return nil
	}})

	m.CheckHealth(context.Background())
	m.CheckHealth(context.Background())
	if calls != 1 {
		t.Errorf("probe calls = %d, want 1", calls)
	}
}
