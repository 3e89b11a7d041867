// Package contract reads posts, comments and replies through the contract read gateway.
package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vietddude/feedsync/internal/core/domain"
	"github.com/vietddude/feedsync/internal/infra/rpc/provider"
)

var (
	// ErrNotFound is returned when the gateway does not know the requested parent record.
	ErrNotFound = errors.New("not found")
)

// GatewayError carries the message of an {"error": "..."} response.
type GatewayError struct {
	Op      string
	Status  int
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: gateway error (%d): %s", e.Op, e.Status, e.Message)
}

// Reader is the set of index-paged read calls the loaders page through.
type Reader interface {
	PostCount(ctx context.Context, creator string) (int, error)
	Posts(ctx context.Context, creator, viewer string, start, count int) ([]domain.Post, error)
	CommentCount(ctx context.Context, postID uint64) (int, error)
	Comments(ctx context.Context, postID uint64, start, count int) ([]domain.Comment, error)
	ReplyCount(ctx context.Context, commentID uint64) (int, error)
	Replies(ctx context.Context, commentID uint64, start, count int) ([]domain.Comment, error)
}

// HTTPReader implements Reader over the gateway's REST API.
type HTTPReader struct {
	p provider.Provider
}

var _ Reader = (*HTTPReader)(nil)

// NewHTTPReader creates a reader that sends every call through p.
func NewHTTPReader(p provider.Provider) *HTTPReader {
	return &HTTPReader{p: p}
}

type countResponse struct {
	Count *int   `json:"count"`
	Error string `json:"error"`
}

type listResponse[T any] struct {
	Items []T    `json:"items"`
	Error string `json:"error"`
}

func (r *HTTPReader) PostCount(ctx context.Context, creator string) (int, error) {
	return r.count(ctx, fmt.Sprintf("creators/%s/posts/count", domain.NormalizeAddress(creator)))
}

func (r *HTTPReader) Posts(ctx context.Context, creator, viewer string, start, count int) ([]domain.Post, error) {
	q := window(start, count)
	if viewer != "" {
		q.Set("viewer", domain.NormalizeAddress(viewer))
	}
	return list[domain.Post](ctx, r.p, fmt.Sprintf("creators/%s/posts", domain.NormalizeAddress(creator)), q)
}

func (r *HTTPReader) CommentCount(ctx context.Context, postID uint64) (int, error) {
	return r.count(ctx, fmt.Sprintf("posts/%d/comments/count", postID))
}

func (r *HTTPReader) Comments(ctx context.Context, postID uint64, start, count int) ([]domain.Comment, error) {
	return list[domain.Comment](ctx, r.p, fmt.Sprintf("posts/%d/comments", postID), window(start, count))
}

func (r *HTTPReader) ReplyCount(ctx context.Context, commentID uint64) (int, error) {
	return r.count(ctx, fmt.Sprintf("comments/%d/replies/count", commentID))
}

func (r *HTTPReader) Replies(ctx context.Context, commentID uint64, start, count int) ([]domain.Comment, error) {
	return list[domain.Comment](ctx, r.p, fmt.Sprintf("comments/%d/replies", commentID), window(start, count))
}

func (r *HTTPReader) count(ctx context.Context, path string) (int, error) {
	var resp countResponse
	if _, err := r.p.Execute(ctx, provider.Operation{Name: path, Result: &resp}); err != nil {
		return 0, mapError(path, err)
	}
	if resp.Error != "" {
		return 0, &GatewayError{Op: path, Status: http.StatusOK, Message: resp.Error}
	}
	if resp.Count == nil {
		return 0, fmt.Errorf("%s: response has no count", path)
	}
	return *resp.Count, nil
}

func list[T any](ctx context.Context, p provider.Provider, path string, q url.Values) ([]T, error) {
	var resp listResponse[T]
	if _, err := p.Execute(ctx, provider.Operation{Name: path, Query: q, Result: &resp}); err != nil {
		return nil, mapError(path, err)
	}
	if resp.Error != "" {
		return nil, &GatewayError{Op: path, Status: http.StatusOK, Message: resp.Error}
	}
	return resp.Items, nil
}

func window(start, count int) url.Values {
	return url.Values{
		"start": {strconv.Itoa(start)},
		"count": {strconv.Itoa(count)},
	}
}

// mapError turns a non-2xx gateway response into a GatewayError, or ErrNotFound for 404.
func mapError(op string, err error) error {
	var se *provider.StatusError
	if !errors.As(err, &se) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var body struct {
		Error string `json:"error"`
	}
	msg := string(se.Body)
	if json.Unmarshal(se.Body, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if se.Code == http.StatusNotFound {
		return fmt.Errorf("%s: %w: %s", op, ErrNotFound, msg)
	}
	return &GatewayError{Op: op, Status: se.Code, Message: msg}
}
