// Package api serves paged collections over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/vietddude/feedsync/internal/core/domain"
	"github.com/vietddude/feedsync/internal/core/paging"
	"github.com/vietddude/feedsync/internal/infra/contract"
)

// Collections is the set of paged collections the server exposes.
type Collections interface {
	NextPosts(ctx context.Context, creator, viewer string) (paging.State[domain.Post], error)
	NextComments(ctx context.Context, postID uint64) (paging.State[domain.Comment], error)
	NextReplies(ctx context.Context, commentID uint64) (paging.State[domain.Comment], error)
	NextLikes(ctx context.Context, wallet string, refresh bool) (paging.State[domain.LikeEvent], error)
	Reset(kind, key string) (bool, error)
}

// Config configures the HTTP server.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// Server provides the collection endpoints plus health and metrics.
type Server struct {
	colls   Collections
	monitor *Monitor
	server  *http.Server
	log     *slog.Logger
}

// NewServer creates a new server.
func NewServer(cfg Config, colls Collections, monitor *Monitor) *Server {
	mux := http.NewServeMux()
	s := &Server{
		colls:   colls,
		monitor: monitor,
		log:     slog.Default().With("component", "api"),
	}

	mux.HandleFunc("GET /v1/creators/{address}/posts", s.handlePosts)
	mux.HandleFunc("GET /v1/posts/{id}/comments", s.handleComments)
	mux.HandleFunc("GET /v1/comments/{id}/replies", s.handleReplies)
	mux.HandleFunc("GET /v1/wallets/{address}/likes", s.handleLikes)
	mux.HandleFunc("DELETE /v1/collections/{kind}/{key}", s.handleReset)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())

	c := cors.Default()
	if len(cfg.AllowedOrigins) > 0 {
		c = cors.New(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodDelete},
		})
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           c.Handler(s.requestID(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info("API server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("Request served",
			"method", r.Method, "path", r.URL.Path, "request_id", id, "took", time.Since(start))
	})
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	st, err := s.colls.NextPosts(r.Context(), r.PathValue("address"), r.URL.Query().Get("viewer"))
	writeState(s, w, st, err)
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid post id %q", r.PathValue("id")))
		return
	}
	st, err := s.colls.NextComments(r.Context(), id)
	writeState(s, w, st, err)
}

func (s *Server) handleReplies(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid comment id %q", r.PathValue("id")))
		return
	}
	st, err := s.colls.NextReplies(r.Context(), id)
	writeState(s, w, st, err)
}

func (s *Server) handleLikes(w http.ResponseWriter, r *http.Request) {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	st, err := s.colls.NextLikes(r.Context(), r.PathValue("address"), refresh)
	writeState(s, w, st, err)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	found, err := s.colls.Reset(r.PathValue("kind"), r.PathValue("key"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"reset": found})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.monitor.CheckHealth(r.Context())
	code := http.StatusOK
	if report.SystemStatus == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]SystemStatus{"status": report.SystemStatus})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.CheckHealth(r.Context()))
}

// stateResponse is the wire form of a collection snapshot.
type stateResponse[T any] struct {
	Items       []T    `json:"items"`
	LoadedCount int    `json:"loaded_count"`
	Total       *int   `json:"total"`
	Cursor      uint64 `json:"cursor"`
	IsLoading   bool   `json:"is_loading"`
	IsExhausted bool   `json:"is_exhausted"`
	Error       string `json:"error,omitempty"`
}

func writeState[T any](s *Server, w http.ResponseWriter, st paging.State[T], err error) {
	code := http.StatusOK
	if err != nil {
		code = statusFor(err)
		s.log.Warn("Collection load failed", "status", code, "error", err)
	}
	writeJSON(w, code, toResponse(st, err))
}

func toResponse[T any](st paging.State[T], err error) stateResponse[T] {
	resp := stateResponse[T]{
		Items:       st.Items,
		LoadedCount: st.LoadedCount,
		Cursor:      st.Cursor,
		IsLoading:   st.IsLoading,
		IsExhausted: st.IsExhausted,
	}
	if resp.Items == nil {
		resp.Items = []T{}
	}
	if st.TotalKnown {
		total := st.Total
		resp.Total = &total
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, contract.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
