// Package cache persists log collection checkpoints per filter key.
//
// A Store encodes checkpoints as one JSON blob per key and hands the bytes to a Backend.
// Every Save replaces the whole blob, so a reader never sees a partial update.
package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/vietddude/feedsync/internal/core/domain"
	"github.com/vietddude/feedsync/internal/core/paging"
)

var (
	// ErrNotFound is returned by backends when no blob is stored under a key.
	ErrNotFound = errors.New("cache entry not found")

	// ErrCorrupt is returned when a stored blob cannot be decoded.
	ErrCorrupt = errors.New("cache entry corrupt")
)

// Backend stores opaque blobs by key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, blob []byte) error
	Delete(ctx context.Context, key string) error
}

// LikesKey returns the cache key for a wallet's like history.
func LikesKey(prefix, wallet string) string {
	return fmt.Sprintf("%slikes_cache_%s", prefix, domain.NormalizeAddress(wallet))
}

// Store adapts a Backend to paging.CacheStore.
type Store[T paging.Blocked] struct {
	backend Backend
}

// NewStore creates a checkpoint store over backend.
func NewStore[T paging.Blocked](backend Backend) *Store[T] {
	return &Store[T]{backend: backend}
}

// Load returns the checkpoint stored under key, or nil when there is none.
func (s *Store[T]) Load(ctx context.Context, key string) (*paging.Checkpoint[T], error) {
	blob, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return Decode[T](blob)
}

// Save replaces the checkpoint stored under key.
func (s *Store[T]) Save(ctx context.Context, key string, cp paging.Checkpoint[T]) error {
	blob, err := Encode(cp)
	if err != nil {
		return err
	}
	if err := s.backend.Put(ctx, key, blob); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Delete removes the checkpoint stored under key. Deleting a missing key is not an error.
func (s *Store[T]) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
