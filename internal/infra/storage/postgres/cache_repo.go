package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/feedsync/internal/infra/cache"
)

// CacheRepo stores cache blobs in the likes_cache table. It implements cache.Backend.
type CacheRepo struct {
	db *DB
}

// NewCacheRepo creates a new PostgreSQL cache repository.
func NewCacheRepo(db *DB) *CacheRepo {
	return &CacheRepo{db: db}
}

// Get returns the payload stored under key.
func (r *CacheRepo) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := r.db.GetContext(ctx, &payload,
		`SELECT payload FROM likes_cache WHERE cache_key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return payload, nil
}

// Put replaces the payload stored under key in one upsert.
func (r *CacheRepo) Put(ctx context.Context, key string, blob []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO likes_cache (cache_key, payload, updated_at)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (cache_key) DO UPDATE
		SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`,
		key, string(blob), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}
	return nil
}

// Delete removes the payload stored under key.
func (r *CacheRepo) Delete(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM likes_cache WHERE cache_key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return cache.ErrNotFound
	}
	return nil
}
