package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/vietddude/feedsync/internal/metrics"
)

const (
	defaultMaxConns = 10
	defaultMinConns = 2
	statsInterval   = 15 * time.Second
)

// Config holds PostgreSQL connection configuration for the checkpoint cache.
type Config struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

func (c Config) pool() (open, idle int) {
	open, idle = c.MaxConns, c.MinConns
	if open <= 0 {
		open = defaultMaxConns
	}
	if idle <= 0 {
		idle = defaultMinConns
	}
	return open, min(idle, open)
}

// DB is the cache database handle.
type DB struct {
	*sqlx.DB
}

// NewDB opens the database and fails unless it answers a ping.
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is empty")
	}

	conn, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	open, idle := cfg.pool()
	conn.SetMaxOpenConns(open)
	conn.SetMaxIdleConns(idle)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(30 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{DB: conn}, nil
}

// poolUsage returns the share of the open connection limit in use, in percent. ok is false
// when the pool is unbounded.
func poolUsage(s sql.DBStats) (float64, bool) {
	if s.MaxOpenConnections <= 0 {
		return 0, false
	}
	return 100 * float64(s.OpenConnections) / float64(s.MaxOpenConnections), true
}

// StartMetricsCollector publishes pool usage on a fixed interval until ctx ends.
func (db *DB) StartMetricsCollector(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if usage, ok := poolUsage(db.Stats()); ok {
					metrics.DBConnectionPoolUsage.Set(usage)
				}
			}
		}
	}()
}

// Health pings the database.
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}
