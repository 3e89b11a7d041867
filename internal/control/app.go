package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/feedsync/internal/api"
	"github.com/vietddude/feedsync/internal/core/chaintip"
	"github.com/vietddude/feedsync/internal/core/config"
	"github.com/vietddude/feedsync/internal/core/domain"
	"github.com/vietddude/feedsync/internal/infra/cache"
	"github.com/vietddude/feedsync/internal/infra/chain/evm"
	"github.com/vietddude/feedsync/internal/infra/contract"
	redisclient "github.com/vietddude/feedsync/internal/infra/redis"
	"github.com/vietddude/feedsync/internal/infra/rpc/provider"
	"github.com/vietddude/feedsync/internal/infra/storage/postgres"
)

// App owns every long-lived dependency: the cache backend, the chain adapter, the
// gateway reader and the HTTP server.
type App struct {
	cfg       config.AppConfig
	feed      *Feed
	registry  *Registry
	likeCache *cache.Store[domain.LikeEvent]
	head      *chaintip.HeadCache
	server    *api.Server
	providers []provider.Provider
	db        *postgres.DB
	redis     *redisclient.Client
	log       *slog.Logger
}

// NewApp builds an App from cfg. Connections to the cache backend are opened here.
func NewApp(ctx context.Context, cfg config.AppConfig) (*App, error) {
	a := &App{cfg: cfg, log: slog.Default().With("component", "app")}

	// 1. Cache backend
	backend, cacheCheck, err := a.openCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.likeCache = cache.NewStore[domain.LikeEvent](backend)

	// 2. Chain adapter and head
	rpcProviders := make([]provider.RPCProvider, 0, len(cfg.Chain.Providers))
	for _, p := range cfg.Chain.Providers {
		hp := provider.NewHTTPProvider(p.Name, p.URL, cfg.Chain.Timeout)
		rpcProviders = append(rpcProviders, hp)
		a.providers = append(a.providers, hp)
	}
	adapter := evm.NewEVMAdapter(evm.Config{
		ChainID:       cfg.Chain.ChainID,
		Contract:      cfg.Chain.Contract,
		LikeTopic:     cfg.Chain.LikeTopic,
		LogsPerSecond: cfg.Chain.LogsPerSecond,
	}, rpcProviders...)
	a.head = chaintip.NewHeadCache(adapter, cfg.Chain.HeadTTL, cfg.Chain.Confirmations, cfg.Chain.ChainID.Name())

	// 3. Gateway reader
	gateway := provider.NewHTTPProvider("gateway", cfg.Gateway.URL, cfg.Gateway.Timeout)
	a.providers = append(a.providers, gateway)
	reader := contract.NewHTTPReader(gateway)

	// 4. Collections
	a.feed = NewFeed(FeedConfig{
		PostsPageSize:    cfg.Feed.PostsPageSize,
		CommentsPageSize: cfg.Feed.CommentsPageSize,
		RepliesPageSize:  cfg.Feed.RepliesPageSize,
		LikesPageSize:    cfg.Feed.LikesPageSize,
		ChunkSize:        cfg.Feed.ChunkSize,
		OriginBlock:      cfg.Chain.DeploymentBlock,
		MaxCachedLikes:   cfg.Feed.MaxCachedLikes,
		CachePrefix:      cfg.Feed.CachePrefix,
		OldestFirst:      cfg.Gateway.OldestFirst,
	}, reader, adapter, a.head, a.likeCache)
	a.registry = NewRegistry(a.feed)

	// 5. HTTP server
	checks := []api.Check{
		{Name: "chain", Critical: true, Probe: func(ctx context.Context) error {
			_, err := a.head.GetLatestBlock(ctx)
			return err
		}},
		{Name: "gateway", Probe: func(context.Context) error {
			if !gateway.IsAvailable() {
				return errors.New("gateway marked unavailable")
			}
			return nil
		}},
	}
	if cacheCheck != nil {
		checks = append(checks, api.Check{Name: "cache", Probe: cacheCheck})
	}
	a.server = api.NewServer(api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, a.registry, api.NewMonitor(10*time.Second, checks...))

	a.log.Info("App initialized",
		"chain", cfg.Chain.ChainID.Name(),
		"providers", len(rpcProviders),
		"cache", cfg.Cache.Backend,
	)
	return a, nil
}

func (a *App) openCache(ctx context.Context) (cache.Backend, func(context.Context) error, error) {
	switch a.cfg.Cache.Backend {
	case "", "memory":
		a.log.Info("Using memory cache")
		return cache.NewMemory(), nil, nil

	case "file":
		f, err := cache.NewFile(a.cfg.Cache.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open file cache: %w", err)
		}
		a.log.Info("Using file cache", "dir", a.cfg.Cache.Dir)
		return f, nil, nil

	case "redis":
		c, err := redisclient.NewClient(a.cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redis = c
		a.log.Info("Using Redis cache")
		return c, c.Health, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, a.cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init db: %w", err)
		}
		a.db = db
		if err := db.Migrate(); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		a.log.Info("Using PostgreSQL cache")
		return postgres.NewCacheRepo(db), db.Health, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", a.cfg.Cache.Backend)
	}
}

// Feed returns the collection factory.
func (a *App) Feed() *Feed { return a.feed }

// Registry returns the live collections served over HTTP.
func (a *App) Registry() *Registry { return a.registry }

// LikeCache returns the persisted like checkpoint store.
func (a *App) LikeCache() *cache.Store[domain.LikeEvent] { return a.likeCache }

// LikesKey returns the cache key holding wallet's like checkpoint.
func (a *App) LikesKey(wallet string) string {
	return cache.LikesKey(a.cfg.Feed.CachePrefix, wallet)
}

// Start starts the HTTP server and background collectors. It returns once they are running.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.server.Start(); err != nil {
			a.log.Error("API server failed", "error", err)
		}
	}()

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}
	return nil
}

// Stop shuts down the HTTP server and closes every connection.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping feedsync...")
	err := a.server.Stop(ctx)
	a.Close()
	return err
}

// Close releases connections without touching the HTTP server. Commands that never start
// the server call it directly.
func (a *App) Close() {
	for _, p := range a.providers {
		p.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
}
