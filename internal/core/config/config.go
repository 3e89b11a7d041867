package config

import (
	"time"

	"github.com/vietddude/feedsync/internal/core/domain"
	redisclient "github.com/vietddude/feedsync/internal/infra/redis"
	"github.com/vietddude/feedsync/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Chain    ChainConfig        `yaml:"chain"`
	Gateway  GatewayConfig      `yaml:"gateway"`
	Feed     FeedConfig         `yaml:"feed"`
	Cache    CacheConfig        `yaml:"cache"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ChainConfig holds settings for the chain the like events live on.
type ChainConfig struct {
	ChainID         domain.ChainID   `yaml:"id"`
	Providers       []ProviderConfig `yaml:"providers"`
	Timeout         time.Duration    `yaml:"timeout"`
	Contract        string           `yaml:"contract"`
	LikeTopic       string           `yaml:"like_topic"`
	DeploymentBlock uint64           `yaml:"deployment_block"`
	Confirmations   uint64           `yaml:"confirmations"`
	HeadTTL         time.Duration    `yaml:"head_ttl"`
	LogsPerSecond   int              `yaml:"logs_per_second"`
}

// ProviderConfig holds settings for an RPC provider.
type ProviderConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// GatewayConfig holds settings for the contract read gateway.
type GatewayConfig struct {
	URL         string        `yaml:"url"`
	Timeout     time.Duration `yaml:"timeout"`
	OldestFirst bool          `yaml:"oldest_first"` // gateway returns pages in ascending index order
}

// FeedConfig holds page sizes and scan bounds.
type FeedConfig struct {
	PostsPageSize    int    `yaml:"posts_page_size"`
	CommentsPageSize int    `yaml:"comments_page_size"`
	RepliesPageSize  int    `yaml:"replies_page_size"`
	LikesPageSize    int    `yaml:"likes_page_size"`
	ChunkSize        uint64 `yaml:"chunk_size"`
	MaxCachedLikes   int    `yaml:"max_cached_likes"`
	CachePrefix      string `yaml:"cache_prefix"`
}

// CacheConfig selects where like checkpoints are persisted.
type CacheConfig struct {
	Backend string `yaml:"backend"` // memory, file, redis, postgres
	Dir     string `yaml:"dir"`     // file backend directory
}
