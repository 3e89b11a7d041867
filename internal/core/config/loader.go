package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/feedsync/internal/core/domain"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, expanding environment variables first, and applies
// defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Chain.ChainID == "" {
		cfg.Chain.ChainID = domain.ChainIDEthereum
	}
	if cfg.Chain.Timeout == 0 {
		cfg.Chain.Timeout = 10 * time.Second
	}
	if cfg.Chain.HeadTTL == 0 {
		cfg.Chain.HeadTTL = 3 * time.Second
	}
	for i := range cfg.Chain.Providers {
		if cfg.Chain.Providers[i].Name == "" {
			cfg.Chain.Providers[i].Name = fmt.Sprintf("provider-%d", i)
		}
	}
	if cfg.Gateway.Timeout == 0 {
		cfg.Gateway.Timeout = 10 * time.Second
	}

	if cfg.Feed.PostsPageSize == 0 {
		cfg.Feed.PostsPageSize = 10
	}
	if cfg.Feed.CommentsPageSize == 0 {
		cfg.Feed.CommentsPageSize = 10
	}
	if cfg.Feed.RepliesPageSize == 0 {
		cfg.Feed.RepliesPageSize = 5
	}
	if cfg.Feed.LikesPageSize == 0 {
		cfg.Feed.LikesPageSize = 10
	}
	if cfg.Feed.ChunkSize == 0 {
		cfg.Feed.ChunkSize = 5000
	}
	if cfg.Feed.MaxCachedLikes == 0 {
		cfg.Feed.MaxCachedLikes = 100
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.Dir == "" {
		cfg.Cache.Dir = ".feedsync/cache"
	}
}

// Validate reports configuration that cannot work.
func (c *AppConfig) Validate() error {
	if c.Feed.PostsPageSize < 0 || c.Feed.CommentsPageSize < 0 ||
		c.Feed.RepliesPageSize < 0 || c.Feed.LikesPageSize < 0 {
		return fmt.Errorf("page sizes must be positive")
	}
	switch c.Cache.Backend {
	case "memory", "file":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("cache backend redis requires redis.url")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("cache backend postgres requires database.url")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Chain.Contract != "" && !domain.IsAddress(c.Chain.Contract) {
		return fmt.Errorf("chain.contract %q is not an address", c.Chain.Contract)
	}
	return nil
}
