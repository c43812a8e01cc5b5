package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chirino/history-service/internal/config"
	"github.com/chirino/history-service/internal/model"
	registrycache "github.com/chirino/history-service/internal/registry/cache"
	"github.com/chirino/history-service/internal/security"
	goredis "github.com/redis/go-redis/v9"
)

const defaultTTL = 5 * time.Minute

func init() {
	registrycache.Register(registrycache.Plugin{
		Name:   "redis",
		Loader: load,
	})
}

func load(ctx context.Context) (registrycache.DirectoryCache, error) {
	cfg := config.FromContext(ctx)
	if cfg == nil || cfg.RedisURL == "" {
		return nil, fmt.Errorf("redis cache: HISTORY_SERVICE_REDIS_URL is required")
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return LoadFromURLWithTTL(ctx, cfg.RedisURL, ttl)
}

// LoadFromURL creates a DirectoryCache from a Redis-compatible URL.
func LoadFromURL(ctx context.Context, redisURL string) (registrycache.DirectoryCache, error) {
	return LoadFromURLWithTTL(ctx, redisURL, defaultTTL)
}

// LoadFromURLWithTTL creates a cache with an explicit directory-entry TTL.
func LoadFromURLWithTTL(ctx context.Context, redisURL string, ttl time.Duration) (registrycache.DirectoryCache, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis cache: invalid URL: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis cache: ping failed: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &redisDirectoryCache{client: client, ttl: ttl}, nil
}

type redisDirectoryCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func directoryKey(participantID string) string {
	return "discussions:" + participantID
}

func (c *redisDirectoryCache) Available() bool {
	return true
}

func (c *redisDirectoryCache) Get(ctx context.Context, participantID string) ([]model.Discussion, bool, error) {
	data, err := c.client.Get(ctx, directoryKey(participantID)).Bytes()
	if err == goredis.Nil {
		if security.CacheMissesTotal != nil {
			security.CacheMissesTotal.Inc()
		}
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var discussions []model.Discussion
	if err := json.Unmarshal(data, &discussions); err != nil {
		return nil, false, err
	}
	if security.CacheHitsTotal != nil {
		security.CacheHitsTotal.Inc()
	}
	return discussions, true, nil
}

func (c *redisDirectoryCache) Set(ctx context.Context, participantID string, discussions []model.Discussion, ttl time.Duration) error {
	data, err := json.Marshal(discussions)
	if err != nil {
		return err
	}
	if ttl == 0 {
		ttl = c.ttl
	}
	return c.client.Set(ctx, directoryKey(participantID), data, ttl).Err()
}

func (c *redisDirectoryCache) Remove(ctx context.Context, participantID string) error {
	return c.client.Del(ctx, directoryKey(participantID)).Err()
}

var _ registrycache.DirectoryCache = (*redisDirectoryCache)(nil)
