package local

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/history-service/internal/config"
	"github.com/chirino/history-service/internal/model"
	registrycache "github.com/chirino/history-service/internal/registry/cache"
	"github.com/chirino/history-service/internal/security"
	"github.com/dgraph-io/ristretto/v2"
)

const defaultTTL = 5 * time.Minute

func init() {
	registrycache.Register(registrycache.Plugin{
		Name: "local",
		Loader: func(ctx context.Context) (registrycache.DirectoryCache, error) {
			cfg := config.FromContext(ctx)
			ttl := defaultTTL
			if cfg != nil && cfg.CacheTTL > 0 {
				ttl = cfg.CacheTTL
			}
			return New(ttl)
		},
	})
}

// New creates an in-process DirectoryCache. Useful for single-replica
// deployments where running Redis is not worth it; a multi-replica
// deployment should use the redis cache so invalidations reach every
// replica.
func New(ttl time.Duration) (registrycache.DirectoryCache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, []model.Discussion]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("local cache: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &localDirectoryCache{cache: c, ttl: ttl}, nil
}

type localDirectoryCache struct {
	cache *ristretto.Cache[string, []model.Discussion]
	ttl   time.Duration
}

func (c *localDirectoryCache) Available() bool { return true }

func (c *localDirectoryCache) Get(_ context.Context, participantID string) ([]model.Discussion, bool, error) {
	discussions, ok := c.cache.Get(participantID)
	if !ok {
		if security.CacheMissesTotal != nil {
			security.CacheMissesTotal.Inc()
		}
		return nil, false, nil
	}
	if security.CacheHitsTotal != nil {
		security.CacheHitsTotal.Inc()
	}
	return discussions, true, nil
}

func (c *localDirectoryCache) Set(_ context.Context, participantID string, discussions []model.Discussion, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}
	c.cache.SetWithTTL(participantID, discussions, 1, ttl)
	// Ristretto admits writes asynchronously. Wait so a read that follows a
	// Set observes the entry.
	c.cache.Wait()
	return nil
}

func (c *localDirectoryCache) Remove(_ context.Context, participantID string) error {
	c.cache.Del(participantID)
	c.cache.Wait()
	return nil
}

var _ registrycache.DirectoryCache = (*localDirectoryCache)(nil)
