package noop

import (
	"context"
	"time"

	"github.com/chirino/history-service/internal/model"
	"github.com/chirino/history-service/internal/registry/cache"
)

func init() {
	cache.Register(cache.Plugin{
		Name: "none",
		Loader: func(ctx context.Context) (cache.DirectoryCache, error) {
			return &noopDirectoryCache{}, nil
		},
	})
}

type noopDirectoryCache struct{}

func (n *noopDirectoryCache) Available() bool { return false }
func (n *noopDirectoryCache) Get(_ context.Context, _ string) ([]model.Discussion, bool, error) {
	return nil, false, nil
}
func (n *noopDirectoryCache) Set(_ context.Context, _ string, _ []model.Discussion, _ time.Duration) error {
	return nil
}
func (n *noopDirectoryCache) Remove(_ context.Context, _ string) error { return nil }

var _ cache.DirectoryCache = (*noopDirectoryCache)(nil)
