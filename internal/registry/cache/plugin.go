package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/history-service/internal/model"
)

type directoryCacheKey struct{}

// WithDirectoryCacheContext returns a new context carrying the given DirectoryCache.
func WithDirectoryCacheContext(ctx context.Context, c DirectoryCache) context.Context {
	return context.WithValue(ctx, directoryCacheKey{}, c)
}

// DirectoryCacheFromContext retrieves the DirectoryCache from the context.
// Returns nil if none was set.
func DirectoryCacheFromContext(ctx context.Context) DirectoryCache {
	c, _ := ctx.Value(directoryCacheKey{}).(DirectoryCache)
	return c
}

// DirectoryCache caches a participant's discussion list. Stores invalidate a
// participant's entry on every write that touches one of their discussions;
// a miss is always safe and just falls through to the store.
type DirectoryCache interface {
	Available() bool
	Get(ctx context.Context, participantID string) ([]model.Discussion, bool, error)
	Set(ctx context.Context, participantID string, discussions []model.Discussion, ttl time.Duration) error
	Remove(ctx context.Context, participantID string) error
}

// Loader creates a cache from config.
type Loader func(ctx context.Context) (DirectoryCache, error)

// Plugin represents a cache plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a cache plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered cache plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named cache plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown cache %q; valid: %v", name, Names())
}
