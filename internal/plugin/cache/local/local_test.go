package local

import (
	"context"
	"testing"
	"time"

	"github.com/chirino/history-service/internal/ident"
	"github.com/chirino/history-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDirectoryCache(t *testing.T) {
	ctx := context.Background()
	cache, err := New(time.Minute)
	require.NoError(t, err)
	require.True(t, cache.Available())

	discussions := []model.Discussion{{
		ID:    ident.Sequence(1).NewID(),
		Users: []string{"alice"},
	}}

	t.Run("miss before set", func(t *testing.T) {
		_, ok, err := cache.Get(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "alice", discussions, 0))
		got, ok, err := cache.Get(ctx, "alice")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, discussions, got)
	})

	t.Run("remove invalidates", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "bob", discussions, 0))
		require.NoError(t, cache.Remove(ctx, "bob"))
		_, ok, err := cache.Get(ctx, "bob")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("entries expire", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "carol", discussions, 50*time.Millisecond))
		_, ok, err := cache.Get(ctx, "carol")
		require.NoError(t, err)
		require.True(t, ok)

		time.Sleep(100 * time.Millisecond)
		_, ok, err = cache.Get(ctx, "carol")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("keys are independent", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "dave", discussions, 0))
		_, ok, err := cache.Get(ctx, "erin")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
