package gormstore

import (
	"context"
	"testing"

	"github.com/chirino/history-service/internal/ident"
	"github.com/chirino/history-service/internal/testutil/testpg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Same store code as the sqlite tests, but against a real Postgres so the
// upsert and join SQL gets exercised on the dialect production runs on.
func TestPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	dsn := testpg.StartPostgres(t)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	s := NewStore(db, nil)
	s.SetAllocator(ident.Sequence(1))

	discussion := ident.Sequence(1000).NewID()

	t.Run("append and page", func(t *testing.T) {
		res, err := s.RecordMessages(ctx, discussion, "alice", []string{"a", "b", "c"})
		require.NoError(t, err)
		assert.Equal(t, 3, res.InsertedCount)

		page, err := s.Page(ctx, discussion, nil, 2)
		require.NoError(t, err)
		require.Len(t, page.Messages, 2)
		assert.Equal(t, "c", page.Messages[0].Text)
		require.NotNil(t, page.NextCursor)

		rest, err := s.Page(ctx, discussion, page.NextCursor, 2)
		require.NoError(t, err)
		require.Len(t, rest.Messages, 1)
		assert.Equal(t, "a", rest.Messages[0].Text)
		assert.Nil(t, rest.NextCursor)
	})

	t.Run("directory upsert and participant accretion", func(t *testing.T) {
		_, err := s.RecordMessages(ctx, discussion, "bob", []string{"hi"})
		require.NoError(t, err)
		_, err = s.RecordMessages(ctx, discussion, "bob", []string{"again"})
		require.NoError(t, err)

		list, err := s.ListFor(ctx, "bob")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.ElementsMatch(t, []string{"alice", "bob"}, list[0].Users)
		require.NotNil(t, list[0].LastMessage)
		assert.Equal(t, "again", list[0].LastMessage.Text)
		assert.Equal(t, list[0].UpdatedAt, list[0].LastMessage.CreatedAt)
	})

	t.Run("unknown participant gets an empty slice", func(t *testing.T) {
		list, err := s.ListFor(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})
}
