package gormstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/chirino/history-service/internal/ident"
	"github.com/chirino/history-service/internal/model"
	registrystore "github.com/chirino/history-service/internal/registry/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "history.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	s := NewStore(db, nil)
	s.SetAllocator(ident.Sequence(1))
	return s
}

func TestAppendAndPage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	discussion := ident.Sequence(1000).NewID()

	t.Run("empty discussion yields empty page", func(t *testing.T) {
		page, err := s.Page(ctx, discussion, nil, 20)
		require.NoError(t, err)
		assert.Empty(t, page.Messages)
		assert.Nil(t, page.NextCursor)
	})

	t.Run("batch order matches input order", func(t *testing.T) {
		res, err := s.Append(ctx, discussion, "alice", []string{"z", "y", "x"}, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, 3, res.InsertedCount)
		assert.Equal(t, "x", res.LastMessageText)

		page, err := s.Page(ctx, discussion, nil, 20)
		require.NoError(t, err)
		require.Len(t, page.Messages, 3)
		// Newest first: the last appended text comes back first.
		assert.Equal(t, "x", page.Messages[0].Text)
		assert.Equal(t, "y", page.Messages[1].Text)
		assert.Equal(t, "z", page.Messages[2].Text)
		assert.Equal(t, res.LastMessageID, page.Messages[0].ID)
		assert.Nil(t, page.NextCursor)
	})

	t.Run("empty batch is rejected", func(t *testing.T) {
		_, err := s.Append(ctx, discussion, "alice", nil, time.Now().UTC())
		var validation *registrystore.ValidationError
		require.ErrorAs(t, err, &validation)

		page, err := s.Page(ctx, discussion, nil, 20)
		require.NoError(t, err)
		assert.Len(t, page.Messages, 3)
	})
}

func TestPageCursorWalk(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	discussion := ident.Sequence(2000).NewID()

	texts := make([]string, 25)
	for i := range texts {
		texts[i] = string(rune('a' + i))
	}
	_, err := s.Append(ctx, discussion, "alice", texts, time.Now().UTC())
	require.NoError(t, err)

	// Walk the history ten at a time. Ids must strictly decrease across the
	// whole walk and the cursor must be exclusive.
	var seen []ident.ID
	var cursor *ident.ID
	for {
		page, err := s.Page(ctx, discussion, cursor, 10)
		require.NoError(t, err)
		for _, m := range page.Messages {
			if len(seen) > 0 {
				assert.True(t, m.ID.Less(seen[len(seen)-1]), "ids must strictly decrease")
			}
			seen = append(seen, m.ID)
		}
		if page.NextCursor == nil {
			assert.Less(t, len(page.Messages), 10, "a short page ends the walk")
			break
		}
		assert.Len(t, page.Messages, 10)
		cursor = page.NextCursor
	}
	assert.Len(t, seen, 25)

	t.Run("cursor bound is exclusive", func(t *testing.T) {
		first, err := s.Page(ctx, discussion, nil, 1)
		require.NoError(t, err)
		require.Len(t, first.Messages, 1)

		next, err := s.Page(ctx, discussion, &first.Messages[0].ID, 1)
		require.NoError(t, err)
		require.Len(t, next.Messages, 1)
		assert.NotEqual(t, first.Messages[0].ID, next.Messages[0].ID)
	})

	t.Run("full final page hands out a dead-end cursor", func(t *testing.T) {
		page, err := s.Page(ctx, discussion, nil, 25)
		require.NoError(t, err)
		require.Len(t, page.Messages, 25)
		require.NotNil(t, page.NextCursor)

		end, err := s.Page(ctx, discussion, page.NextCursor, 25)
		require.NoError(t, err)
		assert.Empty(t, end.Messages)
		assert.Nil(t, end.NextCursor)
	})
}

func TestRecordMessagesDirectory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	discussion := ident.Sequence(3000).NewID()

	t.Run("first write creates the discussion", func(t *testing.T) {
		res, err := s.RecordMessages(ctx, discussion, "alice", []string{"hi"})
		require.NoError(t, err)

		list, err := s.ListFor(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, list, 1)
		d := list[0]
		assert.Equal(t, discussion, d.ID)
		assert.Equal(t, []string{"alice"}, d.Users)
		require.NotNil(t, d.LastMessage)
		assert.Equal(t, "hi", d.LastMessage.Text)
		assert.Equal(t, "alice", d.LastMessage.UserID)
		assert.Equal(t, res.LastMessageID, d.LastMessage.MessageID)
		assert.Equal(t, d.UpdatedAt, d.LastMessage.CreatedAt)
	})

	t.Run("second author joins the participant set", func(t *testing.T) {
		_, err := s.RecordMessages(ctx, discussion, "bob", []string{"hello"})
		require.NoError(t, err)

		list, err := s.ListFor(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.ElementsMatch(t, []string{"alice", "bob"}, list[0].Users)
		assert.Equal(t, "hello", list[0].LastMessage.Text)
		assert.Equal(t, "bob", list[0].LastMessage.UserID)

		bobList, err := s.ListFor(ctx, "bob")
		require.NoError(t, err)
		assert.Len(t, bobList, 1)
	})

	t.Run("listing is ordered by recency", func(t *testing.T) {
		other := ident.Sequence(4000).NewID()
		_, err := s.RecordMessages(ctx, other, "alice", []string{"newer"})
		require.NoError(t, err)

		list, err := s.ListFor(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, other, list[0].ID)
		assert.Equal(t, discussion, list[1].ID)
		assert.False(t, list[0].UpdatedAt.Before(list[1].UpdatedAt))
	})

	t.Run("unknown participant gets an empty slice", func(t *testing.T) {
		list, err := s.ListFor(ctx, "nobody")
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})

	t.Run("empty batch leaves the directory untouched", func(t *testing.T) {
		before, err := s.ListFor(ctx, "alice")
		require.NoError(t, err)

		_, err = s.RecordMessages(ctx, discussion, "alice", nil)
		var validation *registrystore.ValidationError
		require.ErrorAs(t, err, &validation)

		after, err := s.ListFor(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})
}

// fakeCache records Set and Remove calls so tests can observe read-through
// population and write-path invalidation.
type fakeCache struct {
	entries map[string][]model.Discussion
	removed []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string][]model.Discussion{}}
}

func (c *fakeCache) Available() bool { return true }

func (c *fakeCache) Get(_ context.Context, participantID string) ([]model.Discussion, bool, error) {
	d, ok := c.entries[participantID]
	return d, ok, nil
}

func (c *fakeCache) Set(_ context.Context, participantID string, discussions []model.Discussion, _ time.Duration) error {
	c.entries[participantID] = discussions
	return nil
}

func (c *fakeCache) Remove(_ context.Context, participantID string) error {
	delete(c.entries, participantID)
	c.removed = append(c.removed, participantID)
	return nil
}

func TestDirectoryCacheInvalidation(t *testing.T) {
	ctx := context.Background()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "history.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	cache := newFakeCache()
	s := NewStore(db, cache)
	s.SetAllocator(ident.Sequence(1))

	discussion := ident.Sequence(1000).NewID()
	_, err = s.RecordMessages(ctx, discussion, "alice", []string{"hi"})
	require.NoError(t, err)
	_, err = s.RecordMessages(ctx, discussion, "bob", []string{"hey"})
	require.NoError(t, err)

	t.Run("listing populates the cache", func(t *testing.T) {
		_, err := s.ListFor(ctx, "alice")
		require.NoError(t, err)
		cached, ok, _ := cache.Get(ctx, "alice")
		require.True(t, ok)
		require.Len(t, cached, 1)
	})

	t.Run("cached listing is served without touching the store", func(t *testing.T) {
		planted := []model.Discussion{{ID: discussion, Users: []string{"planted"}}}
		require.NoError(t, cache.Set(ctx, "alice", planted, 0))
		list, err := s.ListFor(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, planted, list)
	})

	t.Run("a write invalidates every participant", func(t *testing.T) {
		_, err := s.ListFor(ctx, "bob")
		require.NoError(t, err)

		cache.removed = nil
		_, err = s.RecordMessages(ctx, discussion, "alice", []string{"again"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"alice", "bob"}, cache.removed)

		_, ok, _ := cache.Get(ctx, "bob")
		assert.False(t, ok)
	})
}

func TestPageIndexCoversCursorScan(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "history.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	require.True(t, db.Migrator().HasIndex(&messageRow{}, "idx_messages_discussion"))

	// The page query filters on discussion_id and range-scans id, so the
	// index must be composite over both columns, discussion_id first.
	var cols []string
	err = db.Raw(
		"SELECT name FROM pragma_index_info('idx_messages_discussion') ORDER BY seqno",
	).Scan(&cols).Error
	require.NoError(t, err)
	assert.Equal(t, []string{"discussion_id", "id"}, cols)
}
