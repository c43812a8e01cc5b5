package gormstore

import (
	"context"
	"time"

	"github.com/chirino/history-service/internal/ident"
	"github.com/chirino/history-service/internal/model"
	registrystore "github.com/chirino/history-service/internal/registry/store"
)

func (r messageRow) toModel() (model.Message, error) {
	id, err := ident.Parse(r.ID)
	if err != nil {
		return model.Message{}, err
	}
	discussionID, err := ident.Parse(r.DiscussionID)
	if err != nil {
		return model.Message{}, err
	}
	return model.Message{
		ID:           id,
		DiscussionID: discussionID,
		UserID:       r.UserID,
		Text:         r.Text,
		CreatedAt:    r.CreatedAt.UTC(),
	}, nil
}

// Append inserts one row per text in a single batch insert. Ids come from
// the allocator before the insert, so batch order is id order and ids are
// globally increasing across concurrent appends.
func (s *Store) Append(ctx context.Context, discussionID ident.ID, userID string, texts []string, occurredAt time.Time) (*registrystore.AppendResult, error) {
	if len(texts) == 0 {
		return nil, &registrystore.ValidationError{Field: "messages", Message: "no messages provided"}
	}

	rows := make([]messageRow, 0, len(texts))
	for _, text := range texts {
		rows = append(rows, messageRow{
			ID:           s.alloc.NewID().Hex(),
			DiscussionID: discussionID.Hex(),
			UserID:       userID,
			Text:         text,
			CreatedAt:    occurredAt,
		})
	}

	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, wrapErr("insert messages", err)
	}

	last := rows[len(rows)-1]
	lastID, err := ident.Parse(last.ID)
	if err != nil {
		return nil, err
	}
	return &registrystore.AppendResult{
		InsertedCount:        len(rows),
		LastMessageID:        lastID,
		LastMessageText:      last.Text,
		LastMessageCreatedAt: last.CreatedAt.UTC(),
	}, nil
}

// Page returns up to limit messages of the discussion, newest first. cursor
// is an exclusive upper bound on the id column. An unknown discussion yields
// an empty page.
func (s *Store) Page(ctx context.Context, discussionID ident.ID, cursor *ident.ID, limit int) (*registrystore.MessagePage, error) {
	if limit <= 0 {
		limit = registrystore.DefaultPageLimit
	}

	q := s.db.WithContext(ctx).
		Where("discussion_id = ?", discussionID.Hex())
	if cursor != nil {
		q = q.Where("id < ?", cursor.Hex())
	}

	var rows []messageRow
	if err := q.Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, wrapErr("find messages", err)
	}

	page := &registrystore.MessagePage{Messages: make([]model.Message, 0, len(rows))}
	for _, r := range rows {
		msg, err := r.toModel()
		if err != nil {
			return nil, wrapErr("decode messages", err)
		}
		page.Messages = append(page.Messages, msg)
	}
	if len(rows) == limit {
		next := page.Messages[len(page.Messages)-1].ID
		page.NextCursor = &next
	}
	return page, nil
}
