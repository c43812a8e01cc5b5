package gormstore

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/history-service/internal/ident"
	"github.com/chirino/history-service/internal/model"
	registrystore "github.com/chirino/history-service/internal/registry/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (r discussionRow) toModel(users []string) (model.Discussion, error) {
	id, err := ident.Parse(r.ID)
	if err != nil {
		return model.Discussion{}, err
	}
	if users == nil {
		users = []string{}
	}
	out := model.Discussion{
		ID:        id,
		Users:     users,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.LastMessageID != nil {
		msgID, err := ident.Parse(*r.LastMessageID)
		if err != nil {
			return model.Discussion{}, err
		}
		lm := &model.LastMessage{MessageID: msgID}
		if r.LastMessageUserID != nil {
			lm.UserID = *r.LastMessageUserID
		}
		if r.LastMessageText != nil {
			lm.Text = *r.LastMessageText
		}
		if r.LastMessageCreatedAt != nil {
			lm.CreatedAt = r.LastMessageCreatedAt.UTC()
		}
		out.LastMessage = lm
	}
	return out, nil
}

// ListFor returns the participant's discussions ordered by recency. Results
// are served from the directory cache when one is configured.
func (s *Store) ListFor(ctx context.Context, participantID string) ([]model.Discussion, error) {
	if s.cache != nil && s.cache.Available() {
		if cached, ok, err := s.cache.Get(ctx, participantID); err == nil && ok {
			return cached, nil
		}
	}

	var rows []discussionRow
	err := s.db.WithContext(ctx).
		Joins("JOIN discussion_participants p ON p.discussion_id = discussions.id").
		Where("p.user_id = ?", participantID).
		Order("discussions.updated_at DESC, discussions.id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, wrapErr("find discussions", err)
	}

	usersByDiscussion, err := s.participants(ctx, rows)
	if err != nil {
		return nil, err
	}

	out := make([]model.Discussion, 0, len(rows))
	for _, r := range rows {
		d, err := r.toModel(usersByDiscussion[r.ID])
		if err != nil {
			return nil, wrapErr("decode discussions", err)
		}
		out = append(out, d)
	}

	if s.cache != nil && s.cache.Available() {
		if err := s.cache.Set(ctx, participantID, out, 0); err != nil {
			log.Warn("Failed to cache discussion list", "participant", participantID, "err", err)
		}
	}
	return out, nil
}

func (s *Store) participants(ctx context.Context, rows []discussionRow) (map[string][]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	var members []participantRow
	err := s.db.WithContext(ctx).
		Where("discussion_id IN ?", ids).
		Order("created_at ASC, user_id ASC").
		Find(&members).Error
	if err != nil {
		return nil, wrapErr("find participants", err)
	}
	byDiscussion := make(map[string][]string, len(rows))
	for _, m := range members {
		byDiscussion[m.DiscussionID] = append(byDiscussion[m.DiscussionID], m.UserID)
	}
	return byDiscussion, nil
}

// RecordMessages appends the batch and upserts the discussion summary in one
// transaction. Under concurrent appends the last committed transaction's
// summary wins; the next append repairs any stale summary.
func (s *Store) RecordMessages(ctx context.Context, discussionID ident.ID, userID string, texts []string) (*registrystore.AppendResult, error) {
	if len(texts) == 0 {
		return nil, &registrystore.ValidationError{Field: "messages", Message: "no messages provided"}
	}

	now := time.Now().UTC()
	var res *registrystore.AppendResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inner := &Store{db: tx, alloc: s.alloc}
		r, err := inner.Append(ctx, discussionID, userID, texts, now)
		if err != nil {
			return err
		}
		res = r

		lastID := r.LastMessageID.Hex()
		disc := discussionRow{
			ID:                   discussionID.Hex(),
			CreatedAt:            r.LastMessageCreatedAt,
			UpdatedAt:            r.LastMessageCreatedAt,
			LastMessageID:        &lastID,
			LastMessageUserID:    &userID,
			LastMessageText:      &r.LastMessageText,
			LastMessageCreatedAt: &r.LastMessageCreatedAt,
		}
		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"updated_at",
				"last_message_id",
				"last_message_user_id",
				"last_message_text",
				"last_message_created_at",
			}),
		}).Create(&disc).Error
		if err != nil {
			return wrapErr("upsert discussion", err)
		}

		member := participantRow{
			DiscussionID: discussionID.Hex(),
			UserID:       userID,
			CreatedAt:    r.LastMessageCreatedAt,
		}
		err = tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error
		if err != nil {
			return wrapErr("insert participant", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.cache.Available() {
		var members []participantRow
		if err := s.db.WithContext(ctx).Where("discussion_id = ?", discussionID.Hex()).Find(&members).Error; err == nil {
			for _, m := range members {
				if err := s.cache.Remove(ctx, m.UserID); err != nil {
					log.Warn("Failed to invalidate discussion cache", "participant", m.UserID, "err", err)
				}
			}
		}
	}
	return res, nil
}
