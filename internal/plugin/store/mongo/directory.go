package mongo

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chirino/history-service/internal/ident"
	"github.com/chirino/history-service/internal/model"
	registrystore "github.com/chirino/history-service/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type lastMessageDoc struct {
	MessageID bson.ObjectID `bson:"message_id"`
	UserID    string        `bson:"user_id"`
	Text      string        `bson:"text"`
	CreatedAt time.Time     `bson:"created_at"`
}

type discussionDoc struct {
	ID          bson.ObjectID   `bson:"_id"`
	Users       []string        `bson:"users"`
	CreatedAt   time.Time       `bson:"created_at"`
	UpdatedAt   time.Time       `bson:"updated_at"`
	LastMessage *lastMessageDoc `bson:"last_message,omitempty"`
}

func (d discussionDoc) toModel() model.Discussion {
	out := model.Discussion{
		ID:        ident.ID(d.ID),
		Users:     d.Users,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	if d.Users == nil {
		out.Users = []string{}
	}
	if lm := d.LastMessage; lm != nil {
		out.LastMessage = &model.LastMessage{
			MessageID: ident.ID(lm.MessageID),
			UserID:    lm.UserID,
			Text:      lm.Text,
			CreatedAt: lm.CreatedAt.UTC(),
		}
	}
	return out
}

// ListFor returns the participant's discussions ordered by recency. Results
// are served from the directory cache when one is configured.
func (s *Store) ListFor(ctx context.Context, participantID string) ([]model.Discussion, error) {
	if s.cache != nil && s.cache.Available() {
		if cached, ok, err := s.cache.Get(ctx, participantID); err == nil && ok {
			return cached, nil
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.discussions().Find(ctx, bson.M{"users": participantID}, opts)
	if err != nil {
		return nil, wrapErr("find discussions", err)
	}
	defer cur.Close(ctx)

	var docs []discussionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrapErr("decode discussions", err)
	}

	out := make([]model.Discussion, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}

	if s.cache != nil && s.cache.Available() {
		if err := s.cache.Set(ctx, participantID, out, 0); err != nil {
			log.Warn("Failed to cache discussion list", "participant", participantID, "err", err)
		}
	}
	return out, nil
}

// RecordMessages appends the batch, then upserts the discussion summary.
// The two writes are not transactional: a reader can briefly see the new
// messages before the summary catches up, and under concurrent appends the
// last writer's summary wins. The next append repairs any stale summary.
func (s *Store) RecordMessages(ctx context.Context, discussionID ident.ID, userID string, texts []string) (*registrystore.AppendResult, error) {
	res, err := s.Append(ctx, discussionID, userID, texts, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	update := bson.M{
		"$set": bson.M{
			"last_message": lastMessageDoc{
				MessageID: bson.ObjectID(res.LastMessageID),
				UserID:    userID,
				Text:      res.LastMessageText,
				CreatedAt: res.LastMessageCreatedAt,
			},
			"updated_at": res.LastMessageCreatedAt,
		},
		"$addToSet":    bson.M{"users": userID},
		"$setOnInsert": bson.M{"created_at": res.LastMessageCreatedAt},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var updated discussionDoc
	err = s.discussions().
		FindOneAndUpdate(ctx, bson.M{"_id": bson.ObjectID(discussionID)}, update, opts).
		Decode(&updated)
	if err != nil {
		return nil, wrapErr("upsert discussion", err)
	}

	if s.cache != nil && s.cache.Available() {
		for _, user := range updated.Users {
			if err := s.cache.Remove(ctx, user); err != nil {
				log.Warn("Failed to invalidate discussion cache", "participant", user, "err", err)
			}
		}
	}
	return res, nil
}
