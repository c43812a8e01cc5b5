package mongo

import (
	"context"
	"time"

	"github.com/chirino/history-service/internal/ident"
	"github.com/chirino/history-service/internal/model"
	registrystore "github.com/chirino/history-service/internal/registry/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type messageDoc struct {
	ID           bson.ObjectID `bson:"_id"`
	DiscussionID bson.ObjectID `bson:"discussion_id"`
	UserID       string        `bson:"user_id"`
	Text         string        `bson:"text"`
	CreatedAt    time.Time     `bson:"created_at"`
}

func (d messageDoc) toModel() model.Message {
	return model.Message{
		ID:           ident.ID(d.ID),
		DiscussionID: ident.ID(d.DiscussionID),
		UserID:       d.UserID,
		Text:         d.Text,
		CreatedAt:    d.CreatedAt.UTC(),
	}
}

// Append inserts one document per text in a single ordered InsertMany. Ids
// come from the allocator before the insert, so batch order is id order and
// ids are globally increasing across concurrent appends.
func (s *Store) Append(ctx context.Context, discussionID ident.ID, userID string, texts []string, occurredAt time.Time) (*registrystore.AppendResult, error) {
	if len(texts) == 0 {
		return nil, &registrystore.ValidationError{Field: "messages", Message: "no messages provided"}
	}

	docs := make([]any, 0, len(texts))
	var last messageDoc
	for _, text := range texts {
		last = messageDoc{
			ID:           bson.ObjectID(s.alloc.NewID()),
			DiscussionID: bson.ObjectID(discussionID),
			UserID:       userID,
			Text:         text,
			CreatedAt:    occurredAt,
		}
		docs = append(docs, last)
	}

	if _, err := s.messages().InsertMany(ctx, docs); err != nil {
		return nil, wrapErr("insert messages", err)
	}

	return &registrystore.AppendResult{
		InsertedCount:        len(docs),
		LastMessageID:        ident.ID(last.ID),
		LastMessageText:      last.Text,
		LastMessageCreatedAt: last.CreatedAt.UTC(),
	}, nil
}

// Page returns up to limit messages of the discussion, newest first. cursor
// is an exclusive upper bound on _id. An unknown discussion yields an empty
// page.
func (s *Store) Page(ctx context.Context, discussionID ident.ID, cursor *ident.ID, limit int) (*registrystore.MessagePage, error) {
	if limit <= 0 {
		limit = registrystore.DefaultPageLimit
	}

	filter := bson.M{"discussion_id": bson.ObjectID(discussionID)}
	if cursor != nil {
		filter["_id"] = bson.M{"$lt": bson.ObjectID(*cursor)}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := s.messages().Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapErr("find messages", err)
	}
	defer cur.Close(ctx)

	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrapErr("decode messages", err)
	}

	page := &registrystore.MessagePage{Messages: make([]model.Message, 0, len(docs))}
	for _, d := range docs {
		page.Messages = append(page.Messages, d.toModel())
	}
	// A full page may be the last one; the next request discovers that by
	// getting an empty page back.
	if len(docs) == limit {
		next := ident.ID(docs[len(docs)-1].ID)
		page.NextCursor = &next
	}
	return page, nil
}
