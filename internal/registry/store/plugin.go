package store

import (
	"context"
	"fmt"
	"time"

	"github.com/chirino/history-service/internal/ident"
	"github.com/chirino/history-service/internal/model"
)

// Page limits enforced at the HTTP boundary. Stores treat limit <= 0 as
// DefaultPageLimit but otherwise trust the caller.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// AppendResult summarizes the last element of an appended batch. That is the
// last entry of the caller's texts, not the globally newest message; the
// append only knows its own batch.
type AppendResult struct {
	InsertedCount        int
	LastMessageID        ident.ID
	LastMessageText      string
	LastMessageCreatedAt time.Time
}

// MessagePage is one page of a discussion's history, newest first.
// NextCursor is set only when the page is full; a short page (including an
// empty one) marks the end of history.
type MessagePage struct {
	Messages   []model.Message
	NextCursor *ident.ID
}

// MessageLedger is the append-only ordered log of messages per discussion.
//
// Identifier guarantees: ids assigned by Append are strictly greater than
// every id previously allocated (globally, not just per discussion), and
// within one batch id order matches the caller's text order. That is what
// makes cursor pagination stable under concurrent appends: pages already
// handed out never shift or pick up duplicates.
type MessageLedger interface {
	// Append durably inserts one message per text, all sharing occurredAt.
	// Fails with a ValidationError when texts is empty. The batch becomes
	// visible in order: a reader never observes a later element of the batch
	// without the earlier ones.
	Append(ctx context.Context, discussionID ident.ID, userID string, texts []string, occurredAt time.Time) (*AppendResult, error)

	// Page returns up to limit messages with id < cursor (when cursor is
	// non-nil), ordered by id descending. An unknown discussion yields an
	// empty page, not an error.
	Page(ctx context.Context, discussionID ident.ID, cursor *ident.ID, limit int) (*MessagePage, error)
}

// DiscussionDirectory is the per-participant index of discussions, ordered by
// recency, with upsert-on-write lifecycle: there is no explicit "create
// discussion" operation anywhere.
type DiscussionDirectory interface {
	// ListFor returns every discussion the participant belongs to, ordered by
	// UpdatedAt descending (ties broken by id descending for stable output).
	// A participant with no discussions gets an empty slice.
	ListFor(ctx context.Context, participantID string) ([]model.Discussion, error)

	// RecordMessages appends the batch via the ledger, then refreshes the
	// discussion summary: create-if-absent, set LastMessage and UpdatedAt
	// from the batch result, and ensure userID is in the participant set.
	// Ledger failures propagate unchanged; no summary update happens then.
	RecordMessages(ctx context.Context, discussionID ident.ID, userID string, texts []string) (*AppendResult, error)
}

// HistoryStore is the full data access surface a store plugin provides.
type HistoryStore interface {
	MessageLedger
	DiscussionDirectory
}

// Loader creates a HistoryStore from config carried in ctx.
type Loader func(ctx context.Context) (HistoryStore, error)

// Plugin represents a store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin. Called from init() in plugin packages.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store %q; valid: %v", name, Names())
}
