package metrics

import (
	"context"
	"time"

	"github.com/chirino/history-service/internal/ident"
	"github.com/chirino/history-service/internal/model"
	"github.com/chirino/history-service/internal/registry/store"
	"github.com/chirino/history-service/internal/security"
)

// Wrap returns a HistoryStore that records StoreLatency for every operation.
func Wrap(inner store.HistoryStore) store.HistoryStore {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner store.HistoryStore
}

func observe(op string, start time.Time) {
	security.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsStore) Append(ctx context.Context, discussionID ident.ID, userID string, texts []string, occurredAt time.Time) (*store.AppendResult, error) {
	defer observe("append_messages", time.Now())
	return m.inner.Append(ctx, discussionID, userID, texts, occurredAt)
}

func (m *metricsStore) Page(ctx context.Context, discussionID ident.ID, cursor *ident.ID, limit int) (*store.MessagePage, error) {
	defer observe("page_messages", time.Now())
	return m.inner.Page(ctx, discussionID, cursor, limit)
}

func (m *metricsStore) ListFor(ctx context.Context, participantID string) ([]model.Discussion, error) {
	defer observe("list_discussions", time.Now())
	return m.inner.ListFor(ctx, participantID)
}

func (m *metricsStore) RecordMessages(ctx context.Context, discussionID ident.ID, userID string, texts []string) (*store.AppendResult, error) {
	defer observe("record_messages", time.Now())
	return m.inner.RecordMessages(ctx, discussionID, userID, texts)
}
