package app

import (
	"context"

	"wxadmin/internal/storage"
	"wxadmin/internal/storage/models"
	"wxadmin/internal/wechat"
)

// HistoryRecorder stores controller transitions in the status history table.
type HistoryRecorder struct {
	store storage.Storage
}

// NewHistoryRecorder returns a recorder writing to store.
func NewHistoryRecorder(store storage.Storage) *HistoryRecorder {
	return &HistoryRecorder{store: store}
}

// RecordTransition implements wechat.Recorder.
func (r *HistoryRecorder) RecordTransition(ctx context.Context, t wechat.Transition) error {
	return r.store.RecordStatus(ctx, &models.StatusEntry{
		State:      string(t.To),
		PrevState:  string(t.From),
		Source:     string(t.Source),
		Message:    t.Message,
		RecordedAt: t.At,
	})
}
