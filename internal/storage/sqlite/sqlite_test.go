package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wxadmin/internal/storage"
	"wxadmin/internal/storage/models"
	pkgerrors "wxadmin/pkg/errors"
)

var (
	_ storage.Storage     = (*DB)(nil)
	_ storage.Transaction = (*Tx)(nil)
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "wxadmin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDefaultSettings(t *testing.T) {
	db := newTestDB(t)

	settings, err := db.GetAllSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"api_base":            "http://127.0.0.1:6017/api",
		"poll_interval":       "30s",
		"login_recheck_delay": "30s",
		"request_timeout":     "10s",
		"log_level":           "info",
	}, settings)
}

func TestSettingUpsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SetSetting(ctx, "poll_interval", "1m"))
	require.NoError(t, db.SetSetting(ctx, "theme", "dark"))

	v, err := db.GetSetting(ctx, "poll_interval")
	require.NoError(t, err)
	assert.Equal(t, "1m", v)

	list, err := db.ListSettings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 6)
	assert.Equal(t, "api_base", list[0].Key)
	assert.False(t, list[0].UpdatedAt.IsZero())

	require.NoError(t, db.DeleteSetting(ctx, "theme"))
	_, err = db.GetSetting(ctx, "theme")
	assert.ErrorIs(t, err, pkgerrors.ErrSettingNotFound)
	assert.ErrorIs(t, db.DeleteSetting(ctx, "theme"), pkgerrors.ErrSettingNotFound)
}

func TestDefaultsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wxadmin.db")
	ctx := context.Background()

	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.SetSetting(ctx, "log_level", "debug"))
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()

	v, err := db.GetSetting(ctx, "log_level")
	require.NoError(t, err)
	assert.Equal(t, "debug", v)
}

func TestDeletedDefaultStaysDeleted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wxadmin.db")
	ctx := context.Background()

	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.DeleteSetting(ctx, "poll_interval"))
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.GetSetting(ctx, "poll_interval")
	assert.ErrorIs(t, err, pkgerrors.ErrSettingNotFound)
	assert.ErrorIs(t, db.DeleteSetting(ctx, "poll_interval"), pkgerrors.ErrSettingNotFound)

	v, err := db.GetSetting(ctx, "log_level")
	require.NoError(t, err)
	assert.Equal(t, "info", v)
}

func TestStatusHistory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, db.RecordStatus(ctx, &models.StatusEntry{State: "offline", PrevState: "checking", Source: "poll", Message: "微信已离线", RecordedAt: at}))
	entry := &models.StatusEntry{State: "logining", PrevState: "offline", Source: "login", RecordedAt: at.Add(time.Minute)}
	require.NoError(t, db.RecordStatus(ctx, entry))
	assert.NotZero(t, entry.ID)

	history, err := db.GetStatusHistory(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "logining", history[0].State)
	assert.Equal(t, "offline", history[1].State)
	assert.Equal(t, "微信已离线", history[1].Message)
	assert.True(t, at.Equal(history[1].RecordedAt))

	require.NoError(t, db.ClearStatusHistory(ctx))
	history, err = db.GetStatusHistory(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestStatusHistoryPruned(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx)
	require.NoError(t, err)
	for i := 0; i < storage.HistoryLimit+20; i++ {
		require.NoError(t, tx.RecordStatus(ctx, &models.StatusEntry{State: "online", Source: "poll", Message: fmt.Sprint(i)}))
	}
	require.NoError(t, tx.Commit())

	history, err := db.GetStatusHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, storage.HistoryLimit)
	assert.Equal(t, fmt.Sprint(storage.HistoryLimit+19), history[0].Message)
	assert.Equal(t, "20", history[len(history)-1].Message)
}

func TestNestedTxRejected(t *testing.T) {
	db := newTestDB(t)
	tx, err := db.BeginTx(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.BeginTx(context.Background())
	assert.Error(t, err)
}
