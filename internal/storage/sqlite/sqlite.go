package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"wxadmin/internal/storage"
	"wxadmin/internal/storage/models"
	pkgerrors "wxadmin/pkg/errors"
)

// dbHandle is the common interface between *sql.DB and *sql.Tx.
type dbHandle interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DB implements the Storage interface using SQLite
type DB struct {
	db *sql.DB
}

// New creates a new SQLite storage instance
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	storage := &DB{db: db}

	if err := runMigrations(storage); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) handle() dbHandle { return d.db }

// BeginTx starts a new transaction
func (d *DB) BeginTx(ctx context.Context) (storage.Transaction, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// Tx implements the Transaction interface
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Commit() error    { return t.tx.Commit() }
func (t *Tx) Rollback() error  { return t.tx.Rollback() }
func (t *Tx) handle() dbHandle { return t.tx }

func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *Tx) Close() error { return nil }

// ─── Settings operations ────────────────────────────────────────────────────

func (d *DB) GetSetting(ctx context.Context, key string) (string, error) {
	return getSetting(ctx, d.handle(), key)
}
func (t *Tx) GetSetting(ctx context.Context, key string) (string, error) {
	return getSetting(ctx, t.handle(), key)
}

func getSetting(ctx context.Context, h dbHandle, key string) (string, error) {
	var value string
	err := h.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s", pkgerrors.ErrSettingNotFound, key)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, d.handle(), key, value)
}
func (t *Tx) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, t.handle(), key, value)
}

func setSetting(ctx context.Context, h dbHandle, key, value string) error {
	query := `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := h.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to save setting %s: %w", key, err)
	}
	return nil
}

func (d *DB) DeleteSetting(ctx context.Context, key string) error {
	return deleteSetting(ctx, d.handle(), key)
}
func (t *Tx) DeleteSetting(ctx context.Context, key string) error {
	return deleteSetting(ctx, t.handle(), key)
}

func deleteSetting(ctx context.Context, h dbHandle, key string) error {
	result, err := h.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", pkgerrors.ErrSettingNotFound, key)
	}
	return nil
}

func (d *DB) GetAllSettings(ctx context.Context) (map[string]string, error) {
	return getAllSettings(ctx, d.handle())
}
func (t *Tx) GetAllSettings(ctx context.Context) (map[string]string, error) {
	return getAllSettings(ctx, t.handle())
}

func getAllSettings(ctx context.Context, h dbHandle) (map[string]string, error) {
	rows, err := h.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (d *DB) ListSettings(ctx context.Context) ([]*models.Setting, error) {
	return listSettings(ctx, d.handle())
}
func (t *Tx) ListSettings(ctx context.Context) ([]*models.Setting, error) {
	return listSettings(ctx, t.handle())
}

func listSettings(ctx context.Context, h dbHandle) ([]*models.Setting, error) {
	rows, err := h.QueryContext(ctx, "SELECT key, value, updated_at FROM settings ORDER BY key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []*models.Setting
	for rows.Next() {
		s := &models.Setting{}
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedAt); err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}
	return settings, rows.Err()
}

// ─── Status history operations ──────────────────────────────────────────────

func (d *DB) RecordStatus(ctx context.Context, entry *models.StatusEntry) error {
	return recordStatus(ctx, d.handle(), entry)
}
func (t *Tx) RecordStatus(ctx context.Context, entry *models.StatusEntry) error {
	return recordStatus(ctx, t.handle(), entry)
}

func recordStatus(ctx context.Context, h dbHandle, entry *models.StatusEntry) error {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}
	result, err := h.ExecContext(ctx, `
		INSERT INTO status_history (state, prev_state, source, message, recorded_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.State, entry.PrevState, entry.Source, entry.Message, entry.RecordedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record status: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = id

	_, err = h.ExecContext(ctx, `
		DELETE FROM status_history WHERE id NOT IN (
			SELECT id FROM status_history ORDER BY id DESC LIMIT ?
		)
	`, storage.HistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to prune status history: %w", err)
	}
	return nil
}

func (d *DB) GetStatusHistory(ctx context.Context, limit int) ([]*models.StatusEntry, error) {
	return getStatusHistory(ctx, d.handle(), limit)
}
func (t *Tx) GetStatusHistory(ctx context.Context, limit int) ([]*models.StatusEntry, error) {
	return getStatusHistory(ctx, t.handle(), limit)
}

// getStatusHistory returns the newest entries first.
func getStatusHistory(ctx context.Context, h dbHandle, limit int) ([]*models.StatusEntry, error) {
	if limit <= 0 || limit > storage.HistoryLimit {
		limit = storage.HistoryLimit
	}
	rows, err := h.QueryContext(ctx, `
		SELECT id, state, COALESCE(prev_state, ''), source, COALESCE(message, ''), recorded_at
		FROM status_history
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.StatusEntry
	for rows.Next() {
		e := &models.StatusEntry{}
		if err := rows.Scan(&e.ID, &e.State, &e.PrevState, &e.Source, &e.Message, &e.RecordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (d *DB) ClearStatusHistory(ctx context.Context) error {
	return clearStatusHistory(ctx, d.handle())
}
func (t *Tx) ClearStatusHistory(ctx context.Context) error {
	return clearStatusHistory(ctx, t.handle())
}

func clearStatusHistory(ctx context.Context, h dbHandle) error {
	if _, err := h.ExecContext(ctx, "DELETE FROM status_history"); err != nil {
		return fmt.Errorf("failed to clear status history: %w", err)
	}
	return nil
}
