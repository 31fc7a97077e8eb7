package storage

import (
	"context"

	"wxadmin/internal/storage/models"
)

// HistoryLimit is the number of status history rows kept.
const HistoryLimit = 500

// Storage defines the interface for data persistence
type Storage interface {
	// Settings operations
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	DeleteSetting(ctx context.Context, key string) error
	GetAllSettings(ctx context.Context) (map[string]string, error)
	ListSettings(ctx context.Context) ([]*models.Setting, error)

	// Status history operations
	RecordStatus(ctx context.Context, entry *models.StatusEntry) error
	GetStatusHistory(ctx context.Context, limit int) ([]*models.StatusEntry, error)
	ClearStatusHistory(ctx context.Context) error

	// Transactions
	BeginTx(ctx context.Context) (Transaction, error)

	// Close closes the storage connection
	Close() error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Storage
}
