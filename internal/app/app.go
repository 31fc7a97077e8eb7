package app

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"wxadmin/internal/api"
	"wxadmin/internal/config"
	"wxadmin/internal/logs"
	"wxadmin/internal/paths"
	"wxadmin/internal/storage"
	"wxadmin/internal/storage/sqlite"
	"wxadmin/internal/wechat"
)

// App represents the application context
type App struct {
	Storage storage.Storage
	Logger  *zap.Logger

	viper *viper.Viper
	level zap.AtomicLevel

	mu     sync.RWMutex
	config *config.Config
	client *api.Client
}

// Options controls how the application context is built.
type Options struct {
	// Viper carries file, env and flag values. Nil means defaults only.
	Viper *viper.Viper
	// Console mirrors logs to stderr.
	Console bool
}

// New creates a new application instance
func New(opts Options) (*App, error) {
	v := opts.Viper
	if v == nil {
		var err error
		if v, err = config.New("", ""); err != nil {
			return nil, err
		}
	}

	dbPath := v.GetString(config.KeyDBPath)
	if dbPath == "" {
		dataDir, err := paths.DataDir()
		if err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dbPath = filepath.Join(dataDir, "wxadmin.db")
		v.SetDefault(config.KeyDBPath, dbPath)
	}

	store, err := sqlite.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	stored, err := store.GetAllSettings(context.Background())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	config.ApplyStored(v, stored)

	cfg, err := config.Resolve(v)
	if err != nil {
		store.Close()
		return nil, err
	}

	if cfg.LogFile == "" {
		cacheDir, err := paths.CacheDir()
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		cfg.LogFile = filepath.Join(cacheDir, "wxadmin.log")
	}

	logger, level, err := logs.New(logs.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: opts.Console})
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &App{
		Storage: store,
		Logger:  logger,
		viper:   v,
		level:   level,
		config:  cfg,
	}
	a.client = a.newClient(cfg)

	logger.Info("application started",
		zap.String("api_base", cfg.APIBase),
		zap.String("db", dbPath),
		zap.String("config_file", v.ConfigFileUsed()))
	return a, nil
}

func (a *App) newClient(cfg *config.Config) *api.Client {
	return api.NewClient(api.ClientConfig{
		BaseURL:    cfg.APIBase,
		Timeout:    cfg.RequestTimeout,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
	}, a.Logger)
}

// Config returns the effective configuration.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config
}

// Effective returns the value key resolves to across flags, env, file,
// stored settings and defaults.
func (a *App) Effective(key string) string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.viper.GetString(key)
}

// API returns the REST client for the current configuration.
func (a *App) API() *api.Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client
}

// NewController builds a connection-status controller bound to the current
// API client, recording transitions to the local store.
func (a *App) NewController() (*wechat.Controller, error) {
	cfg := a.Config()
	return wechat.New(a.API(), wechat.Options{
		PollInterval: cfg.PollInterval,
		RecheckDelay: cfg.LoginRecheckDelay,
		Recorder:     NewHistoryRecorder(a.Storage),
		Logger:       a.Logger,
	})
}

// SaveSetting validates and persists a setting, then applies it. A stored
// value never overrides one given by file, env, or flag.
func (a *App) SaveSetting(ctx context.Context, key, value string) (string, error) {
	value, err := config.NormalizeSetting(key, value)
	if err != nil {
		return "", err
	}
	if err := a.Storage.SetSetting(ctx, key, value); err != nil {
		return "", err
	}

	a.viper.SetDefault(key, value)
	if err := a.reload(); err != nil {
		return value, err
	}
	a.Logger.Info("setting saved", zap.String("key", key), zap.String("value", value))
	return value, nil
}

// Watch reloads the configuration when the config file changes. onChange is
// called after every reload attempt.
func (a *App) Watch(onChange func(*config.Config, error)) {
	config.Watch(a.viper, func(_ *config.Config, err error) {
		if err == nil {
			err = a.reload()
		}
		if err != nil {
			a.Logger.Warn("config reload failed", zap.Error(err))
		}
		if onChange != nil {
			onChange(a.Config(), err)
		}
	})
}

func (a *App) reload() error {
	cfg, err := config.Resolve(a.viper)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if cfg.LogFile == "" {
		cfg.LogFile = a.config.LogFile
	}
	if err := logs.SetLevel(a.level, cfg.LogLevel); err != nil {
		return err
	}
	if cfg.APIBase != a.config.APIBase || cfg.RequestTimeout != a.config.RequestTimeout ||
		cfg.MaxRetries != a.config.MaxRetries || cfg.RetryDelay != a.config.RetryDelay {
		a.client = a.newClient(cfg)
	}
	a.config = cfg
	return nil
}

// Close closes the application and releases resources
func (a *App) Close() error {
	_ = a.Logger.Sync()
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}
