package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Keys shared by the config file, WXADMIN_* env vars, flags, and the local
// settings table.
const (
	KeyAPIBase           = "api_base"
	KeyRequestTimeout    = "request_timeout"
	KeyPollInterval      = "poll_interval"
	KeyLoginRecheckDelay = "login_recheck_delay"
	KeyMaxRetries        = "max_retries"
	KeyRetryDelay        = "retry_delay"
	KeyLogLevel          = "log_level"
	KeyLogFile           = "log_file"
	KeyDBPath            = "db"
)

// Defaults for a service running on the same host.
const (
	DefaultAPIBase           = "http://127.0.0.1:6017/api"
	DefaultRequestTimeout    = 10 * time.Second
	DefaultPollInterval      = 30 * time.Second
	DefaultLoginRecheckDelay = 30 * time.Second
	DefaultMaxRetries        = 2
	DefaultRetryDelay        = 500 * time.Millisecond
	DefaultLogLevel          = "info"
)

// Config is the resolved client configuration.
type Config struct {
	APIBase           string
	RequestTimeout    time.Duration
	PollInterval      time.Duration
	LoginRecheckDelay time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	LogLevel          string
	LogFile           string
	DBPath            string
}

// New returns a viper instance with defaults and env binding applied. When
// file is empty, config.yaml under configDir is used if it exists.
func New(file, configDir string) (*viper.Viper, error) {
	v := viper.New()

	v.SetDefault(KeyAPIBase, DefaultAPIBase)
	v.SetDefault(KeyRequestTimeout, DefaultRequestTimeout)
	v.SetDefault(KeyPollInterval, DefaultPollInterval)
	v.SetDefault(KeyLoginRecheckDelay, DefaultLoginRecheckDelay)
	v.SetDefault(KeyMaxRetries, DefaultMaxRetries)
	v.SetDefault(KeyRetryDelay, DefaultRetryDelay)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)

	v.SetEnvPrefix("WXADMIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file == "" && configDir != "" {
		candidate := filepath.Join(configDir, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			file = candidate
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config %s: %w", file, err)
			}
		}
	}

	return v, nil
}

// ApplyStored layers locally saved settings under file, env, and flag values.
// Stored values replace the built-in defaults only.
func ApplyStored(v *viper.Viper, stored map[string]string) {
	for key, value := range stored {
		if value == "" {
			continue
		}
		v.SetDefault(key, value)
	}
}

// Resolve reads the effective configuration out of v.
func Resolve(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		APIBase:           strings.TrimRight(v.GetString(KeyAPIBase), "/"),
		RequestTimeout:    v.GetDuration(KeyRequestTimeout),
		PollInterval:      v.GetDuration(KeyPollInterval),
		LoginRecheckDelay: v.GetDuration(KeyLoginRecheckDelay),
		MaxRetries:        v.GetInt(KeyMaxRetries),
		RetryDelay:        v.GetDuration(KeyRetryDelay),
		LogLevel:          v.GetString(KeyLogLevel),
		LogFile:           v.GetString(KeyLogFile),
		DBPath:            v.GetString(KeyDBPath),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	if c.APIBase == "" {
		return fmt.Errorf("%s must not be empty", KeyAPIBase)
	}
	if !strings.HasPrefix(c.APIBase, "http://") && !strings.HasPrefix(c.APIBase, "https://") {
		return fmt.Errorf("%s must be an http(s) URL, got %q", KeyAPIBase, c.APIBase)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s must be positive", KeyRequestTimeout)
	}
	if c.PollInterval < time.Second {
		return fmt.Errorf("%s must be at least 1s", KeyPollInterval)
	}
	if c.LoginRecheckDelay <= 0 {
		return fmt.Errorf("%s must be positive", KeyLoginRecheckDelay)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%s must not be negative", KeyMaxRetries)
	}
	return nil
}

// Watch re-resolves the configuration whenever the backing file changes.
// It is a no-op when no config file is in use.
func Watch(v *viper.Viper, onChange func(*Config, error)) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(Resolve(v))
	})
	v.WatchConfig()
}
