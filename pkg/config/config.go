// Package config loads and validates the orchestrator configuration
// from file, environment, and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/tierfs/internal/bytesize"
	"github.com/marmos91/tierfs/pkg/api"
)

// Config is the full orchestrator configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (TIERFS_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// The file may hold remote credentials paths; it is read-only input and
// never written back except by 'tierfs init'.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server holds process-level settings: shutdown, ops API, metrics
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Remote configures the remote object-store tier
	Remote RemoteConfig `mapstructure:"remote" yaml:"remote"`

	// Local configures the fast local tier
	Local LocalConfig `mapstructure:"local" yaml:"local"`

	// Union configures the merged namespace
	Union UnionConfig `mapstructure:"union" yaml:"union"`

	// Migration configures the local-to-remote migration scheduler
	Migration MigrationConfig `mapstructure:"migration" yaml:"migration"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ServerConfig holds process-level settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	// Default: 30s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// API configures the operations HTTP server
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// Metrics configures Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// MetricsConfig configures Prometheus metrics collection. When Enabled
// is false, no metrics are collected.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// RemoteConfig configures the remote object-store tier.
type RemoteConfig struct {
	// Type selects the remote backend. Currently only "s3".
	// Default: s3
	Type string `mapstructure:"type" validate:"required,oneof=s3" yaml:"type"`

	// Bucket is the object-store bucket name (required)
	Bucket string `mapstructure:"bucket" validate:"required" yaml:"bucket"`

	// Region is the provider region
	Region string `mapstructure:"region" yaml:"region,omitempty"`

	// Endpoint overrides the provider endpoint (S3-compatible services)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`

	// KeyPrefix is prepended to all object keys
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix,omitempty"`

	// ForcePathStyle forces path-style addressing (MinIO, Localstack)
	ForcePathStyle bool `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`

	// CredentialsFile is a shared-credentials file holding the remote
	// credentials. Read-only input, never written.
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file,omitempty"`

	// Profile selects a profile within CredentialsFile
	Profile string `mapstructure:"profile" yaml:"profile,omitempty"`

	// MaxRetries bounds retry attempts for retryable remote errors
	// Default: 3
	MaxRetries int `mapstructure:"max_retries" validate:"omitempty,min=1" yaml:"max_retries"`

	// Cache tunes the remote metadata/content cache
	Cache RemoteCacheConfig `mapstructure:"cache" yaml:"cache"`
}

// RemoteCacheConfig tunes the remote-side cache.
type RemoteCacheConfig struct {
	// MaxAge bounds how long cached content is served without
	// revalidation. Default: 5m
	MaxAge time.Duration `mapstructure:"max_age" yaml:"max_age"`

	// MaxSize caps the content cache footprint
	// Supports human-readable sizes: "256MiB", "1GB"
	// Default: 256MiB
	MaxSize bytesize.ByteSize `mapstructure:"max_size" yaml:"max_size,omitempty"`

	// DirCacheTime bounds how long directory listings are cached
	// Default: 30s
	DirCacheTime time.Duration `mapstructure:"dir_cache_time" yaml:"dir_cache_time"`

	// AttrTimeout bounds how long attributes are cached
	// Default: 10s
	AttrTimeout time.Duration `mapstructure:"attr_timeout" yaml:"attr_timeout"`

	// PollInterval enables the background cache reconcile loop when > 0
	// Default: 0 (disabled)
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval,omitempty"`
}

// LocalConfig configures the fast local tier.
type LocalConfig struct {
	// Path is the root directory of the local tier (required)
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	// MinFreeSpace is the free-space floor; writes that would drop
	// below it are rejected
	// Supports human-readable sizes: "10GiB"
	// Default: 0 (disabled)
	MinFreeSpace bytesize.ByteSize `mapstructure:"min_free_space" yaml:"min_free_space,omitempty"`
}

// UnionConfig configures the merged namespace.
type UnionConfig struct {
	// MountPath is the advertised root of the merged namespace,
	// reported by the ops API and logs. Informational only.
	MountPath string `mapstructure:"mount_path" yaml:"mount_path,omitempty"`

	// TieBreak resolves paths present in both tiers
	// Valid values: newest (newer mtime wins, local wins ties),
	// local (local always wins)
	// Default: newest
	TieBreak string `mapstructure:"tie_break" validate:"omitempty,oneof=newest local" yaml:"tie_break"`
}

// MigrationConfig configures the migration scheduler.
type MigrationConfig struct {
	// Schedule is a standard five-field cron expression (required)
	Schedule string `mapstructure:"schedule" validate:"required" yaml:"schedule"`

	// Transfers is the transfer worker count
	// Default: 16
	Transfers int `mapstructure:"transfers" validate:"omitempty,min=1" yaml:"transfers"`

	// Checkers is the verification worker count
	// Default: 8
	Checkers int `mapstructure:"checkers" validate:"omitempty,min=1" yaml:"checkers"`

	// MaxRetries bounds transfer attempts per task per cycle
	// Default: 3
	MaxRetries int `mapstructure:"max_retries" validate:"omitempty,min=1" yaml:"max_retries"`

	// RetryDelay is the initial backoff between attempts
	// Default: 500ms
	RetryDelay time.Duration `mapstructure:"retry_delay" yaml:"retry_delay,omitempty"`

	// QuiesceWindow is how long a file must go unwritten before it is
	// eligible for transfer
	// Default: 1m
	QuiesceWindow time.Duration `mapstructure:"quiesce_window" yaml:"quiesce_window"`

	// JournalPath is the directory for the migration history journal.
	// Empty disables journaling.
	JournalPath string `mapstructure:"journal_path" yaml:"journal_path,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: path to config file (empty string uses the default
//     location)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the
// file is missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  tierfs init\n\n"+
				"Or specify a custom config file:\n"+
				"  tierfs <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  tierfs init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to path in YAML form.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Restricted permissions; the file may reference credential paths.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures environment variable and config file handling.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the TIERFS_ prefix with underscores.
	// Example: TIERFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("TIERFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks combines the custom type decode hooks.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize,
// so config files can use "10GiB", "256MB", or plain byte counts.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration, so config files
// can use "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path, preferring
// XDG_CONFIG_HOME over ~/.config.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "tierfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "tierfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for
// the init command).
func GetConfigDir() string {
	return getConfigDir()
}
