package config

import (
	"time"

	"github.com/marmos91/tierfs/internal/bytesize"
)

// GetDefaultConfig returns a configuration with all defaults applied.
// Required fields (local path, remote bucket) stay empty and must be
// filled before the config validates.
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills in zero values with defaults, section by section.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyRemoteDefaults(&cfg.Remote)
	applyUnionDefaults(&cfg.Union)
	applyMigrationDefaults(&cfg.Migration)
}

func applyLoggingDefaults(c *LoggingConfig) {
	if c.Level == "" {
		c.Level = "INFO"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}
}

func applyServerDefaults(c *ServerConfig) {
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	c.API.ApplyDefaults()
}

func applyRemoteDefaults(c *RemoteConfig) {
	if c.Type == "" {
		c.Type = "s3"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.Cache.MaxAge == 0 {
		c.Cache.MaxAge = 5 * time.Minute
	}
	if c.Cache.MaxSize == 0 {
		c.Cache.MaxSize = 256 * bytesize.MiB
	}
	if c.Cache.DirCacheTime == 0 {
		c.Cache.DirCacheTime = 30 * time.Second
	}
	if c.Cache.AttrTimeout == 0 {
		c.Cache.AttrTimeout = 10 * time.Second
	}
}

func applyUnionDefaults(c *UnionConfig) {
	if c.TieBreak == "" {
		c.TieBreak = "newest"
	}
}

func applyMigrationDefaults(c *MigrationConfig) {
	if c.Schedule == "" {
		c.Schedule = "*/15 * * * *"
	}
	if c.Transfers == 0 {
		c.Transfers = 16
	}
	if c.Checkers == 0 {
		c.Checkers = 8
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	if c.QuiesceWindow == 0 {
		c.QuiesceWindow = time.Minute
	}
}
