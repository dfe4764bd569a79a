// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads timeline settings from a YAML file overlaid with
// command-line flags.
package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/timeline/internal/logging"
	"github.com/holomush/timeline/internal/xdg"
)

// Config holds every setting.
type Config struct {
	ReplayDir          string          `koanf:"replay_dir"`
	CheckpointInterval int             `koanf:"checkpoint_interval"`
	LogFormat          string          `koanf:"log_format"`
	LogLevel           string          `koanf:"log_level"`
	Generator          GeneratorConfig `koanf:"generator"`
	Feed               FeedConfig      `koanf:"feed"`
}

// GeneratorConfig tunes retries of transient generator failures.
type GeneratorConfig struct {
	MaxRetries uint64        `koanf:"max_retries"`
	BaseDelay  time.Duration `koanf:"base_delay"`
}

// FeedConfig configures the live feed server. An empty Addr disables it.
type FeedConfig struct {
	Addr string `koanf:"addr"`
}

// Default values.
const (
	DefaultCheckpointInterval = 10
	DefaultLogFormat          = "text"
	DefaultLogLevel           = "info"
	DefaultMaxRetries         = 3
	DefaultBaseDelay          = 100 * time.Millisecond
	maxRetriesLimit           = 10
)

// Default returns the built-in configuration.
func Default() Config {
	dir, err := xdg.ReplayDir()
	if err != nil {
		dir = "replays"
	}
	return Config{
		ReplayDir:          dir,
		CheckpointInterval: DefaultCheckpointInterval,
		LogFormat:          DefaultLogFormat,
		LogLevel:           DefaultLogLevel,
		Generator: GeneratorConfig{
			MaxRetries: DefaultMaxRetries,
			BaseDelay:  DefaultBaseDelay,
		},
	}
}

// flagKeys maps flag names to config keys. Flags not listed are not
// configuration.
var flagKeys = map[string]string{
	"replay-dir":           "replay_dir",
	"checkpoint-interval":  "checkpoint_interval",
	"log-format":           "log_format",
	"log-level":            "log_level",
	"generator-retries":    "generator.max_retries",
	"generator-base-delay": "generator.base_delay",
	"feed-addr":            "feed.addr",
}

// RegisterFlags adds the configuration flags to flags with defaults from
// Default.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("config", "", "config file (default: XDG_CONFIG_HOME/timeline/config.yaml)")
	flags.String("replay-dir", d.ReplayDir, "directory replay files are written to")
	flags.Int("checkpoint-interval", d.CheckpointInterval, "frames between checkpoints (0 disables)")
	flags.String("log-format", d.LogFormat, "log format (json or text)")
	flags.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	flags.Uint64("generator-retries", d.Generator.MaxRetries, "retries for transient generator failures")
	flags.Duration("generator-base-delay", d.Generator.BaseDelay, "initial generator retry backoff")
	flags.String("feed-addr", d.Feed.Addr, "live feed listen address (empty disables)")
}

// Load reads the config file at path and overlays the flags that were set
// explicitly. An empty path reads the default config file if it exists; a
// named file must exist. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		if p, err := xdg.ConfigFile(); err == nil {
			path = p
		}
	}
	if path != "" {
		_, statErr := os.Stat(path)
		switch {
		case statErr == nil:
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, oops.In("config").With("path", path).Wrapf(err, "load config file")
			}
		case explicit || !errors.Is(statErr, fs.ErrNotExist):
			return nil, oops.In("config").With("path", path).Wrapf(statErr, "read config file")
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.In("config").Wrapf(err, "load flags")
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.In("config").Wrapf(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.ReplayDir == "" {
		return oops.In("config").Errorf("replay_dir is required")
	}
	if c.CheckpointInterval < 0 {
		return oops.In("config").With("checkpoint_interval", c.CheckpointInterval).
			Errorf("checkpoint_interval must not be negative")
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.In("config").Errorf("log_format must be 'json' or 'text', got %q", c.LogFormat)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return oops.In("config").Wrapf(err, "log_level")
	}
	if c.Generator.MaxRetries > maxRetriesLimit {
		return oops.In("config").Errorf("generator.max_retries must be at most %d, got %d", maxRetriesLimit, c.Generator.MaxRetries)
	}
	if c.Generator.BaseDelay <= 0 {
		return oops.In("config").Errorf("generator.base_delay must be positive, got %s", c.Generator.BaseDelay)
	}
	return nil
}
