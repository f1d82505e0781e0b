// Package config loads settings for the journal tooling from a YAML or
// TOML file with JOURNAL_* environment overrides.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-journal/engine"
	"github.com/wippyai/wasm-journal/errors"
	"github.com/wippyai/wasm-journal/storage"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "JOURNAL_"

// Config is the full tool configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	Log     LogConfig     `yaml:"log" toml:"log"`
	Engine  engine.Config `yaml:"engine" toml:"engine"`
	Replay  ReplayConfig  `yaml:"replay" toml:"replay"`
}

// StorageConfig selects the journal backend.
type StorageConfig struct {
	Backend   string      `yaml:"backend" toml:"backend"`
	Path      string      `yaml:"path" toml:"path"`
	Sync      string      `yaml:"sync" toml:"sync"`
	DSN       string      `yaml:"dsn" toml:"dsn"`
	JournalID string      `yaml:"journal_id" toml:"journal_id"`
	Redis     RedisConfig `yaml:"redis" toml:"redis"`
	ReadOnly  bool        `yaml:"read_only" toml:"read_only"`
}

// RedisConfig locates a Redis stream.
type RedisConfig struct {
	Addr     string `yaml:"addr" toml:"addr"`
	Password string `yaml:"password" toml:"password"`
	Stream   string `yaml:"stream" toml:"stream"`
	DB       int    `yaml:"db" toml:"db"`
}

// LogConfig controls the CLI logger.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// ReplayConfig tunes replay passes started by the tools.
type ReplayConfig struct {
	ContinueOnError bool `yaml:"continue_on_error" toml:"continue_on_error"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: string(storage.KindFile),
			Path:    "journal.wjnl",
			Sync:    string(storage.SyncAlways),
		},
		Log:    LogConfig{Level: "info", Format: "console"},
		Engine: engine.DefaultConfig(),
	}
}

// Load reads path, applies environment overrides and validates the
// result. A missing file yields the defaults. An empty path skips the
// file entirely.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := decode(path, data, cfg); err != nil {
				return nil, err
			}
		case os.IsNotExist(err):
		default:
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindStorageIO, err, "read config")
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode TOML")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return errors.New(errors.PhaseConfig, errors.KindInvalidData).
				Path(undecoded[0].String()).
				Detail("unknown key %q", undecoded[0].String()).
				Build()
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "decode YAML")
		}
	default:
		return errors.InvalidInput(errors.PhaseConfig, "unsupported config format "+filepath.Ext(path))
	}
	return nil
}

// ApplyEnv overrides fields from JOURNAL_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("STORAGE_PATH", &c.Storage.Path)
	str("STORAGE_SYNC", &c.Storage.Sync)
	str("SQLITE_DSN", &c.Storage.DSN)
	str("ID", &c.Storage.JournalID)
	str("REDIS_ADDR", &c.Storage.Redis.Addr)
	str("REDIS_PASSWORD", &c.Storage.Redis.Password)
	str("REDIS_STREAM", &c.Storage.Redis.Stream)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup(EnvPrefix + "REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return envError("REDIS_DB", v, err)
		}
		c.Storage.Redis.DB = db
	}
	if v, ok := lookup(EnvPrefix + "READ_ONLY"); ok {
		ro, err := strconv.ParseBool(v)
		if err != nil {
			return envError("READ_ONLY", v, err)
		}
		c.Storage.ReadOnly = ro
	}
	if v, ok := lookup(EnvPrefix + "ENGINE_COMPILER"); ok {
		c.Engine.Compiler = engine.Compiler(v)
	}
	return nil
}

func envError(name, value string, cause error) error {
	return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Path("env", EnvPrefix+name).
		Value(value).
		Cause(cause).
		Detail("bad value %q", value).
		Build()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.StorageConfig().Validate(); err != nil {
		return err
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("log", "format").
			Value(c.Log.Format).
			Detail("unknown log format %q", c.Log.Format).
			Build()
	}
	return nil
}

// StorageConfig converts the storage section for storage.Open.
func (c *Config) StorageConfig() storage.Config {
	s := c.Storage
	return storage.Config{
		Backend:   storage.Kind(s.Backend),
		Path:      s.Path,
		Sync:      storage.SyncMode(s.Sync),
		ReadOnly:  s.ReadOnly,
		DSN:       s.DSN,
		JournalID: s.JournalID,
		Redis: storage.RedisOptions{
			Addr:     s.Redis.Addr,
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
			Stream:   s.Redis.Stream,
		},
	}
}

// LogLevel parses the configured level. Empty means info.
func (c *Config) LogLevel() (zapcore.Level, error) {
	if c.Log.Level == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return 0, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("log", "level").
			Value(c.Log.Level).
			Cause(err).
			Detail("unknown log level %q", c.Log.Level).
			Build()
	}
	return lvl, nil
}
