package storage

import (
	"context"

	"github.com/wippyai/wasm-journal/errors"
)

// Kind names a storage backend.
type Kind string

const (
	KindMemory Kind = "memory"
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
	KindRedis  Kind = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Backend   Kind
	Path      string
	Sync      SyncMode
	ReadOnly  bool
	DSN       string
	JournalID string
	Redis     RedisOptions
}

// Validate checks that the fields the selected backend needs are set.
func (c Config) Validate() error {
	switch c.Backend {
	case KindMemory:
	case KindFile:
		if c.Path == "" {
			return errors.InvalidInput(errors.PhaseConfig, "file backend needs a path")
		}
		if !c.Sync.Valid() {
			return errors.InvalidInput(errors.PhaseConfig, "unknown sync mode "+string(c.Sync))
		}
	case KindSQLite:
		if c.DSN == "" {
			return errors.InvalidInput(errors.PhaseConfig, "sqlite backend needs a dsn")
		}
		if c.JournalID == "" {
			return errors.InvalidInput(errors.PhaseConfig, "sqlite backend needs a journal id")
		}
	case KindRedis:
		if c.Redis.Addr == "" || c.Redis.Stream == "" {
			return errors.InvalidInput(errors.PhaseConfig, "redis backend needs an address and a stream")
		}
	default:
		return errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("storage", "backend").
			Value(string(c.Backend)).
			Detail("unknown backend %q", c.Backend).
			Build()
	}
	return nil
}

// Open validates cfg and opens the backend it selects.
func Open(ctx context.Context, cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		b   Backend
		err error
	)
	switch cfg.Backend {
	case KindFile:
		var f *File
		f, err = OpenFile(cfg.Path, FileOptions{Sync: cfg.Sync, ReadOnly: cfg.ReadOnly})
		b = f
	case KindSQLite:
		var s *SQLite
		s, err = OpenSQLite(ctx, cfg.DSN, cfg.JournalID)
		b = s
	case KindRedis:
		var r *Redis
		r, err = OpenRedis(ctx, cfg.Redis)
		b = r
	default:
		b = NewMemory()
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
