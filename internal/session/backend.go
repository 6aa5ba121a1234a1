package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/comigor/leanchems-go/internal/config"
)

// ErrNotFound is returned by Backend.Get for a key with no record.
var ErrNotFound = errors.New("session: record not found")

// Backend is the key-value persistence behind a Store. Values are opaque encoded
// session records. Delete of a missing key must succeed.
type Backend interface {
	Keys(ctx context.Context) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// OpenBackend builds the backend selected by cfg.Backend.
func OpenBackend(cfg config.SessionConfig) (Backend, error) {
	switch cfg.Backend {
	case "", config.BackendFile:
		return NewFileBackend(cfg.Dir)
	case config.BackendSQLite:
		return NewSQLiteBackend(cfg.SQLitePath)
	case config.BackendRedis:
		return NewRedisBackend(cfg.RedisURL, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("session: unknown backend %q", cfg.Backend)
	}
}
