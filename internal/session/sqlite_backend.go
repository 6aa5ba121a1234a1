package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/leanchems-go/internal/logger"
)

// SQLiteBackend keeps one row per session in a local SQLite database.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens the database at path and creates the sessions table if it
// doesn't exist.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
        token TEXT PRIMARY KEY,
        data BLOB NOT NULL,
        updated_at DATETIME
    );`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite table creation: %w", err)
	}
	logger.L.Info("sqlite session DB initialized", "path", path)
	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Keys(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT token FROM sessions ORDER BY token;`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan session key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE token = ?;`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", key, err)
	}
	return data, nil
}

func (b *SQLiteBackend) Put(ctx context.Context, key string, data []byte) error {
	_, err := b.db.ExecContext(ctx, `INSERT INTO sessions (token, data, updated_at) VALUES (?,?,?)
        ON CONFLICT(token) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at;`,
		key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store session %s: %w", key, err)
	}
	return nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?;`, key); err != nil {
		return fmt.Errorf("delete session %s: %w", key, err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
