package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 100

// RedisBackend stores each session under <prefix><token> as a string value.
type RedisBackend struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBackend connects using a redis:// or rediss:// URL. Every option the URL
// carries, TLS included, reaches the client.
func NewRedisBackend(url, prefix string) (*RedisBackend, error) {
	if url == "" {
		return nil, fmt.Errorf("redis: url is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url %s: %w", url, err)
	}
	return NewRedisBackendWithClient(redis.NewClient(opts), prefix), nil
}

// NewRedisBackendWithClient wraps an existing client.
func NewRedisBackendWithClient(client redis.UniversalClient, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) key(token string) string {
	return b.prefix + token
}

func (b *RedisBackend) Keys(ctx context.Context) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := b.client.Scan(ctx, cursor, b.prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: scan sessions: %w", err)
		}
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, b.prefix))
		}
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (b *RedisBackend) Get(ctx context.Context, token string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get session %s: %w", token, err)
	}
	return data, nil
}

func (b *RedisBackend) Put(ctx context.Context, token string, data []byte) error {
	if err := b.client.Set(ctx, b.key(token), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: set session %s: %w", token, err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, token string) error {
	if err := b.client.Del(ctx, b.key(token)).Err(); err != nil {
		return fmt.Errorf("redis: delete session %s: %w", token, err)
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
