package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultCounterKeyPrefix はRedis上のカウンタキーの接頭辞。
const DefaultCounterKeyPrefix = "refnum:counter:"

// RedisCounterRepository はRedisのINCRで採番するカウンタ。
// キーには有効期限を設定しない。
type RedisCounterRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCounterRepository は新しいRedisCounterRepositoryを生成する。
func NewRedisCounterRepository(client redis.UniversalClient) *RedisCounterRepository {
	return &RedisCounterRepository{client: client, prefix: DefaultCounterKeyPrefix}
}

func (r *RedisCounterRepository) key(scopeKey string) string {
	return r.prefix + scopeKey
}

// Allocate はスコープのカウンタを原子的に1進め、進めた後の値を返す。
func (r *RedisCounterRepository) Allocate(ctx context.Context, scopeKey string) (int64, error) {
	seq, err := r.client.Incr(ctx, r.key(scopeKey)).Result()
	if err != nil {
		slog.ErrorContext(ctx, "failed to incr counter",
			"operation", "allocate",
			"scope_key", scopeKey,
			"error", err,
		)
		return 0, storageError(err)
	}
	return seq, nil
}

// Peek は最後に払い出された番号を返す。
func (r *RedisCounterRepository) Peek(ctx context.Context, scopeKey string) (int64, error) {
	last, err := r.client.Get(ctx, r.key(scopeKey)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		slog.ErrorContext(ctx, "failed to get counter",
			"operation", "peek",
			"scope_key", scopeKey,
			"error", err,
		)
		return 0, storageError(err)
	}
	return last, nil
}
