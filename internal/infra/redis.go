package infra

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/devnolife/sakti-dashboard-sub012/config"
)

// NewRedisClient はRedisクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}
