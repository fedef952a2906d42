package database

import (
	"context"
	"fmt"

	"novelist-server/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient создает подключение к Redis и проверяет его.
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis недоступен: %w", err)
	}

	log.Info().Str("addr", cfg.RedisAddr).Msg("Successfully connected to redis")
	return client, nil
}
