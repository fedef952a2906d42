package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// runnerLockTTL страхует от вечно висящей блокировки после падения
// экземпляра. Продления нет: долгая генерация может пережить TTL,
// от второго исполнителя тогда защищает статусная машина новеллы.
const runnerLockTTL = 10 * time.Minute

// RedisRunnerLock - межпроцессная блокировка исполнителя генерации на Redis.
type RedisRunnerLock struct {
	client *redis.Client
}

// NewRedisRunnerLock создает блокировку поверх подключения к Redis
func NewRedisRunnerLock(client *redis.Client) *RedisRunnerLock {
	return &RedisRunnerLock{client: client}
}

func runnerLockKey(novelID uuid.UUID) string {
	return "novelist:runner:" + novelID.String()
}

// Acquire пытается захватить блокировку через SETNX
func (l *RedisRunnerLock) Acquire(ctx context.Context, novelID uuid.UUID) (bool, error) {
	ok, err := l.client.SetNX(ctx, runnerLockKey(novelID), "1", runnerLockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire runner lock for %s: %w", novelID, err)
	}
	return ok, nil
}

// Release снимает блокировку
func (l *RedisRunnerLock) Release(ctx context.Context, novelID uuid.UUID) error {
	if err := l.client.Del(ctx, runnerLockKey(novelID)).Err(); err != nil {
		return fmt.Errorf("failed to release runner lock for %s: %w", novelID, err)
	}
	return nil
}

// NoopRunnerLock - заглушка для запуска без Redis в один экземпляр.
// Эксклюзивность в пределах процесса обеспечивает менеджер задач.
type NoopRunnerLock struct{}

// NewNoopRunnerLock создает блокировку-заглушку
func NewNoopRunnerLock() *NoopRunnerLock {
	return &NoopRunnerLock{}
}

func (NoopRunnerLock) Acquire(ctx context.Context, novelID uuid.UUID) (bool, error) {
	return true, nil
}

func (NoopRunnerLock) Release(ctx context.Context, novelID uuid.UUID) error {
	return nil
}
