package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker аренда ключа между репликами
type Locker interface {
	// TryAcquire пытается взять ключ на ttl. false означает, что ключ держит кто-то другой.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// releaseScript удаляет ключ, только если он всё ещё принадлежит нам
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker аренда на основе SET NX PX
type RedisLocker struct {
	client *redis.Client
	owner  string
}

// NewRedisLocker создаёт locker с уникальным токеном владельца для этого процесса
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client: client,
		owner:  uuid.NewString(),
	}
}

// Owner токен владельца, под которым берутся ключи
func (l *RedisLocker) Owner() string {
	return l.owner
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, l.client, []string{key}, l.owner).Err(); err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	return nil
}

// NopLocker всегда выдаёт блокировку. Для запуска в одном экземпляре.
type NopLocker struct{}

func (NopLocker) TryAcquire(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

func (NopLocker) Release(context.Context, string) error {
	return nil
}
