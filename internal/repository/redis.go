package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"guestms/internal/config"
	"guestms/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisCoordinator keeps room locks and rate-limit counters in Redis so
// several API processes share them.
type RedisCoordinator struct {
	client   *redis.Client
	newToken func() string
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisCoordinator(client *redis.Client) *RedisCoordinator {
	return &RedisCoordinator{
		client:   client,
		newToken: uuid.NewString,
	}
}

func roomLockKey(roomID int64) string {
	return fmt.Sprintf("room_lock:%d", roomID)
}

func rateLimitKey(key string) string {
	return "rate_limit:" + key
}

// AcquireRoomLock takes the room lock for ttl. A held lock yields an error
// matching domain.ErrConflict.
func (r *RedisCoordinator) AcquireRoomLock(ctx context.Context, roomID int64, ttl time.Duration) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("redis client is nil")
	}
	token := r.newToken()
	ok, err := r.client.SetNX(ctx, roomLockKey(roomID), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire room lock in redis: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("room %d is locked: %w", roomID, domain.ErrConflict)
	}
	return token, nil
}

func (r *RedisCoordinator) ReleaseRoomLock(ctx context.Context, roomID int64, token string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	deleted, err := releaseScript.Run(ctx, r.client, []string{roomLockKey(roomID)}, token).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release room lock in redis: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("room %d lock no longer held: %w", roomID, domain.ErrConflict)
	}
	return nil
}

func (r *RedisCoordinator) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	k := rateLimitKey(key)
	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	if count == 1 {
		if err := r.client.Expire(ctx, k, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
